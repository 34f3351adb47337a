package serverinfo

import (
	"strings"
	"testing"
)

func TestAppendParseRoundTrip(t *testing.T) {
	in := Info{
		Version:    "1.0",
		Name:       "Frag Palace",
		Desc:       "vanilla rules",
		Map:        "E1M1",
		NumPlayers: 2,
		MaxPlayers: 8,
		Names:      []string{"Alice", "Bob"},
	}

	var sb strings.Builder
	in.Append(&sb)

	var out Info
	for _, line := range strings.Split(sb.String(), "\n") {
		if line != "" {
			out.ParseLine(line)
		}
	}

	if out.Name != in.Name || out.Desc != in.Desc || out.Map != in.Map {
		t.Fatalf("string fields mismatch: %+v", out)
	}
	if out.NumPlayers != 2 || out.MaxPlayers != 8 {
		t.Fatalf("player counts mismatch: %+v", out)
	}
	if len(out.Names) != 2 || out.Names[0] != "Alice" {
		t.Fatalf("names mismatch: %v", out.Names)
	}
}

func TestUnknownKeysIgnored(t *testing.T) {
	var info Info
	info.ParseLine("wads:doom2.wad;plutonia.wad")
	info.ParseLine("name:Still Works")
	info.ParseLine("not a key value line")
	if info.Name != "Still Works" {
		t.Fatalf("known key lost: %+v", info)
	}
}
