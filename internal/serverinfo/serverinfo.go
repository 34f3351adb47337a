package serverinfo

import (
	"fmt"
	"strconv"
	"strings"
)

// Info describes a running server. It is serialized as one key:value pair
// per line inside the BEGIN/END envelope of the INFO reply, so external
// tooling can probe a server with nothing more than telnet.
type Info struct {
	Version    string
	Name       string
	Desc       string
	Map        string
	NumPlayers int
	MaxPlayers int
	Names      []string

	// Filled by the discovering client, not transmitted.
	Address string
	Port    int
}

// Append serializes the info as key:value lines.
func (i *Info) Append(sb *strings.Builder) {
	fmt.Fprintf(sb, "ver:%s\n", i.Version)
	fmt.Fprintf(sb, "name:%s\n", i.Name)
	if i.Desc != "" {
		fmt.Fprintf(sb, "info:%s\n", i.Desc)
	}
	if i.Map != "" {
		fmt.Fprintf(sb, "map:%s\n", i.Map)
	}
	fmt.Fprintf(sb, "nump:%d\n", i.NumPlayers)
	fmt.Fprintf(sb, "maxp:%d\n", i.MaxPlayers)
	if len(i.Names) > 0 {
		fmt.Fprintf(sb, "plrn:%s\n", strings.Join(i.Names, ";"))
	}
}

// ParseLine folds one key:value line into the info. Unknown keys are
// ignored: older cores must be able to probe newer servers.
func (i *Info) ParseLine(line string) {
	key, value, found := strings.Cut(line, ":")
	if !found {
		return
	}
	switch key {
	case "ver":
		i.Version = value
	case "name":
		i.Name = value
	case "info":
		i.Desc = value
	case "map":
		i.Map = value
	case "nump":
		i.NumPlayers, _ = strconv.Atoi(value)
	case "maxp":
		i.MaxPlayers, _ = strconv.Atoi(value)
	case "plrn":
		if value != "" {
			i.Names = strings.Split(value, ";")
		}
	}
}

// String renders a one-line summary for console output.
func (i *Info) String() string {
	return fmt.Sprintf("%s (%d/%d) %s", i.Name, i.NumPlayers, i.MaxPlayers, i.Desc)
}
