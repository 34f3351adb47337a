package conf

import "fmt"

type Server struct {
	// Name and Info are reported in the INFO reply.
	Name string `yaml:"name"`
	Info string `yaml:"info"`

	// MaxPlayers is the admission limit consulted at JOIN time. This is game
	// policy, distinct from the node table's fixed capacity.
	MaxPlayers int `yaml:"max_players"`

	// PlayerName is the display name sent with JOIN (client role).
	PlayerName string `yaml:"player_name"`
}

func (s *Server) setDefaults() {
	if s.Name == "" {
		s.Name = "Unnamed Server"
	}
	if s.MaxPlayers == 0 {
		s.MaxPlayers = 16
	}
	if s.PlayerName == "" {
		s.PlayerName = "Anonymous"
	}
}

func (s *Server) validate() []error {
	var errors []error

	if s.MaxPlayers < 1 {
		errors = append(errors, fmt.Errorf("max_players must be positive"))
	}
	if len(s.Name) > 64 {
		errors = append(errors, fmt.Errorf("server name too long (max 64 characters)"))
	}
	if len(s.PlayerName) > 64 {
		errors = append(errors, fmt.Errorf("player name too long (max 64 characters)"))
	}

	return errors
}

type Metrics struct {
	// Addr enables the Prometheus /metrics listener when non-empty.
	Addr string `yaml:"addr"`
}
