package conf

import (
	"fmt"
	"net"
)

const (
	// DefaultControlPort is the TCP port clients connect to.
	DefaultControlPort = 13209
	// DefaultDataPort is the preferred UDP port for the datagram channel.
	DefaultDataPort = 13210
	// DefaultMTU bounds the payload of a single datagram. Not the link-layer
	// MTU; staying under typical path MTUs avoids fragmentation.
	DefaultMTU = 1300
)

type Net struct {
	// Address is the server address a client will look for. Empty means the
	// caller passes one explicitly (cli argument, console command).
	Address string `yaml:"address"`

	// ControlPort is the TCP port; 0 selects DefaultControlPort.
	ControlPort int `yaml:"control_port"`

	// DataPort is the preferred UDP port; 0 selects DefaultDataPort. If the
	// preferred port is taken, an OS-assigned port is used instead and
	// advertised to peers over the control channel.
	DataPort int `yaml:"data_port"`

	// MTU overrides the maximum datagram payload size. Startup-only.
	MTU int `yaml:"mtu"`
}

func (n *Net) setDefaults() {
	if n.ControlPort == 0 {
		n.ControlPort = DefaultControlPort
	}
	if n.DataPort == 0 {
		n.DataPort = DefaultDataPort
	}
	if n.MTU == 0 {
		n.MTU = DefaultMTU
	}
}

func (n *Net) validate(role string) []error {
	var errors []error

	if n.ControlPort < 1 || n.ControlPort > 65535 {
		errors = append(errors, fmt.Errorf("control_port %d out of range", n.ControlPort))
	}
	if n.DataPort < 1 || n.DataPort > 65535 {
		errors = append(errors, fmt.Errorf("data_port %d out of range", n.DataPort))
	}
	if n.MTU < 64 || n.MTU > 65507 {
		errors = append(errors, fmt.Errorf("mtu %d out of range (64..65507)", n.MTU))
	}
	if role == "client" && n.Address != "" {
		if _, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", n.Address, n.ControlPort)); err != nil {
			errors = append(errors, fmt.Errorf("cannot resolve server address '%s': %v", n.Address, err))
		}
	}

	return errors
}
