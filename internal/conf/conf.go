package conf

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

type Conf struct {
	Role      string    `yaml:"role"`
	Log       Log       `yaml:"log"`
	Net       Net       `yaml:"net"`
	Server    Server    `yaml:"server"`
	Emulation Emulation `yaml:"emulation"`
	Metrics   Metrics   `yaml:"metrics"`
}

func LoadFromFile(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var conf Conf

	if err := yaml.Unmarshal(data, &conf); err != nil {
		return &conf, err
	}

	validRoles := []string{"client", "server"}
	if !slices.Contains(validRoles, conf.Role) {
		return nil, fmt.Errorf("role must be 'client' or 'server'")
	}

	conf.SetDefaults()
	if err := conf.Validate(); err != nil {
		return &conf, err
	}

	return &conf, nil
}

// Default returns a configuration with all defaults applied, suitable for
// embedding the core without a config file.
func Default(role string) *Conf {
	c := &Conf{Role: role}
	c.SetDefaults()
	c.Log.Level = logLevels[c.Log.Level_]
	return c
}

func (c *Conf) SetDefaults() {
	c.Log.setDefaults()
	c.Net.setDefaults()
	c.Server.setDefaults()
	c.Emulation.setDefaults()
}

func (c *Conf) Validate() error {
	var allErrors []error

	allErrors = append(allErrors, c.Log.validate()...)
	allErrors = append(allErrors, c.Net.validate(c.Role)...)
	allErrors = append(allErrors, c.Server.validate()...)
	allErrors = append(allErrors, c.Emulation.validate()...)

	return writeErr(allErrors)
}

func writeErr(allErrors []error) error {
	if len(allErrors) > 0 {
		var messages []string
		for _, err := range allErrors {
			messages = append(messages, err.Error())
		}
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(messages, "\n  - "))
	}
	return nil
}
