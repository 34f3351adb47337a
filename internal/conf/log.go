package conf

import (
	"fmt"

	"github.com/halcyon-engine/netcore/internal/flog"
)

type Log struct {
	Level_ string     `yaml:"level"`
	Level  flog.Level `yaml:"-"`
}

var logLevels = map[string]flog.Level{
	"none":  flog.None,
	"debug": flog.Debug,
	"info":  flog.Info,
	"warn":  flog.Warn,
	"error": flog.Error,
}

func (l *Log) setDefaults() {
	if l.Level_ == "" {
		l.Level_ = "info"
	}
}

func (l *Log) validate() []error {
	lv, ok := logLevels[l.Level_]
	if !ok {
		return []error{fmt.Errorf("invalid log level '%s'", l.Level_)}
	}
	l.Level = lv
	return nil
}
