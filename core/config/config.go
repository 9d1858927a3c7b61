package config

import (
	_ "embed"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	EventLogName      = "events.log"
)

const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs

	// Prompt is printed before each interactive line.
	Prompt string `json:"prompt" validate:"required"`
	// Color controls whether errors and job status are colorized.
	Color string `json:"color" validate:"oneof=always auto never"`
	// EventLog enables the JSON lines event log.
	EventLog bool `json:"event_log"`
	// NotifyDone prints finished background jobs before the next prompt.
	NotifyDone bool `json:"notify_done"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		c.configFs = afero.NewMemMapFs()
	}
	return c.configFs
}

// ShouldColor reports whether output should be colorized given whether it's
// being written to a terminal.
func (c *Configuration) ShouldColor(isTerminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTerminal
	}
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	if err := c.fs().MkdirAll("/", 0700); err != nil {
		return nil, err
	}
	return c.fs().OpenFile(EventLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(EventLogName, os.O_RDONLY, 0600)
}

// Default returns the built-in configuration backed by an in-memory
// filesystem.
func Default() *Configuration {
	out := defaultConfig()
	out.configFs = afero.NewMemMapFs()
	return out
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
