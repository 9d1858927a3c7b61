package config

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v2"
)

func TestBuiltinConfig(t *testing.T) {
	rawConfig := make(map[string]interface{})
	assert.Nil(t, yaml.Unmarshal(defaultConfigData, &rawConfig))

	knownFields := make(map[string]bool)
	rt := reflect.TypeOf(Configuration{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawConfig[jsonField]; !ok {
			assert.False(t, true, "default config missing field: %q", jsonField)
		}
	}

	for k := range rawConfig {
		_, ok := knownFields[k]
		assert.True(t, ok, "default config contains invalid field: %q", k)
	}
}

func TestDefaultConfig(t *testing.T) {
	// Will panic() on load failure because it should never happen at runtime.
	cfg := defaultConfig()
	assert.NotNil(t, cfg)
	assert.Nil(t, cfg.Validate())
}

func TestConfiguration_Validate(t *testing.T) {
	cases := map[string]struct {
		cfg     Configuration
		wantErr string
	}{
		"valid": {
			cfg: Configuration{Prompt: "$ ", Color: ColorNever},
		},
		"missing prompt": {
			cfg:     Configuration{Color: ColorAuto},
			wantErr: "'prompt'",
		},
		"bad color": {
			cfg:     Configuration{Prompt: "$ ", Color: "sometimes"},
			wantErr: "'color'",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.Nil(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestConfiguration_ShouldColor(t *testing.T) {
	cases := []struct {
		color    string
		terminal bool
		want     bool
	}{
		{ColorAlways, false, true},
		{ColorAlways, true, true},
		{ColorNever, true, false},
		{ColorAuto, true, true},
		{ColorAuto, false, false},
	}

	for _, tc := range cases {
		cfg := Configuration{Color: tc.color}
		assert.Equal(t, tc.want, cfg.ShouldColor(tc.terminal), "color=%s terminal=%v", tc.color, tc.terminal)
	}
}
