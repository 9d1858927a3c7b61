package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory. If the directory has no
// configuration file the defaults are used.
func Load(path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	return LoadFs(afero.NewBasePathFs(afero.NewOsFs(), path))
}

// LoadFs loads the configuration from the root of the filesystem.
func LoadFs(configFs afero.Fs) (*Configuration, error) {
	configContents, err := afero.ReadFile(configFs, ConfigurationName)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		out := defaultConfig()
		out.configFs = configFs
		return out, nil
	case err != nil:
		return nil, err
	}

	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigurationName, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigurationName, err)
	}
	out.configFs = configFs
	return &out, nil
}

// Initialize writes the default configuration into the directory unless a
// configuration already exists.
func Initialize(path string, logger *log.Logger) error {
	logger.Printf("Initializing configuration in %q\n", path)
	if err := os.MkdirAll(path, 0700); err != nil {
		return err
	}

	return InitializeFs(afero.NewBasePathFs(afero.NewOsFs(), path), logger)
}

// InitializeFs writes the default configuration to the root of the
// filesystem.
func InitializeFs(configFs afero.Fs, logger *log.Logger) error {
	exists, err := afero.Exists(configFs, ConfigurationName)
	if err != nil {
		return err
	}
	if exists {
		logger.Printf("- %s already exists, leaving it alone\n", ConfigurationName)
		return nil
	}

	logger.Printf("- writing %s\n", ConfigurationName)
	return afero.WriteFile(configFs, ConfigurationName, defaultConfigData, 0600)
}
