//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default file when no config file is provided
const DefaultConfigFile string = "./idvbundles.yaml"

// DefaultPersistenceDataPath is the default location for the preference
// database when no location is provided
const DefaultPersistenceDataPath string = "./data"

const (
	DefaultMaxDataSourceParallelism = 12
	DefaultDisplayParallelism       = 1
	DefaultMaxUnknownMacros         = 20
	DefaultMaxMacroLength           = 100
	DefaultHistoryLimit             = 20
	DefaultBundleVersion            = "6.0"
)

// Flags are input options
type Flags struct {
	ConfigFile string `long:"config-file" description:"path to config file (default: ./idvbundles.yaml)"`
	LogLevel   string `long:"log-level" description:"overrides logging.level (panic, fatal, error, warn, info, debug, trace)"`
	DataPath   string `long:"data-path" description:"overrides persistence.data_path"`
}

// Config outline of the config file
type Config struct {
	Bundles     Bundles     `json:"bundles" yaml:"bundles"`
	Catalog     Catalog     `json:"catalog" yaml:"catalog"`
	Persistence Persistence `json:"persistence" yaml:"persistence"`
	History     History     `json:"history" yaml:"history"`
	Logging     Logging     `json:"logging" yaml:"logging"`
	Monitoring  Monitoring  `json:"monitoring" yaml:"monitoring"`
}

// Bundles configures reading and writing of bundle files.
type Bundles struct {
	LoadSynchronously        bool              `json:"load_synchronously" yaml:"load_synchronously"`
	DataSourceParallelism    int               `json:"data_source_parallelism" yaml:"data_source_parallelism"`
	MaxDataSourceParallelism int               `json:"max_data_source_parallelism" yaml:"max_data_source_parallelism"`
	DisplayParallelism       int               `json:"display_parallelism" yaml:"display_parallelism"`
	TempDir                  string            `json:"temp_dir" yaml:"temp_dir"`
	Macros                   map[string]string `json:"macros" yaml:"macros"`
	MaxUnknownMacros         int               `json:"max_unknown_macros" yaml:"max_unknown_macros"`
	MaxMacroLength           int               `json:"max_macro_length" yaml:"max_macro_length"`
	// Compression is the zidv deflate level: 0 default, 1 best speed,
	// 2 best compression.
	Compression int    `json:"compression" yaml:"compression"`
	Version     string `json:"version" yaml:"version"`
}

// EffectiveDataSourceParallelism clamps the configured parallelism to the
// maximum. Zero or less means the maximum.
func (b Bundles) EffectiveDataSourceParallelism() int {
	max := b.MaxDataSourceParallelism
	if max <= 0 {
		max = DefaultMaxDataSourceParallelism
	}
	if b.DataSourceParallelism <= 0 || b.DataSourceParallelism > max {
		return max
	}
	return b.DataSourceParallelism
}

func (b Bundles) Validate() error {
	if b.Compression < 0 || b.Compression > 2 {
		return fmt.Errorf("bundles.compression must be 0, 1 or 2, got %d", b.Compression)
	}
	if b.DisplayParallelism < 0 {
		return fmt.Errorf("bundles.display_parallelism must not be negative")
	}
	if b.MaxUnknownMacros < 0 || b.MaxMacroLength < 0 {
		return fmt.Errorf("bundles macro limits must not be negative")
	}
	return nil
}

// Catalog configures the categorized stores. Keys of the root maps are
// catalog kinds (favorite, displaytemplate, datasource).
type Catalog struct {
	Roots     map[string]string `json:"roots" yaml:"roots"`
	SiteRoots map[string]string `json:"site_roots" yaml:"site_roots"`
	Manifests []string          `json:"manifests" yaml:"manifests"`
	Pattern   string            `json:"pattern" yaml:"pattern"`
}

// Persistence configures where preferences and history are stored
type Persistence struct {
	DataPath string `json:"data_path" yaml:"data_path"`
}

func (p Persistence) Validate() error {
	if p.DataPath == "" {
		return fmt.Errorf("persistence.data_path must be set")
	}

	return nil
}

type History struct {
	Limit int `json:"limit" yaml:"limit"`
}

// Logging configures the process logger. An empty File logs to stderr.
type Logging struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	File       string `json:"file" yaml:"file"`
	MaxSize    int    `json:"max_size" yaml:"max_size"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAge     int    `json:"max_age" yaml:"max_age"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

func (l Logging) Validate() error {
	if l.Level != "" {
		if _, err := logrus.ParseLevel(l.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	switch l.Format {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be either 'text' or 'json', got %q", l.Format)
	}
}

type Monitoring struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Bundles: Bundles{
			MaxDataSourceParallelism: DefaultMaxDataSourceParallelism,
			DisplayParallelism:       DefaultDisplayParallelism,
			MaxUnknownMacros:         DefaultMaxUnknownMacros,
			MaxMacroLength:           DefaultMaxMacroLength,
			Version:                  DefaultBundleVersion,
		},
		Persistence: Persistence{DataPath: DefaultPersistenceDataPath},
		History:     History{Limit: DefaultHistoryLimit},
		Logging:     Logging{Level: "info", Format: "text"},
	}
}

func (c *Config) Validate() error {
	if err := c.Bundles.Validate(); err != nil {
		return configErr(err)
	}

	if err := c.Persistence.Validate(); err != nil {
		return configErr(err)
	}

	if err := c.Logging.Validate(); err != nil {
		return configErr(err)
	}

	return nil
}

// Load builds the configuration in the following order:
// 1. Defaults
// 2. Config file (yaml), if present
// 3. Environment variables
// 4. Command line flags
// A value set in a later location overrides earlier ones.
func Load(flags *Flags, logger logrus.FieldLogger) (Config, error) {
	config := Default()
	if flags == nil {
		flags = &Flags{}
	}

	configFileName := flags.ConfigFile
	explicit := configFileName != ""
	if !explicit {
		configFileName = DefaultConfigFile
	}

	file, err := os.ReadFile(configFileName)
	if err != nil && (explicit || !os.IsNotExist(err)) {
		return config, configErr(fmt.Errorf("read config file: %w", err))
	}

	if len(file) > 0 {
		if logger != nil {
			logger.WithField("action", "config_load").WithField("config_file_path", configFileName).
				Debug("loading config file")
		}
		if err := parseConfigFile(file, configFileName, &config); err != nil {
			return config, configErr(err)
		}
	}

	if err := FromEnv(&config); err != nil {
		return config, configErr(err)
	}

	fromFlags(&config, flags)

	return config, config.Validate()
}

func parseConfigFile(file []byte, name string, config *Config) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(file, config); err != nil {
			return fmt.Errorf("error unmarshalling the yaml config file: %w", err)
		}
	case "":
		return fmt.Errorf("config file does not have a file ending, got '%s'", name)
	default:
		return fmt.Errorf("unsupported config file extension '%s', use .yaml", strings.TrimPrefix(ext, "."))
	}

	return nil
}

// fromFlags parses values from flags given as parameter and overrides values in the config
func fromFlags(config *Config, flags *Flags) {
	if flags.LogLevel != "" {
		config.Logging.Level = flags.LogLevel
	}

	if flags.DataPath != "" {
		config.Persistence.DataPath = flags.DataPath
	}
}

func configErr(err error) error {
	return fmt.Errorf("invalid config: %w", err)
}
