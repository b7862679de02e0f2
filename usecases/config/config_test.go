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
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
bundles:
  load_synchronously: true
  data_source_parallelism: 4
  temp_dir: /tmp/idv
  macros:
    idv.datapath: /data/idv
  compression: 2
catalog:
  roots:
    favorite: /home/me/favorites
  manifests:
    - /site/manifest.xml
persistence:
  data_path: /var/lib/idv
history:
  limit: 5
logging:
  level: debug
  format: json
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.Nil(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad(t *testing.T) {
	logger, _ := test.NewNullLogger()

	t.Run("defaults without a config file", func(t *testing.T) {
		cfg, err := Load(&Flags{}, logger)
		require.Nil(t, err)
		assert.Equal(t, Default(), cfg)
		assert.Equal(t, 12, cfg.Bundles.EffectiveDataSourceParallelism())
	})

	t.Run("yaml file", func(t *testing.T) {
		path := writeConfig(t, "idv.yaml", sampleConfig)
		cfg, err := Load(&Flags{ConfigFile: path}, logger)
		require.Nil(t, err)

		assert.True(t, cfg.Bundles.LoadSynchronously)
		assert.Equal(t, 4, cfg.Bundles.EffectiveDataSourceParallelism())
		assert.Equal(t, DefaultMaxUnknownMacros, cfg.Bundles.MaxUnknownMacros, "defaults survive")
		assert.Equal(t, "/data/idv", cfg.Bundles.Macros["idv.datapath"])
		assert.Equal(t, 2, cfg.Bundles.Compression)
		assert.Equal(t, "/home/me/favorites", cfg.Catalog.Roots["favorite"])
		assert.Equal(t, []string{"/site/manifest.xml"}, cfg.Catalog.Manifests)
		assert.Equal(t, "/var/lib/idv", cfg.Persistence.DataPath)
		assert.Equal(t, 5, cfg.History.Limit)
		assert.Equal(t, "json", cfg.Logging.Format)
	})

	t.Run("env overrides file and flags override env", func(t *testing.T) {
		path := writeConfig(t, "idv.yml", sampleConfig)
		t.Setenv("PERSISTENCE_DATA_PATH", "/env/data")
		t.Setenv("LOG_LEVEL", "warn")

		cfg, err := Load(&Flags{ConfigFile: path, LogLevel: "error"}, logger)
		require.Nil(t, err)
		assert.Equal(t, "/env/data", cfg.Persistence.DataPath)
		assert.Equal(t, "error", cfg.Logging.Level)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(&Flags{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")}, logger)
		assert.NotNil(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeConfig(t, "idv.json", `{}`)
		_, err := Load(&Flags{ConfigFile: path}, logger)
		assert.ErrorContains(t, err, "unsupported config file extension 'json'")
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeConfig(t, "idv.yaml", "bundles:\n  compression: 7\n")
		_, err := Load(&Flags{ConfigFile: path}, logger)
		assert.ErrorContains(t, err, "bundles.compression")

		path = writeConfig(t, "idv.yaml", "logging:\n  format: xml\n")
		_, err = Load(&Flags{ConfigFile: path}, logger)
		assert.ErrorContains(t, err, "logging.format")

		path = writeConfig(t, "idv.yaml", "persistence:\n  data_path: \"\"\n")
		_, err = Load(&Flags{ConfigFile: path}, logger)
		assert.ErrorContains(t, err, "persistence.data_path")
	})
}

func TestEffectiveDataSourceParallelism(t *testing.T) {
	tests := []struct {
		name     string
		bundles  Bundles
		expected int
	}{
		{"unset", Bundles{}, DefaultMaxDataSourceParallelism},
		{"below max", Bundles{DataSourceParallelism: 3, MaxDataSourceParallelism: 12}, 3},
		{"clamped", Bundles{DataSourceParallelism: 40, MaxDataSourceParallelism: 12}, 12},
		{"custom max", Bundles{MaxDataSourceParallelism: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.bundles.EffectiveDataSourceParallelism())
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(Logging{Level: "debug", Format: "json"})
	require.Nil(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	file := filepath.Join(t.TempDir(), "idv.log")
	logger, err = NewLogger(Logging{File: file, MaxSize: 1})
	require.Nil(t, err)
	logger.Info("hello")
	data, err := os.ReadFile(file)
	require.Nil(t, err)
	assert.Contains(t, string(data), "hello")

	_, err = NewLogger(Logging{Level: "loud"})
	assert.NotNil(t, err)
}
