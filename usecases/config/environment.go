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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FromEnv takes a *Config as it will respect initial config that has been
// provided by other means (e.g. a config file) and will only extend those that
// are set
func FromEnv(config *Config) error {
	if enabled(os.Getenv("IDV_LOAD_SYNCHRONOUSLY")) {
		config.Bundles.LoadSynchronously = true
	}

	if err := parsePositiveInt("IDV_DATA_SOURCE_PARALLELISM", func(val int) {
		config.Bundles.DataSourceParallelism = val
	}); err != nil {
		return err
	}

	if err := parsePositiveInt("IDV_MAX_DATA_SOURCE_PARALLELISM", func(val int) {
		config.Bundles.MaxDataSourceParallelism = val
	}); err != nil {
		return err
	}

	if err := parsePositiveInt("IDV_DISPLAY_PARALLELISM", func(val int) {
		config.Bundles.DisplayParallelism = val
	}); err != nil {
		return err
	}

	if err := parsePositiveInt("IDV_MAX_UNKNOWN_MACROS", func(val int) {
		config.Bundles.MaxUnknownMacros = val
	}); err != nil {
		return err
	}

	if err := parsePositiveInt("IDV_MAX_MACRO_LENGTH", func(val int) {
		config.Bundles.MaxMacroLength = val
	}); err != nil {
		return err
	}

	if v := os.Getenv("IDV_COMPRESSION"); v != "" {
		asInt, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse IDV_COMPRESSION as int")
		}
		config.Bundles.Compression = asInt
	}

	if v := os.Getenv("IDV_TEMP_DIR"); v != "" {
		config.Bundles.TempDir = v
	}

	if v := os.Getenv("IDV_BUNDLE_VERSION"); v != "" {
		config.Bundles.Version = v
	}

	// IDV_MACROS=name=value,name=value
	if v := os.Getenv("IDV_MACROS"); v != "" {
		macros, err := parseKeyValues("IDV_MACROS", v)
		if err != nil {
			return err
		}
		if config.Bundles.Macros == nil {
			config.Bundles.Macros = map[string]string{}
		}
		for k, val := range macros {
			config.Bundles.Macros[k] = val
		}
	}

	// IDV_CATALOG_ROOTS=favorite=/path,displaytemplate=/other
	if v := os.Getenv("IDV_CATALOG_ROOTS"); v != "" {
		roots, err := parseKeyValues("IDV_CATALOG_ROOTS", v)
		if err != nil {
			return err
		}
		config.Catalog.Roots = roots
	}

	if v := os.Getenv("IDV_CATALOG_SITE_ROOTS"); v != "" {
		roots, err := parseKeyValues("IDV_CATALOG_SITE_ROOTS", v)
		if err != nil {
			return err
		}
		config.Catalog.SiteRoots = roots
	}

	if v := os.Getenv("IDV_CATALOG_MANIFESTS"); v != "" {
		config.Catalog.Manifests = strings.Split(v, ",")
	}

	if v := os.Getenv("IDV_CATALOG_PATTERN"); v != "" {
		config.Catalog.Pattern = v
	}

	if v := os.Getenv("PERSISTENCE_DATA_PATH"); v != "" {
		config.Persistence.DataPath = v
	}

	if err := parsePositiveInt("IDV_HISTORY_LIMIT", func(val int) {
		config.History.Limit = val
	}); err != nil {
		return err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}

	if v := os.Getenv("LOG_FILE"); v != "" {
		config.Logging.File = v
	}

	if enabled(os.Getenv("LOG_COMPRESS")) {
		config.Logging.Compress = true
	}

	if enabled(os.Getenv("PROMETHEUS_MONITORING_ENABLED")) {
		config.Monitoring.Enabled = true
	}

	return nil
}

func parsePositiveInt(envName string, cb func(val int)) error {
	if v := os.Getenv(envName); v != "" {
		asInt, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s as int", envName)
		}
		if asInt <= 0 {
			return errors.Errorf("%s must be an integer greater than 0. Got: %v", envName, asInt)
		}

		cb(asInt)
	}

	return nil
}

func parseKeyValues(envName, v string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(v, ",") {
		if pair == "" {
			continue
		}
		k, val, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("%s: expected name=value, got %q", envName, pair)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	return out, nil
}

func enabled(value string) bool {
	if value == "" {
		return false
	}

	if value == "on" ||
		value == "enabled" ||
		value == "1" ||
		value == "true" {
		return true
	}

	return false
}
