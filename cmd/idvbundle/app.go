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

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/adapters/codec"
	"github.com/weaviate/idvbundles/adapters/handlers/headless"
	"github.com/weaviate/idvbundles/adapters/repos/prefs"
	usecase "github.com/weaviate/idvbundles/usecases/bundle"
	"github.com/weaviate/idvbundles/usecases/catalog"
	"github.com/weaviate/idvbundles/usecases/config"
	"github.com/weaviate/idvbundles/usecases/monitoring"
)

// app is the state shared by the commands of one invocation.
type app struct {
	cfg     config.Config
	logger  *logrus.Logger
	metrics *monitoring.BundleMetrics
	prefs   *prefs.Store
	catalog *catalog.Store
	ui      *usecase.BatchUI
	session *headless.Session
	handler *usecase.Handler
}

func newApp() (*app, error) {
	cfg, err := config.Load(&opts.Flags, nil)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: monitoring.NewBundleMetrics(monitoring.Registerer(cfg.Monitoring.Enabled, prometheus.DefaultRegisterer)),
		ui:      usecase.NewBatchUI(logger),
		session: headless.NewSession(logger),
	}

	a.prefs = prefs.NewStore(cfg.Persistence.DataPath, cfg.History.Limit, logger)
	if err := a.prefs.Open(); err != nil {
		return nil, err
	}

	catalogCfg, err := catalogConfig(cfg)
	if err != nil {
		a.prefs.Close()
		return nil, err
	}
	a.catalog = catalog.NewStore(osfs.New("/"), catalogCfg, logger, codec.XML{}, a.ui, a.metrics)

	reader := usecase.NewReader(logger, codec.XML{}, a.session, a.ui, a.prefs, a.prefs, a.ui, a.metrics,
		usecase.ReaderConfig{
			DataSourceParallelism: cfg.Bundles.EffectiveDataSourceParallelism(),
			DisplayParallelism:    cfg.Bundles.DisplayParallelism,
			Macros:                cfg.Bundles.Macros,
			MacroLimits: usecase.MacroLimits{
				MaxUnknown: cfg.Bundles.MaxUnknownMacros,
				MaxLength:  cfg.Bundles.MaxMacroLength,
			},
			TempDir: cfg.Bundles.TempDir,
		})
	writer := usecase.NewWriter(logger, a.session, codec.XML{}, a.ui, nil, a.metrics, usecase.WriterConfig{
		Version:     cfg.Bundles.Version,
		Compression: cfg.Bundles.Compression,
		TempDir:     cfg.Bundles.TempDir,
	})
	a.handler = usecase.NewHandler(logger, writer, reader, a.catalog, a.ui, usecase.HandlerConfig{
		LoadSynchronously: cfg.Bundles.LoadSynchronously,
		TempDir:           cfg.Bundles.TempDir,
	})
	return a, nil
}

// catalogConfig resolves the configured roots by kind. Kinds without a
// root are kept under the persistence data path.
func catalogConfig(cfg config.Config) (catalog.Config, error) {
	out := catalog.Config{
		Roots:     map[catalog.Kind]string{},
		SiteRoots: map[catalog.Kind]string{},
		Manifests: cfg.Catalog.Manifests,
		Pattern:   cfg.Catalog.Pattern,
	}
	for name, dir := range cfg.Catalog.Roots {
		kind, err := catalog.ParseKind(name)
		if err != nil {
			return out, err
		}
		out.Roots[kind] = absolute(dir)
	}
	for name, dir := range cfg.Catalog.SiteRoots {
		kind, err := catalog.ParseKind(name)
		if err != nil {
			return out, err
		}
		out.SiteRoots[kind] = absolute(dir)
	}
	for _, kind := range catalog.Kinds {
		if _, ok := out.Roots[kind]; !ok {
			out.Roots[kind] = absolute(filepath.Join(cfg.Persistence.DataPath, "catalog", kind.String()))
		}
	}
	return out, nil
}

// absolute makes p usable on the root filesystem the catalog walks.
func absolute(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func (a *app) Close() error {
	a.handler.Close()
	var errs error
	if err := a.prefs.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}

// signalContext is cancelled on SIGINT or SIGTERM so long restores roll
// back instead of leaving partial state behind.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withApp runs fn with a fresh app and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app) error) (err error) {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()
	ctx, cancel := signalContext()
	defer cancel()
	return fn(ctx, a)
}
