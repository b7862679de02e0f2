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

package bundle

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/entities/bundle"
	"github.com/weaviate/idvbundles/entities/errorcompounder"
	enterrors "github.com/weaviate/idvbundles/entities/errors"
	"github.com/weaviate/idvbundles/usecases/monitoring"
)

// Unit kinds, used to group failure reports and metrics.
const (
	unitDataSource     = "data_source"
	unitDisplayControl = "display_control"
)

// Unit is one decoded object that must be initialized before it joins the
// live state.
type Unit interface {
	UnitName() string
	Init(ctx context.Context) error
	MarkInError(err error)
}

// Outcome is the result of initializing one unit.
type Outcome struct {
	Unit Unit
	Err  error
}

// Coordinator runs unit initialization with bounded parallelism. Failures
// never stop the remaining units; they are reported once, in aggregate.
type Coordinator struct {
	logger   logrus.FieldLogger
	reporter ExceptionReporter
	metrics  *monitoring.BundleMetrics
}

func NewCoordinator(logger logrus.FieldLogger, reporter ExceptionReporter,
	metrics *monitoring.BundleMetrics,
) *Coordinator {
	return &Coordinator{logger: logger, reporter: reporter, metrics: metrics}
}

// Initialize runs units and reports their failures in one call.
func (c *Coordinator) Initialize(ctx context.Context, label, group string, units []Unit,
	maxParallelism int,
) []Outcome {
	outcomes, failed := c.Run(ctx, label, group, units, maxParallelism)
	c.Report(label, failed)
	return outcomes
}

// Run initializes units and blocks until all of them finished.
// maxParallelism <= 1 runs them one after the other in input order. Every
// failed unit is marked in error. Outcomes are in input order; failed
// holds the errors named after their unit. Reporting is left to the caller.
func (c *Coordinator) Run(ctx context.Context, label, group string, units []Unit,
	maxParallelism int,
) (outcomes []Outcome, failed []error) {
	outcomes = make([]Outcome, len(units))
	if maxParallelism <= 1 || len(units) <= 1 {
		for i, u := range units {
			outcomes[i] = Outcome{Unit: u, Err: initUnit(ctx, u)}
		}
	} else {
		eg := enterrors.NewErrorGroupWrapper(c.logger, maxParallelism, label, group)
		for i, u := range units {
			i, u := i, u
			eg.Go(func() error {
				outcomes[i] = Outcome{Unit: u, Err: initUnit(ctx, u)}
				return nil
			}, u.UnitName())
		}
		eg.Wait()
	}

	ec := errorcompounder.New()
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		o.Unit.MarkInError(o.Err)
		ec.AddGroups(errors.Wrap(o.Err, o.Unit.UnitName()), group)
		c.metrics.UnitFailed(group)
	}
	if !ec.Empty() {
		c.logger.WithFields(logrus.Fields{
			"action": "init_units",
			"label":  label,
			"failed": ec.Len(),
			"total":  len(units),
		}).WithError(ec.ToError()).Warn("some units failed to initialize")
		failed = ec.Errors()
	}
	return outcomes, failed
}

// Report hands errs to the exception reporter as one aggregated message.
func (c *Coordinator) Report(label string, errs []error) {
	if len(errs) == 0 || c.reporter == nil {
		return
	}
	c.reporter.ReportExceptions(label, errs)
}

func initUnit(ctx context.Context, u Unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return enterrors.Recovering(func() error { return u.Init(ctx) })
}

type dataSourceUnit struct {
	*bundle.DataSource
	target Target
}

func (u dataSourceUnit) Init(ctx context.Context) error {
	if err := u.target.InitDataSource(ctx, u.DataSource); err != nil {
		return bundle.NewError(bundle.DataSourceInitFailed, "init", u.UnitName(), err)
	}
	return nil
}

type displayUnit struct {
	*bundle.DisplayControl
	target Target
}

func (u displayUnit) Init(ctx context.Context) error {
	return u.target.InitDisplayControl(ctx, u.DisplayControl)
}

func dataSourceUnits(target Target, sources []*bundle.DataSource) []Unit {
	units := make([]Unit, len(sources))
	for i, ds := range sources {
		units[i] = dataSourceUnit{DataSource: ds, target: target}
	}
	return units
}

func displayUnits(target Target, dcs []*bundle.DisplayControl) []Unit {
	units := make([]Unit, len(dcs))
	for i, dc := range dcs {
		units[i] = displayUnit{DisplayControl: dc, target: target}
	}
	return units
}
