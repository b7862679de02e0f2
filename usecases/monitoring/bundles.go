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

package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// BundleMetrics tracks bundle reads, writes and catalog sizes. All methods
// are safe to call on a nil receiver.
type BundleMetrics struct {
	BundlesWritten  *prometheus.CounterVec
	BundlesRead     *prometheus.CounterVec
	UnitInitFailed  *prometheus.CounterVec
	RestoreDuration prometheus.Histogram
	CatalogEntries  *prometheus.GaugeVec
}

func NewBundleMetrics(reg prometheus.Registerer) *BundleMetrics {
	return &BundleMetrics{
		BundlesWritten: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "idv_bundles_written_total",
				Help: "Number of bundle writes by container format and outcome",
			},
			[]string{"format", "status"},
		),
		BundlesRead: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "idv_bundles_read_total",
				Help: "Number of bundle reads by container format and outcome",
			},
			[]string{"format", "status"},
		),
		UnitInitFailed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "idv_unit_init_failures_total",
				Help: "Data sources and displays that failed to initialize after a restore",
			},
			[]string{"unit"}, // data_source, display_control
		),
		RestoreDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "idv_restore_duration_seconds",
				Help:    "Duration of the decode and reconstruct phase of a bundle read",
				Buckets: prometheus.DefBuckets,
			},
		),
		CatalogEntries: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "idv_catalog_entries",
				Help: "Entries found by the last catalog listing per kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *BundleMetrics) Written(format, status string) {
	if m == nil {
		return
	}
	m.BundlesWritten.WithLabelValues(format, status).Inc()
}

func (m *BundleMetrics) Read(format, status string) {
	if m == nil {
		return
	}
	m.BundlesRead.WithLabelValues(format, status).Inc()
}

func (m *BundleMetrics) UnitFailed(unit string) {
	if m == nil {
		return
	}
	m.UnitInitFailed.WithLabelValues(unit).Inc()
}

func (m *BundleMetrics) ObserveRestore(start time.Time) {
	if m == nil {
		return
	}
	m.RestoreDuration.Observe(time.Since(start).Seconds())
}

func (m *BundleMetrics) CatalogSize(kind string, n int) {
	if m == nil {
		return
	}
	m.CatalogEntries.WithLabelValues(kind).Set(float64(n))
}
