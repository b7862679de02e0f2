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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBundleMetrics(t *testing.T) {
	m := NewBundleMetrics(prometheus.NewPedanticRegistry())

	m.Written(".zidv", StatusSuccess)
	m.Written(".zidv", StatusSuccess)
	m.Read(".xidv", StatusCancelled)
	m.UnitFailed("data_source")
	m.CatalogSize("favorite", 7)
	m.ObserveRestore(time.Now())

	assert.Equal(t, float64(2), testutil.ToFloat64(m.BundlesWritten.WithLabelValues(".zidv", StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BundlesRead.WithLabelValues(".xidv", StatusCancelled)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UnitInitFailed.WithLabelValues("data_source")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.CatalogEntries.WithLabelValues("favorite")))
}

func TestBundleMetricsNilSafe(t *testing.T) {
	var m *BundleMetrics
	assert.NotPanics(t, func() {
		m.Written(".xidv", StatusFailed)
		m.Read(".xidv", StatusFailed)
		m.UnitFailed("display_control")
		m.ObserveRestore(time.Now())
		m.CatalogSize("favorite", 1)
	})
}

func TestNoopRegistererAllowsDuplicates(t *testing.T) {
	reg := Registerer(false, prometheus.NewRegistry())
	assert.NotPanics(t, func() {
		NewBundleMetrics(reg)
		NewBundleMetrics(reg)
	})
}
