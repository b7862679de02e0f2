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

package errorcompounder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompounder(t *testing.T) {
	ec := New()
	assert.True(t, ec.Empty())
	assert.Nil(t, ec.ToError())

	ec.Add(nil)
	ec.AddGroups(errors.New("radar: missing file"), "data sources")
	ec.AddGroups(errors.New("contour: no data"), "displays")
	ec.AddGroups(errors.New("sat: timeout"), "data sources")
	ec.Addf("top %d", 1)

	assert.Equal(t, 4, ec.Len())
	assert.Equal(t, "top 1", ec.First().Error())
	assert.Equal(t,
		`top 1, "data sources": {radar: missing file, sat: timeout}, "displays": {contour: no data}`,
		ec.ToError().Error())
	assert.Len(t, ec.Errors(), 4)
}

func TestCompounderWrapf(t *testing.T) {
	ec := New()
	ec.AddWrapf(nil, "ignored")
	ec.AddWrapf(errors.New("disk full"), "write %s", "b.zidv")
	assert.Equal(t, "write b.zidv: disk full", ec.ToError().Error())
}
