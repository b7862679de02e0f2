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
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/idvbundles/entities/bundle"
)

func TestSubstituteMacros(t *testing.T) {
	values := map[string]string{"idv.datapath": "/data", "site": "ucar"}
	text := "<path>${idv.datapath}/${site}/${missing}/${site}/${other}</path>"

	out, unknown := substituteMacros(text, values)
	assert.Equal(t, "<path>/data/ucar/${missing}/ucar/${other}</path>", out)
	assert.Equal(t, []string{"missing", "other"}, unknown)

	again, unknownAgain := substituteMacros(out, values)
	assert.Equal(t, out, again, "substitution is idempotent")
	assert.Equal(t, unknown, unknownAgain)

	plain, none := substituteMacros("no tokens here", values)
	assert.Equal(t, "no tokens here", plain)
	assert.Empty(t, none)
}

func TestResolveMacros(t *testing.T) {
	limits := DefaultMacroLimits

	t.Run("table and overrides", func(t *testing.T) {
		out, err := resolveMacros("${a}-${b}", map[string]string{"a": "1", "b": "2"},
			map[string]string{"b": "override"}, limits, nil, "read", "x.xidv")
		require.Nil(t, err)
		assert.Equal(t, "1-override", out)
	})

	t.Run("unknown without a prompter aborts", func(t *testing.T) {
		_, err := resolveMacros("${a}", nil, nil, limits, nil, "read", "x.xidv")
		kind, ok := bundle.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, bundle.MacroResolutionAborted, kind)
	})

	t.Run("prompted values", func(t *testing.T) {
		ui := newFakePrompter(true)
		ui.On("PromptMacroValues", []string{"user"}).Return(map[string]string{"user": "jeff"}, true).Once()
		out, err := resolveMacros("/home/${user}/${known}", map[string]string{"known": "k"}, nil,
			limits, ui, "read", "x.xidv")
		require.Nil(t, err)
		assert.Equal(t, "/home/jeff/k", out)
		ui.AssertExpectations(t)
	})

	t.Run("cancelled prompt", func(t *testing.T) {
		ui := newFakePrompter(true)
		ui.On("PromptMacroValues", []string{"user"}).Return(nil, false)
		_, err := resolveMacros("${user}", nil, nil, limits, ui, "read", "x.xidv")
		kind, _ := bundle.KindOf(err)
		assert.Equal(t, bundle.MacroResolutionAborted, kind)
	})

	t.Run("too many unknown tokens", func(t *testing.T) {
		ui := newFakePrompter(true)
		var sb strings.Builder
		for i := 0; i <= limits.MaxUnknown; i++ {
			fmt.Fprintf(&sb, "${m%d}", i)
		}
		_, err := resolveMacros(sb.String(), nil, nil, limits, ui, "read", "x.xidv")
		kind, _ := bundle.KindOf(err)
		assert.Equal(t, bundle.MacroOverflow, kind)
		ui.AssertNotCalled(t, "PromptMacroValues", mock.Anything)
	})

	t.Run("token too long", func(t *testing.T) {
		_, err := resolveMacros("${"+strings.Repeat("x", limits.MaxLength+1)+"}", nil, nil,
			limits, newFakePrompter(true), "read", "x.xidv")
		kind, _ := bundle.KindOf(err)
		assert.Equal(t, bundle.MacroOverflow, kind)
	})

	t.Run("exactly at the limits", func(t *testing.T) {
		var sb strings.Builder
		tokens := make([]string, limits.MaxUnknown)
		for i := range tokens {
			tokens[i] = fmt.Sprintf("m%d", i)
			fmt.Fprintf(&sb, "${%s}", tokens[i])
		}
		ui := newFakePrompter(true)
		ui.On("PromptMacroValues", tokens).Return(map[string]string{}, true)
		out, err := resolveMacros(sb.String(), nil, nil, limits, ui, "read", "x.xidv")
		require.Nil(t, err)
		assert.Equal(t, sb.String(), out, "unanswered tokens stay")
	})
}

func TestRebindPath(t *testing.T) {
	existing := map[string]bool{"/zidv/data.nc": true}
	exists := func(p string) bool { return existing[p] }
	candidates := []macroValue{
		{macro: bundle.MacroBundlePath, value: "/bundles/"},
		{macro: bundle.MacroZidvPath, value: "/zidv"},
	}

	assert.Equal(t, "/plain/file.nc", rebindPath("/plain/file.nc", candidates, exists),
		"paths without macros are unchanged")
	assert.Equal(t, "/bundles/data.nc", rebindPath("%idv.bundlepath%/data.nc", candidates, exists),
		"first substitution is kept when nothing exists")
	assert.Equal(t, "/zidv/data.nc", rebindPath("%idv.zidvpath%/data.nc", candidates, exists))
	assert.Equal(t, "%idv.zidvpath%/data.nc", rebindPath("%idv.zidvpath%/data.nc",
		[]macroValue{{macro: bundle.MacroZidvPath}}, exists), "empty values are skipped")
}
