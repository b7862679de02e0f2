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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/idvbundles/entities/bundle"
)

func sampleDocument() *bundle.Document {
	doc := bundle.NewDocument()
	doc.DataSources = dataSources("radar", "sat")
	doc.DisplayControls = []*bundle.DisplayControl{
		{ID: "dc-plan", Label: "Reflectivity", DataSourceIDs: []string{"radar"}, View: bundle.ViewDescriptor{Name: "map"}},
		{ID: "dc-driver", Label: "Satellite", DataSourceIDs: []string{"sat"}, TimeDriver: true, View: bundle.ViewDescriptor{Name: "map"}},
	}
	doc.ViewManagers = []*bundle.ViewManager{{Descriptor: bundle.ViewDescriptor{Name: "map"}, TypeName: "MapViewManager"}}
	return doc
}

func kindOf(t *testing.T, err error) bundle.Kind {
	t.Helper()
	kind, ok := bundle.KindOf(err)
	require.True(t, ok, "expected a bundle error, got %v", err)
	return kind
}

func TestReadRestoresDocument(t *testing.T) {
	f := newReaderFixture(t, nil, ReaderConfig{})
	path := encodeDocument(t, t.TempDir(), "radar.xidv", sampleDocument())

	res, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{})
	require.Nil(t, err)

	assert.Equal(t, FormatXidv, res.Format)
	assert.Equal(t, bundle.ShapeDocument, res.Shape)
	assert.Len(t, res.DataSources, 2)
	assert.Len(t, res.DisplayControls, 2)
	assert.Len(t, res.ViewManagers, 1)
	assert.Empty(t, res.Failures)

	assert.ElementsMatch(t, []string{"radar", "sat"}, f.target.sourceIDs())
	require.Len(t, f.target.displays, 2)
	assert.Equal(t, "dc-driver", f.target.displays[0].ID, "time drivers go first")
	assert.Equal(t, "dc-plan", f.target.displays[1].ID)
	assert.Len(t, f.target.created, 1)

	require.Len(t, f.history.entries, 1)
	assert.Equal(t, path, f.history.entries[0].Path)
	assert.Empty(t, f.history.entries[0].Document, "only single source bundles keep their text")
}

func TestReadSequentialDisplaysKeepOrder(t *testing.T) {
	f := newReaderFixture(t, nil, ReaderConfig{})
	doc := bundle.NewDocument()
	doc.DataSources = []*bundle.DataSource{}
	for i := 0; i < 6; i++ {
		doc.DisplayControls = append(doc.DisplayControls, &bundle.DisplayControl{ID: fmt.Sprintf("dc-%d", i)})
	}
	path := encodeDocument(t, t.TempDir(), "displays.xidv", doc)

	_, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{})
	require.Nil(t, err)
	assert.Equal(t, []string{"dc-0", "dc-1", "dc-2", "dc-3", "dc-4", "dc-5"}, f.target.initOrder)
}

func TestReadPartialFailureIsolation(t *testing.T) {
	f := newReaderFixture(t, nil, ReaderConfig{DataSourceParallelism: 4})
	f.target.failDS["ds-3"] = errors.New("server unavailable")
	doc := bundle.NewDocument()
	doc.DataSources = dataSources("ds-1", "ds-2", "ds-3", "ds-4", "ds-5")
	path := encodeDocument(t, t.TempDir(), "five.xidv", doc)

	res, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{Label: "five"})
	require.Nil(t, err)

	assert.ElementsMatch(t, []string{"ds-1", "ds-2", "ds-4", "ds-5"}, f.target.sourceIDs())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, bundle.DataSourceInitFailed, kindOf(t, res.Failures[0]))
	assert.True(t, res.DataSources[2].InError())

	require.Len(t, f.reporter.calls, 1)
	assert.Equal(t, "five", f.reporter.calls[0].label)
	require.Len(t, f.reporter.calls[0].errs, 1)
	assert.Contains(t, f.reporter.calls[0].errs[0].Error(), "ds-3")
}

func TestReadReportsAllFailuresOnce(t *testing.T) {
	f := newReaderFixture(t, nil, ReaderConfig{})
	f.target.failDS["extra"] = errors.New("server unavailable")
	f.target.failDC["dc-driver"] = errors.New("no time axis")
	f.target.rejectDC["dc-plan"] = errors.New("no room left")
	doc := sampleDocument()
	doc.DataSources = dataSources("radar", "sat", "extra")
	path := encodeDocument(t, t.TempDir(), "radar.xidv", doc)

	res, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{Label: "radar"})
	require.Nil(t, err)
	assert.Len(t, res.Failures, 3)
	assert.Empty(t, f.target.displays)

	require.Len(t, f.reporter.calls, 1, "one aggregated report per read")
	assert.Equal(t, "radar", f.reporter.calls[0].label)
	require.Len(t, f.reporter.calls[0].errs, 3)
	assert.Contains(t, f.reporter.calls[0].errs[0].Error(), "extra")
	assert.Contains(t, f.reporter.calls[0].errs[1].Error(), "no time axis")
	assert.Contains(t, f.reporter.calls[0].errs[2].Error(), "Reflectivity")
	assert.Contains(t, f.reporter.calls[0].errs[2].Error(), "no room left")
}

func TestReadUnconsumedMappingFailsBeforeCommit(t *testing.T) {
	f := newReaderFixture(t, nil, ReaderConfig{})
	path := encodeDocument(t, t.TempDir(), "radar.xidv", sampleDocument())
	mappings := bundle.NewFileMappings(
		bundle.FileMapping{ID: "radar", Files: []string{"/new/radar.nc"}},
		bundle.FileMapping{ID: "lightning", Files: []string{"/new/strikes.txt"}},
	)

	_, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{Mappings: mappings})
	require.NotNil(t, err)
	assert.Equal(t, bundle.UnconsumedFileMapping, kindOf(t, err))
	assert.Contains(t, err.Error(), "lightning")
	assert.Zero(t, f.target.dsInits, "nothing was initialized")
	assert.Empty(t, f.target.sources)
	assert.Empty(t, f.target.displays)
	assert.Zero(t, mappings.Len(), "the queue is cleared")
	assert.Empty(t, f.history.entries)
}

func TestReadStandaloneShapesRejectMappings(t *testing.T) {
	for _, tt := range []struct {
		name string
		data string
	}{
		{"display control", `<displayControl id="dc-metar" label="Station plot"><dataSourceRef>metar</dataSourceRef></displayControl>`},
		{"color table", `<colorTable name="Radar" category="Basic"><color>#000000</color></colorTable>`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newReaderFixture(t, nil, ReaderConfig{})
			mappings := bundle.NewFileMappings(bundle.FileMapping{ID: "ghost", Files: []string{"/new/ghost.nc"}})

			_, err := f.reader.Read(context.Background(), Source{Data: []byte(tt.data)}, ReadOptions{Mappings: mappings})
			require.NotNil(t, err)
			assert.Equal(t, bundle.UnconsumedFileMapping, kindOf(t, err))
			assert.Contains(t, err.Error(), "ghost")
			assert.Zero(t, mappings.Len(), "the queue is cleared")
			assert.Empty(t, f.target.displays)
			assert.Empty(t, f.target.colorTables)
			assert.Zero(t, f.target.removedAll)
		})
	}
}

func TestReadMappingReplacesFiles(t *testing.T) {
	f := newReaderFixture(t, nil, ReaderConfig{})
	path := encodeDocument(t, t.TempDir(), "radar.xidv", sampleDocument())
	mappings := bundle.NewFileMappings(bundle.FileMapping{ID: "radar", Files: []string{"/new/radar.nc"}})

	res, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{Mappings: mappings})
	require.Nil(t, err)
	assert.Equal(t, []string{"/new/radar.nc"}, res.DataSources[0].Paths)
	assert.Equal(t, []string{"/data/sat.nc"}, res.DataSources[1].Paths)
}

func TestReadRelativePathsFollowTheBundle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "data.nc"), "grid")
	doc := bundle.NewDocument()
	doc.DataSources = []*bundle.DataSource{{ID: "grid", TempPaths: []string{bundle.MacroBundlePath + "/data.nc"}}}
	path := encodeDocument(t, dir, "moved.xidv", doc)

	f := newReaderFixture(t, nil, ReaderConfig{})
	res, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{})
	require.Nil(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "data.nc")}, res.DataSources[0].Paths)
	assert.Nil(t, res.DataSources[0].TempPaths)
}

func TestReadMacros(t *testing.T) {
	doc := bundle.NewDocument()
	doc.DataSources = []*bundle.DataSource{{ID: "grid", TypeName: "FILE.NETCDF", Paths: []string{"${idv.datapath}/${user}/grid.nc"}}}

	t.Run("configured table", func(t *testing.T) {
		f := newReaderFixture(t, nil, ReaderConfig{Macros: map[string]string{"idv.datapath": "/data"}})
		path := encodeDocument(t, t.TempDir(), "grid.xidv", doc)
		res, err := f.reader.Read(context.Background(), Source{Path: path},
			ReadOptions{Macros: map[string]string{"user": "jeff"}})
		require.Nil(t, err)
		assert.Equal(t, []string{"/data/jeff/grid.nc"}, res.DataSources[0].Paths)
		require.Len(t, f.history.entries, 1)
		assert.Contains(t, f.history.entries[0].Document, "/data/jeff/grid.nc")
		assert.Equal(t, "FILE.NETCDF:grid", f.history.entries[0].Identifier)
	})

	t.Run("batch reads abort on unknown macros", func(t *testing.T) {
		f := newReaderFixture(t, nil, ReaderConfig{})
		path := encodeDocument(t, t.TempDir(), "grid.xidv", doc)
		_, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{})
		assert.Equal(t, bundle.MacroResolutionAborted, kindOf(t, err))
		assert.Empty(t, f.target.sources)
	})

	t.Run("interactive reads prompt", func(t *testing.T) {
		ui := newFakePrompter(true)
		ui.On("PromptMacroValues", []string{"idv.datapath", "user"}).
			Return(map[string]string{"idv.datapath": "/srv", "user": "ann"}, true).Once()
		f := newReaderFixture(t, ui, ReaderConfig{})
		path := encodeDocument(t, t.TempDir(), "grid.xidv", doc)
		res, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{Interactive: true})
		require.Nil(t, err)
		assert.Equal(t, []string{"/srv/ann/grid.nc"}, res.DataSources[0].Paths)
		ui.AssertExpectations(t)
	})
}

func TestReadFailures(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		ui := newFakePrompter(true)
		f := newReaderFixture(t, ui, ReaderConfig{})
		_, err := f.reader.Read(context.Background(), Source{Path: filepath.Join(dir, "nope.xidv")}, ReadOptions{})
		assert.Equal(t, bundle.ContainerUnreadable, kindOf(t, err))
		ui.AssertCalled(t, "ShowError", mock.Anything)
	})

	t.Run("unknown root element", func(t *testing.T) {
		f := newReaderFixture(t, nil, ReaderConfig{})
		_, err := f.reader.Read(context.Background(), Source{Data: []byte("<station id=\"KFTG\"/>")}, ReadOptions{})
		assert.Equal(t, bundle.UnknownDecodedType, kindOf(t, err))
		assert.Contains(t, err.Error(), "station")
	})

	t.Run("malformed text", func(t *testing.T) {
		f := newReaderFixture(t, nil, ReaderConfig{})
		_, err := f.reader.Read(context.Background(), Source{Data: []byte("<bundle><dataSources>")}, ReadOptions{})
		assert.Equal(t, bundle.MalformedDocument, kindOf(t, err))
	})

	t.Run("isl files are not read", func(t *testing.T) {
		p := filepath.Join(dir, "run.isl")
		writeFile(t, p, "<isl/>")
		f := newReaderFixture(t, nil, ReaderConfig{})
		_, err := f.reader.Read(context.Background(), Source{Path: p}, ReadOptions{})
		assert.Equal(t, bundle.ContainerUnreadable, kindOf(t, err))
	})
}

func TestReadStandaloneShapes(t *testing.T) {
	f := newReaderFixture(t, nil, ReaderConfig{})

	res, err := f.reader.Read(context.Background(), Source{
		Data: []byte(`<colorTable name="Radar" category="Basic"><color>#000000</color></colorTable>`),
	}, ReadOptions{})
	require.Nil(t, err)
	assert.Equal(t, bundle.ShapeColorTable, res.Shape)
	require.Len(t, f.target.colorTables, 1)
	assert.Equal(t, "Radar", f.target.colorTables[0].Name)

	res, err = f.reader.Read(context.Background(), Source{
		Data: []byte(`<dataSource id="metar" type="FILE.POINT"><path>/data/metar.txt</path></dataSource>`),
	}, ReadOptions{})
	require.Nil(t, err)
	assert.Equal(t, bundle.ShapeDataSource, res.Shape)
	assert.Equal(t, []string{"metar"}, f.target.sourceIDs())

	res, err = f.reader.Read(context.Background(), Source{
		Data: []byte(`<displayControl id="dc-metar" label="Station plot"><dataSourceRef>metar</dataSourceRef></displayControl>`),
	}, ReadOptions{})
	require.Nil(t, err)
	assert.Equal(t, bundle.ShapeDisplayControl, res.Shape)
	require.Len(t, f.target.displays, 1)
	assert.Empty(t, f.history.entries, "data without a path is not recorded")
}

func TestReadCancelRollsBack(t *testing.T) {
	ui := newFakePrompter(false)
	ui.On("OkToContinue").Return(true).Once()
	ui.On("OkToContinue").Return(false)
	f := newReaderFixture(t, ui, ReaderConfig{})
	doc := bundle.NewDocument()
	doc.DataSources = dataSources("radar")
	doc.DisplayControls = []*bundle.DisplayControl{{ID: "dc", DataSourceIDs: []string{"radar"}}}
	path := encodeDocument(t, t.TempDir(), "radar.xidv", doc)

	_, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{})
	require.NotNil(t, err)
	assert.True(t, bundle.IsCancelled(err))
	assert.Empty(t, f.target.sources, "added sources are removed again")
	assert.Equal(t, []string{"radar"}, f.target.removedSources)
	assert.Empty(t, f.target.displays)
	ui.AssertNotCalled(t, "ShowError", mock.Anything)
	assert.Empty(t, f.history.entries)
}

func TestReadRemovalPreference(t *testing.T) {
	ui := newFakePrompter(true)
	ui.On("PromptRemovalPreference", "radar", RemovalDecision{}).
		Return(RemovalDecision{Remove: true, DontAsk: true}, true).Once()
	f := newReaderFixture(t, ui, ReaderConfig{})
	f.target.sources = dataSources("stale")
	path := encodeDocument(t, t.TempDir(), "radar.xidv", sampleDocument())
	opts := ReadOptions{CheckRemovalPreference: true, Interactive: true, Label: "radar"}

	_, err := f.reader.Read(context.Background(), Source{Path: path}, opts)
	require.Nil(t, err)
	assert.Equal(t, 1, f.target.removedAll)
	assert.NotContains(t, f.target.sourceIDs(), "stale")
	assert.False(t, f.prefs.Bool(PrefOpenAsk, true))
	assert.True(t, f.prefs.Bool(PrefOpenRemove, false))

	_, err = f.reader.Read(context.Background(), Source{Path: path}, opts)
	require.Nil(t, err)
	assert.Equal(t, 2, f.target.removedAll, "stored answer is reused")
	ui.AssertNumberOfCalls(t, "PromptRemovalPreference", 1)

	ui2 := newFakePrompter(true)
	ui2.On("PromptRemovalPreference", mock.Anything, mock.Anything).Return(RemovalDecision{}, false)
	f2 := newReaderFixture(t, ui2, ReaderConfig{})
	_, err = f2.reader.Read(context.Background(), Source{Path: path}, opts)
	assert.True(t, bundle.IsCancelled(err))
	assert.Zero(t, f2.target.dsInits)
}

func TestConcurrentReadsAreSerialized(t *testing.T) {
	f := newReaderFixture(t, nil, ReaderConfig{})
	f.target.initDelay = 30 * time.Millisecond
	dir := t.TempDir()

	var paths []string
	for _, id := range []string{"a", "b"} {
		doc := bundle.NewDocument()
		doc.DataSources = dataSources(id)
		paths = append(paths, encodeDocument(t, dir, id+".xidv", doc))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(paths))
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			_, errs[i] = f.reader.Read(context.Background(), Source{Path: p}, ReadOptions{})
		}(i, p)
	}
	wg.Wait()

	for _, err := range errs {
		require.Nil(t, err)
	}
	assert.EqualValues(t, 1, f.target.peak, "restores never overlap")
	assert.ElementsMatch(t, []string{"a", "b"}, f.target.sourceIDs())
	assert.Len(t, f.history.entries, 2)
}

func TestReadFromCollabSkipsKnownDisplays(t *testing.T) {
	f := newReaderFixture(t, nil, ReaderConfig{})
	f.target.displays = []*bundle.DisplayControl{{ID: "dc-plan"}}
	path := encodeDocument(t, t.TempDir(), "radar.xidv", sampleDocument())

	res, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{FromCollab: true})
	require.Nil(t, err)
	require.Len(t, res.DisplayControls, 1)
	assert.Equal(t, "dc-driver", res.DisplayControls[0].ID)
	assert.Empty(t, f.history.entries, "collaboration reads are not recorded")
}

func TestReadOverridesAndViewProperties(t *testing.T) {
	f := newReaderFixture(t, nil, ReaderConfig{})
	path := encodeDocument(t, t.TempDir(), "radar.xidv", sampleDocument())

	res, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{
		Overrides:      Overrides{Times: []int{0, 2}, Ensemble: []int{1}},
		ViewProperties: "perspective=true;aspectRatio=1,1,0.5",
	})
	require.Nil(t, err)
	for _, ds := range res.DataSources {
		assert.Equal(t, []int{0, 2}, ds.TimeSelection)
		assert.Equal(t, []int{1}, ds.EnsembleSelection)
	}
	require.Len(t, res.ViewManagers, 1)
	assert.True(t, res.ViewManagers[0].Perspective)
	assert.Equal(t, [3]float64{1, 1, 0.5}, res.ViewManagers[0].AspectRatio)
}

func TestReadScriptLibrary(t *testing.T) {
	doc := sampleDocument()
	script := "def hello(): pass"
	doc.ScriptLibrary = &script

	f := newReaderFixture(t, nil, ReaderConfig{})
	path := encodeDocument(t, t.TempDir(), "radar.xidv", doc)
	_, err := f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{})
	require.Nil(t, err)
	assert.Equal(t, []string{"temp:" + script}, f.target.scripts)

	ui := newFakePrompter(true)
	ui.On("PromptScriptDisposition", script).Return(ScriptAddExcerpt, "def hello").Once()
	f = newReaderFixture(t, ui, ReaderConfig{})
	_, err = f.reader.Read(context.Background(), Source{Path: path}, ReadOptions{Interactive: true})
	require.Nil(t, err)
	assert.Equal(t, []string{"permanent:def hello"}, f.target.scripts)
}

func TestReadLaunchDescriptorWithCompanion(t *testing.T) {
	dir := t.TempDir()
	encodeDocument(t, dir, "radar.xidv", sampleDocument())
	wrapped, err := wrapLaunch(FormatSh, "Radar", nil, "radar.xidv")
	require.Nil(t, err)
	launcher := filepath.Join(dir, "radar.sh")
	require.Nil(t, os.WriteFile(launcher, wrapped, 0o755))

	f := newReaderFixture(t, nil, ReaderConfig{})
	res, err := f.reader.Read(context.Background(), Source{Path: launcher}, ReadOptions{})
	require.Nil(t, err)
	assert.Equal(t, FormatSh, res.Format)
	assert.Len(t, res.DataSources, 2)

	require.Nil(t, os.Remove(filepath.Join(dir, "radar.xidv")))
	_, err = f.reader.Read(context.Background(), Source{Path: launcher}, ReadOptions{})
	assert.Equal(t, bundle.ContainerUnreadable, kindOf(t, err))
}
