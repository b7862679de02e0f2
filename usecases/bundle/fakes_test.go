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
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/idvbundles/adapters/codec"
	"github.com/weaviate/idvbundles/entities/bundle"
)

// fakeTarget is the live state a read restores into. Display init fails
// when a referenced data source is not live.
type fakeTarget struct {
	sync.Mutex
	failDS    map[string]error
	failDC    map[string]error
	rejectDC  map[string]error
	panicDS   map[string]bool
	initDelay time.Duration

	active, peak int32
	dsInits      int32

	initOrder      []string
	sources        []*bundle.DataSource
	displays       []*bundle.DisplayControl
	views          []*bundle.ViewManager
	skins          map[*bundle.ViewManager]string
	created        []*bundle.ViewManager
	closed         []*bundle.ViewManager
	windows        []*bundle.WindowLayout
	scripts        []string
	colorTables    []*bundle.ColorTable
	removedAll     int
	removedSources []string
	removedDCs     []string
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		failDS:   map[string]error{},
		failDC:   map[string]error{},
		rejectDC: map[string]error{},
		panicDS:  map[string]bool{},
		skins:    map[*bundle.ViewManager]string{},
	}
}

func (t *fakeTarget) InitDataSource(ctx context.Context, ds *bundle.DataSource) error {
	atomic.AddInt32(&t.dsInits, 1)
	n := atomic.AddInt32(&t.active, 1)
	defer atomic.AddInt32(&t.active, -1)
	for {
		old := atomic.LoadInt32(&t.peak)
		if n <= old || atomic.CompareAndSwapInt32(&t.peak, old, n) {
			break
		}
	}
	if t.initDelay > 0 {
		time.Sleep(t.initDelay)
	}

	t.Lock()
	t.initOrder = append(t.initOrder, ds.ID)
	err, panics := t.failDS[ds.ID], t.panicDS[ds.ID]
	t.Unlock()
	if panics {
		panic("reader crashed on " + ds.ID)
	}
	return err
}

func (t *fakeTarget) InitDisplayControl(ctx context.Context, dc *bundle.DisplayControl) error {
	t.Lock()
	defer t.Unlock()
	t.initOrder = append(t.initOrder, dc.ID)
	if err := t.failDC[dc.ID]; err != nil {
		return err
	}
	for _, id := range dc.DataSourceIDs {
		if !t.hasSource(id) {
			return fmt.Errorf("data source %s is not loaded", id)
		}
	}
	return nil
}

func (t *fakeTarget) hasSource(id string) bool {
	for _, ds := range t.sources {
		if ds.ID == id {
			return true
		}
	}
	return false
}

func (t *fakeTarget) AddDataSource(ds *bundle.DataSource) bool {
	t.Lock()
	defer t.Unlock()
	t.sources = append(t.sources, ds)
	return true
}

func (t *fakeTarget) RemoveDataSource(ds *bundle.DataSource) error {
	t.Lock()
	defer t.Unlock()
	for i, s := range t.sources {
		if s == ds {
			t.sources = append(t.sources[:i], t.sources[i+1:]...)
			t.removedSources = append(t.removedSources, ds.ID)
			return nil
		}
	}
	return fmt.Errorf("data source %s is not loaded", ds.ID)
}

func (t *fakeTarget) AddDisplayControl(dc *bundle.DisplayControl) error {
	t.Lock()
	defer t.Unlock()
	if err := t.rejectDC[dc.ID]; err != nil {
		return err
	}
	t.displays = append(t.displays, dc)
	return nil
}

func (t *fakeTarget) RemoveDisplayControl(dc *bundle.DisplayControl) error {
	t.Lock()
	defer t.Unlock()
	for i, d := range t.displays {
		if d == dc {
			t.displays = append(t.displays[:i], t.displays[i+1:]...)
			t.removedDCs = append(t.removedDCs, dc.ID)
			return nil
		}
	}
	return fmt.Errorf("display %s is not shown", dc.ID)
}

func (t *fakeTarget) HasDisplayControl(id string) bool {
	t.Lock()
	defer t.Unlock()
	for _, dc := range t.displays {
		if dc.ID == id {
			return true
		}
	}
	return false
}

func (t *fakeTarget) RemoveAll(ctx context.Context) error {
	t.Lock()
	defer t.Unlock()
	t.removedAll++
	t.sources, t.displays, t.views = nil, nil, nil
	return nil
}

func (t *fakeTarget) ViewManagers() []*bundle.ViewManager {
	t.Lock()
	defer t.Unlock()
	return append([]*bundle.ViewManager(nil), t.views...)
}

func (t *fakeTarget) RestoreWindows(ctx context.Context, windows []*bundle.WindowLayout,
	vms []*bundle.ViewManager, merge bool,
) error {
	t.Lock()
	defer t.Unlock()
	t.windows = append(t.windows, windows...)
	t.views = append(t.views, vms...)
	return nil
}

func (t *fakeTarget) CreateWindow(vm *bundle.ViewManager) error {
	t.Lock()
	defer t.Unlock()
	t.created = append(t.created, vm)
	t.views = append(t.views, vm)
	return nil
}

func (t *fakeTarget) CloseViewManager(vm *bundle.ViewManager) error {
	t.Lock()
	defer t.Unlock()
	t.closed = append(t.closed, vm)
	for i, v := range t.views {
		if v == vm {
			t.views = append(t.views[:i], t.views[i+1:]...)
			break
		}
	}
	return nil
}

func (t *fakeTarget) SkinOf(vm *bundle.ViewManager) string {
	t.Lock()
	defer t.Unlock()
	return t.skins[vm]
}

func (t *fakeTarget) AddColorTable(ct *bundle.ColorTable) error {
	t.Lock()
	defer t.Unlock()
	t.colorTables = append(t.colorTables, ct)
	return nil
}

func (t *fakeTarget) AddScript(text string, permanent bool) error {
	t.Lock()
	defer t.Unlock()
	kind := "temp"
	if permanent {
		kind = "permanent"
	}
	t.scripts = append(t.scripts, kind+":"+text)
	return nil
}

func (t *fakeTarget) sourceIDs() []string {
	t.Lock()
	defer t.Unlock()
	ids := make([]string, len(t.sources))
	for i, ds := range t.sources {
		ids[i] = ds.ID
	}
	return ids
}

// fakeSourcer is the live state a write captures.
type fakeSourcer struct {
	sources   []*bundle.DataSource
	displays  []*bundle.DisplayControl
	views     []*bundle.ViewManager
	windows   []*bundle.WindowLayout
	script    string
	misc      map[string]string
	exportErr error
	exported  []string
}

func (s *fakeSourcer) DataSources() []*bundle.DataSource         { return s.sources }
func (s *fakeSourcer) DisplayControls() []*bundle.DisplayControl { return s.displays }
func (s *fakeSourcer) ViewManagers() []*bundle.ViewManager       { return s.views }
func (s *fakeSourcer) WindowLayouts() []*bundle.WindowLayout     { return s.windows }
func (s *fakeSourcer) ScriptLibrary() string                     { return s.script }
func (s *fakeSourcer) MiscState() map[string]string              { return s.misc }

func (s *fakeSourcer) ExportLocalCopy(ctx context.Context, ds *bundle.DataSource, dir string) ([]string, error) {
	if s.exportErr != nil {
		return nil, s.exportErr
	}
	p := filepath.Join(dir, ds.ID+".nc")
	if err := os.WriteFile(p, []byte("exported "+ds.ID), 0o644); err != nil {
		return nil, err
	}
	s.exported = append(s.exported, ds.ID)
	return []string{p}, nil
}

type fakePrompter struct {
	mock.Mock
}

// newFakePrompter accepts errors and, when proceed is set, every
// OkToContinue poll. Everything else must be set up by the test.
func newFakePrompter(proceed bool) *fakePrompter {
	p := &fakePrompter{}
	p.On("ShowError", mock.Anything).Return().Maybe()
	if proceed {
		p.On("OkToContinue").Return(true).Maybe()
	}
	return p
}

func (p *fakePrompter) PromptRemovalPreference(name string, current RemovalDecision) (RemovalDecision, bool) {
	args := p.Called(name, current)
	return args.Get(0).(RemovalDecision), args.Bool(1)
}

func (p *fakePrompter) PromptMacroValues(tokens []string) (map[string]string, bool) {
	args := p.Called(tokens)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(map[string]string), args.Bool(1)
}

func (p *fakePrompter) PromptZipExtractionLocation(current ExtractionChoice) (ExtractionChoice, bool) {
	args := p.Called(current)
	return args.Get(0).(ExtractionChoice), args.Bool(1)
}

func (p *fakePrompter) PromptScriptDisposition(text string) (ScriptDisposition, string) {
	args := p.Called(text)
	return args.Get(0).(ScriptDisposition), args.String(1)
}

func (p *fakePrompter) PromptChangeData(sources []*bundle.DataSource) (map[string][]string, bool) {
	args := p.Called(sources)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(map[string][]string), args.Bool(1)
}

func (p *fakePrompter) SelectRelativeSources(candidates []*bundle.DataSource) ([]*bundle.DataSource, bool) {
	args := p.Called(candidates)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).([]*bundle.DataSource), args.Bool(1)
}

func (p *fakePrompter) SelectEmbeddedSources(candidates []*bundle.DataSource) ([]*bundle.DataSource, bool) {
	args := p.Called(candidates)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).([]*bundle.DataSource), args.Bool(1)
}

func (p *fakePrompter) SelectScriptExcerpt(text string) (string, bool) {
	args := p.Called(text)
	return args.String(0), args.Bool(1)
}

func (p *fakePrompter) OkToContinue() bool {
	return p.Called().Bool(0)
}

func (p *fakePrompter) ShowError(err error) {
	p.Called(err)
}

type reportCall struct {
	label string
	errs  []error
}

type fakeReporter struct {
	sync.Mutex
	calls []reportCall
}

func (r *fakeReporter) ReportExceptions(label string, errs []error) {
	r.Lock()
	defer r.Unlock()
	r.calls = append(r.calls, reportCall{label: label, errs: errs})
}

type fakeHistory struct {
	sync.Mutex
	entries []*bundle.HistoryEntry
}

func (h *fakeHistory) Add(entry *bundle.HistoryEntry) error {
	h.Lock()
	defer h.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

type fakePrefs struct {
	sync.Mutex
	values map[string]interface{}
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{values: map[string]interface{}{}}
}

func (p *fakePrefs) Bool(key string, def bool) bool {
	p.Lock()
	defer p.Unlock()
	if v, ok := p.values[key].(bool); ok {
		return v
	}
	return def
}

func (p *fakePrefs) SetBool(key string, v bool) error {
	p.Lock()
	defer p.Unlock()
	p.values[key] = v
	return nil
}

func (p *fakePrefs) String(key, def string) string {
	p.Lock()
	defer p.Unlock()
	if v, ok := p.values[key].(string); ok {
		return v
	}
	return def
}

func (p *fakePrefs) SetString(key, v string) error {
	p.Lock()
	defer p.Unlock()
	p.values[key] = v
	return nil
}

type fakeIsl struct {
	path string
	doc  []byte
}

func (f *fakeIsl) WriteIsl(path string, document []byte) error {
	f.path, f.doc = path, document
	return os.WriteFile(path, []byte("<isl>"+string(document)+"</isl>"), 0o644)
}

// readerFixture bundles a reader with the fakes behind it.
type readerFixture struct {
	reader   *Reader
	target   *fakeTarget
	reporter *fakeReporter
	history  *fakeHistory
	prefs    *fakePrefs
}

func newReaderFixture(t *testing.T, ui Prompter, cfg ReaderConfig) *readerFixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	if cfg.TempDir == "" {
		cfg.TempDir = t.TempDir()
	}
	f := &readerFixture{
		target:   newFakeTarget(),
		reporter: &fakeReporter{},
		history:  &fakeHistory{},
		prefs:    newFakePrefs(),
	}
	f.reader = NewReader(logger, codec.XML{}, f.target, ui, f.prefs, f.history, f.reporter, nil, cfg)
	return f
}

func newTestWriter(t *testing.T, sourcer Sourcer, ui Prompter) *Writer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewWriter(logger, sourcer, codec.XML{}, ui, &fakeIsl{}, nil,
		WriterConfig{Compression: int(BestSpeed), TempDir: t.TempDir()})
}

// encodeDocument writes doc as an xidv file in dir and returns its path.
func encodeDocument(t *testing.T, dir, name string, doc *bundle.Document) string {
	t.Helper()
	data, err := codec.XML{}.Encode(doc, true)
	require.Nil(t, err)
	p := filepath.Join(dir, name)
	require.Nil(t, os.WriteFile(p, data, 0o644))
	return p
}

func dataSources(ids ...string) []*bundle.DataSource {
	out := make([]*bundle.DataSource, len(ids))
	for i, id := range ids {
		out[i] = &bundle.DataSource{ID: id, Name: id, TypeName: "FILE.NETCDF", Paths: []string{"/data/" + id + ".nc"}}
	}
	return out
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.Nil(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.Nil(t, os.WriteFile(p, []byte(content), 0o644))
}
