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
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/entities/bundle"
	"github.com/weaviate/idvbundles/usecases/monitoring"
)

// MaxDataSourceParallelism caps the data source init pool.
const MaxDataSourceParallelism = 12

// Source is what a read starts from. Data is read from Path when nil.
type Source struct {
	Path string
	Data []byte
}

// Overrides are applied to every data source that initialized.
type Overrides struct {
	Times    []int
	Ensemble []int
}

type ReadOptions struct {
	// CheckRemovalPreference asks whether to clear the current state first.
	CheckRemovalPreference     bool
	AllowInteractivePathChange bool
	Label                      string
	// Interactive is false for batch reads, which never prompt.
	Interactive bool
	// FromCollab marks a bundle received from a collaboration peer.
	FromCollab bool
	// Macros override entries of the ${name} macro table.
	Macros         map[string]string
	Mappings       *bundle.FileMappings
	Overrides      Overrides
	ViewProperties string
}

// ReadResult describes what a read restored. Units that failed to
// initialize are included and flagged in error.
type ReadResult struct {
	Path            string
	Format          Format
	Shape           bundle.Shape
	Document        *bundle.Document
	DataSources     []*bundle.DataSource
	DisplayControls []*bundle.DisplayControl
	ViewManagers    []*bundle.ViewManager
	ColorTable      *bundle.ColorTable
	ExtractedTo     string
	Failures        []error
}

type ReaderConfig struct {
	DataSourceParallelism int
	DisplayParallelism    int
	Macros                map[string]string
	MacroLimits           MacroLimits
	TempDir               string
}

// Reader restores bundles into the live state. Only one read at a time
// decodes and reconstructs; unwrapping and macro resolution run unlocked.
type Reader struct {
	logger      logrus.FieldLogger
	codec       Codec
	target      Target
	ui          Prompter
	prefs       Preferences
	history     History
	rebinder    *PathRebinder
	coordinator *Coordinator
	metrics     *monitoring.BundleMetrics
	cfg         ReaderConfig

	sync.Mutex // guards decode and reconstruct
}

func NewReader(logger logrus.FieldLogger, codec Codec, target Target, ui Prompter,
	prefs Preferences, history History, reporter ExceptionReporter,
	metrics *monitoring.BundleMetrics, cfg ReaderConfig,
) *Reader {
	if cfg.MacroLimits.MaxUnknown <= 0 {
		cfg.MacroLimits.MaxUnknown = DefaultMacroLimits.MaxUnknown
	}
	if cfg.MacroLimits.MaxLength <= 0 {
		cfg.MacroLimits.MaxLength = DefaultMacroLimits.MaxLength
	}
	if cfg.DataSourceParallelism <= 0 || cfg.DataSourceParallelism > MaxDataSourceParallelism {
		cfg.DataSourceParallelism = MaxDataSourceParallelism
	}
	if cfg.DisplayParallelism <= 0 {
		cfg.DisplayParallelism = 1
	}
	return &Reader{
		logger:      logger,
		codec:       codec,
		target:      target,
		ui:          ui,
		prefs:       prefs,
		history:     history,
		rebinder:    NewPathRebinder(logger, ui),
		coordinator: NewCoordinator(logger, reporter, metrics),
		metrics:     metrics,
		cfg:         cfg,
	}
}

// restore is the state of one read while it reconstructs.
type restore struct {
	label    string
	opts     ReadOptions
	remove   bool
	merge    bool
	change   bool
	dir      string
	zidvDir  string
	result   *ReadResult
	sources  []*bundle.DataSource
	displays []*bundle.DisplayControl
	// failures named after their unit, reported once per read
	report []error
}

// Read restores the bundle in src. Every failure except a cancellation is
// also shown to the user.
func (r *Reader) Read(ctx context.Context, src Source, opts ReadOptions) (res *ReadResult, err error) {
	label := opts.Label
	if label == "" {
		label = src.Path
	}
	res = &ReadResult{Path: src.Path}
	logger := r.logger.WithFields(logrus.Fields{"action": "read_bundle", "path": src.Path, "label": label})

	defer func() {
		format := string(res.Format)
		switch {
		case err == nil:
			r.metrics.Read(format, monitoring.StatusSuccess)
			logger.WithField("failed_units", len(res.Failures)).Info("bundle restored")
		case bundle.IsCancelled(err):
			r.metrics.Read(format, monitoring.StatusCancelled)
			logger.Debug("bundle read cancelled")
		default:
			r.metrics.Read(format, monitoring.StatusFailed)
			logger.WithError(err).Error("bundle read failed")
			if r.ui != nil {
				r.ui.ShowError(err)
			}
		}
	}()

	data := src.Data
	if data == nil {
		if data, err = os.ReadFile(src.Path); err != nil {
			return res, bundle.NewError(bundle.ContainerUnreadable, "read", label, err)
		}
	}
	res.Format = Classify(src.Path, data)

	st := &restore{label: label, opts: opts, result: res, change: opts.AllowInteractivePathChange}
	if src.Path != "" {
		st.dir = filepath.Dir(src.Path)
	}
	if opts.CheckRemovalPreference {
		decision, ok := r.removalDecision(label, opts.Interactive)
		if !ok {
			return res, bundle.NewError(bundle.Cancelled, "read", label, nil)
		}
		st.remove = decision.Remove
		st.merge = decision.Merge
		st.change = st.change || decision.ChangeData
	}

	text, err := r.unwrap(res.Format, src.Path, data, st)
	if err != nil {
		return res, err
	}
	resolved, err := resolveMacros(string(text), r.cfg.Macros, opts.Macros, r.cfg.MacroLimits,
		r.interactiveUI(opts), "read", label)
	if err != nil {
		return res, err
	}

	if err := r.decodeAndRestore(ctx, []byte(resolved), st); err != nil {
		return res, err
	}

	if !opts.FromCollab && src.Path != "" {
		r.addHistory(src.Path, label, resolved, res)
	}
	return res, nil
}

func (r *Reader) interactiveUI(opts ReadOptions) Prompter {
	if !opts.Interactive {
		return nil
	}
	return r.ui
}

func (r *Reader) decodeAndRestore(ctx context.Context, text []byte, st *restore) error {
	r.Lock()
	defer r.Unlock()
	defer r.metrics.ObserveRestore(time.Now())

	decoded, err := r.codec.Decode(text)
	if err != nil {
		return bundle.NewError(bundle.MalformedDocument, "decode", st.label, err)
	}
	st.result.Shape = decoded.Shape

	switch decoded.Shape {
	case bundle.ShapeUnknown:
		return bundle.NewError(bundle.UnknownDecodedType, "decode", st.label,
			fmt.Errorf("unexpected root element <%s>", decoded.Root))
	case bundle.ShapeDisplayControl, bundle.ShapeColorTable:
		// nothing here can consume a file mapping
		if left := st.opts.Mappings.Remaining(); len(left) > 0 {
			return r.unconsumed(st, left)
		}
	}

	// every unit failure of this restore goes out in one report
	defer func() { r.coordinator.Report(st.label, st.report) }()

	if st.remove {
		if err := r.target.RemoveAll(ctx); err != nil {
			r.logger.WithField("action", "remove_all").WithError(err).Warn("could not clear current state")
		}
	}

	switch decoded.Shape {
	case bundle.ShapeDocument:
		st.result.Document = decoded.Document
		return r.reconstruct(ctx, decoded.Document, st)
	case bundle.ShapeDataSource:
		doc := &bundle.Document{DataSources: []*bundle.DataSource{decoded.DataSource}}
		return r.restoreDataSources(ctx, doc, st)
	case bundle.ShapeDisplayControl:
		return r.restoreDisplays(ctx, []*bundle.DisplayControl{decoded.DisplayControl}, st)
	case bundle.ShapeColorTable:
		st.result.ColorTable = decoded.ColorTable
		if err := r.target.AddColorTable(decoded.ColorTable); err != nil {
			return bundle.NewError(bundle.WriteFailed, "add color table", st.label, err)
		}
		return nil
	}
	return nil
}

// reconstruct restores a full document: script, data, views, displays.
func (r *Reader) reconstruct(ctx context.Context, doc *bundle.Document, st *restore) error {
	if script := doc.Script(); script != "" {
		r.restoreScript(script, st.opts)
	}

	if err := r.restoreDataSources(ctx, doc, st); err != nil {
		return err
	}

	if doc.ViewManagers != nil || doc.IsLegacy() {
		vms, err := restoreViews(ctx, r.target, doc, st.merge, st.opts.ViewProperties)
		if err != nil {
			return r.rollback(st, bundle.NewError(bundle.WriteFailed, "restore views", st.label, err))
		}
		st.result.ViewManagers = vms
	}

	return r.restoreDisplays(ctx, doc.DisplayControls, st)
}

func (r *Reader) restoreDataSources(ctx context.Context, doc *bundle.Document, st *restore) error {
	if len(doc.DataSources) == 0 {
		if left := st.opts.Mappings.Remaining(); len(left) > 0 {
			return r.unconsumed(st, left)
		}
		return nil
	}

	ok := r.rebinder.Rebind(doc.DataSources, RebindRequest{
		BundleDir:              st.dir,
		ZidvDir:                st.zidvDir,
		Mappings:               st.opts.Mappings,
		AllowInteractiveChange: st.change,
		Interactive:            st.opts.Interactive,
	})
	if !ok {
		return bundle.NewError(bundle.Cancelled, "change data", st.label, nil)
	}
	// Checked before anything is initialized so no source gets committed.
	if left := st.opts.Mappings.Remaining(); len(left) > 0 {
		return r.unconsumed(st, left)
	}

	outcomes, failed := r.coordinator.Run(ctx, st.label, unitDataSource,
		dataSourceUnits(r.target, doc.DataSources), r.cfg.DataSourceParallelism)
	st.report = append(st.report, failed...)
	st.result.DataSources = append(st.result.DataSources, doc.DataSources...)
	for _, o := range outcomes {
		if o.Err != nil {
			st.result.Failures = append(st.result.Failures, o.Err)
		}
	}

	for _, ds := range doc.DataSources {
		if ds.InError() {
			continue
		}
		if st.opts.Overrides.Times != nil {
			ds.TimeSelection = append([]int(nil), st.opts.Overrides.Times...)
		}
		if st.opts.Overrides.Ensemble != nil {
			ds.EnsembleSelection = append([]int(nil), st.opts.Overrides.Ensemble...)
		}
	}

	if !r.okToContinue(ctx) {
		return r.rollback(st, bundle.NewError(bundle.Cancelled, "add data sources", st.label, nil))
	}
	for _, ds := range doc.DataSources {
		if ds.InError() {
			continue
		}
		if r.target.AddDataSource(ds) {
			st.sources = append(st.sources, ds)
		}
	}
	return nil
}

func (r *Reader) unconsumed(st *restore, ids []string) error {
	st.opts.Mappings.Clear()
	err := bundle.NewError(bundle.UnconsumedFileMapping, "map files", st.label,
		fmt.Errorf("no data source matches %q", ids))
	r.logger.WithFields(logrus.Fields{
		"action":   "map_files",
		"label":    st.label,
		"mappings": ids,
	}).Error(err)
	return err
}

// restoreDisplays initializes time drivers before the displays that read
// their time axis, one display at a time by default.
func (r *Reader) restoreDisplays(ctx context.Context, dcs []*bundle.DisplayControl, st *restore) error {
	var fresh []*bundle.DisplayControl
	for _, dc := range dcs {
		if st.opts.FromCollab && r.target.HasDisplayControl(dc.ID) {
			r.logger.WithFields(logrus.Fields{
				"action":  "restore_displays",
				"display": dc.ID,
			}).Debug("skipping display already shared by a peer")
			continue
		}
		fresh = append(fresh, dc)
	}

	drivers, rest := bundle.SplitTimeDrivers(fresh)
	for _, phase := range [][]*bundle.DisplayControl{drivers, rest} {
		if len(phase) == 0 {
			continue
		}
		outcomes, failed := r.coordinator.Run(ctx, st.label, unitDisplayControl,
			displayUnits(r.target, phase), r.cfg.DisplayParallelism)
		st.report = append(st.report, failed...)
		st.result.DisplayControls = append(st.result.DisplayControls, phase...)
		for _, o := range outcomes {
			if o.Err != nil {
				st.result.Failures = append(st.result.Failures, o.Err)
			}
		}

		if !r.okToContinue(ctx) {
			return r.rollback(st, bundle.NewError(bundle.Cancelled, "add displays", st.label, nil))
		}
		for _, dc := range phase {
			if dc.InError() {
				continue
			}
			if err := r.target.AddDisplayControl(dc); err != nil {
				dc.MarkInError(err)
				st.result.Failures = append(st.result.Failures, err)
				st.report = append(st.report, fmt.Errorf("%s: %w", dc.UnitName(), err))
				continue
			}
			st.displays = append(st.displays, dc)
		}
	}
	return nil
}

func (r *Reader) okToContinue(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return r.ui == nil || r.ui.OkToContinue()
}

// rollback removes what this read added so far and returns err.
// Individual removal failures are only logged.
func (r *Reader) rollback(st *restore, err error) error {
	logger := r.logger.WithFields(logrus.Fields{"action": "rollback", "label": st.label})
	for _, dc := range st.displays {
		if rerr := r.target.RemoveDisplayControl(dc); rerr != nil {
			logger.WithError(rerr).WithField("display", dc.ID).Debug("remove display")
		}
	}
	for _, ds := range st.sources {
		if rerr := r.target.RemoveDataSource(ds); rerr != nil {
			logger.WithError(rerr).WithField("data_source", ds.ID).Debug("remove data source")
		}
	}
	logger.WithFields(logrus.Fields{
		"displays":     len(st.displays),
		"data_sources": len(st.sources),
	}).Info("rolled back partial restore")
	st.displays, st.sources = nil, nil
	return err
}

func (r *Reader) restoreScript(text string, opts ReadOptions) {
	var err error
	if !opts.Interactive || r.ui == nil {
		err = r.target.AddScript(text, false)
	} else {
		disposition, excerpt := r.ui.PromptScriptDisposition(text)
		switch disposition {
		case ScriptAddPermanent:
			err = r.target.AddScript(text, true)
		case ScriptAddTemp:
			err = r.target.AddScript(text, false)
		case ScriptAddExcerpt:
			err = r.target.AddScript(excerpt, true)
		}
	}
	if err != nil {
		r.logger.WithField("action", "restore_script").WithError(err).Warn("could not add script library")
	}
}

func (r *Reader) prefBool(key string, def bool) bool {
	if r.prefs == nil {
		return def
	}
	return r.prefs.Bool(key, def)
}

func (r *Reader) prefString(key, def string) string {
	if r.prefs == nil {
		return def
	}
	return r.prefs.String(key, def)
}

func (r *Reader) setPrefs(bools map[string]bool, strs map[string]string) {
	if r.prefs == nil {
		return
	}
	for k, v := range bools {
		if err := r.prefs.SetBool(k, v); err != nil {
			r.logger.WithField("action", "store_preference").WithError(err).Warn(k)
		}
	}
	for k, v := range strs {
		if err := r.prefs.SetString(k, v); err != nil {
			r.logger.WithField("action", "store_preference").WithError(err).Warn(k)
		}
	}
}

func (r *Reader) removalDecision(label string, interactive bool) (RemovalDecision, bool) {
	current := RemovalDecision{
		Remove:     r.prefBool(PrefOpenRemove, false),
		Merge:      r.prefBool(PrefOpenMerge, false),
		ChangeData: r.prefBool(PrefOpenChangeData, false),
	}
	if !interactive || r.ui == nil || !r.prefBool(PrefOpenAsk, true) {
		return current, true
	}
	decision, ok := r.ui.PromptRemovalPreference(label, current)
	if !ok {
		return RemovalDecision{}, false
	}
	bools := map[string]bool{
		PrefOpenRemove:     decision.Remove,
		PrefOpenMerge:      decision.Merge,
		PrefOpenChangeData: decision.ChangeData,
	}
	if decision.DontAsk {
		bools[PrefOpenAsk] = false
	}
	r.setPrefs(bools, nil)
	return decision, true
}

// extractionDir picks where zidv data goes. It returns false when the user
// cancelled.
func (r *Reader) extractionDir(interactive bool) (string, bool) {
	choice := ExtractionChoice{
		UseTemp: r.prefBool(PrefZidvUseTemp, true),
		Dir:     r.prefString(PrefZidvDir, ""),
	}
	if interactive && r.ui != nil && r.prefBool(PrefZidvAsk, true) {
		var ok bool
		if choice, ok = r.ui.PromptZipExtractionLocation(choice); !ok {
			return "", false
		}
		bools := map[string]bool{PrefZidvUseTemp: choice.UseTemp}
		if choice.DontAsk {
			bools[PrefZidvAsk] = false
		}
		r.setPrefs(bools, map[string]string{PrefZidvDir: choice.Dir})
	}
	if choice.UseTemp || choice.Dir == "" {
		base := r.cfg.TempDir
		if base == "" {
			base = os.TempDir()
		}
		return filepath.Join(base, "zidv-"+uuid.NewString()), true
	}
	return choice.Dir, true
}

func (r *Reader) unwrap(format Format, path string, data []byte, st *restore) ([]byte, error) {
	switch {
	case format == FormatZidv:
		dir, ok := r.extractionDir(st.opts.Interactive)
		if !ok {
			return nil, bundle.NewError(bundle.Cancelled, "extract", st.label, nil)
		}
		doc, written, err := extractZidv(data, dir)
		if err != nil {
			return nil, bundle.NewError(bundle.ContainerUnreadable, "extract", st.label, err)
		}
		r.logger.WithFields(logrus.Fields{
			"action": "extract_zidv",
			"dir":    dir,
			"bytes":  written,
		}).Debug("zidv extracted")
		st.zidvDir = dir
		st.result.ExtractedTo = dir
		return doc, nil
	case format.IsLaunchDescriptor():
		payload, err := unwrapLaunch(format, data)
		if err != nil {
			return nil, bundle.NewError(bundle.ContainerUnreadable, "unwrap", st.label, err)
		}
		if payload.companion == "" {
			return payload.doc, nil
		}
		companion := companionPath(path, payload.companion)
		doc, err := os.ReadFile(companion)
		if err != nil {
			return nil, bundle.NewError(bundle.ContainerUnreadable, "unwrap", st.label, err)
		}
		st.dir = filepath.Dir(companion)
		return doc, nil
	case format == FormatIsl:
		return nil, bundle.NewError(bundle.ContainerUnreadable, "read", st.label,
			fmt.Errorf("%s files are run by the scripting engine", FormatIsl))
	default:
		return data, nil
	}
}

func (r *Reader) addHistory(path, label, text string, res *ReadResult) {
	if r.history == nil {
		return
	}
	entry := &bundle.HistoryEntry{
		ID:    uuid.NewString(),
		Label: label,
		Path:  path,
		Added: time.Now(),
	}
	if len(res.DataSources) == 1 {
		entry.Identifier = bundle.DataSourceIdentifier(res.DataSources[0])
		entry.Document = text
	}
	if err := r.history.Add(entry); err != nil {
		r.logger.WithField("action", "add_history").WithError(err).Warn("could not record history")
	}
}
