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
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/entities/bundle"
	"github.com/weaviate/idvbundles/usecases/monitoring"
)

// SaveOptions selects what a write captures.
type SaveOptions struct {
	Views       bool
	Displays    bool
	DataSources bool
	Script      ScriptScope
	// RawData embeds the data files in a zidv. A target path with another
	// suffix is renamed to .zidv.
	RawData bool
	// MakeDataRelative stores selected file paths relative to the bundle.
	MakeDataRelative bool
	// MakeDataEditable offers the change-data step when the bundle is
	// opened again.
	MakeDataEditable bool
	// LaunchReference writes the document next to a launch descriptor
	// instead of embedding it.
	LaunchReference bool
	Title           string
}

// DefaultSaveOptions saves views, displays and data sources but no script.
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{Views: true, Displays: true, DataSources: true, Script: ScriptNone}
}

// Writer captures the live state into a document and writes it in the
// container implied by the target path.
type Writer struct {
	logger      logrus.FieldLogger
	sourcer     Sourcer
	codec       Codec
	ui          Prompter
	isl         IslWriter
	metrics     *monitoring.BundleMetrics
	version     string
	compression int
	tempDir     string
}

type WriterConfig struct {
	Version     string
	Compression int
	TempDir     string
}

func NewWriter(logger logrus.FieldLogger, sourcer Sourcer, codec Codec, ui Prompter,
	isl IslWriter, metrics *monitoring.BundleMetrics, cfg WriterConfig,
) *Writer {
	return &Writer{
		logger:      logger,
		sourcer:     sourcer,
		codec:       codec,
		ui:          ui,
		isl:         isl,
		metrics:     metrics,
		version:     cfg.Version,
		compression: cfg.Compression,
		tempDir:     cfg.TempDir,
	}
}

// Write saves the current state to path. Partially written output is left
// in place when the write fails.
func (w *Writer) Write(ctx context.Context, path string, opts SaveOptions) (err error) {
	format := FormatOf(path)
	if format == "" {
		format = FormatXidv
	}
	if opts.RawData && format != FormatZidv && !format.IsLaunchDescriptor() && format != FormatIsl {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + bundle.SuffixZidv
		format = FormatZidv
	}
	rawData := format == FormatZidv

	logger := w.logger.WithFields(logrus.Fields{"action": "write_bundle", "path": path, "format": format})
	defer func() {
		switch {
		case err == nil:
			w.metrics.Written(string(format), monitoring.StatusSuccess)
			logger.Info("bundle written")
		case bundle.IsCancelled(err):
			w.metrics.Written(string(format), monitoring.StatusCancelled)
			logger.Debug("bundle write cancelled")
		default:
			w.metrics.Written(string(format), monitoring.StatusFailed)
			logger.WithError(err).Error("bundle write failed")
		}
	}()

	var sources []*bundle.DataSource
	if opts.DataSources {
		sources = w.sourcer.DataSources()
	}
	// Temp paths must not leak into later writes, whatever happens here.
	defer func() {
		for _, ds := range sources {
			ds.ResetTempState()
		}
	}()

	if opts.DataSources && opts.MakeDataEditable {
		for _, ds := range sources {
			ds.TempEditable = true
		}
	}
	if opts.DataSources && opts.MakeDataRelative && !rawData {
		if !w.makeRelative(sources) {
			return bundle.NewError(bundle.Cancelled, "write", path, nil)
		}
	}

	var (
		embedded []zidvEntry
		staging  string
	)
	if rawData && opts.DataSources {
		if staging, err = os.MkdirTemp(w.tempDir, "zidv-staging-"); err != nil {
			return bundle.NewError(bundle.WriteFailed, "stage", path, err)
		}
		defer func() {
			if rerr := os.RemoveAll(staging); rerr != nil {
				err = multierror.Append(err, fmt.Errorf("remove staging dir: %w", rerr)).ErrorOrNil()
			}
		}()
		embedded, err = w.stageRawData(ctx, sources, staging, path)
		if err != nil {
			return err
		}
	}

	doc, err := w.document(sources, opts, path)
	if err != nil {
		return err
	}

	text, err := w.codec.Encode(doc, !format.IsLaunchDescriptor())
	if err != nil {
		return bundle.NewError(bundle.WriteFailed, "encode", path, err)
	}

	if err := ctx.Err(); err != nil {
		return bundle.NewError(bundle.Cancelled, "write", path, err)
	}
	if err := w.output(format, path, text, embedded, opts); err != nil {
		return bundle.NewError(bundle.WriteFailed, "write", path, err)
	}
	return nil
}

// makeRelative rewrites the selected sources with existing files to
// %idv.bundlepath% form. It returns false when the user cancelled.
func (w *Writer) makeRelative(sources []*bundle.DataSource) bool {
	var candidates []*bundle.DataSource
	for _, ds := range sources {
		if _, ok := ds.ExistingFiles(); ok {
			candidates = append(candidates, ds)
		}
	}
	if len(candidates) == 0 {
		return true
	}
	selected := candidates
	if w.ui != nil {
		var ok bool
		if selected, ok = w.ui.SelectRelativeSources(candidates); !ok {
			return false
		}
	}
	for _, ds := range selected {
		if files, ok := ds.ExistingFiles(); ok {
			ds.TempPaths = macroPaths(bundle.MacroBundlePath, files)
		}
	}
	return true
}

// stageRawData picks the sources whose data goes into the zidv. Local files
// are referenced where they are; other exportable sources write a copy
// into staging. It returns the files to embed. Distinct files sharing a
// base name get distinct entry names; the same file is embedded once.
func (w *Writer) stageRawData(ctx context.Context, sources []*bundle.DataSource, staging, path string,
) ([]zidvEntry, error) {
	var candidates []*bundle.DataSource
	for _, ds := range sources {
		if _, ok := ds.ExistingFiles(); ok || ds.Exportable {
			candidates = append(candidates, ds)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	selected := candidates
	if w.ui != nil {
		var ok bool
		if selected, ok = w.ui.SelectEmbeddedSources(candidates); !ok {
			return nil, bundle.NewError(bundle.Cancelled, "stage", path, nil)
		}
	}

	var (
		embedded []zidvEntry
		names    = entryNames{}
		byFile   = map[string]string{}
	)
	names.reserve(documentEntry(path))
	for i, ds := range selected {
		if err := ctx.Err(); err != nil {
			return nil, bundle.NewError(bundle.Cancelled, "stage", path, err)
		}
		files, ok := ds.ExistingFiles()
		if !ok {
			// exports of different sources may share file names
			dir := filepath.Join(staging, strconv.Itoa(i))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, bundle.NewError(bundle.WriteFailed, "stage", path, err)
			}
			var err error
			files, err = w.sourcer.ExportLocalCopy(ctx, ds, dir)
			if err != nil {
				return nil, bundle.NewError(bundle.WriteFailed, "export", path,
					fmt.Errorf("data source %s: %w", ds.UnitName(), err))
			}
		}
		entries := make([]string, len(files))
		for j, f := range files {
			key := filepath.Clean(f)
			name, ok := byFile[key]
			if !ok {
				name = names.unique(filepath.Base(f))
				byFile[key] = name
				embedded = append(embedded, zidvEntry{Path: f, Name: name})
			}
			entries[j] = name
		}
		ds.TempPaths = macroPaths(bundle.MacroZidvPath, entries)
	}
	return embedded, nil
}

// entryNames hands out flat zip entry names. Names compare without case
// so extraction on a case-insensitive filesystem keeps them apart.
type entryNames map[string]bool

func (n entryNames) reserve(name string) {
	n[strings.ToLower(name)] = true
}

// unique returns base, or base with a numeric suffix before the extension
// when base is taken.
func (n entryNames) unique(base string) string {
	name := base
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; n[strings.ToLower(name)]; i++ {
		name = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	n.reserve(name)
	return name
}

func macroPaths(macro string, files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = macro + "/" + filepath.Base(f)
	}
	return out
}

func (w *Writer) document(sources []*bundle.DataSource, opts SaveOptions, path string,
) (*bundle.Document, error) {
	doc := bundle.NewDocument()
	if w.version != "" {
		doc.Version = w.version
	}
	if opts.DataSources {
		doc.DataSources = append([]*bundle.DataSource{}, sources...)
	}
	if opts.Displays {
		doc.DisplayControls = append([]*bundle.DisplayControl{}, w.sourcer.DisplayControls()...)
	}
	if opts.Views {
		doc.ViewManagers = append([]*bundle.ViewManager{}, w.sourcer.ViewManagers()...)
		doc.Windows = w.sourcer.WindowLayouts()
	}

	switch opts.Script {
	case ScriptAll:
		script := w.sourcer.ScriptLibrary()
		doc.ScriptLibrary = &script
	case ScriptSelected:
		script := w.sourcer.ScriptLibrary()
		if w.ui != nil {
			excerpt, ok := w.ui.SelectScriptExcerpt(script)
			if !ok {
				return nil, bundle.NewError(bundle.Cancelled, "write", path, nil)
			}
			script = excerpt
		}
		doc.ScriptLibrary = &script
	}

	if misc := w.sourcer.MiscState(); len(misc) > 0 {
		doc.MiscState = misc
	}
	return doc, nil
}

func (w *Writer) output(format Format, path string, text []byte, embedded []zidvEntry, opts SaveOptions) error {
	switch {
	case format == FormatZidv:
		return w.writeZidv(path, text, embedded)
	case format.IsLaunchDescriptor():
		companion := ""
		if opts.LaunchReference {
			companionPath := strings.TrimSuffix(path, filepath.Ext(path)) + bundle.SuffixXidv
			if err := os.WriteFile(companionPath, text, 0o644); err != nil {
				return err
			}
			companion = filepath.Base(companionPath)
		}
		title := opts.Title
		if title == "" {
			title = filepath.Base(path)
		}
		wrapped, err := wrapLaunch(format, title, text, companion)
		if err != nil {
			return err
		}
		mode := os.FileMode(0o644)
		if format == FormatSh {
			mode = 0o755
		}
		return os.WriteFile(path, wrapped, mode)
	case format == FormatIsl:
		if w.isl == nil {
			return fmt.Errorf("no isl writer configured")
		}
		return w.isl.WriteIsl(path, text)
	default:
		return os.WriteFile(path, text, 0o644)
	}
}

func (w *Writer) writeZidv(path string, text []byte, embedded []zidvEntry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	z := newZidv(f, w.compression)
	if err := z.WriteDocument(documentEntry(path), text); err != nil {
		return err
	}
	var written int64
	for _, e := range embedded {
		n, err := z.WriteRegular(e.Path, e.Name)
		if err != nil {
			return err
		}
		written += n
	}
	w.logger.WithFields(logrus.Fields{
		"action": "write_zidv",
		"path":   path,
		"files":  len(embedded),
		"bytes":  written,
	}).Debug("data files embedded")
	return z.Close()
}
