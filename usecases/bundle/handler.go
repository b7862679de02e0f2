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

	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/entities/bundle"
	enterrors "github.com/weaviate/idvbundles/entities/errors"
	"github.com/weaviate/idvbundles/usecases/catalog"
)

// errHandlerClosed is returned by jobs submitted after Close.
var errHandlerClosed = fmt.Errorf("bundle handler closed")

// Job is a pending or finished read.
type Job struct {
	ctx  context.Context
	src  Source
	opts ReadOptions
	done chan struct{}
	res  *ReadResult
	err  error
}

func newJob(ctx context.Context, src Source, opts ReadOptions) *Job {
	return &Job{ctx: ctx, src: src, opts: opts, done: make(chan struct{})}
}

func (j *Job) finish(res *ReadResult, err error) {
	j.res, j.err = res, err
	close(j.done)
}

// Done is closed once the read finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the read finished or ctx is done. Giving up waiting
// does not cancel the read; cancel the context passed to Open for that.
func (j *Job) Wait(ctx context.Context) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-j.done:
		return j.res, j.err
	}
}

type HandlerConfig struct {
	// LoadSynchronously runs reads on the caller's goroutine.
	LoadSynchronously bool
	QueueSize         int
	TempDir           string
}

// Handler is the entry point for saving and opening bundles. Background
// reads run one after the other on a single loader goroutine.
type Handler struct {
	logger  logrus.FieldLogger
	writer  *Writer
	reader  *Reader
	catalog *catalog.Store
	ui      Prompter
	cfg     HandlerConfig

	mu      sync.Mutex
	closed  bool
	queue   chan *Job
	stopped chan struct{}
}

func NewHandler(logger logrus.FieldLogger, writer *Writer, reader *Reader,
	store *catalog.Store, ui Prompter, cfg HandlerConfig,
) *Handler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	h := &Handler{
		logger:  logger,
		writer:  writer,
		reader:  reader,
		catalog: store,
		ui:      ui,
		cfg:     cfg,
	}
	if !cfg.LoadSynchronously {
		h.queue = make(chan *Job, cfg.QueueSize)
		h.stopped = make(chan struct{})
		enterrors.GoWrapper(h.loader, logger)
	}
	return h
}

func (h *Handler) loader() {
	defer close(h.stopped)
	for job := range h.queue {
		h.run(job)
	}
}

func (h *Handler) run(job *Job) {
	var res *ReadResult
	err := enterrors.Recovering(func() error {
		var err error
		res, err = h.reader.Read(job.ctx, job.src, job.opts)
		return err
	})
	job.finish(res, err)
}

// Save writes the current state to path. Failures other than a
// cancellation are shown to the user.
func (h *Handler) Save(ctx context.Context, path string, opts SaveOptions) error {
	err := h.writer.Write(ctx, path, opts)
	if err != nil && !bundle.IsCancelled(err) && h.ui != nil {
		h.ui.ShowError(fmt.Errorf("saving %s: %w", path, err))
	}
	return err
}

// Open starts reading src. The returned job is already finished when the
// handler loads synchronously.
func (h *Handler) Open(ctx context.Context, src Source, opts ReadOptions) *Job {
	job := newJob(ctx, src, opts)
	if h.cfg.LoadSynchronously {
		h.run(job)
		return job
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		job.finish(nil, errHandlerClosed)
		return job
	}
	select {
	case h.queue <- job:
	case <-ctx.Done():
		job.finish(nil, bundle.NewError(bundle.Cancelled, "open", src.Path, ctx.Err()))
	}
	return job
}

// SaveToCatalog saves the current state as a favorite or template named
// name under categories.
func (h *Handler) SaveToCatalog(ctx context.Context, kind catalog.Kind, categories []string,
	name string, opts SaveOptions,
) (catalog.Entry, error) {
	if h.catalog == nil {
		return catalog.Entry{}, fmt.Errorf("no catalog configured")
	}
	staging, err := os.MkdirTemp(h.cfg.TempDir, "catalog-")
	if err != nil {
		return catalog.Entry{}, bundle.NewError(bundle.WriteFailed, "stage", name, err)
	}
	defer os.RemoveAll(staging)

	suffix := bundle.SuffixXidv
	if opts.RawData {
		suffix = bundle.SuffixZidv
	}
	// Paths relative to a throwaway staging dir would not resolve later.
	opts.MakeDataRelative = false
	file := filepath.Join(staging, filepath.Base(name)+suffix)
	if err := h.Save(ctx, file, opts); err != nil {
		return catalog.Entry{}, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return catalog.Entry{}, bundle.NewError(bundle.WriteFailed, "stage", name, err)
	}

	entry, err := h.catalog.Add(kind, categories, filepath.Base(file), data)
	if err != nil {
		return catalog.Entry{}, bundle.NewError(bundle.WriteFailed, "add to catalog", name, err)
	}
	h.logger.WithFields(logrus.Fields{
		"action":   "save_to_catalog",
		"kind":     kind.String(),
		"category": catalog.CategoriesToString(categories),
		"url":      entry.URL,
	}).Info("bundle added to catalog")
	return entry, nil
}

// OpenFromCatalog reads the bundle behind entry like Open does.
func (h *Handler) OpenFromCatalog(ctx context.Context, entry catalog.Entry, opts ReadOptions) *Job {
	if h.catalog == nil {
		job := newJob(ctx, Source{Path: entry.URL}, opts)
		job.finish(nil, fmt.Errorf("no catalog configured"))
		return job
	}
	data, err := h.catalog.Read(entry)
	if err != nil {
		job := newJob(ctx, Source{Path: entry.URL}, opts)
		job.finish(&ReadResult{Path: entry.URL},
			bundle.NewError(bundle.ContainerUnreadable, "read", entry.URL, err))
		return job
	}
	if opts.Label == "" {
		opts.Label = entry.Name
	}
	return h.Open(ctx, Source{Path: entry.URL, Data: data}, opts)
}

// Close stops accepting reads and waits for queued ones to finish.
func (h *Handler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	if h.queue != nil {
		close(h.queue)
	}
	h.mu.Unlock()

	if h.stopped != nil {
		<-h.stopped
	}
}
