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

// Package headless holds the live state of a session without displays:
// bundles restore into it and writes capture it.
package headless

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/entities/bundle"
)

// Session keeps restored objects in memory. Data sources initialize when
// every local path exists, displays when every referenced source is live.
type Session struct {
	logger logrus.FieldLogger

	sync.Mutex
	sources     []*bundle.DataSource
	displays    []*bundle.DisplayControl
	views       []*bundle.ViewManager
	windows     []*bundle.WindowLayout
	colorTables []*bundle.ColorTable
	script      []string
	misc        map[string]string
}

func NewSession(logger logrus.FieldLogger) *Session {
	return &Session{logger: logger, misc: map[string]string{}}
}

func isRemote(p string) bool {
	return strings.Contains(p, "://")
}

func (s *Session) InitDataSource(ctx context.Context, ds *bundle.DataSource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ds.Paths) == 0 {
		return fmt.Errorf("data source %s has no paths", ds.UnitName())
	}
	var errs error
	for _, p := range ds.Paths {
		if isRemote(p) {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (s *Session) InitDisplayControl(ctx context.Context, dc *bundle.DisplayControl) error {
	s.Lock()
	defer s.Unlock()
	for _, id := range dc.DataSourceIDs {
		if s.source(id) == nil {
			return fmt.Errorf("data source %s is not loaded", id)
		}
	}
	return nil
}

func (s *Session) source(id string) *bundle.DataSource {
	for _, ds := range s.sources {
		if ds.ID == id {
			return ds
		}
	}
	return nil
}

// AddDataSource rejects a second source with the same id.
func (s *Session) AddDataSource(ds *bundle.DataSource) bool {
	s.Lock()
	defer s.Unlock()
	if s.source(ds.ID) != nil {
		return false
	}
	s.sources = append(s.sources, ds)
	return true
}

func (s *Session) RemoveDataSource(ds *bundle.DataSource) error {
	s.Lock()
	defer s.Unlock()
	for i, have := range s.sources {
		if have == ds {
			s.sources = append(s.sources[:i], s.sources[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("data source %s is not loaded", ds.ID)
}

func (s *Session) AddDisplayControl(dc *bundle.DisplayControl) error {
	s.Lock()
	defer s.Unlock()
	s.displays = append(s.displays, dc)
	return nil
}

func (s *Session) RemoveDisplayControl(dc *bundle.DisplayControl) error {
	s.Lock()
	defer s.Unlock()
	for i, have := range s.displays {
		if have == dc {
			s.displays = append(s.displays[:i], s.displays[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("display %s is not shown", dc.ID)
}

func (s *Session) HasDisplayControl(id string) bool {
	s.Lock()
	defer s.Unlock()
	for _, dc := range s.displays {
		if dc.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) RemoveAll(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	s.logger.WithFields(logrus.Fields{
		"action":   "remove_all",
		"sources":  len(s.sources),
		"displays": len(s.displays),
	}).Debug("session cleared")
	s.sources, s.displays, s.views, s.windows = nil, nil, nil, nil
	return nil
}

func (s *Session) ViewManagers() []*bundle.ViewManager {
	s.Lock()
	defer s.Unlock()
	return append([]*bundle.ViewManager(nil), s.views...)
}

// RestoreWindows replaces the layout unless merge is set.
func (s *Session) RestoreWindows(ctx context.Context, windows []*bundle.WindowLayout,
	vms []*bundle.ViewManager, merge bool,
) error {
	s.Lock()
	defer s.Unlock()
	if !merge {
		s.windows, s.views = nil, nil
	}
	s.windows = append(s.windows, windows...)
	s.views = append(s.views, vms...)
	return nil
}

func (s *Session) CreateWindow(vm *bundle.ViewManager) error {
	s.Lock()
	defer s.Unlock()
	s.views = append(s.views, vm)
	s.windows = append(s.windows, &bundle.WindowLayout{
		ID:    vm.Descriptor.Name,
		Title: vm.Descriptor.Name,
		Views: []string{vm.Descriptor.Name},
	})
	return nil
}

func (s *Session) CloseViewManager(vm *bundle.ViewManager) error {
	s.Lock()
	defer s.Unlock()
	for i, have := range s.views {
		if have == vm {
			s.views = append(s.views[:i], s.views[i+1:]...)
			return nil
		}
	}
	return nil
}

// SkinOf is always empty: headless windows have no skin.
func (s *Session) SkinOf(*bundle.ViewManager) string { return "" }

func (s *Session) AddColorTable(ct *bundle.ColorTable) error {
	s.Lock()
	defer s.Unlock()
	s.colorTables = append(s.colorTables, ct)
	return nil
}

// AddScript appends to the library. Temporary scripts are kept as well
// since a headless session ends with the process.
func (s *Session) AddScript(text string, permanent bool) error {
	s.Lock()
	defer s.Unlock()
	s.script = append(s.script, text)
	return nil
}

func (s *Session) SetMisc(key, value string) {
	s.Lock()
	defer s.Unlock()
	s.misc[key] = value
}

func (s *Session) DataSources() []*bundle.DataSource {
	s.Lock()
	defer s.Unlock()
	return append([]*bundle.DataSource(nil), s.sources...)
}

func (s *Session) DisplayControls() []*bundle.DisplayControl {
	s.Lock()
	defer s.Unlock()
	return append([]*bundle.DisplayControl(nil), s.displays...)
}

func (s *Session) WindowLayouts() []*bundle.WindowLayout {
	s.Lock()
	defer s.Unlock()
	return append([]*bundle.WindowLayout(nil), s.windows...)
}

func (s *Session) ColorTables() []*bundle.ColorTable {
	s.Lock()
	defer s.Unlock()
	return append([]*bundle.ColorTable(nil), s.colorTables...)
}

func (s *Session) ScriptLibrary() string {
	s.Lock()
	defer s.Unlock()
	return strings.Join(s.script, "\n")
}

func (s *Session) MiscState() map[string]string {
	s.Lock()
	defer s.Unlock()
	out := make(map[string]string, len(s.misc))
	for k, v := range s.misc {
		out[k] = v
	}
	return out
}

// ExportLocalCopy copies the local files of ds into dir. Remote data
// cannot be fetched without a reader for its type.
func (s *Session) ExportLocalCopy(ctx context.Context, ds *bundle.DataSource, dir string) ([]string, error) {
	var written []string
	for _, p := range ds.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isRemote(p) {
			return nil, fmt.Errorf("no local copy of %s", p)
		}
		dst := filepath.Join(dir, filepath.Base(p))
		if err := copyFile(p, dst); err != nil {
			return nil, err
		}
		written = append(written, dst)
	}
	return written, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
