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
	"os"
	"strings"
)

// DataSource is the persisted form of one loaded data source.
type DataSource struct {
	// ID is the identifying name matched against file mappings.
	ID       string
	Name     string
	TypeName string
	Paths    []string
	// TempPaths override Paths in the saved document. They carry macro
	// tokens and are only set while a write is in progress.
	TempPaths []string
	// Editable asks the restoring side to offer a change-data step.
	Editable bool
	// Exportable sources can write a local copy of their data, which is
	// how remote data ends up inside a zidv.
	Exportable        bool
	TimeSelection     []int
	EnsembleSelection []int
	Properties        map[string]string

	// TempEditable marks the source editable for the current write only.
	TempEditable bool

	inError bool
	initErr error
}

// SavedEditable is the editable flag as it is written to a document.
func (ds *DataSource) SavedEditable() bool {
	return ds.Editable || ds.TempEditable
}

// ResetTempState drops the write-time overrides.
func (ds *DataSource) ResetTempState() {
	ds.TempPaths = nil
	ds.TempEditable = false
}

// ExistingFiles returns the paths that exist as regular files. ok is false
// when the source has no paths or any of them is missing.
func (ds *DataSource) ExistingFiles() (files []string, ok bool) {
	if len(ds.Paths) == 0 {
		return nil, false
	}
	for _, p := range ds.Paths {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return nil, false
		}
		files = append(files, p)
	}
	return files, true
}

// HasMacroPaths reports whether any temp path still carries a path macro.
func (ds *DataSource) HasMacroPaths() bool {
	for _, p := range ds.TempPaths {
		if strings.Contains(p, MacroBundlePath) || strings.Contains(p, MacroZidvPath) {
			return true
		}
	}
	return false
}

// UnitName names the source in logs and failure reports.
func (ds *DataSource) UnitName() string {
	if ds.Name != "" {
		return ds.Name
	}
	return ds.ID
}

// MarkInError flags the source as failed during initialization.
func (ds *DataSource) MarkInError(err error) {
	ds.inError = true
	ds.initErr = err
}

// InError reports whether initialization failed.
func (ds *DataSource) InError() bool { return ds.inError }

// InitError is the error recorded by MarkInError.
func (ds *DataSource) InitError() error { return ds.initErr }
