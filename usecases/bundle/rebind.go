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

	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/entities/bundle"
)

// RebindRequest carries the concrete values of the path macros and the
// caller's explicit file mappings.
type RebindRequest struct {
	// BundleDir replaces %idv.bundlepath%, the directory of the document.
	BundleDir string
	// ZidvDir replaces %idv.zidvpath%, the zidv extraction directory.
	ZidvDir  string
	Mappings *bundle.FileMappings
	// AllowInteractiveChange offers the change-data step for every source,
	// not only for those saved editable.
	AllowInteractiveChange bool
	// Interactive is false in batch mode, where nothing is offered.
	Interactive bool
}

// PathRebinder points restored data sources at their files.
type PathRebinder struct {
	logger logrus.FieldLogger
	ui     Prompter
	exists func(string) bool
}

func NewPathRebinder(logger logrus.FieldLogger, ui Prompter) *PathRebinder {
	return &PathRebinder{logger: logger, ui: ui, exists: fileExists}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Rebind rewrites the paths of sources. It returns false when the user
// cancelled the change-data dialog, which aborts the restore.
func (rb *PathRebinder) Rebind(sources []*bundle.DataSource, req RebindRequest) bool {
	candidates := []macroValue{
		{macro: bundle.MacroBundlePath, value: req.BundleDir},
		{macro: bundle.MacroZidvPath, value: req.ZidvDir},
	}

	var editable []*bundle.DataSource
	for _, ds := range sources {
		if files, ok := req.Mappings.Take(ds.ID); ok {
			rb.logger.WithFields(logrus.Fields{
				"action":      "rebind_mapping",
				"data_source": ds.ID,
				"files":       files,
			}).Debug("replacing files from mapping")
			ds.Paths = files
			ds.TempPaths = nil
			continue
		}

		if len(ds.TempPaths) > 0 {
			paths := make([]string, len(ds.TempPaths))
			for i, p := range ds.TempPaths {
				paths[i] = rebindPath(p, candidates, rb.exists)
			}
			rb.logger.WithFields(logrus.Fields{
				"action":      "rebind_macros",
				"data_source": ds.ID,
				"paths":       paths,
			}).Debug("resolved path macros")
			ds.Paths = paths
			ds.TempPaths = nil
		}

		if (ds.Editable || req.AllowInteractiveChange) && len(ds.Paths) > 0 {
			editable = append(editable, ds)
		}
	}

	if len(editable) == 0 || !req.Interactive || rb.ui == nil {
		return true
	}
	changes, ok := rb.ui.PromptChangeData(editable)
	if !ok {
		return false
	}
	for _, ds := range editable {
		if files, ok := changes[ds.ID]; ok && len(files) > 0 {
			ds.Paths = files
		}
	}
	return true
}
