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

// Version is the producer version written into every new document.
const Version = "6.3"

// File suffixes of the supported containers.
const (
	SuffixXidv = ".xidv"
	SuffixZidv = ".zidv"
	SuffixJnlp = ".jnlp"
	SuffixSh   = ".sh"
	SuffixBat  = ".bat"
	SuffixIsl  = ".isl"
)

// Path macros written into data source paths at save time and substituted
// with concrete directories at restore time.
const (
	MacroBundlePath = "%idv.bundlepath%"
	MacroZidvPath   = "%idv.zidvpath%"
)

// Document is the in-memory model of a saved bundle. A nil list means the
// corresponding part was not saved, an empty list means it was saved empty.
type Document struct {
	Version         string
	DataSources     []*DataSource
	DisplayControls []*DisplayControl
	ViewManagers    []*ViewManager
	Windows         []*WindowLayout
	ScriptLibrary   *string
	MiscState       map[string]string
}

// NewDocument returns an empty document stamped with the current version.
func NewDocument() *Document {
	return &Document{Version: Version}
}

// IsLegacy reports whether the document carries displays but no view
// managers. Restoring such a document needs synthesized windows.
func (d *Document) IsLegacy() bool {
	return len(d.DisplayControls) > 0 && d.ViewManagers == nil
}

// EffectiveVersion returns the document version, defaulting to Version
// when the producer did not write one.
func (d *Document) EffectiveVersion() string {
	if d.Version == "" {
		return Version
	}
	return d.Version
}

// Script returns the captured script library or the empty string.
func (d *Document) Script() string {
	if d.ScriptLibrary == nil {
		return ""
	}
	return *d.ScriptLibrary
}

// ColorTable is a named color table that can be saved and opened on its own.
type ColorTable struct {
	Name     string
	Category string
	Colors   []string
}

// Shape identifies what a decoded document turned out to be.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeDocument
	ShapeDisplayControl
	ShapeDataSource
	ShapeColorTable
)

func (s Shape) String() string {
	switch s {
	case ShapeDocument:
		return "bundle"
	case ShapeDisplayControl:
		return "display_control"
	case ShapeDataSource:
		return "data_source"
	case ShapeColorTable:
		return "color_table"
	default:
		return "unknown"
	}
}

// Decoded is the result of decoding document text. Exactly one of the
// pointer fields is set, matching Shape. For ShapeUnknown, Root holds the
// name of the unrecognized root element.
type Decoded struct {
	Shape          Shape
	Document       *Document
	DisplayControl *DisplayControl
	DataSource     *DataSource
	ColorTable     *ColorTable
	Root           string
}
