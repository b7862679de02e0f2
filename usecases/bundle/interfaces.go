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

	"github.com/weaviate/idvbundles/entities/bundle"
)

// Codec converts documents to text and back.
type Codec interface {
	Encode(v any, pretty bool) ([]byte, error)
	Decode(data []byte) (bundle.Decoded, error)
}

// Sourcer exposes the live application state a write captures.
type Sourcer interface {
	DataSources() []*bundle.DataSource
	DisplayControls() []*bundle.DisplayControl
	ViewManagers() []*bundle.ViewManager
	WindowLayouts() []*bundle.WindowLayout
	ScriptLibrary() string
	MiscState() map[string]string
	// ExportLocalCopy writes the data behind ds into dir and returns the
	// files it wrote.
	ExportLocalCopy(ctx context.Context, ds *bundle.DataSource, dir string) ([]string, error)
}

// Target receives the objects a read reconstructs.
type Target interface {
	InitDataSource(ctx context.Context, ds *bundle.DataSource) error
	// InitDisplayControl also places the display in its view's legend.
	InitDisplayControl(ctx context.Context, dc *bundle.DisplayControl) error

	AddDataSource(ds *bundle.DataSource) bool
	RemoveDataSource(ds *bundle.DataSource) error
	AddDisplayControl(dc *bundle.DisplayControl) error
	RemoveDisplayControl(dc *bundle.DisplayControl) error
	HasDisplayControl(id string) bool
	RemoveAll(ctx context.Context) error

	ViewManagers() []*bundle.ViewManager
	RestoreWindows(ctx context.Context, windows []*bundle.WindowLayout, vms []*bundle.ViewManager, merge bool) error
	CreateWindow(vm *bundle.ViewManager) error
	CloseViewManager(vm *bundle.ViewManager) error
	// SkinOf returns the skin of the window holding vm, empty when the
	// window has none.
	SkinOf(vm *bundle.ViewManager) string

	AddColorTable(ct *bundle.ColorTable) error
	AddScript(text string, permanent bool) error
}

// RemovalDecision is the answer to "what to do with the current state"
// before a bundle is opened.
type RemovalDecision struct {
	Remove     bool
	Merge      bool
	ChangeData bool
	DontAsk    bool
}

// ExtractionChoice is where the data files of a zidv are extracted.
type ExtractionChoice struct {
	UseTemp bool
	Dir     string
	DontAsk bool
}

// ScriptDisposition is what to do with a script library found in a bundle.
type ScriptDisposition int

const (
	ScriptDiscard ScriptDisposition = iota
	ScriptAddPermanent
	ScriptAddTemp
	ScriptAddExcerpt
)

// ScriptScope selects how much of the script library a write captures.
type ScriptScope int

const (
	ScriptNone ScriptScope = iota
	ScriptAll
	ScriptSelected
)

// Prompter is every user interaction a read or write can block on. ok is
// false when the user cancelled the dialog.
type Prompter interface {
	PromptRemovalPreference(name string, current RemovalDecision) (decision RemovalDecision, ok bool)
	PromptMacroValues(tokens []string) (values map[string]string, ok bool)
	PromptZipExtractionLocation(current ExtractionChoice) (choice ExtractionChoice, ok bool)
	PromptScriptDisposition(text string) (disposition ScriptDisposition, excerpt string)
	// PromptChangeData returns replacement files keyed by data source id.
	PromptChangeData(sources []*bundle.DataSource) (files map[string][]string, ok bool)

	SelectRelativeSources(candidates []*bundle.DataSource) (selected []*bundle.DataSource, ok bool)
	SelectEmbeddedSources(candidates []*bundle.DataSource) (selected []*bundle.DataSource, ok bool)
	SelectScriptExcerpt(text string) (excerpt string, ok bool)

	// OkToContinue is polled between restore phases.
	OkToContinue() bool
	ShowError(err error)
}

// ExceptionReporter shows aggregated per-unit failures once.
type ExceptionReporter interface {
	ReportExceptions(label string, errs []error)
}

type History interface {
	Add(entry *bundle.HistoryEntry) error
}

// Preferences is the persistent key-value store for dialog answers.
type Preferences interface {
	Bool(key string, def bool) bool
	SetBool(key string, v bool) error
	String(key, def string) string
	SetString(key, v string) error
}

// IslWriter writes the scripting-language form of a document.
type IslWriter interface {
	WriteIsl(path string, document []byte) error
}

// Preference keys read and written by the reader.
const (
	PrefOpenAsk        = "idv.open.ask"
	PrefOpenRemove     = "idv.open.remove"
	PrefOpenMerge      = "idv.open.merge"
	PrefOpenChangeData = "idv.open.changedata"
	PrefZidvAsk        = "idv.zidv.ask"
	PrefZidvUseTemp    = "idv.zidv.usetmp"
	PrefZidvDir        = "idv.zidv.dir"
)
