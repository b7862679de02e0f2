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
	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/entities/bundle"
)

// BatchUI answers every prompt without a user: nothing is removed, zidv
// data goes to a temp dir, scripts go to the temp library and macros are
// never filled in. Errors are logged.
type BatchUI struct {
	logger logrus.FieldLogger
}

func NewBatchUI(logger logrus.FieldLogger) *BatchUI {
	return &BatchUI{logger: logger}
}

func (b *BatchUI) PromptRemovalPreference(string, RemovalDecision) (RemovalDecision, bool) {
	return RemovalDecision{}, true
}

func (b *BatchUI) PromptMacroValues([]string) (map[string]string, bool) {
	return nil, false
}

func (b *BatchUI) PromptZipExtractionLocation(ExtractionChoice) (ExtractionChoice, bool) {
	return ExtractionChoice{UseTemp: true}, true
}

func (b *BatchUI) PromptScriptDisposition(string) (ScriptDisposition, string) {
	return ScriptAddTemp, ""
}

func (b *BatchUI) PromptChangeData([]*bundle.DataSource) (map[string][]string, bool) {
	return nil, true
}

func (b *BatchUI) SelectRelativeSources(candidates []*bundle.DataSource) ([]*bundle.DataSource, bool) {
	return candidates, true
}

func (b *BatchUI) SelectEmbeddedSources(candidates []*bundle.DataSource) ([]*bundle.DataSource, bool) {
	return candidates, true
}

func (b *BatchUI) SelectScriptExcerpt(text string) (string, bool) {
	return text, true
}

func (b *BatchUI) OkToContinue() bool { return true }

func (b *BatchUI) ShowError(err error) {
	b.logger.WithField("action", "batch_error").Error(err)
}

// ShowMessage lets BatchUI notify for the catalog.
func (b *BatchUI) ShowMessage(msg string) {
	b.logger.WithField("action", "batch_message").Info(msg)
}

// ReportExceptions lets BatchUI stand in as the failure reporter too.
func (b *BatchUI) ReportExceptions(label string, errs []error) {
	for _, err := range errs {
		b.logger.WithFields(logrus.Fields{
			"action": "init_units",
			"label":  label,
		}).Warn(err)
	}
}
