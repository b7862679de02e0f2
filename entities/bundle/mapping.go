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
	"strings"
	"sync"
	"time"
)

// FileMapping replaces the files of the data source whose ID matches.
type FileMapping struct {
	ID    string
	Files []string
}

// FileMappings is the queue of mappings a caller sets up before a restore.
// Each entry is consumed by at most one data source.
type FileMappings struct {
	mu      sync.Mutex
	entries []FileMapping
}

func NewFileMappings(entries ...FileMapping) *FileMappings {
	m := &FileMappings{}
	for _, e := range entries {
		m.Add(e.ID, e.Files...)
	}
	return m
}

// Add queues a mapping.
func (m *FileMappings) Add(id string, files ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, FileMapping{ID: id, Files: append([]string(nil), files...)})
}

// Take removes and returns the first mapping for id.
func (m *FileMappings) Take(id string) ([]string, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return e.Files, true
		}
	}
	return nil, false
}

// Len is the number of unconsumed mappings.
func (m *FileMappings) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Remaining returns the IDs of unconsumed mappings.
func (m *FileMappings) Remaining() []string {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.entries))
	for i, e := range m.entries {
		ids[i] = e.ID
	}
	return ids
}

// Clear drops every queued mapping.
func (m *FileMappings) Clear() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}

// HistoryEntry records an opened bundle so it can be opened again.
type HistoryEntry struct {
	ID    string    `msgpack:"id"`
	Label string    `msgpack:"label"`
	Path  string    `msgpack:"path,omitempty"`
	Added time.Time `msgpack:"added"`
	// Identifier and Document are set when the bundle produced exactly one
	// data source: redoing the entry replays the document text.
	Identifier string `msgpack:"identifier,omitempty"`
	Document   string `msgpack:"document,omitempty"`
}

// DataSourceIdentifier builds the composite identifier of a history entry.
func DataSourceIdentifier(ds *DataSource) string {
	return strings.Join([]string{ds.TypeName, ds.ID}, ":")
}
