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

// Package catalog keeps the user's saved bundles: favorites, display
// templates and data source templates, grouped in nested categories.
package catalog

import (
	"fmt"
	"strings"
)

// Kind is the collection an entry belongs to.
type Kind int

const (
	Favorite Kind = iota
	DisplayTemplate
	DataSourceTemplate
)

// Kinds lists every kind in display order.
var Kinds = []Kind{Favorite, DisplayTemplate, DataSourceTemplate}

func (k Kind) String() string {
	switch k {
	case Favorite:
		return "favorite"
	case DisplayTemplate:
		return "displaytemplate"
	case DataSourceTemplate:
		return "datasource"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the names produced by String.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown bundle kind %q", s)
}

// CategorySeparator joins category segments for display.
const CategorySeparator = ">"

func CategoriesToString(categories []string) string {
	return strings.Join(categories, CategorySeparator)
}

// StringToCategories splits a display string back into segments. The
// empty string is the root category.
func StringToCategories(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, CategorySeparator)
}

// Entry is one saved bundle. Entries handed out by the store are copies.
type Entry struct {
	// URL is a path in the store's filesystem, or a URL from a manifest.
	URL        string
	Name       string
	Categories []string
	Kind       Kind
	// Writable is false for site and manifest entries and for files the
	// user may not change.
	Writable bool
	// Manifest names the manifest the entry was declared in.
	Manifest string
}

func (e Entry) clone() Entry {
	e.Categories = append([]string(nil), e.Categories...)
	return e
}

// CategoryString is the entry's categories joined for display.
func (e Entry) CategoryString() string {
	return CategoriesToString(e.Categories)
}
