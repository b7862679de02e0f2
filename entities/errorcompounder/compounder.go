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

package errorcompounder

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCompounder collects many errors, optionally grouped, and renders
// them as one. Groups keep the order in which they were first used.
type ErrorCompounder interface {
	Add(err error)
	Addf(format string, a ...any)
	AddWrapf(err error, format string, a ...any)
	AddGroups(err error, groups ...string)

	Empty() bool
	Len() int

	First() error
	Errors() []error
	ToError() error
}

func New() *errorCompounder {
	return &errorCompounder{top: &entry{}}
}

type errorCompounder struct {
	top *entry
}

func (ec *errorCompounder) Add(err error) {
	if err != nil {
		ec.top.errors = append(ec.top.errors, err)
	}
}

func (ec *errorCompounder) Addf(format string, a ...any) {
	ec.Add(fmt.Errorf(format, a...))
}

func (ec *errorCompounder) AddWrapf(err error, format string, a ...any) {
	if err != nil {
		ec.Add(errors.Wrapf(err, format, a...))
	}
}

func (ec *errorCompounder) AddGroups(err error, groups ...string) {
	if err == nil {
		return
	}
	target := ec.top
	for _, name := range groups {
		target = target.group(name)
	}
	target.errors = append(target.errors, err)
}

func (ec *errorCompounder) Len() int     { return ec.top.len() }
func (ec *errorCompounder) Empty() bool  { return ec.top.len() == 0 }
func (ec *errorCompounder) First() error { return ec.top.first() }

// Errors flattens every collected error, depth first.
func (ec *errorCompounder) Errors() []error {
	var out []error
	var walk func(*entry)
	walk = func(e *entry) {
		out = append(out, e.errors...)
		for _, name := range e.order {
			walk(e.groups[name])
		}
	}
	walk(ec.top)
	return out
}

// ToError renders `err, err, "group": {err, err}` or nil when empty.
func (ec *errorCompounder) ToError() error {
	if ec.Empty() {
		return nil
	}
	var b strings.Builder
	ec.top.render(&b)
	return errors.New(b.String())
}

type entry struct {
	errors []error
	groups map[string]*entry
	order  []string
}

func (e *entry) group(name string) *entry {
	if e.groups == nil {
		e.groups = map[string]*entry{}
	}
	g, ok := e.groups[name]
	if !ok {
		g = &entry{}
		e.groups[name] = g
		e.order = append(e.order, name)
	}
	return g
}

func (e *entry) render(b *strings.Builder) {
	sep := false
	for _, err := range e.errors {
		if sep {
			b.WriteString(", ")
		}
		b.WriteString(err.Error())
		sep = true
	}
	for _, name := range e.order {
		g := e.groups[name]
		if g.len() == 0 {
			continue
		}
		if sep {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%q: {", name)
		g.render(b)
		b.WriteString("}")
		sep = true
	}
}

func (e *entry) first() error {
	if len(e.errors) > 0 {
		return e.errors[0]
	}
	for _, name := range e.order {
		if err := e.groups[name].first(); err != nil {
			return err
		}
	}
	return nil
}

func (e *entry) len() int {
	n := len(e.errors)
	for _, g := range e.groups {
		n += g.len()
	}
	return n
}
