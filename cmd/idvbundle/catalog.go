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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/weaviate/idvbundles/usecases/catalog"
)

type catalogCommand struct {
	List   catalogListCommand   `command:"list" description:"List saved bundles"`
	Add    catalogAddCommand    `command:"add" description:"Store a bundle file in the catalog"`
	Mkdir  catalogMkdirCommand  `command:"mkdir" description:"Create a category"`
	Rmdir  catalogRmdirCommand  `command:"rmdir" description:"Delete a category and everything in it"`
	Move   catalogMoveCommand   `command:"mv" description:"Move a bundle to another category"`
	Copy   catalogCopyCommand   `command:"cp" description:"Copy a bundle to another category"`
	Rename catalogRenameCommand `command:"rename" description:"Rename a bundle"`
	Remove catalogRemoveCommand `command:"rm" description:"Delete a bundle"`
	Show   catalogShowCommand   `command:"show" description:"Decode a saved bundle"`
}

// KindOption selects the collection a catalog command works on.
type KindOption struct {
	Kind string `long:"kind" short:"k" default:"favorite" description:"favorite, displaytemplate or datasource"`
}

func (o KindOption) kind() (catalog.Kind, error) {
	return catalog.ParseKind(o.Kind)
}

type catalogListCommand struct {
	All bool `long:"all" short:"a" description:"list every kind"`
	KindOption
}

func (c *catalogListCommand) Execute([]string) error {
	kinds := catalog.Kinds
	if !c.All {
		kind, err := c.kind()
		if err != nil {
			return err
		}
		kinds = []catalog.Kind{kind}
	}
	return withApp(func(ctx context.Context, a *app) error {
		for _, kind := range kinds {
			entries, err := a.catalog.List(kind)
			if err != nil {
				return err
			}
			for _, e := range entries {
				flag := " "
				if !e.Writable {
					flag = "r"
				}
				fmt.Printf("%-16s %s %-30s %-24s %s\n", kind, flag, e.CategoryString(), e.Name, e.URL)
			}
		}
		return nil
	})
}

type catalogAddCommand struct {
	KindOption
	Category string `long:"category" short:"c" description:"categories joined by >"`
	Name     string `long:"name" description:"defaults to the file name"`
	Args     struct {
		File string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *catalogAddCommand) Execute([]string) error {
	kind, err := c.kind()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.Args.File)
	if err != nil {
		return err
	}
	name := c.Name
	if name == "" {
		name = filepath.Base(c.Args.File)
	}
	return withApp(func(ctx context.Context, a *app) error {
		entry, err := a.catalog.Add(kind, catalog.StringToCategories(c.Category), name, data)
		if err != nil {
			return err
		}
		fmt.Println(entry.URL)
		return nil
	})
}

type catalogMkdirCommand struct {
	KindOption
	Args struct {
		Category string `positional-arg-name:"CATEGORY" required:"yes"`
	} `positional-args:"yes"`
}

func (c *catalogMkdirCommand) Execute([]string) error {
	kind, err := c.kind()
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		_, err := a.catalog.AddCategory(kind, catalog.StringToCategories(c.Args.Category))
		return err
	})
}

type catalogRmdirCommand struct {
	KindOption
	Args struct {
		Category string `positional-arg-name:"CATEGORY" required:"yes"`
	} `positional-args:"yes"`
}

func (c *catalogRmdirCommand) Execute([]string) error {
	kind, err := c.kind()
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		return a.catalog.DeleteCategory(kind, catalog.StringToCategories(c.Args.Category))
	})
}

// findEntry looks url up in every kind.
func findEntry(store *catalog.Store, url string) (catalog.Entry, error) {
	want := url
	if !strings.Contains(url, "://") {
		want = absolute(url)
	}
	for _, kind := range catalog.Kinds {
		entries, err := store.List(kind)
		if err != nil {
			return catalog.Entry{}, err
		}
		for _, e := range entries {
			if e.URL == want {
				return e, nil
			}
		}
	}
	return catalog.Entry{}, errors.Errorf("no saved bundle at %s", url)
}

type catalogMoveCommand struct {
	Args struct {
		URL      string `positional-arg-name:"PATH" required:"yes"`
		Category string `positional-arg-name:"CATEGORY" required:"yes"`
	} `positional-args:"yes"`
}

func (c *catalogMoveCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app) error {
		entry, err := findEntry(a.catalog, c.Args.URL)
		if err != nil {
			return err
		}
		_, err = a.catalog.Move(entry, catalog.StringToCategories(c.Args.Category))
		return err
	})
}

type catalogCopyCommand struct {
	Args struct {
		URL      string `positional-arg-name:"PATH" required:"yes"`
		Category string `positional-arg-name:"CATEGORY" required:"yes"`
	} `positional-args:"yes"`
}

func (c *catalogCopyCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app) error {
		entry, err := findEntry(a.catalog, c.Args.URL)
		if err != nil {
			return err
		}
		_, err = a.catalog.Copy(entry, catalog.StringToCategories(c.Args.Category))
		return err
	})
}

type catalogRenameCommand struct {
	Args struct {
		URL  string `positional-arg-name:"PATH" required:"yes"`
		Name string `positional-arg-name:"NAME" required:"yes"`
	} `positional-args:"yes"`
}

func (c *catalogRenameCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app) error {
		entry, err := findEntry(a.catalog, c.Args.URL)
		if err != nil {
			return err
		}
		_, err = a.catalog.Rename(entry, c.Args.Name)
		return err
	})
}

type catalogRemoveCommand struct {
	Args struct {
		URL string `positional-arg-name:"PATH" required:"yes"`
	} `positional-args:"yes"`
}

func (c *catalogRemoveCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app) error {
		entry, err := findEntry(a.catalog, c.Args.URL)
		if err != nil {
			return err
		}
		return a.catalog.Delete(entry)
	})
}

type catalogShowCommand struct {
	Args struct {
		URL string `positional-arg-name:"PATH" required:"yes"`
	} `positional-args:"yes"`
}

func (c *catalogShowCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app) error {
		entry, err := findEntry(a.catalog, c.Args.URL)
		if err != nil {
			return err
		}
		decoded, err := a.catalog.Prototype(entry)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n  kind:     %s\n  category: %s\n  shape:    %s\n",
			entry.Name, entry.Kind, entry.CategoryString(), decoded.Shape)
		if doc := decoded.Document; doc != nil {
			fmt.Printf("  data sources: %d\n  displays: %d\n", len(doc.DataSources), len(doc.DisplayControls))
		}
		return nil
	})
}
