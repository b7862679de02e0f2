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
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/adapters/codec"
	"github.com/weaviate/idvbundles/entities/bundle"
	usecase "github.com/weaviate/idvbundles/usecases/bundle"
)

type inspectCommand struct {
	Args struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes"`
}

func (c *inspectCommand) Execute([]string) error {
	var failed int
	for _, path := range c.Args.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		s, err := usecase.Inspect(path, data, codec.XML{})
		if s != nil {
			printSummary(s)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be inspected", failed, len(c.Args.Files))
	}
	return nil
}

func printSummary(s *usecase.Summary) {
	fmt.Printf("%s\n", s.Path)
	fmt.Printf("  format:   %s\n", s.Format)
	fmt.Printf("  shape:    %s (root %q)\n", s.Shape, s.Root)
	if s.Version != "" {
		fmt.Printf("  version:  %s\n", s.Version)
	}
	if s.Companion != "" {
		fmt.Printf("  document: %s\n", s.Companion)
	}
	printList("data sources", s.DataSources)
	printList("displays", s.DisplayControls)
	printList("views", s.ViewManagers)
	if s.Windows > 0 {
		fmt.Printf("  windows:  %d\n", s.Windows)
	}
	if s.HasScript {
		fmt.Printf("  script library included\n")
	}
	printList("embedded", s.EmbeddedFiles)
	printList("macros", s.Macros)
}

func printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("  %s (%d): %s\n", label, len(items), strings.Join(items, ", "))
}

type openCommand struct {
	Label   string            `long:"label" description:"name recorded in the history"`
	Macros  map[string]string `long:"macro" description:"macro value as name:value, may be repeated"`
	Mapping []string          `long:"map" description:"replace the files of a data source as id=file[,file], may be repeated"`
	Save    string            `long:"save" description:"write the restored state to this path"`
	Script  bool              `long:"script" description:"include the script library when saving"`
	Args    struct {
		File string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *openCommand) Execute([]string) error {
	mappings, err := parseMappings(c.Mapping)
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		started := time.Now()
		res, err := a.handler.Open(ctx, usecase.Source{Path: c.Args.File}, usecase.ReadOptions{
			Label:    c.Label,
			Macros:   c.Macros,
			Mappings: mappings,
		}).Wait(ctx)
		if err != nil {
			return err
		}
		a.logger.WithFields(logrus.Fields{
			"action":   "open_bundle",
			"path":     res.Path,
			"shape":    res.Shape.String(),
			"took":     time.Since(started),
			"failures": len(res.Failures),
		}).Info("bundle opened")

		fmt.Printf("%s: %d data sources, %d displays, %d views restored\n", res.Path,
			len(a.session.DataSources()), len(a.session.DisplayControls()), len(a.session.ViewManagers()))
		for _, f := range res.Failures {
			fmt.Printf("  failed: %v\n", f)
		}
		if res.ExtractedTo != "" {
			fmt.Printf("  data extracted to %s\n", res.ExtractedTo)
		}

		if c.Save == "" {
			return nil
		}
		opts := usecase.DefaultSaveOptions()
		if c.Script {
			opts.Script = usecase.ScriptAll
		}
		return a.handler.Save(ctx, c.Save, opts)
	})
}

// parseMappings reads id=file[,file] pairs.
func parseMappings(pairs []string) (*bundle.FileMappings, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := bundle.NewFileMappings()
	for _, pair := range pairs {
		id, files, ok := strings.Cut(pair, "=")
		if !ok || id == "" || files == "" {
			return nil, errors.Errorf("invalid mapping %q, expected id=file[,file]", pair)
		}
		m.Add(id, strings.Split(files, ",")...)
	}
	return m, nil
}

type convertCommand struct {
	Args struct {
		Src string `positional-arg-name:"SRC" required:"yes"`
		Dst string `positional-arg-name:"DST" required:"yes"`
	} `positional-args:"yes"`
}

func (c *convertCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := usecase.Convert(ctx, codec.XML{}, c.Args.Src, c.Args.Dst,
			a.cfg.Bundles.Compression, a.cfg.Bundles.TempDir); err != nil {
			return err
		}
		a.logger.WithFields(logrus.Fields{
			"action": "convert_bundle",
			"src":    c.Args.Src,
			"dst":    c.Args.Dst,
		}).Info("bundle converted")
		return nil
	})
}

type historyCommand struct {
	Limit int  `long:"limit" description:"entries to show, 0 for all" default:"0"`
	Clear bool `long:"clear" description:"forget every entry"`
}

func (c *historyCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if c.Clear {
			return a.prefs.Clear()
		}
		entries, err := a.prefs.List(c.Limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			where := e.Path
			if where == "" {
				where = e.Identifier
			}
			fmt.Printf("%s  %-30s %s\n", e.Added.Format(time.RFC3339), e.Label, where)
		}
		return nil
	})
}
