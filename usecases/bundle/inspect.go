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
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/weaviate/idvbundles/entities/bundle"
)

// Summary describes a bundle file without restoring anything from it.
type Summary struct {
	Path    string
	Format  Format
	Shape   bundle.Shape
	Root    string
	Version string

	DataSources     []string
	DisplayControls []string
	ViewManagers    []string
	Windows         int
	HasScript       bool
	// EmbeddedFiles are the data entries of a zidv.
	EmbeddedFiles []string
	// Companion is the document file a launch descriptor points to.
	Companion string
	// Macros are the ${name} tokens the document text still carries.
	Macros []string
}

// Inspect classifies and decodes data read from path and reports what it
// holds. Nothing is extracted and no macro is prompted for.
func Inspect(path string, data []byte, codec Codec) (*Summary, error) {
	s := &Summary{Path: path, Format: Classify(path, data)}

	var text []byte
	switch {
	case s.Format == FormatZidv:
		doc, files, err := listZidv(data)
		if err != nil {
			return nil, bundle.NewError(bundle.ContainerUnreadable, "inspect", path, err)
		}
		text, s.EmbeddedFiles = doc, files
	case s.Format.IsLaunchDescriptor():
		payload, err := unwrapLaunch(s.Format, data)
		if err != nil {
			return nil, bundle.NewError(bundle.ContainerUnreadable, "inspect", path, err)
		}
		text = payload.doc
		if payload.companion != "" {
			s.Companion = payload.companion
			if text, err = os.ReadFile(companionPath(path, payload.companion)); err != nil {
				return nil, bundle.NewError(bundle.ContainerUnreadable, "inspect", path, err)
			}
		}
	case s.Format == FormatIsl:
		return nil, bundle.NewError(bundle.ContainerUnreadable, "inspect", path,
			fmt.Errorf("%s files are run by the scripting engine", FormatIsl))
	default:
		text = data
	}

	_, s.Macros = substituteMacros(string(text), nil)

	decoded, err := codec.Decode(text)
	if err != nil {
		return nil, bundle.NewError(bundle.MalformedDocument, "inspect", path, err)
	}
	s.Shape, s.Root = decoded.Shape, decoded.Root
	switch decoded.Shape {
	case bundle.ShapeDocument:
		doc := decoded.Document
		s.Version = doc.EffectiveVersion()
		for _, ds := range doc.DataSources {
			s.DataSources = append(s.DataSources, ds.ID)
		}
		for _, dc := range doc.DisplayControls {
			s.DisplayControls = append(s.DisplayControls, dc.ID)
		}
		for _, vm := range doc.ViewManagers {
			s.ViewManagers = append(s.ViewManagers, vm.Descriptor.Name)
		}
		s.Windows = len(doc.Windows)
		s.HasScript = doc.Script() != ""
	case bundle.ShapeDataSource:
		s.DataSources = []string{decoded.DataSource.ID}
	case bundle.ShapeDisplayControl:
		s.DisplayControls = []string{decoded.DisplayControl.ID}
	case bundle.ShapeUnknown:
		return s, bundle.NewError(bundle.UnknownDecodedType, "inspect", path,
			fmt.Errorf("root element %q", decoded.Root))
	}
	return s, nil
}

// Convert rewraps the document in src into the container implied by the
// suffix of dst. Data files embedded in a zidv survive only when dst is a
// zidv too.
func Convert(ctx context.Context, codec Codec, src, dst string, compression int, tempDir string) (err error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return bundle.NewError(bundle.ContainerUnreadable, "convert", src, err)
	}
	from := Classify(src, data)
	to := FormatOf(dst)
	if to == "" {
		to = FormatXidv
	}
	if to == FormatIsl {
		return bundle.NewError(bundle.WriteFailed, "convert", dst,
			fmt.Errorf("no isl writer configured"))
	}

	var (
		text     []byte
		embedded []zidvEntry
	)
	switch {
	case from == FormatZidv:
		var dir string
		if dir, err = os.MkdirTemp(tempDir, "convert-"); err != nil {
			return bundle.NewError(bundle.WriteFailed, "stage", dst, err)
		}
		defer func() {
			if rerr := os.RemoveAll(dir); rerr != nil {
				err = multierror.Append(err, fmt.Errorf("remove staging dir: %w", rerr)).ErrorOrNil()
			}
		}()
		if text, _, err = extractZidv(data, dir); err != nil {
			return bundle.NewError(bundle.ContainerUnreadable, "convert", src, err)
		}
		var files []string
		if files, err = filepath.Glob(filepath.Join(dir, "*")); err != nil {
			return bundle.NewError(bundle.ContainerUnreadable, "convert", src, err)
		}
		sort.Strings(files)
		embedded = entriesOf(files)
		if len(embedded) > 0 && to != FormatZidv {
			return bundle.NewError(bundle.WriteFailed, "convert", dst,
				fmt.Errorf("%d embedded data files need a %s destination", len(embedded), FormatZidv))
		}
	case from.IsLaunchDescriptor():
		payload, err := unwrapLaunch(from, data)
		if err != nil {
			return bundle.NewError(bundle.ContainerUnreadable, "convert", src, err)
		}
		text = payload.doc
		if payload.companion != "" {
			if text, err = os.ReadFile(companionPath(src, payload.companion)); err != nil {
				return bundle.NewError(bundle.ContainerUnreadable, "convert", src, err)
			}
		}
	case from == FormatIsl:
		return bundle.NewError(bundle.ContainerUnreadable, "convert", src,
			fmt.Errorf("%s files are run by the scripting engine", FormatIsl))
	default:
		text = data
	}

	decoded, err := codec.Decode(text)
	if err != nil {
		return bundle.NewError(bundle.MalformedDocument, "convert", src, err)
	}
	var v any
	switch decoded.Shape {
	case bundle.ShapeDocument:
		v = decoded.Document
	case bundle.ShapeDataSource:
		v = decoded.DataSource
	case bundle.ShapeDisplayControl:
		v = decoded.DisplayControl
	case bundle.ShapeColorTable:
		v = decoded.ColorTable
	default:
		return bundle.NewError(bundle.UnknownDecodedType, "convert", src,
			fmt.Errorf("root element %q", decoded.Root))
	}
	if text, err = codec.Encode(v, !to.IsLaunchDescriptor()); err != nil {
		return bundle.NewError(bundle.WriteFailed, "encode", dst, err)
	}

	if err := ctx.Err(); err != nil {
		return bundle.NewError(bundle.Cancelled, "convert", dst, err)
	}
	if err := writeContainer(to, dst, text, embedded, compression); err != nil {
		return bundle.NewError(bundle.WriteFailed, "convert", dst, err)
	}
	return nil
}

func writeContainer(to Format, path string, text []byte, embedded []zidvEntry, compression int) (err error) {
	switch {
	case to == FormatZidv:
		var f *os.File
		if f, err = os.Create(path); err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				err = multierror.Append(err, cerr).ErrorOrNil()
			}
		}()
		z := newZidv(f, compression)
		if err := z.WriteDocument(documentEntry(path), text); err != nil {
			return err
		}
		for _, e := range embedded {
			if _, err := z.WriteRegular(e.Path, e.Name); err != nil {
				return err
			}
		}
		return z.Close()
	case to.IsLaunchDescriptor():
		wrapped, err := wrapLaunch(to, filepath.Base(path), text, "")
		if err != nil {
			return err
		}
		mode := os.FileMode(0o644)
		if to == FormatSh {
			mode = 0o755
		}
		return os.WriteFile(path, wrapped, mode)
	default:
		return os.WriteFile(path, text, 0o644)
	}
}

// listZidv returns the document entry of a zidv and the names of its data
// entries without extracting them.
func listZidv(data []byte) ([]byte, []string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, errors.Wrap(err, "open zip")
	}
	var (
		doc   []byte
		files []string
	)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if doc == nil && strings.EqualFold(filepath.Ext(f.Name), bundle.SuffixXidv) {
			if doc, err = readEntry(f); err != nil {
				return nil, nil, err
			}
			continue
		}
		files = append(files, filepath.Base(f.Name))
	}
	if doc == nil {
		return nil, nil, errors.New("zip has no bundle entry")
	}
	return doc, files, nil
}

func companionPath(descriptor, companion string) string {
	if filepath.IsAbs(companion) {
		return companion
	}
	return filepath.Join(filepath.Dir(descriptor), companion)
}
