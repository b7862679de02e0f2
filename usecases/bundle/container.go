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
	"compress/flate"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/weaviate/idvbundles/entities/bundle"
)

// Format is a container format, named by its file suffix.
type Format string

const (
	FormatXidv Format = bundle.SuffixXidv
	FormatZidv Format = bundle.SuffixZidv
	FormatJnlp Format = bundle.SuffixJnlp
	FormatSh   Format = bundle.SuffixSh
	FormatBat  Format = bundle.SuffixBat
	FormatIsl  Format = bundle.SuffixIsl
)

// FormatOf returns the format implied by the suffix of path, or "" when
// the suffix is not a known container.
func FormatOf(path string) Format {
	switch f := Format(strings.ToLower(filepath.Ext(path))); f {
	case FormatXidv, FormatZidv, FormatJnlp, FormatSh, FormatBat, FormatIsl:
		return f
	}
	return ""
}

// IsLaunchDescriptor reports whether f wraps a document for a launcher.
func (f Format) IsLaunchDescriptor() bool {
	return f == FormatJnlp || f == FormatSh || f == FormatBat
}

// Classify decides the container of data read from path. An unknown
// suffix is a zidv when data opens as a zip archive and plain document
// text otherwise.
func Classify(path string, data []byte) Format {
	if f := FormatOf(path); f != "" {
		return f
	}
	if _, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
		return FormatZidv
	}
	return FormatXidv
}

// CompressionLevel represents supported compression level
type CompressionLevel int

const (
	DefaultCompression CompressionLevel = iota
	BestSpeed
	BestCompression
)

func zipLevel(level int) int {
	if level < 0 || level > 3 {
		return flate.DefaultCompression
	}
	switch CompressionLevel(level) {
	case BestSpeed:
		return flate.BestSpeed
	case BestCompression:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

// zidv writes a zipped bundle: one document entry plus flat data files.
type zidv struct {
	w *zip.Writer
}

func newZidv(out io.Writer, level int) *zidv {
	w := zip.NewWriter(out)
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, zipLevel(level))
	})
	return &zidv{w: w}
}

func (z *zidv) WriteDocument(name string, doc []byte) error {
	f, err := z.w.Create(name)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := f.Write(doc); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// zidvEntry is a data file and the flat entry name it is stored under.
type zidvEntry struct {
	Path string
	Name string
}

func entriesOf(files []string) []zidvEntry {
	out := make([]zidvEntry, len(files))
	for i, f := range files {
		out[i] = zidvEntry{Path: f, Name: filepath.Base(f)}
	}
	return out
}

// documentEntry is the name of the document inside the zidv at path.
func documentEntry(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + bundle.SuffixXidv
}

// WriteRegular adds the file at absPath under name, its base name when
// name is empty.
func (z *zidv) WriteRegular(absPath, name string) (written int64, err error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, nil // ignore directories
	}
	src, err := os.Open(absPath)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer src.Close()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, fmt.Errorf("file header: %w", err)
	}
	if name == "" {
		name = filepath.Base(absPath)
	}
	header.Name = name
	header.Method = zip.Deflate
	dst, err := z.w.CreateHeader(header)
	if err != nil {
		return 0, fmt.Errorf("write header %s: %w", header.Name, err)
	}
	written, err = io.Copy(dst, src)
	if err != nil {
		return written, fmt.Errorf("copy: %s %w", header.Name, err)
	}
	return written, nil
}

func (z *zidv) Close() error {
	return z.w.Close()
}

// extractZidv writes every data entry of the archive into dest and returns
// the text of the document entry. The first failure aborts the extraction.
func extractZidv(data []byte, dest string) (doc []byte, written int64, err error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, errors.Wrap(err, "open zip")
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, 0, fmt.Errorf("createDir %s: %w", dest, err)
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if doc == nil && strings.EqualFold(filepath.Ext(f.Name), bundle.SuffixXidv) {
			if doc, err = readEntry(f); err != nil {
				return nil, written, err
			}
			continue
		}
		target := filepath.Join(dest, filepath.Base(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return nil, written, fmt.Errorf("entry %q escapes %s", f.Name, dest)
		}
		n, err := extractEntry(f, target)
		if err != nil {
			return nil, written, fmt.Errorf("copy file %s: %w", target, err)
		}
		written += n
	}
	if doc == nil {
		return nil, written, errors.New("zip has no bundle entry")
	}
	return doc, written, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func extractEntry(f *zip.File, target string) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}
	defer out.Close()
	n, err := io.Copy(out, rc)
	if err != nil {
		return n, fmt.Errorf("copy: %w", err)
	}
	return n, nil
}

// Launcher arguments that carry a document.
const (
	argB64Bundle = "-b64bundle"
	argBundle    = "-bundle"
)

type jnlpDescriptor struct {
	XMLName     xml.Name        `xml:"jnlp"`
	Spec        string          `xml:"spec,attr"`
	Title       string          `xml:"information>title"`
	Application jnlpApplication `xml:"application-desc"`
}

type jnlpApplication struct {
	MainClass string   `xml:"main-class,attr"`
	Arguments []string `xml:"argument"`
}

// wrapLaunch builds a launch descriptor of format f. The document is
// embedded as base64 unless companion names a document file next to the
// descriptor.
func wrapLaunch(f Format, title string, doc []byte, companion string) ([]byte, error) {
	args := []string{argB64Bundle, base64.StdEncoding.EncodeToString(doc)}
	if companion != "" {
		args = []string{argBundle, companion}
	}
	switch f {
	case FormatJnlp:
		out, err := xml.MarshalIndent(jnlpDescriptor{
			Spec:  "1.0+",
			Title: title,
			Application: jnlpApplication{
				MainClass: "ucar.unidata.idv.DefaultIdv",
				Arguments: args,
			},
		}, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "marshal jnlp")
		}
		return append([]byte(xml.Header), out...), nil
	case FormatSh:
		return []byte(fmt.Sprintf("#!/bin/sh\nexec runIDV %s \"$@\"\n", strings.Join(args, " "))), nil
	case FormatBat:
		return []byte(fmt.Sprintf("@echo off\r\nrunIDV.bat %s %%*\r\n", strings.Join(args, " "))), nil
	default:
		return nil, fmt.Errorf("%s is not a launch descriptor", f)
	}
}

// launchPayload is what a launch descriptor carries: an embedded document
// or the name of a companion document file.
type launchPayload struct {
	doc       []byte
	companion string
}

func unwrapLaunch(f Format, data []byte) (launchPayload, error) {
	var args []string
	if f == FormatJnlp {
		var j jnlpDescriptor
		if err := xml.Unmarshal(data, &j); err != nil {
			return launchPayload{}, errors.Wrap(err, "parse jnlp")
		}
		args = j.Application.Arguments
	} else {
		args = strings.Fields(string(data))
	}

	for i := 0; i+1 < len(args); i++ {
		switch strings.TrimSpace(args[i]) {
		case argB64Bundle:
			doc, err := base64.StdEncoding.DecodeString(strings.TrimSpace(args[i+1]))
			if err != nil {
				return launchPayload{}, errors.Wrap(err, "decode embedded bundle")
			}
			return launchPayload{doc: doc}, nil
		case argBundle:
			return launchPayload{companion: strings.TrimSpace(args[i+1])}, nil
		}
	}
	return launchPayload{}, fmt.Errorf("no %s argument found", argB64Bundle)
}
