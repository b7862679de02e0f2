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

package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/entities/bundle"
	"github.com/weaviate/idvbundles/usecases/monitoring"
)

// DefaultPattern matches the bundle files picked up by a directory walk.
const DefaultPattern = "**/*.{xidv,zidv}"

// Decoder decodes an entry's document for Prototype.
type Decoder interface {
	Decode(data []byte) (bundle.Decoded, error)
}

// Notifier shows a message to the user.
type Notifier interface {
	ShowMessage(msg string)
}

type Config struct {
	// Roots are the user's writable directories per kind.
	Roots map[Kind]string
	// SiteRoots are optional read-only directories per kind.
	SiteRoots map[Kind]string
	Manifests []string
	// Pattern is matched against paths relative to a root.
	Pattern string
}

// Store lists and edits saved bundles. Listings are cached per kind until
// a mutation or an explicit Invalidate.
type Store struct {
	fs       billy.Filesystem
	cfg      Config
	logger   logrus.FieldLogger
	decoder  Decoder
	notifier Notifier
	metrics  *monitoring.BundleMetrics

	entries    *cache.Cache
	prototypes *cache.Cache

	// mutations are serialized so a listing never sees half of a move
	sync.Mutex
}

func NewStore(fs billy.Filesystem, cfg Config, logger logrus.FieldLogger, decoder Decoder,
	notifier Notifier, metrics *monitoring.BundleMetrics,
) *Store {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	return &Store{
		fs:         fs,
		cfg:        cfg,
		logger:     logger,
		decoder:    decoder,
		notifier:   notifier,
		metrics:    metrics,
		entries:    cache.New(cache.NoExpiration, 0),
		prototypes: cache.New(cache.NoExpiration, 0),
	}
}

// List returns the entries of kind: the user root, then the site root,
// then manifest declarations. The result is a copy.
func (s *Store) List(kind Kind) ([]Entry, error) {
	s.Lock()
	defer s.Unlock()

	entries, err := s.list(kind)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.clone()
	}
	return out, nil
}

func (s *Store) list(kind Kind) ([]Entry, error) {
	if cached, ok := s.entries.Get(kind.String()); ok {
		return cached.([]Entry), nil
	}

	var entries []Entry
	if root, ok := s.cfg.Roots[kind]; ok && root != "" {
		found, err := s.walk(kind, root, true)
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}
	if root, ok := s.cfg.SiteRoots[kind]; ok && root != "" {
		found, err := s.walk(kind, root, false)
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}
	for _, m := range s.cfg.Manifests {
		declared, err := readManifest(s.fs, m)
		if err != nil {
			s.logger.WithField("action", "read_manifest").WithError(err).Warn("skipping manifest")
			continue
		}
		for _, e := range declared {
			if e.Kind == kind {
				entries = append(entries, e)
			}
		}
	}

	s.entries.Set(kind.String(), entries, cache.NoExpiration)
	s.metrics.CatalogSize(kind.String(), len(entries))
	s.logger.WithFields(logrus.Fields{
		"action":  "list_catalog",
		"kind":    kind.String(),
		"entries": len(entries),
	}).Debug("catalog listed")
	return entries, nil
}

func (s *Store) walk(kind Kind, root string, userRoot bool) ([]Entry, error) {
	if _, err := s.fs.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "stat %s", root)
	}

	var entries []Entry
	err := util.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		ok, err := doublestar.Match(s.cfg.Pattern, filepath.ToSlash(rel))
		if err != nil {
			return errors.Wrapf(err, "pattern %q", s.cfg.Pattern)
		}
		if !ok {
			return nil
		}
		entries = append(entries, Entry{
			URL:        p,
			Name:       strings.TrimSuffix(info.Name(), filepath.Ext(info.Name())),
			Categories: categoriesOf(root, p),
			Kind:       kind,
			Writable:   userRoot && info.Mode().Perm()&0o200 != 0,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", root)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })
	return entries, nil
}

// categoriesOf returns the directories between root and the file at p.
func categoriesOf(root, p string) []string {
	rel, err := filepath.Rel(root, filepath.Dir(p))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	return strings.Split(rel, string(filepath.Separator))
}

// CategoriesOf strips the root of kind from path and returns the category
// segments in between.
func (s *Store) CategoriesOf(kind Kind, path string) []string {
	return categoriesOf(s.cfg.Roots[kind], path)
}

// Invalidate drops the cached listing of kind.
func (s *Store) Invalidate(kind Kind) {
	s.entries.Delete(kind.String())
}

// Cached reports whether a listing of kind is cached.
func (s *Store) Cached(kind Kind) bool {
	_, ok := s.entries.Get(kind.String())
	return ok
}

// Writable lists the entries of kind the user can overwrite.
func (s *Store) Writable(kind Kind) ([]Entry, error) {
	all, err := s.List(kind)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Writable {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) root(kind Kind) (string, error) {
	root, ok := s.cfg.Roots[kind]
	if !ok || root == "" {
		return "", fmt.Errorf("no directory configured for %s bundles", kind)
	}
	return root, nil
}

func (s *Store) categoryDir(kind Kind, categories []string) (string, error) {
	root, err := s.root(kind)
	if err != nil {
		return "", err
	}
	return s.fs.Join(append([]string{root}, categories...)...), nil
}

func (s *Store) exists(p string) bool {
	_, err := s.fs.Stat(p)
	return err == nil
}

func (s *Store) notify(msg string) {
	s.logger.WithField("action", "catalog_notice").Info(msg)
	if s.notifier != nil {
		s.notifier.ShowMessage(msg)
	}
}

func (s *Store) destination(entry Entry, categories []string) (string, error) {
	if entry.Manifest != "" || isRemote(entry.URL) {
		return "", fmt.Errorf("%s is not a local bundle", entry.URL)
	}
	dir, err := s.categoryDir(entry.Kind, categories)
	if err != nil {
		return "", err
	}
	return s.fs.Join(dir, filepath.Base(entry.URL)), nil
}

// Move puts entry under categories. It returns false, after telling the
// user, when a bundle of that name already exists there.
func (s *Store) Move(entry Entry, categories []string) (bool, error) {
	s.Lock()
	defer s.Unlock()

	dest, err := s.destination(entry, categories)
	if err != nil {
		return false, err
	}
	if s.exists(dest) {
		s.notify(fmt.Sprintf("A bundle named %s already exists in %s", entry.Name, CategoriesToString(categories)))
		return false, nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, errors.Wrapf(err, "create category %s", CategoriesToString(categories))
	}
	if err := s.fs.Rename(entry.URL, dest); err != nil {
		return false, errors.Wrapf(err, "move %s", entry.URL)
	}
	s.forget(entry)
	return true, nil
}

// Copy copies entry under categories, with the same conflict rule as Move.
func (s *Store) Copy(entry Entry, categories []string) (bool, error) {
	s.Lock()
	defer s.Unlock()

	dest, err := s.destination(entry, categories)
	if err != nil {
		return false, err
	}
	if s.exists(dest) {
		s.notify(fmt.Sprintf("A bundle named %s already exists in %s", entry.Name, CategoriesToString(categories)))
		return false, nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, errors.Wrapf(err, "create category %s", CategoriesToString(categories))
	}
	if err := s.copyFile(entry.URL, dest); err != nil {
		return false, errors.Wrapf(err, "copy %s", entry.URL)
	}
	s.Invalidate(entry.Kind)
	return true, nil
}

func (s *Store) copyFile(src, dst string) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := s.fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Rename gives entry a new name, keeping its suffix and category.
func (s *Store) Rename(entry Entry, name string) (bool, error) {
	s.Lock()
	defer s.Unlock()

	if entry.Manifest != "" || isRemote(entry.URL) {
		return false, fmt.Errorf("%s is not a local bundle", entry.URL)
	}
	dest := s.fs.Join(filepath.Dir(entry.URL), name+filepath.Ext(entry.URL))
	if s.exists(dest) {
		s.notify(fmt.Sprintf("A bundle named %s already exists", name))
		return false, nil
	}
	if err := s.fs.Rename(entry.URL, dest); err != nil {
		return false, errors.Wrapf(err, "rename %s", entry.URL)
	}
	s.forget(entry)
	return true, nil
}

// Delete removes the bundle file of entry.
func (s *Store) Delete(entry Entry) error {
	s.Lock()
	defer s.Unlock()

	if entry.Manifest != "" || isRemote(entry.URL) {
		return fmt.Errorf("%s is not a local bundle", entry.URL)
	}
	if err := s.fs.Remove(entry.URL); err != nil {
		return errors.Wrapf(err, "delete %s", entry.URL)
	}
	s.forget(entry)
	return nil
}

// DeleteCategory removes a category with everything below it.
func (s *Store) DeleteCategory(kind Kind, categories []string) error {
	s.Lock()
	defer s.Unlock()

	if len(categories) == 0 {
		return errors.New("refusing to delete the root category")
	}
	dir, err := s.categoryDir(kind, categories)
	if err != nil {
		return err
	}
	if err := util.RemoveAll(s.fs, dir); err != nil {
		return errors.Wrapf(err, "delete category %s", CategoriesToString(categories))
	}
	s.Invalidate(kind)
	return nil
}

// AddCategory creates a category directory. It returns false, changing
// nothing, when the category already exists.
func (s *Store) AddCategory(kind Kind, categories []string) (bool, error) {
	s.Lock()
	defer s.Unlock()

	dir, err := s.categoryDir(kind, categories)
	if err != nil {
		return false, err
	}
	if s.exists(dir) {
		return false, nil
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return false, errors.Wrapf(err, "create category %s", CategoriesToString(categories))
	}
	s.Invalidate(kind)
	return true, nil
}

// Add stores data as a bundle named name under categories, replacing any
// bundle of the same name.
func (s *Store) Add(kind Kind, categories []string, name string, data []byte) (Entry, error) {
	s.Lock()
	defer s.Unlock()

	dir, err := s.categoryDir(kind, categories)
	if err != nil {
		return Entry{}, err
	}
	if filepath.Ext(name) == "" {
		name += bundle.SuffixXidv
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return Entry{}, errors.Wrapf(err, "create category %s", CategoriesToString(categories))
	}
	p := s.fs.Join(dir, name)
	if err := util.WriteFile(s.fs, p, data, 0o644); err != nil {
		return Entry{}, errors.Wrapf(err, "write %s", p)
	}
	s.prototypes.Delete(p)
	s.Invalidate(kind)
	return Entry{
		URL:        p,
		Name:       strings.TrimSuffix(name, filepath.Ext(name)),
		Categories: append([]string(nil), categories...),
		Kind:       kind,
		Writable:   true,
	}, nil
}

// Read returns the raw bytes behind entry.
func (s *Store) Read(entry Entry) ([]byte, error) {
	if isRemote(entry.URL) {
		return nil, fmt.Errorf("remote bundle %s cannot be read from the local store", entry.URL)
	}
	return util.ReadFile(s.fs, entry.URL)
}

// Prototype decodes entry, e.g. to show the display a template would
// create. The bytes are read once and cached; every call decodes a fresh
// value the caller owns.
func (s *Store) Prototype(entry Entry) (bundle.Decoded, error) {
	if s.decoder == nil {
		return bundle.Decoded{}, errors.New("no decoder configured")
	}
	var data []byte
	if cached, ok := s.prototypes.Get(entry.URL); ok {
		data = cached.([]byte)
	} else {
		var err error
		if data, err = s.Read(entry); err != nil {
			return bundle.Decoded{}, err
		}
		s.prototypes.Set(entry.URL, data, cache.NoExpiration)
	}
	decoded, err := s.decoder.Decode(data)
	if err != nil {
		return bundle.Decoded{}, errors.Wrapf(err, "decode %s", entry.URL)
	}
	return decoded, nil
}

func (s *Store) forget(entry Entry) {
	s.prototypes.Delete(entry.URL)
	s.Invalidate(entry.Kind)
}
