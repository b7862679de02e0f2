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

package prefs

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/weaviate/idvbundles/entities/bundle"
)

var (
	prefsBucket   = []byte("preferences")
	historyBucket = []byte("history")
	metaBucket    = []byte("meta")
	keyConfig     = []byte("config")
	_Version      = 1
)

// DefaultHistoryLimit is the number of history entries kept when the
// configuration does not say otherwise.
const DefaultHistoryLimit = 20

// config is stored alongside the data to allow later migrations.
type config struct {
	Version int `msgpack:"version"`
}

/*
Store persists dialog answers and the list of recently opened bundles.

Layout:
  - preferences: key -> msgpack encoded bool or string
  - history: big-endian sequence -> msgpack encoded bundle.HistoryEntry
  - meta: config

Values are msgpack so a preference keeps its type across restarts.
*/
type Store struct {
	homeDir      string
	historyLimit int
	log          logrus.FieldLogger
	db           *bolt.DB

	// another process may hold the file lock for a moment
	lockTimeout time.Duration
	openRetries uint64
}

// NewStore returns a new preference repository. Call Open before use and
// Close to free the resources.
func NewStore(homeDir string, historyLimit int, logger logrus.FieldLogger) *Store {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Store{
		homeDir:      homeDir,
		historyLimit: historyLimit,
		log:          logger,
		lockTimeout:  time.Second,
		openRetries:  4,
	}
}

// Open the underlying DB
func (s *Store) Open() (err error) {
	if err := os.MkdirAll(s.homeDir, 0o777); err != nil {
		return fmt.Errorf("create root directory %q: %w", s.homeDir, err)
	}
	path := filepath.Join(s.homeDir, "preferences.db")
	db, err := s.openDB(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{prefsBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return fmt.Errorf("create bucket %q: %w", metaBucket, err)
		}
		if data := meta.Get(keyConfig); len(data) > 0 {
			var cfg config
			if err := msgpack.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("cannot read config: %w", err)
			}
			if cfg.Version > _Version {
				return fmt.Errorf("preference store version %d is newer than %d", cfg.Version, _Version)
			}
			return nil
		}
		data, err := msgpack.Marshal(config{Version: _Version})
		if err != nil {
			return err
		}
		return meta.Put(keyConfig, data)
	})
	if err != nil {
		return fmt.Errorf("init bolt_db: %w", err)
	}
	s.db = db
	s.log.WithFields(logrus.Fields{
		"action": "open_preferences",
		"path":   path,
	}).Debug("preference store opened")
	return nil
}

// openDB retries while the file is locked by another process.
func (s *Store) openDB(path string) (*bolt.DB, error) {
	var db *bolt.DB
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.openRetries)
	err := backoff.RetryNotify(func() error {
		var err error
		db, err = bolt.Open(path, 0o600, &bolt.Options{Timeout: s.lockTimeout})
		if errors.Is(err, bolt.ErrTimeout) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, policy, func(err error, wait time.Duration) {
		s.log.WithFields(logrus.Fields{
			"action": "open_preferences",
			"path":   path,
			"wait":   wait,
		}).Warn("preference store is locked, retrying")
	})
	return db, err
}

// Close the underlying DB
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) get(key string, v interface{}) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(prefsBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return msgpack.Unmarshal(data, v)
	})
	return found, err
}

func (s *Store) put(key string, v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode preference %s", key)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(prefsBucket).Put([]byte(key), data)
	})
}

// Bool returns the stored value of key or def when it is missing or not
// a bool.
func (s *Store) Bool(key string, def bool) bool {
	var v bool
	found, err := s.get(key, &v)
	if err != nil {
		s.log.WithField("action", "read_preference").WithError(err).Warn(key)
		return def
	}
	if !found {
		return def
	}
	return v
}

func (s *Store) SetBool(key string, v bool) error {
	return s.put(key, v)
}

// String returns the stored value of key or def when it is missing or not
// a string.
func (s *Store) String(key, def string) string {
	var v string
	found, err := s.get(key, &v)
	if err != nil {
		s.log.WithField("action", "read_preference").WithError(err).Warn(key)
		return def
	}
	if !found {
		return def
	}
	return v
}

func (s *Store) SetString(key, v string) error {
	return s.put(key, v)
}

// Add records an opened bundle and drops the oldest entries beyond the
// history limit.
func (s *Store) Add(entry *bundle.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Added.IsZero() {
		entry.Added = time.Now()
	}
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encode history entry")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}
		n := 0
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		excess := n - s.historyLimit
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// List returns up to limit history entries, newest first. limit <= 0
// returns all of them.
func (s *Store) List(limit int) ([]*bundle.HistoryEntry, error) {
	var out []*bundle.HistoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var e bundle.HistoryEntry
			if err := msgpack.Unmarshal(v, &e); err != nil {
				return errors.Wrapf(err, "decode history entry %d", binary.BigEndian.Uint64(k))
			}
			out = append(out, &e)
		}
		return nil
	})
	return out, err
}

// Clear drops the whole history.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(historyBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(historyBucket)
		return err
	})
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
