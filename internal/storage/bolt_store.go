package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"poolprobe/internal/errors"
)

const (
	// BucketSweeps holds records keyed by 8-byte big-endian unix nanos + id,
	// so cursor order is chronological.
	BucketSweeps = "sweeps"
	// BucketIndex maps sweep id to its key in BucketSweeps.
	BucketIndex = "index"
)

// Store is a bbolt-backed sweep history.
type Store struct {
	db       *bbolt.DB
	filePath string
}

// DefaultPath is <home>/history.db.
func DefaultPath(home string) string {
	return filepath.Join(home, "history.db")
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{BucketSweeps, BucketIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, filePath: path}, nil
}

// Path is the database file.
func (s *Store) Path() string {
	return s.filePath
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func recordKey(rec SweepRecord) []byte {
	k := make([]byte, 8, 8+len(rec.ID))
	binary.BigEndian.PutUint64(k, uint64(rec.Timestamp.UnixNano())) //nolint:gosec // post-1970 timestamps
	return append(k, rec.ID...)
}

// Save stores rec and prunes the oldest records beyond MaxRecords.
// Saving an existing id replaces it.
func (s *Store) Save(rec SweepRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("save history: record has no id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		sweeps := tx.Bucket([]byte(BucketSweeps))
		index := tx.Bucket([]byte(BucketIndex))

		if old := index.Get([]byte(rec.ID)); old != nil {
			if err := sweeps.Delete(old); err != nil {
				return err
			}
		}
		key := recordKey(rec)
		if err := sweeps.Put(key, data); err != nil {
			return err
		}
		if err := index.Put([]byte(rec.ID), key); err != nil {
			return err
		}
		return prune(sweeps, index, MaxRecords)
	})
}

func prune(sweeps, index *bbolt.Bucket, keep int) error {
	c := sweeps.Cursor()
	n := 0
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	excess := n - keep
	if excess <= 0 {
		return nil
	}
	var doomed [][]byte
	for k, _ := c.First(); k != nil && len(doomed) < excess; k, _ = c.Next() {
		doomed = append(doomed, append([]byte(nil), k...))
	}
	for _, k := range doomed {
		if err := sweeps.Delete(k); err != nil {
			return err
		}
		if err := index.Delete(k[8:]); err != nil {
			return err
		}
	}
	return nil
}

// List returns records newest first. limit <= 0 returns all of them.
// Undecodable records are skipped.
func (s *Store) List(limit int) ([]SweepRecord, error) {
	var items []SweepRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketSweeps)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec SweepRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			items = append(items, rec)
			if limit > 0 && len(items) == limit {
				break
			}
		}
		return nil
	})
	return items, err
}

// Get finds a record by id or by a unique id prefix.
func (s *Store) Get(id string) (*SweepRecord, error) {
	var rec SweepRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(BucketIndex))

		key := index.Get([]byte(id))
		if key == nil {
			var matches [][]byte
			c := index.Cursor()
			prefix := []byte(id)
			for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
				matches = append(matches, v)
			}
			switch {
			case len(matches) == 0 || id == "":
				return errors.Wrapf(errors.ErrHistoryNotFound, "%q", id)
			case len(matches) > 1:
				return fmt.Errorf("id prefix %q is ambiguous (%d sweeps)", id, len(matches))
			}
			key = matches[0]
		}

		v := tx.Bucket([]byte(BucketSweeps)).Get(key)
		if v == nil {
			return errors.Wrapf(errors.ErrHistoryNotFound, "%q", id)
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record by exact id.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(BucketIndex))
		key := index.Get([]byte(id))
		if key == nil {
			return errors.Wrapf(errors.ErrHistoryNotFound, "%q", id)
		}
		if err := tx.Bucket([]byte(BucketSweeps)).Delete(key); err != nil {
			return err
		}
		return index.Delete([]byte(id))
	})
}
