package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// IndexFile is the bbolt database recording entries
	IndexFile = "index.db"

	// bucketName is the BoltDB bucket name for cache entries
	bucketName = "entries"

	indexTimeout = 5 * time.Second

	// bookkeepingTimeout bounds the wait for the database when recording
	// use; contended updates are skipped
	bookkeepingTimeout = 250 * time.Millisecond
)

// IndexEntry describes a cache entry for reporting
type IndexEntry struct {
	// Hash addresses the entry directory
	Hash string `json:"hash"`

	// Description is a debug rendering of the key spec
	Description string `json:"description"`

	Properties Properties `json:"properties"`

	// Size of the entry directory in bytes when it was initialized
	Size int64 `json:"size"`

	Created  time.Time `json:"created"`
	LastUsed time.Time `json:"last_used"`
}

// Index stores entry metadata in BoltDB. The database is opened per call so
// that several processes can share one cache directory.
type Index struct {
	path string
	now  func() time.Time
}

// NewIndex returns an index backed by the database at path
func NewIndex(path string) *Index {
	return &Index{path: path, now: time.Now}
}

// Path is the database file.
func (i *Index) Path() string { return i.path }

func (i *Index) update(timeout time.Duration, fn func(b *bbolt.Bucket) error) error {
	db, err := bbolt.Open(i.path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return fmt.Errorf("failed to open cache index: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}

		return fn(b)
	})
}

func (i *Index) view(fn func(b *bbolt.Bucket) error) error {
	db, err := bbolt.Open(i.path, 0o600, &bbolt.Options{Timeout: indexTimeout})
	if err != nil {
		return fmt.Errorf("failed to open cache index: %w", err)
	}
	defer db.Close()

	return db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return fn(b)
	})
}

// Record stores or replaces the entry for hash
func (i *Index) Record(hash, description string, props Properties, size int64) error {
	now := i.now()
	entry := IndexEntry{
		Hash:        hash,
		Description: description,
		Properties:  props,
		Size:        size,
		Created:     now,
		LastUsed:    now,
	}

	return i.update(bookkeepingTimeout, func(b *bbolt.Bucket) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(hash), data)
	})
}

// Touch updates the last use time of hash. Unknown hashes are ignored.
func (i *Index) Touch(hash string) error {
	return i.update(bookkeepingTimeout, func(b *bbolt.Bucket) error {
		data := b.Get([]byte(hash))
		if data == nil {
			return nil
		}

		var entry IndexEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}

		entry.LastUsed = i.now()

		updated, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(hash), updated)
	})
}

// Delete removes hash from the index
func (i *Index) Delete(hash string) error {
	return i.update(indexTimeout, func(b *bbolt.Bucket) error {
		return b.Delete([]byte(hash))
	})
}

// Get returns the entry for hash, or nil if it is not indexed
func (i *Index) Get(hash string) (*IndexEntry, error) {
	var entry *IndexEntry

	err := i.view(func(b *bbolt.Bucket) error {
		data := b.Get([]byte(hash))
		if data == nil {
			return nil
		}

		entry = &IndexEntry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Entries returns all entries, most recently used first
func (i *Index) Entries() ([]IndexEntry, error) {
	var entries []IndexEntry

	err := i.view(func(b *bbolt.Bucket) error {
		return b.ForEach(func(_, v []byte) error {
			var entry IndexEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}

			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].LastUsed.After(entries[b].LastUsed)
	})

	return entries, nil
}

// Stats returns the number of entries and their total size
func (i *Index) Stats() (int, int64, error) {
	entries, err := i.Entries()
	if err != nil {
		return 0, 0, err
	}

	var total int64
	for _, e := range entries {
		total += e.Size
	}

	return len(entries), total, nil
}
