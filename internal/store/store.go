// Package store provides a filesystem-backed persistent cache of directories.
//
// Each entry lives in its own directory named by the hash of its key:
//
//	<root>/
//	  <hash>.lock          inter-process lock for the entry
//	  <hash>/
//	    cache.properties   property tags, written last
//	    ...                content written by the initializer
//	  index.db             bbolt index used for statistics
//
// Opening an entry takes an in-process lock and a file lock on <hash>.lock,
// so callers racing on the same key serialize while different keys proceed
// independently. The initializer runs only when the entry is absent or
// invalid, and cache.properties is only written after it succeeds: an entry
// left behind by a failed or crashed initializer is never taken as valid.
package store

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/apex/log"
	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"github.com/Norgate-AV/scc/internal/cacheerr"
	"github.com/Norgate-AV/scc/internal/cachekey"
)

const (
	// PropertiesFile holds the entry's property tags.
	PropertiesFile = "cache.properties"

	lockSuffix = ".lock"
)

// Properties are opaque tags stored with an entry. A mismatch with the tags
// requested on open invalidates the entry.
type Properties map[string]string

// Validator decides whether existing content under dir may be reused.
type Validator func(dir string) bool

// Initializer populates dir. It has exclusive write access to dir.
type Initializer func(dir string) error

// Option configures a Store.
type Option func(*Store)

// WithRecompute makes every open treat the existing entry as invalid.
func WithRecompute(recompute bool) Option {
	return func(s *Store) {
		s.recompute = recompute
	}
}

// WithoutIndex disables the bbolt index.
func WithoutIndex() Option {
	return func(s *Store) {
		s.index = nil
	}
}

// Store manages cache entries below a root directory
type Store struct {
	root      string
	recompute bool
	index     *Index

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a store rooted at root, creating the directory if needed
func New(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, cacheerr.InvalidInput("root", "cache directory is empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, cacheerr.CacheIO("create", abs, err)
	}

	s := &Store{
		root:  abs,
		index: NewIndex(filepath.Join(abs, IndexFile)),
		locks: make(map[string]*keyLock),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Root is the absolute cache directory.
func (s *Store) Root() string { return s.root }

// Recompute reports whether the store forces every entry to be rebuilt.
func (s *Store) Recompute() bool { return s.recompute }

// Index returns the entry index, or nil when disabled.
func (s *Store) Index() *Index { return s.index }

// EntryDir returns the directory of the entry for hash.
func (s *Store) EntryDir(hash string) string {
	return filepath.Join(s.root, hash)
}

// Open acquires the entry for key, running init when the entry is absent or
// invalid. The returned handle holds the entry lock until closed.
func (s *Store) Open(key cachekey.Spec, props Properties, validate Validator, init Initializer) (*Handle, error) {
	if key.Len() == 0 {
		return nil, cacheerr.InvalidInput("key", "empty key spec")
	}

	if init == nil {
		return nil, cacheerr.InvalidInput("initializer", "must not be nil")
	}

	hash := key.Hash()
	dir := s.EntryDir(hash)
	logger := log.WithFields(log.Fields{"key": shortHash(hash)})

	release, err := s.lock(hash)
	if err != nil {
		return nil, err
	}

	// the lock is released on every path that does not hand it to a Handle,
	// including a panicking initializer
	opened := false
	defer func() {
		if !opened {
			release()
		}
	}()

	if s.isValid(dir, props, validate) {
		logger.Debug("cache hit")
		opened = true
		return &Handle{dir: dir, hash: hash, release: release, after: func() { s.touchIndex(hash) }}, nil
	}

	logger.Debug("cache miss, initializing entry")

	if err := resetDir(dir); err != nil {
		return nil, cacheerr.CacheIO("reset", dir, err)
	}

	if err := init(dir); err != nil {
		if cacheerr.IsCompilationFailed(err) || cacheerr.IsInvalidInput(err) || cacheerr.IsCacheIO(err) {
			return nil, err
		}

		return nil, &cacheerr.CompilationFailedError{Err: err}
	}

	if err := writeProperties(dir, props); err != nil {
		return nil, err
	}

	size, err := dirSize(dir)
	if err != nil {
		logger.WithError(err).Warnf("failed to size cache entry %s", dir)
	}

	description := key.Describe()
	opened = true
	return &Handle{dir: dir, hash: hash, release: release, after: func() {
		s.recordIndex(hash, description, props, size)
	}}, nil
}

func (s *Store) isValid(dir string, props Properties, validate Validator) bool {
	if s.recompute {
		return false
	}

	stored, err := readProperties(dir)
	if err != nil {
		return false
	}

	if !propertiesEqual(stored, props) {
		return false
	}

	if validate == nil {
		return true
	}

	return validate(dir)
}

// lock takes the in-process key mutex then the file lock for hash.
func (s *Store) lock(hash string) (func(), error) {
	s.mu.Lock()
	kl, ok := s.locks[hash]
	if !ok {
		kl = &keyLock{}
		s.locks[hash] = kl
	}
	kl.refs++
	s.mu.Unlock()

	kl.mu.Lock()

	unlockKey := func() {
		kl.mu.Unlock()

		s.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(s.locks, hash)
		}
		s.mu.Unlock()
	}

	lockPath := filepath.Join(s.root, hash+lockSuffix)
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		unlockKey()
		return nil, cacheerr.CacheIO("lock", lockPath, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := fl.Unlock(); err != nil {
				log.WithError(err).Warnf("failed to release cache lock %s", lockPath)
			}

			unlockKey()
		})
	}, nil
}

func (s *Store) touchIndex(hash string) {
	if s.index == nil {
		return
	}

	if err := s.index.Touch(hash); err != nil {
		log.WithError(err).Warn("failed to update cache index")
	}
}

func (s *Store) recordIndex(hash, description string, props Properties, size int64) {
	if s.index == nil {
		return
	}

	if err := s.index.Record(hash, description, props, size); err != nil {
		log.WithError(err).Warn("failed to update cache index")
	}
}

// Stats returns the number of indexed entries and their total size
func (s *Store) Stats() (int, int64, error) {
	if s.index == nil {
		return 0, 0, nil
	}

	return s.index.Stats()
}

// Entries lists indexed entries, most recently used first
func (s *Store) Entries() ([]IndexEntry, error) {
	if s.index == nil {
		return nil, nil
	}

	return s.index.Entries()
}

// Clear removes every entry directory under the root and returns how many
// were removed. Each entry is removed under its lock, so entries that are
// open elsewhere are removed once released. Lock files are kept.
func (s *Store) Clear() (int, error) {
	items, err := os.ReadDir(s.root)
	if err != nil {
		return 0, cacheerr.CacheIO("list", s.root, err)
	}

	removed := 0
	for _, item := range items {
		if !item.IsDir() || !isEntryHash(item.Name()) {
			continue
		}

		hash := item.Name()
		release, err := s.lock(hash)
		if err != nil {
			return removed, err
		}

		err = os.RemoveAll(s.EntryDir(hash))
		release()

		if err != nil {
			return removed, cacheerr.CacheIO("remove", s.EntryDir(hash), err)
		}

		if s.index != nil {
			if ierr := s.index.Delete(hash); ierr != nil {
				log.WithError(ierr).Warn("failed to update cache index")
			}
		}

		removed++
	}

	log.WithFields(log.Fields{"root": s.root, "removed": removed}).Debug("cache cleared")
	return removed, nil
}

// isEntryHash matches the lowercase hex SHA-256 names of entry directories
func isEntryHash(name string) bool {
	if len(name) != 64 {
		return false
	}

	for _, r := range name {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}

	return true
}

// Handle is an open cache entry. Close releases the lock; the entry stays.
type Handle struct {
	dir     string
	hash    string
	release func()

	// after runs once the lock is released
	after func()
	once  sync.Once
}

// BaseDir is the entry directory.
func (h *Handle) BaseDir() string { return h.dir }

// Hash is the key hash addressing the entry.
func (h *Handle) Hash() string { return h.hash }

// Close releases the entry lock, then records the use in the index. It is
// safe to call more than once.
func (h *Handle) Close() error {
	h.once.Do(func() {
		if h.release != nil {
			h.release()
		}

		if h.after != nil {
			h.after()
		}
	})

	return nil
}

func readProperties(dir string) (Properties, error) {
	data, err := os.ReadFile(filepath.Join(dir, PropertiesFile))
	if err != nil {
		return nil, err
	}

	props := Properties{}
	if err := toml.Unmarshal(data, &props); err != nil {
		return nil, err
	}

	return props, nil
}

func writeProperties(dir string, props Properties) error {
	if props == nil {
		props = Properties{}
	}

	data, err := toml.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to encode cache properties: %w", err)
	}

	path := filepath.Join(dir, PropertiesFile)
	return cacheerr.CacheIO("write", path, writeFileAtomic(path, data))
}

func propertiesEqual(a, b Properties) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}

	return maps.Equal(a, b)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}

	return hash
}
