package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"idlc/internal/codegen"
	"idlc/internal/project"
)

// Current schema version - increment when DiskPayload format changes
const diskCacheSchemaVersion uint16 = 1

const (
	unitsBucket = "units"
	metaBucket  = "meta"
)

var errCacheClosed = errors.New("disk cache is closed")

// DiskCache хранит сгенерированные юниты по ключу
// Combine(view, config, target) в одном bbolt-файле.
// Thread-safe for concurrent access.
type DiskCache struct {
	db   *bolt.DB
	path string
}

// DiskPayload is what one cache entry stores.
type DiskPayload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Module string
	Target string
	Units  []codegen.OutputUnit
}

// DefaultCachePath returns $XDG_CACHE_HOME/app/units.db, or the same under
// ~/.cache.
func DefaultCachePath(app string) (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, app, "units.db"), nil
}

// OpenDiskCache opens (creating when needed) the cache database at p. A
// database written by another schema version is emptied.
func OpenDiskCache(p string) (*DiskCache, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(p, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open disk cache %s: %w", p, err)
	}
	c := &DiskCache{db: db, path: p}
	if err := c.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *DiskCache) init() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		want := schemaBytes()
		if got := meta.Get([]byte("schema")); got != nil && string(got) != string(want) {
			if err := tx.DeleteBucket([]byte(unitsBucket)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
		}
		if err := meta.Put([]byte("schema"), want); err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists([]byte(unitsBucket))
		return err
	})
}

func schemaBytes() []byte {
	return []byte{byte(diskCacheSchemaVersion >> 8), byte(diskCacheSchemaVersion)}
}

// Path returns the database file.
func (c *DiskCache) Path() string { return c.path }

// Put serializes and stores a payload.
func (c *DiskCache) Put(key project.Digest, payload *DiskPayload) error {
	if c == nil {
		return nil
	}
	if c.db == nil {
		return errCacheClosed
	}
	payload.Schema = diskCacheSchemaVersion
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(unitsBucket)).Put(key[:], data)
	})
}

// Get reads a payload. Entries of another schema version are misses.
func (c *DiskCache) Get(key project.Digest, out *DiskPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	if c.db == nil {
		return false, errCacheClosed
	}
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(unitsBucket)).Get(key[:]); v != nil {
			// значение живёт только до конца транзакции
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return false, err
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key.Short(), err)
	}
	return out.Schema == diskCacheSchemaVersion, nil
}

// Len returns the number of stored entries.
func (c *DiskCache) Len() int {
	if c == nil || c.db == nil {
		return 0
	}
	n := 0
	_ = c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(unitsBucket)).Stats().KeyN
		return nil
	})
	return n
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(unitsBucket)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(unitsBucket))
		return err
	})
}

func (c *DiskCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// unitsKey identifies generated output: the span-free module view, the
// generator config and the target.
func unitsKey(view, cfg project.Digest, target string) project.Digest {
	return project.Combine(view, cfg, project.Sum([]byte(target)))
}
