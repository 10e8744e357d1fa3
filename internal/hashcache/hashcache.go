// Package hashcache provides persistent caching of whole-file SHA-256
// digests across scans.
//
// The cache is self-cleaning: each scan writes into a fresh database and
// only entries that were looked up (or stored) during the run survive the
// atomic swap on Close. A digest is reused only when path, size, and
// modification time all still match.
package hashcache

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketName = "sha256"
	digestSize = 32
)

const keyVersion byte = 1 // Increment when key format changes

// Cache caches file digests using BoltDB. A Cache opened with an empty path
// is disabled; all methods are no-ops.
type Cache struct {
	readDB  *bolt.DB // previous run (read-only)
	writeDB *bolt.DB // current run - BoltDB locks this file
	path    string   // final path (for atomic swap)
	enabled bool
}

// Open opens the existing cache for reading and creates a new one for
// writing. BoltDB's file lock on the .new file prevents concurrent scans
// from sharing a cache. Returns a disabled cache if path is empty.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true}
	var err error

	if _, statErr := os.Stat(path); statErr == nil {
		c.readDB, err = bolt.Open(path, 0o600, &bolt.Options{
			ReadOnly: true,
			Timeout:  1 * time.Second,
		})
		if err != nil {
			// Can't open existing - continue without read cache
			c.readDB = nil
		}
	}

	c.writeDB, err = bolt.Open(path+".new", 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create new cache (locked by another instance?): %w", err)
	}

	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Close closes both databases and atomically replaces the old cache with the
// new one. The swap happens only if the write database closed cleanly.
func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		if err := c.readDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.writeDB != nil {
		if err := c.writeDB.Close(); err != nil {
			errs = append(errs, err)
		} else if err := os.Rename(c.path+".new", c.path); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// makeKey builds the deterministic lookup key.
// Key = ver(1) + path + NUL + size(8) + mtime(8)
func makeKey(path string, size int64, mtime time.Time) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(keyVersion)
	buf.WriteString(path)
	buf.WriteByte(0) // NUL separator
	_ = binary.Write(buf, binary.BigEndian, size)
	_ = binary.Write(buf, binary.BigEndian, mtime.UnixNano())
	return buf.Bytes()
}

// Lookup retrieves a cached digest, returning "" on a miss. A hit is copied
// into the write database so it survives the swap.
func (c *Cache) Lookup(path string, size int64, mtime time.Time) string {
	if !c.enabled || c.readDB == nil {
		return ""
	}

	key := makeKey(path, size, mtime)
	var digest []byte

	_ = c.readDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		if data := b.Get(key); len(data) == digestSize {
			digest = make([]byte, digestSize)
			copy(digest, data)
		}
		return nil
	})
	if digest == nil {
		return ""
	}

	hash := hex.EncodeToString(digest)
	c.Store(path, size, mtime, hash)
	return hash
}

// Store saves a hex digest for the file's current (size, mtime).
func (c *Cache) Store(path string, size int64, mtime time.Time, hash string) {
	if !c.enabled || c.writeDB == nil {
		return
	}
	digest, err := hex.DecodeString(hash)
	if err != nil || len(digest) != digestSize {
		return
	}
	_ = c.writeDB.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(makeKey(path, size, mtime), digest)
	})
}
