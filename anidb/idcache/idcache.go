// Copyright (c) 2024 anidb-go contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package idcache persists (ed2k, size) -> AnimeInfo lookups from the
// catalog (spec §4.7), the same way package hashcache persists hash
// results: one bbolt bucket, a TTL checked at read time rather than
// enforced by a background sweep.
package idcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/anidb-go/anidb-core/anidb/client"
	"github.com/anidb-go/anidb-core/common"
)

var bucketName = []byte("identifications")

// DefaultTTL matches spec §4.7's default of 30 days.
const DefaultTTL = 30 * 24 * time.Hour

// Options configures a Cache.
type Options struct {
	Dir    string
	TTL    time.Duration // default DefaultTTL
	Logger common.ILogger
}

// record is the on-disk envelope: the AnimeInfo plus when it was fetched.
type record struct {
	Info      client.AnimeInfo `json:"info"`
	FetchedAt int64            `json:"fetched_at"`
}

// Cache is the persistent (ed2k, size) -> AnimeInfo store from spec §4.7.
// Writes are serialized by bbolt's single-writer transaction model; reads
// proceed lock-free against the last committed snapshot.
type Cache struct {
	db   *bbolt.DB
	path string
	ttl  time.Duration
	mu   sync.Mutex // guards nothing bbolt doesn't already guard; kept for symmetry with hashcache's write discipline
}

// Open opens (creating if absent) the identification cache database.
func Open(opts Options) (*Cache, error) {
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, common.WrapError(common.EErrorKind.Io(), "create identification cache directory", err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	dbPath := filepath.Join(opts.Dir, "identifications.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, common.WrapError(common.EErrorKind.CacheCorrupt(), "open identification cache", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, common.WrapError(common.EErrorKind.CacheCorrupt(), "initialize identification cache bucket", err)
	}
	return &Cache{db: db, path: dbPath, ttl: ttl}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

func key(ed2k string, size int64) []byte {
	return []byte(fmt.Sprintf("%s|%d", strings.ToLower(ed2k), size))
}

// Lookup returns the cached AnimeInfo for (ed2k, size) if present and not
// expired under the cache's TTL.
func (c *Cache) Lookup(ed2k string, size int64) (*client.AnimeInfo, error) {
	var raw []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get(key(ed2k, size))
		if v != nil {
			raw = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, common.WrapError(common.EErrorKind.CacheCorrupt(), "read identification cache", err)
	}
	if raw == nil {
		return nil, nil
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, common.WrapError(common.EErrorKind.CacheCorrupt(), "decode identification cache entry", err)
	}
	if time.Since(time.Unix(rec.FetchedAt, 0)) > c.ttl {
		return nil, nil
	}
	info := rec.Info
	return &info, nil
}

// Insert atomically upserts (ed2k, size) -> info, recording fetched_at as
// now.
func (c *Cache) Insert(ed2k string, size int64, info client.AnimeInfo) error {
	rec := record{Info: info, FetchedAt: time.Now().Unix()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return common.WrapError(common.EErrorKind.Unknown(), "encode identification cache entry", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(key(ed2k, size), raw)
	})
}

// Invalidate removes the (ed2k, size) entry, if any.
func (c *Cache) Invalidate(ed2k string, size int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key(ed2k, size))
	})
}
