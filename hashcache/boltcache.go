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

package hashcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/sync/singleflight"

	"github.com/anidb-go/anidb-core/common"
	"github.com/anidb-go/anidb-core/fingerprint"
	"github.com/anidb-go/anidb-core/hash"
	"github.com/anidb-go/anidb-core/pipeline"
)

var bucketName = []byte("hashes")

// BoltCache is the persistent, process-safe hash cache (spec §4.2). It
// protects its bbolt store with bbolt's own single-writer/many-reader
// transaction model and coalesces concurrent get_or_compute calls for the
// same (fingerprint, miss-subset) with golang.org/x/sync/singleflight —
// the teacher depends on golang.org/x/sync already (for errgroup); this is
// the module's idiomatic single-flight primitive.
type BoltCache struct {
	db        *bbolt.DB
	path      string
	group     singleflight.Group
	memoryCap int64
	variant   hash.ED2KVariant
	logger    common.ILogger
}

// Options configures a BoltCache.
type Options struct {
	Dir         string // directory holding the bbolt file; created if absent
	MemoryCap   int64
	ED2KVariant hash.ED2KVariant
	Logger      common.ILogger
}

// Open opens (creating if absent) the hash cache database under opts.Dir.
func Open(opts Options) (*BoltCache, error) {
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, common.WrapError(common.EErrorKind.Io(), "create hash cache directory", err)
	}
	dbPath := filepath.Join(opts.Dir, "hashes.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, common.WrapError(common.EErrorKind.CacheCorrupt(), "open hash cache", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, common.WrapError(common.EErrorKind.CacheCorrupt(), "initialize hash cache bucket", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = common.NopLogger{}
	}
	return &BoltCache{
		db:        db,
		path:      dbPath,
		memoryCap: opts.MemoryCap,
		variant:   opts.ED2KVariant,
		logger:    logger,
	}, nil
}

func (c *BoltCache) Close() error { return c.db.Close() }

func (c *BoltCache) lookup(fp fingerprint.File, alg hash.Algorithm) (hash.Value, bool) {
	var found entry
	var ok bool
	_ = c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get(cacheKey(fp, alg))
		if v == nil {
			return nil
		}
		e, decOK := decodeEntry(v)
		if !decOK {
			return nil
		}
		found, ok = e, true
		return nil
	})
	if !ok {
		return hash.Value{}, false
	}
	val, err := hash.NewValue(alg, found.HashHex)
	if err != nil {
		return hash.Value{}, false
	}
	return val, true
}

func (c *BoltCache) insertAll(fp fingerprint.File, values map[hash.Algorithm]hash.Value) error {
	now := time.Now().Unix()
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		for alg, v := range values {
			e := entry{HashHex: v.Hex, CreatedAt: now, LastAccessed: now}
			if err := b.Put(cacheKey(fp, alg), encodeEntry(e)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetOrCompute implements spec §4.2's get_or_compute contract, including
// single-flight coalescing across concurrent callers that share the same
// fingerprint and miss-subset (spec §8, "Single-flight" property).
func (c *BoltCache) GetOrCompute(ctx context.Context, path string, algorithms []hash.Algorithm) (fingerprint.Result, error) {
	fp, err := fingerprint.Stat(path)
	if err != nil {
		return fingerprint.Result{}, common.WrapError(statKind(err), "stat file", err)
	}

	hits := make(map[hash.Algorithm]hash.Value, len(algorithms))
	var misses []hash.Algorithm
	for _, a := range algorithms {
		if v, ok := c.lookup(fp, a); ok {
			hits[a] = v
		} else {
			misses = append(misses, a)
		}
	}

	if len(misses) == 0 {
		return fingerprint.Result{
			File:      fp,
			Status:    fingerprint.EStatus.Completed(),
			Hashes:    hits,
			FromCache: true,
		}, nil
	}

	key := singleflightKey(fp, misses)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Runs on a cache-owned context: one caller's cancellation must
		// not abort the computation other concurrent waiters depend on
		// (spec §4.2, single-flight; spec §5, every suspension point
		// honors its OWN caller's cancel signal).
		res := pipeline.Run(context.Background(), fp.Path, pipeline.Options{
			Algorithms:  misses,
			MemoryCap:   c.memoryCap,
			ED2KVariant: c.variant,
		})
		if res.Status == fingerprint.EStatus.Completed() {
			if err := c.insertAll(fp, res.Hashes); err != nil {
				c.logger.Log(common.ELogLevel.Warning(), "hash cache: insert failed: "+err.Error())
			}
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return fingerprint.Result{File: fp, Status: fingerprint.EStatus.Cancelled()}, ctx.Err()
	case r := <-ch:
		res := r.Val.(fingerprint.Result)
		if res.Status != fingerprint.EStatus.Completed() {
			return res, nil
		}
		merged := make(map[hash.Algorithm]hash.Value, len(hits)+len(res.Hashes))
		for a, v := range hits {
			merged[a] = v
		}
		for a, v := range res.Hashes {
			merged[a] = v
		}
		return fingerprint.Result{
			File:             fp,
			Status:           fingerprint.EStatus.Completed(),
			Hashes:           merged,
			ProcessingTimeMS: res.ProcessingTimeMS,
			FromCache:        false,
		}, nil
	}
}

func (c *BoltCache) Clear() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

func (c *BoltCache) Stats() (Stats, error) {
	var n int
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		n = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return Stats{}, common.WrapError(common.EErrorKind.CacheCorrupt(), "read hash cache stats", err)
	}
	info, err := os.Stat(c.path)
	var size int64
	if err == nil {
		size = info.Size()
	}
	return Stats{TotalEntries: n, SizeBytes: size}, nil
}

func (c *BoltCache) IsCached(path string, alg hash.Algorithm) (bool, error) {
	fp, err := fingerprint.Stat(path)
	if err != nil {
		return false, common.WrapError(statKind(err), "stat file", err)
	}
	_, ok := c.lookup(fp, alg)
	return ok, nil
}

func singleflightKey(fp fingerprint.File, algorithms []hash.Algorithm) string {
	names := make([]string, len(algorithms))
	for i, a := range algorithms {
		names[i] = a.String()
	}
	sort.Strings(names)
	return fmt.Sprintf("%s|%d|%d|%s", fp.Path, fp.Size, fp.Mtime, strings.Join(names, ","))
}

func statKind(err error) common.ErrorKind {
	if os.IsNotExist(err) {
		return common.EErrorKind.FileNotFound()
	}
	if os.IsPermission(err) {
		return common.EErrorKind.PermissionDenied()
	}
	return common.EErrorKind.Io()
}
