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

// Package core exposes the public API surface of spec §6.1 — the facade an
// out-of-scope CLI or language binding drives: process_file, process_batch,
// calculate_hash, identify, the cache introspection operations, and the
// event pub/sub. It composes every other package without introducing a
// parent back-reference anywhere (spec §9's cycle-free graph).
package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"

	"github.com/anidb-go/anidb-core/anidb/client"
	"github.com/anidb-go/anidb-core/anidb/idcache"
	"github.com/anidb-go/anidb-core/common"
	"github.com/anidb-go/anidb-core/fingerprint"
	"github.com/anidb-go/anidb-core/hash"
	"github.com/anidb-go/anidb-core/hashcache"
	"github.com/anidb-go/anidb-core/pipeline"
)

// FileResult is process_file's return value: fingerprint.Result under its
// public name in this package's API surface.
type FileResult = fingerprint.Result

// ProcessFileOptions configures one process_file call (spec §6.1).
type ProcessFileOptions struct {
	Algorithms     []hash.Algorithm
	EnableProgress bool
	VerifyExisting bool // bypass the cache and recompute even on a hit
	ProgressSink   fingerprint.ProgressFunc
}

// ProcessBatchOptions configures one process_batch call (spec §6.1).
type ProcessBatchOptions struct {
	Algorithms      []hash.Algorithm
	MaxConcurrent   int // default 4
	ContinueOnError bool
	SkipExisting    bool
	ProgressSink    fingerprint.ProgressFunc
}

// BatchResult reports the outcome of process_batch: one FileResult per
// input path, in input order.
type BatchResult struct {
	Results []FileResult
}

// Options configures a new Engine. All fields are optional; Cache defaults
// to an in-memory hashcache.NullCache, and the AniDB client collaborators
// are optional — Identify returns an error if Client is nil.
type Options struct {
	Cache   hashcache.Cache
	IDCache *idcache.Cache
	Client  *client.Client
	Logger  common.ILogger
}

// Engine is the reentrant, per-instance facade of spec §9's "global state
// removal": every one-time setup happens in New, and nothing here is a
// package-level global, so tests may construct many independent Engines
// concurrently.
type Engine struct {
	cache   hashcache.Cache
	idcache *idcache.Cache
	client  *client.Client
	logger  common.ILogger
	events  *eventBus
}

// New constructs an Engine from its collaborators.
func New(opts Options) *Engine {
	cache := opts.Cache
	if cache == nil {
		cache = &hashcache.NullCache{MemoryCap: pipeline.DefaultMemoryCap}
	}
	logger := opts.Logger
	if logger == nil {
		logger = common.NopLogger{}
	}
	return &Engine{
		cache:   cache,
		idcache: opts.IDCache,
		client:  opts.Client,
		logger:  logger,
		events:  newEventBus(),
	}
}

// ConnectEvents registers sink for every Engine event and returns a handle
// to pass to DisconnectEvents.
func (e *Engine) ConnectEvents(sink EventSink) int {
	return e.events.connect(sink)
}

// DisconnectEvents removes a previously connected sink.
func (e *Engine) DisconnectEvents(handle int) {
	e.events.disconnect(handle)
}

// ProcessFile hashes one file through the cache (spec §6.1, process_file).
// Progress (to ProgressSink and as "progress" events) is reported only when
// VerifyExisting is set; the cache path reports no progress.
func (e *Engine) ProcessFile(ctx context.Context, path string, opts ProcessFileOptions) FileResult {
	progress := opts.ProgressSink
	if opts.EnableProgress && progress != nil {
		wrapped := progress
		progress = func(processed, total int64) {
			wrapped(processed, total)
			e.events.publish(Event{Kind: "progress", Path: path, BytesProcessed: processed, TotalBytes: total})
		}
	}

	var res FileResult
	if opts.VerifyExisting {
		res = pipeline.Run(ctx, path, pipeline.Options{Algorithms: opts.Algorithms, Progress: progress})
	} else {
		var err error
		res, err = e.cache.GetOrCompute(ctx, path, opts.Algorithms)
		if err != nil && res.Status != fingerprint.EStatus.Cancelled() {
			res = fingerprint.Result{
				File:   fingerprint.File{Path: path},
				Status: fingerprint.EStatus.Failed(),
				Error:  err.Error(),
			}
		}
	}

	if res.Status == fingerprint.EStatus.Completed() {
		e.events.publish(Event{Kind: "file_completed", Path: path, Result: &res})
	} else if res.Status == fingerprint.EStatus.Failed() {
		e.events.publish(Event{Kind: "file_failed", Path: path, Result: &res})
	}
	return res
}

// ProcessBatch hashes paths concurrently, bounded by opts.MaxConcurrent
// (spec §6.1, process_batch). Results preserve input order regardless of
// completion order.
func (e *Engine) ProcessBatch(ctx context.Context, paths []string, opts ProcessBatchOptions) BatchResult {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	sem := semaphore.NewWeighted(int64(maxConcurrent))
	results := make([]FileResult, len(paths))
	var wg sync.WaitGroup

	// Without continue_on_error, one file's failure aborts its siblings
	// (spec §7): cancel a child context derived from the caller's ctx, so
	// in-flight workers unwind via their own cancellation checks rather
	// than being forcibly killed.
	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	for i, path := range paths {
		if opts.SkipExisting {
			allCached := true
			for _, a := range opts.Algorithms {
				ok, _ := e.cache.IsCached(path, a)
				if !ok {
					allCached = false
					break
				}
			}
			if allCached {
				continue
			}
		}

		if err := sem.Acquire(runCtx, 1); err != nil {
			results[i] = FileResult{
				File:   fingerprint.File{Path: path},
				Status: fingerprint.EStatus.Cancelled(),
			}
			continue
		}

		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer sem.Release(1)
			res := e.ProcessFile(runCtx, path, ProcessFileOptions{
				Algorithms:     opts.Algorithms,
				EnableProgress: opts.ProgressSink != nil,
				ProgressSink:   opts.ProgressSink,
			})
			results[i] = res
			if res.Status == fingerprint.EStatus.Failed() && !opts.ContinueOnError {
				abort()
			}
		}(i, path)
	}
	wg.Wait()

	return BatchResult{Results: results}
}

// CalculateHash hashes path with a single algorithm, bypassing the cache
// entirely (spec §6.1, calculate_hash).
func (e *Engine) CalculateHash(ctx context.Context, path string, alg hash.Algorithm) (string, error) {
	res := pipeline.Run(ctx, path, pipeline.Options{Algorithms: []hash.Algorithm{alg}})
	if res.Status != fingerprint.EStatus.Completed() {
		return "", common.NewError(common.EErrorKind.Io(), res.Error)
	}
	return res.Hashes[alg].Hex, nil
}

// Identify resolves (ed2k, size) to catalog metadata, consulting the
// identification cache before the protocol client (spec §4.7, §6.1).
func (e *Engine) Identify(ctx context.Context, ed2k string, size int64) (*client.AnimeInfo, error) {
	if e.idcache != nil {
		info, err := e.idcache.Lookup(ed2k, size)
		if err != nil {
			e.logger.Log(common.ELogLevel.Warning(), "identification cache lookup failed: "+err.Error())
		} else if info != nil {
			return info, nil
		}
	}
	if e.client == nil {
		return nil, common.NewError(common.EErrorKind.InvalidInput(), "identify: no protocol client configured")
	}
	info, err := e.client.Identify(ctx, ed2k, size)
	if err != nil {
		return nil, err
	}
	if info != nil && e.idcache != nil {
		_ = e.idcache.Insert(ed2k, size, *info)
	}
	return info, nil
}

// CacheStats reports the hash cache's aggregate counters (spec §6.1,
// cache_stats).
func (e *Engine) CacheStats() (hashcache.Stats, error) {
	stats, err := e.cache.Stats()
	if err != nil {
		return hashcache.Stats{}, err
	}
	e.logger.Log(common.ELogLevel.Info(), fmt.Sprintf(
		"hash cache: %d entries, %s", stats.TotalEntries, humanize.Bytes(uint64(stats.SizeBytes))))
	return stats, nil
}

// CacheClear removes every hash cache entry (spec §6.1, cache_clear).
func (e *Engine) CacheClear() error {
	return e.cache.Clear()
}

// IsCached reports whether path's alg hash is already cached (spec §6.1,
// is_cached).
func (e *Engine) IsCached(path string, alg hash.Algorithm) (bool, error) {
	return e.cache.IsCached(path, alg)
}

// Close releases the Engine's owned resources.
func (e *Engine) Close() error {
	return e.cache.Close()
}
