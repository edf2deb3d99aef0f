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

package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anidb-go/anidb-core/fingerprint"
	"github.com/anidb-go/anidb-core/hash"
	"github.com/anidb-go/anidb-core/hashcache"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir, err := os.MkdirTemp("", "engine")
	assert.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	cache, err := hashcache.Open(hashcache.Options{Dir: dir, ED2KVariant: hash.ED2KRed})
	assert.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return New(Options{Cache: cache})
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "engine-files")
	assert.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "sample.bin")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestProcessFileComputesThenServesFromCache(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)
	path := writeTempFile(t, "hello world")

	first := e.ProcessFile(context.Background(), path, ProcessFileOptions{Algorithms: []hash.Algorithm{hash.EAlgorithm.CRC32()}})
	a.Equal(fingerprint.EStatus.Completed(), first.Status)
	a.False(first.FromCache)

	second := e.ProcessFile(context.Background(), path, ProcessFileOptions{Algorithms: []hash.Algorithm{hash.EAlgorithm.CRC32()}})
	a.Equal(fingerprint.EStatus.Completed(), second.Status)
	a.True(second.FromCache)
	a.Equal(first.Hashes[hash.EAlgorithm.CRC32()].Hex, second.Hashes[hash.EAlgorithm.CRC32()].Hex)
}

func TestProcessFileVerifyExistingBypassesCache(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)
	path := writeTempFile(t, "hello world")

	_ = e.ProcessFile(context.Background(), path, ProcessFileOptions{Algorithms: []hash.Algorithm{hash.EAlgorithm.CRC32()}})

	verified := e.ProcessFile(context.Background(), path, ProcessFileOptions{
		Algorithms:     []hash.Algorithm{hash.EAlgorithm.CRC32()},
		VerifyExisting: true,
	})
	a.Equal(fingerprint.EStatus.Completed(), verified.Status)
	a.False(verified.FromCache)
}

func TestProcessFileReportsFailureForMissingFile(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)

	res := e.ProcessFile(context.Background(), "/nonexistent/does-not-exist.bin", ProcessFileOptions{
		Algorithms: []hash.Algorithm{hash.EAlgorithm.CRC32()},
	})
	a.Equal(fingerprint.EStatus.Failed(), res.Status)
	a.NotEmpty(res.Error)
}

func TestProcessFilePublishesLifecycleEvents(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)
	path := writeTempFile(t, "hello world")

	var mu sync.Mutex
	var kinds []string
	handle := e.ConnectEvents(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	})
	defer e.DisconnectEvents(handle)

	e.ProcessFile(context.Background(), path, ProcessFileOptions{Algorithms: []hash.Algorithm{hash.EAlgorithm.CRC32()}})

	mu.Lock()
	defer mu.Unlock()
	a.Contains(kinds, "file_completed")
}

func TestDisconnectEventsStopsDelivery(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)
	path := writeTempFile(t, "hello world")

	var mu sync.Mutex
	count := 0
	handle := e.ConnectEvents(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})
	e.DisconnectEvents(handle)

	e.ProcessFile(context.Background(), path, ProcessFileOptions{Algorithms: []hash.Algorithm{hash.EAlgorithm.CRC32()}})

	mu.Lock()
	defer mu.Unlock()
	a.Equal(0, count)
}

func TestProcessBatchPreservesInputOrder(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)
	paths := []string{
		writeTempFile(t, "one"),
		writeTempFile(t, "two"),
		writeTempFile(t, "three"),
	}

	result := e.ProcessBatch(context.Background(), paths, ProcessBatchOptions{
		Algorithms:    []hash.Algorithm{hash.EAlgorithm.CRC32()},
		MaxConcurrent: 2,
	})
	a.Len(result.Results, 3)
	for i, r := range result.Results {
		a.Equal(paths[i], r.File.Path)
		a.Equal(fingerprint.EStatus.Completed(), r.Status)
	}
}

func TestProcessBatchAbortsSiblingsOnFailureByDefault(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)
	paths := []string{
		"/nonexistent/missing-one.bin",
		writeTempFile(t, "should not necessarily run"),
	}

	result := e.ProcessBatch(context.Background(), paths, ProcessBatchOptions{
		Algorithms:    []hash.Algorithm{hash.EAlgorithm.CRC32()},
		MaxConcurrent: 1,
	})
	a.Len(result.Results, 2)
	a.Equal(fingerprint.EStatus.Failed(), result.Results[0].Status)
}

func TestProcessBatchContinueOnErrorRunsAllSiblings(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)
	paths := []string{
		"/nonexistent/missing-one.bin",
		writeTempFile(t, "still runs"),
	}

	result := e.ProcessBatch(context.Background(), paths, ProcessBatchOptions{
		Algorithms:      []hash.Algorithm{hash.EAlgorithm.CRC32()},
		ContinueOnError: true,
	})
	a.Equal(fingerprint.EStatus.Failed(), result.Results[0].Status)
	a.Equal(fingerprint.EStatus.Completed(), result.Results[1].Status)
}

func TestProcessBatchSkipExistingSkipsCachedFiles(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)
	path := writeTempFile(t, "already cached")

	e.ProcessFile(context.Background(), path, ProcessFileOptions{Algorithms: []hash.Algorithm{hash.EAlgorithm.CRC32()}})

	result := e.ProcessBatch(context.Background(), []string{path}, ProcessBatchOptions{
		Algorithms:   []hash.Algorithm{hash.EAlgorithm.CRC32()},
		SkipExisting: true,
	})
	a.Equal(fingerprint.Result{}, result.Results[0])
}

func TestCalculateHashBypassesCache(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)
	path := writeTempFile(t, "abc")

	hex, err := e.CalculateHash(context.Background(), path, hash.EAlgorithm.CRC32())
	a.NoError(err)
	a.Equal("352441c2", hex)

	cached, err := e.IsCached(path, hash.EAlgorithm.CRC32())
	a.NoError(err)
	a.False(cached)
}

func TestIdentifyFailsWithoutClientOrCache(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)

	_, err := e.Identify(context.Background(), "aabbcc", 10)
	a.Error(err)
}

func TestCacheStatsAndClear(t *testing.T) {
	a := assert.New(t)
	e := newTestEngine(t)
	path := writeTempFile(t, "data")

	e.ProcessFile(context.Background(), path, ProcessFileOptions{Algorithms: []hash.Algorithm{hash.EAlgorithm.CRC32()}})

	stats, err := e.CacheStats()
	a.NoError(err)
	a.Equal(1, stats.TotalEntries)

	a.NoError(e.CacheClear())
	stats, err = e.CacheStats()
	a.NoError(err)
	a.Equal(0, stats.TotalEntries)
}
