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
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anidb-go/anidb-core/fingerprint"
	"github.com/anidb-go/anidb-core/hash"
)

func newTestCache(t *testing.T) (*BoltCache, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "hashcache-test")
	assert.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	c, err := Open(Options{Dir: dir, MemoryCap: 1 << 20})
	assert.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, dir
}

func writeTempFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestGetOrComputeCachesOnSecondCall(t *testing.T) {
	a := assert.New(t)
	c, dir := newTestCache(t)
	path := writeTempFile(t, dir, "a.bin", []byte("hello world"))

	first, err := c.GetOrCompute(context.Background(), path, []hash.Algorithm{hash.EAlgorithm.MD5()})
	a.NoError(err)
	a.False(first.FromCache)
	a.Equal(fingerprint.EStatus.Completed(), first.Status)

	second, err := c.GetOrCompute(context.Background(), path, []hash.Algorithm{hash.EAlgorithm.MD5()})
	a.NoError(err)
	a.True(second.FromCache)
	a.Equal(first.Hashes[hash.EAlgorithm.MD5()].Hex, second.Hashes[hash.EAlgorithm.MD5()].Hex)
}

func TestGetOrComputeMergesPartialHits(t *testing.T) {
	a := assert.New(t)
	c, dir := newTestCache(t)
	path := writeTempFile(t, dir, "b.bin", []byte("partial hit content"))

	_, err := c.GetOrCompute(context.Background(), path, []hash.Algorithm{hash.EAlgorithm.MD5()})
	a.NoError(err)

	res, err := c.GetOrCompute(context.Background(), path, []hash.Algorithm{hash.EAlgorithm.MD5(), hash.EAlgorithm.SHA1()})
	a.NoError(err)
	a.False(res.FromCache) // SHA1 was a miss, so this call recomputed
	a.Len(res.Hashes, 2)
	a.True(hash.EAlgorithm.SHA1().Validate(res.Hashes[hash.EAlgorithm.SHA1()].Hex))
}

func TestClearRemovesAllEntries(t *testing.T) {
	a := assert.New(t)
	c, dir := newTestCache(t)
	path := writeTempFile(t, dir, "c.bin", []byte("clear me"))

	_, err := c.GetOrCompute(context.Background(), path, []hash.Algorithm{hash.EAlgorithm.MD5()})
	a.NoError(err)

	stats, err := c.Stats()
	a.NoError(err)
	a.Equal(1, stats.TotalEntries)

	a.NoError(c.Clear())
	stats, err = c.Stats()
	a.NoError(err)
	a.Equal(0, stats.TotalEntries)

	ok, err := c.IsCached(path, hash.EAlgorithm.MD5())
	a.NoError(err)
	a.False(ok)
}

func TestGetOrComputeSingleFlightsConcurrentCallers(t *testing.T) {
	a := assert.New(t)
	c, dir := newTestCache(t)
	path := writeTempFile(t, dir, "d.bin", make([]byte, 512*1024))

	const concurrency = 8
	var wg sync.WaitGroup
	var successes int64
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.GetOrCompute(context.Background(), path, []hash.Algorithm{hash.EAlgorithm.SHA1()})
			if err == nil && res.Status == fingerprint.EStatus.Completed() {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()
	a.EqualValues(concurrency, successes)

	stats, err := c.Stats()
	a.NoError(err)
	a.Equal(1, stats.TotalEntries)
}

func TestIsCachedReflectsPriorInsert(t *testing.T) {
	a := assert.New(t)
	c, dir := newTestCache(t)
	path := writeTempFile(t, dir, "e.bin", []byte("is it cached"))

	ok, err := c.IsCached(path, hash.EAlgorithm.CRC32())
	a.NoError(err)
	a.False(ok)

	_, err = c.GetOrCompute(context.Background(), path, []hash.Algorithm{hash.EAlgorithm.CRC32()})
	a.NoError(err)

	ok, err = c.IsCached(path, hash.EAlgorithm.CRC32())
	a.NoError(err)
	a.True(ok)
}
