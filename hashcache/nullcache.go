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

	"github.com/anidb-go/anidb-core/fingerprint"
	"github.com/anidb-go/anidb-core/hash"
	"github.com/anidb-go/anidb-core/pipeline"
)

// NullCache is the --no-cache in-memory stand-in from spec §4.2: every
// get_or_compute recomputes, and insert is a no-op.
type NullCache struct {
	MemoryCap   int64
	ED2KVariant hash.ED2KVariant
}

func (c *NullCache) GetOrCompute(ctx context.Context, path string, algorithms []hash.Algorithm) (fingerprint.Result, error) {
	res := pipeline.Run(ctx, path, pipeline.Options{
		Algorithms:  algorithms,
		MemoryCap:   c.MemoryCap,
		ED2KVariant: c.ED2KVariant,
	})
	return res, nil
}

func (c *NullCache) Clear() error                                           { return nil }
func (c *NullCache) Stats() (Stats, error)                                  { return Stats{}, nil }
func (c *NullCache) IsCached(path string, alg hash.Algorithm) (bool, error) { return false, nil }
func (c *NullCache) Close() error                                           { return nil }
