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

// Package hashcache implements the content-addressed, concurrency-safe hash
// result cache from spec §4.2: keyed on (FileFingerprint, Algorithm), with
// at-most-one in-flight computation per requested subset.
package hashcache

import (
	"context"

	"github.com/anidb-go/anidb-core/fingerprint"
	"github.com/anidb-go/anidb-core/hash"
)

// Stats reports aggregate cache counters (spec §4.2).
type Stats struct {
	TotalEntries int
	SizeBytes    int64
}

// Cache is the contract exposed to the pipeline caller. Implementations:
// BoltCache (persistent, single-flight coalescing) and NullCache (the
// --no-cache in-memory stand-in that always recomputes).
type Cache interface {
	GetOrCompute(ctx context.Context, path string, algorithms []hash.Algorithm) (fingerprint.Result, error)
	Clear() error
	Stats() (Stats, error)
	IsCached(path string, alg hash.Algorithm) (bool, error)
	Close() error
}
