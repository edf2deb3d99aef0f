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
	"encoding/binary"
	"fmt"

	"github.com/anidb-go/anidb-core/fingerprint"
	"github.com/anidb-go/anidb-core/hash"
)

// entry is the on-disk form of spec §3's CacheEntry, minus the fingerprint
// and algorithm (those are encoded in the bbolt key, not the value).
type entry struct {
	HashHex      string
	CreatedAt    int64
	LastAccessed int64
}

func encodeEntry(e entry) []byte {
	buf := make([]byte, 16+len(e.HashHex))
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.CreatedAt))
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.LastAccessed))
	copy(buf[16:], e.HashHex)
	return buf
}

func decodeEntry(b []byte) (entry, bool) {
	if len(b) < 16 {
		return entry{}, false
	}
	return entry{
		CreatedAt:    int64(binary.BigEndian.Uint64(b[0:8])),
		LastAccessed: int64(binary.BigEndian.Uint64(b[8:16])),
		HashHex:      string(b[16:]),
	}, true
}

// cacheKey encodes (fingerprint, algorithm) into the bbolt key space. The
// fingerprint IS the invalidation key (spec §3): if size or mtime drift,
// the key simply no longer matches anything stored, and lookups miss.
func cacheKey(fp fingerprint.File, alg hash.Algorithm) []byte {
	return []byte(fmt.Sprintf("%s\x00%d\x00%d\x00%s", fp.Path, fp.Size, fp.Mtime, alg.String()))
}
