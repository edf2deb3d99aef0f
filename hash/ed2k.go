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

package hash

import (
	"encoding/hex"

	"golang.org/x/crypto/md4"
)

// ED2KBlockSize is the fixed block size ED2K hashes files over (spec §4.1).
const ED2KBlockSize = 9_728_000

// ED2KVariant selects between the "red" and "blue" ED2K conventions for the
// single-block case (spec §9, Open Question). Red is the catalog-compatible
// default: a file of at most one block returns that block's MD4 directly.
// Blue always returns the MD4 of the concatenated per-block digests, even
// for a single block.
type ED2KVariant uint8

const (
	ED2KRed ED2KVariant = iota
	ED2KBlue
)

type ed2kState struct {
	variant ED2KVariant
	cur     *md4Hasher
	curLen  int64
	blocks  [][]byte
}

func newED2KState(variant ED2KVariant) *ed2kState {
	return &ed2kState{variant: variant, cur: newMD4Hasher()}
}

func (e *ed2kState) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		space := int64(ED2KBlockSize) - e.curLen
		n := int64(len(p))
		if n > space {
			n = space
		}
		e.cur.Write(p[:n])
		e.curLen += n
		p = p[n:]
		if e.curLen == ED2KBlockSize {
			e.blocks = append(e.blocks, e.cur.Sum())
			e.cur = newMD4Hasher()
			e.curLen = 0
		}
	}
	return total, nil
}

func (e *ed2kState) sum() Value {
	blocks := e.blocks
	if e.curLen > 0 || len(blocks) == 0 {
		blocks = append(append([][]byte{}, blocks...), e.cur.Sum())
	}

	var digest []byte
	if len(blocks) == 1 && e.variant == ED2KRed {
		digest = blocks[0]
	} else {
		outer := newMD4Hasher()
		for _, b := range blocks {
			outer.Write(b)
		}
		digest = outer.Sum()
	}

	v, err := NewValue(EAlgorithm.ED2K(), hex.EncodeToString(digest))
	if err != nil {
		panic(err)
	}
	return v
}

// md4Hasher is a tiny wrapper so ed2kState doesn't need to import "hash"
// just to hold a hash.Hash field.
type md4Hasher struct {
	h interface {
		Write([]byte) (int, error)
		Sum([]byte) []byte
	}
}

func newMD4Hasher() *md4Hasher {
	return &md4Hasher{h: md4.New()}
}

func (m *md4Hasher) Write(p []byte) { m.h.Write(p) }
func (m *md4Hasher) Sum() []byte    { return m.h.Sum(nil) }
