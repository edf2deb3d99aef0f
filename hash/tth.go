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

import "github.com/anidb-go/anidb-core/hash/tiger"

// TTHLeafSize is the fixed Merkle leaf size for the Tiger-Tree hash (spec
// §4.1).
const TTHLeafSize = 1024

// tthLevel is one pending node on the streaming reduction stack: a digest
// together with the number of leaves it summarizes, expressed as a tree
// level (level N covers 2^N leaves).
type tthLevel struct {
	level int
	sum   []byte
}

// tthState builds a Tiger-Tree hash incrementally, keeping only O(log(n))
// pending node digests in memory regardless of file size — the same
// "stack of carries" reduction a Merkle mountain range uses, so a level
// is only ever finalized once its sibling arrives.
type tthState struct {
	buf    [TTHLeafSize]byte
	bufLen int
	stack  []tthLevel
	wrote  bool
}

func newTTHState() *tthState {
	return &tthState{}
}

func (t *tthState) Write(p []byte) (int, error) {
	total := len(p)
	t.wrote = true
	for len(p) > 0 {
		n := copy(t.buf[t.bufLen:], p)
		t.bufLen += n
		p = p[n:]
		if t.bufLen == TTHLeafSize {
			t.pushLeaf(t.buf[:t.bufLen])
			t.bufLen = 0
		}
	}
	return total, nil
}

func (t *tthState) pushLeaf(leaf []byte) {
	h := tiger.New()
	h.Write([]byte{0x00})
	h.Write(leaf)
	t.merge(tthLevel{level: 0, sum: h.Sum(nil)})
}

func (t *tthState) merge(n tthLevel) {
	for len(t.stack) > 0 && t.stack[len(t.stack)-1].level == n.level {
		top := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]

		h := tiger.New()
		h.Write([]byte{0x01})
		h.Write(top.sum)
		h.Write(n.sum)
		n = tthLevel{level: n.level + 1, sum: h.Sum(nil)}
	}
	t.stack = append(t.stack, n)
}

func (t *tthState) sum() Value {
	// A trailing partial leaf (or the empty-file case, where no leaf was
	// ever pushed) still contributes one final leaf hash.
	if t.bufLen > 0 || !t.wrote {
		t.pushLeaf(t.buf[:t.bufLen])
		t.bufLen = 0
	}

	if len(t.stack) == 0 {
		panic("hash: tth stack empty after finalize")
	}

	acc := t.stack[len(t.stack)-1].sum
	for i := len(t.stack) - 2; i >= 0; i-- {
		h := tiger.New()
		h.Write([]byte{0x01})
		h.Write(t.stack[i].sum)
		h.Write(acc)
		acc = h.Sum(nil)
	}

	v, err := NewValue(EAlgorithm.TTH(), encodeBase32Lower(acc))
	if err != nil {
		panic(err)
	}
	return v
}
