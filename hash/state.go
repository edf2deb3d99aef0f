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
	"crypto/md5"
	"crypto/sha1"
	"encoding/base32"
	"encoding/hex"
	"hash"
	"hash/crc32"
	"strings"
)

// state is the three-operation contract from spec §4.1: init() happens in
// the constructor, update() is Write, finalize() is sum(). Every algorithm's
// state is fed the same byte slices in a single pass by Set.
type state interface {
	Write(p []byte) (int, error)
	sum() Value
}

// newState builds the init()'d state for alg. The ED2K state keeps a running
// MD4 of the current block plus one digest per finished block, and the TTH
// state buffers one leaf plus a handful of pending tree levels; the other
// three are thin wrappers over stdlib hash.Hash, the idiomatic Go way to
// compute CRC32/MD5/SHA-1 incrementally.
func newState(alg Algorithm, variant ED2KVariant) state {
	switch alg {
	case EAlgorithm.ED2K():
		return newED2KState(variant)
	case EAlgorithm.CRC32():
		return &stdState{alg: alg, h: crc32.NewIEEE()}
	case EAlgorithm.MD5():
		return &stdState{alg: alg, h: md5.New()}
	case EAlgorithm.SHA1():
		return &stdState{alg: alg, h: sha1.New()}
	case EAlgorithm.TTH():
		return newTTHState()
	default:
		panic("hash: unsupported algorithm " + alg.String())
	}
}

// stdState adapts a stdlib hash.Hash (CRC32/MD5/SHA-1) to the state
// contract, hex-encoding its raw digest on finalize.
type stdState struct {
	alg Algorithm
	h   hash.Hash
}

func (s *stdState) Write(p []byte) (int, error) { return s.h.Write(p) }

func (s *stdState) sum() Value {
	v, err := NewValue(s.alg, hex.EncodeToString(s.h.Sum(nil)))
	if err != nil {
		panic(err) // stdlib digest length is fixed; a mismatch is a programming error
	}
	return v
}

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

func encodeBase32Lower(b []byte) string {
	return strings.ToLower(base32NoPad.EncodeToString(b))
}
