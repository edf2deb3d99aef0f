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

// Package hash computes the five content fingerprints the catalog and the
// identification cache key on: ED2K, CRC32, MD5, SHA-1 and TTH. Algorithm is
// modeled as a closed enumeration the same way the teacher models its own
// closed enumerations (github.com/JeffreyRichter/enum, a narrow integer
// newtype with package-level sentinel methods).
package hash

import (
	"reflect"
	"strings"

	"github.com/JeffreyRichter/enum/enum"
)

// Algorithm is the closed set of supported fingerprints (spec §3).
type Algorithm uint8

const (
	algUnknown Algorithm = iota
	algED2K
	algCRC32
	algMD5
	algSHA1
	algTTH
)

var EAlgorithm = Algorithm(algUnknown)

func (Algorithm) ED2K() Algorithm  { return Algorithm(algED2K) }
func (Algorithm) CRC32() Algorithm { return Algorithm(algCRC32) }
func (Algorithm) MD5() Algorithm   { return Algorithm(algMD5) }
func (Algorithm) SHA1() Algorithm  { return Algorithm(algSHA1) }
func (Algorithm) TTH() Algorithm   { return Algorithm(algTTH) }

func (a *Algorithm) Parse(s string) error {
	val, err := enum.ParseInt(reflect.TypeOf(a), s, true, true)
	if err == nil {
		*a = val.(Algorithm)
	}
	return err
}

func (a Algorithm) String() string {
	switch a {
	case EAlgorithm.ED2K():
		return "ED2K"
	case EAlgorithm.CRC32():
		return "CRC32"
	case EAlgorithm.MD5():
		return "MD5"
	case EAlgorithm.SHA1():
		return "SHA1"
	case EAlgorithm.TTH():
		return "TTH"
	default:
		return enum.StringInt(a, reflect.TypeOf(a))
	}
}

const hexAlphabet = "0123456789abcdef"
const base32Alphabet = "abcdefghijklmnopqrstuvwxyz234567"

// OutputLength returns the fixed string length of this algorithm's encoded
// output (spec §3, HashValue invariant).
func (a Algorithm) OutputLength() int {
	switch a {
	case EAlgorithm.ED2K(), EAlgorithm.MD5():
		return 32
	case EAlgorithm.CRC32():
		return 8
	case EAlgorithm.SHA1():
		return 40
	case EAlgorithm.TTH():
		return 39
	default:
		return 0
	}
}

// Alphabet returns the set of characters valid in this algorithm's encoded
// output.
func (a Algorithm) Alphabet() string {
	if a == EAlgorithm.TTH() {
		return base32Alphabet
	}
	return hexAlphabet
}

// Validate reports whether s is a well-formed encoded output for a: correct
// length and drawn only from the declared alphabet.
func (a Algorithm) Validate(s string) bool {
	if len(s) != a.OutputLength() {
		return false
	}
	alphabet := a.Alphabet()
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}

// All returns every supported algorithm in a stable order.
func All() []Algorithm {
	return []Algorithm{
		EAlgorithm.ED2K(),
		EAlgorithm.CRC32(),
		EAlgorithm.MD5(),
		EAlgorithm.SHA1(),
		EAlgorithm.TTH(),
	}
}
