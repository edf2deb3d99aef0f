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

import "fmt"

// Value is a (Algorithm, encoded string) pair. The invariant from spec §3 is
// enforced by NewValue: the string's length matches the algorithm's fixed
// output length and every character is drawn from its declared alphabet.
type Value struct {
	Algorithm Algorithm
	Hex       string
}

// NewValue validates s against alg before constructing a Value.
func NewValue(alg Algorithm, s string) (Value, error) {
	if !alg.Validate(s) {
		return Value{}, fmt.Errorf("hash: invalid %s value %q", alg, s)
	}
	return Value{Algorithm: alg, Hex: s}, nil
}

func (v Value) String() string {
	return v.Hex
}
