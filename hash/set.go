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

// Set owns one init()'d state per requested algorithm for a single run and
// feeds every algorithm the same byte slices (spec §4.1: "All five states
// are updated by the same byte chunks in one pass"). It is not safe for
// concurrent use; the pipeline that owns a Set serializes all Write calls.
type Set struct {
	states map[Algorithm]state
	order  []Algorithm
}

// NewSet builds a hasher set for algorithms, each init()'d and ready for
// Write. variant controls the ED2K single-block convention.
func NewSet(algorithms []Algorithm, variant ED2KVariant) *Set {
	s := &Set{states: make(map[Algorithm]state, len(algorithms))}
	for _, a := range algorithms {
		if _, ok := s.states[a]; ok {
			continue
		}
		s.states[a] = newState(a, variant)
		s.order = append(s.order, a)
	}
	return s
}

// Write feeds p to every algorithm in the set.
func (s *Set) Write(p []byte) {
	for _, a := range s.order {
		s.states[a].Write(p)
	}
}

// Finalize finalizes every algorithm in the set exactly once and returns
// their results. Calling Finalize a second time on the same Set is
// undefined; callers should discard the Set afterward.
func (s *Set) Finalize() map[Algorithm]Value {
	out := make(map[Algorithm]Value, len(s.order))
	for _, a := range s.order {
		out[a] = s.states[a].sum()
	}
	return out
}

// Algorithms returns the algorithms this set was constructed with, in
// request order.
func (s *Set) Algorithms() []Algorithm {
	out := make([]Algorithm, len(s.order))
	copy(out, s.order)
	return out
}
