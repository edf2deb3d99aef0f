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

package common

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy generalizes the teacher's NetworkRetryConfig/WithNetworkRetry
// helpers onto github.com/cenkalti/backoff/v4, which the module depends on
// for the protocol client's request retry behavior (spec §4.4: base delay,
// cap, max attempts). Unlike the teacher's hand-rolled exponential helper,
// backoff.ExponentialBackOff gives us jitter for free; its MaxElapsedTime
// cutoff is switched off, and MaxRetries alone bounds the attempts.
type RetryPolicy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

// DefaultRetryPolicy matches spec §4.4's protocol client defaults: base 2s,
// cap 30s, 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		MaxRetries: 2, // initial attempt + 2 retries = 3 attempts
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.MaxInterval = p.MaxDelay
	eb.MaxElapsedTime = 0 // bounded by MaxRetries, not wall-clock
	return backoff.WithMaxRetries(eb, uint64(p.MaxRetries))
}

// floorBackOff raises whatever the wrapped curve proposes up to floor,
// which Do mutates in place as each attempt's error dictates (see
// Error.MinDelay). A server-signaled minimum always wins over the curve.
type floorBackOff struct {
	backoff.BackOff
	floor *time.Duration
}

func (f *floorBackOff) NextBackOff() time.Duration {
	d := f.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if *f.floor > d {
		return *f.floor
	}
	return d
}

// Do runs fn, retrying per the policy while shouldRetry(err) is true and ctx
// is not done. It returns the last error if retries are exhausted. If an
// attempt's error carries a MinDelay (Error.MinDelay), the next wait is
// raised to at least that floor regardless of where the exponential curve
// would otherwise land.
func (p RetryPolicy) Do(ctx context.Context, shouldRetry func(error) bool, fn func() error) error {
	var floor time.Duration
	bo := &floorBackOff{BackOff: p.backOff(), floor: &floor}

	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		floor = MinDelayOf(err)
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}
