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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicySucceedsWithoutRetrying(t *testing.T) {
	a := assert.New(t)
	p := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxRetries: 3}

	calls := 0
	err := p.Do(context.Background(), func(error) bool { return true }, func() error {
		calls++
		return nil
	})
	a.NoError(err)
	a.Equal(1, calls)
}

func TestRetryPolicyRetriesUntilSuccess(t *testing.T) {
	a := assert.New(t)
	p := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxRetries: 5}

	calls := 0
	err := p.Do(context.Background(), func(error) bool { return true }, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	a.NoError(err)
	a.Equal(3, calls)
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	a := assert.New(t)
	p := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxRetries: 5}

	calls := 0
	sentinel := errors.New("permanent")
	err := p.Do(context.Background(), func(error) bool { return false }, func() error {
		calls++
		return sentinel
	})
	a.Error(err)
	a.Equal(1, calls)
}

func TestRetryPolicyExhaustsMaxRetries(t *testing.T) {
	a := assert.New(t)
	p := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxRetries: 2}

	calls := 0
	err := p.Do(context.Background(), func(error) bool { return true }, func() error {
		calls++
		return errors.New("always fails")
	})
	a.Error(err)
	a.Equal(3, calls) // initial attempt + MaxRetries retries
}

func TestRetryPolicyHonorsErrorMinDelayFloor(t *testing.T) {
	a := assert.New(t)
	// BaseDelay alone would retry near-instantly; MinDelay raises the
	// first wait to a floor the curve wouldn't otherwise reach.
	p := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: time.Second, MaxRetries: 1}
	floor := 40 * time.Millisecond

	calls := 0
	start := time.Now()
	err := p.Do(context.Background(), func(error) bool { return true }, func() error {
		calls++
		if calls == 1 {
			return NewErrorWithMinDelay(EErrorKind.Network(), "paused", floor)
		}
		return nil
	})
	a.NoError(err)
	a.Equal(2, calls)
	a.GreaterOrEqual(time.Since(start), floor)
}

func TestRetryPolicyStopsOnContextCancellation(t *testing.T) {
	a := assert.New(t)
	p := RetryPolicy{BaseDelay: 50 * time.Millisecond, MaxDelay: 100 * time.Millisecond, MaxRetries: 10}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, func(error) bool { return true }, func() error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errors.New("still failing")
	})
	a.Error(err)
}
