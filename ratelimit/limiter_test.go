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

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquireGrantsNoFasterThanInterval(t *testing.T) {
	a := assert.New(t)
	l := New(30 * time.Millisecond)
	defer l.Close()

	start := time.Now()
	a.NoError(l.Acquire(context.Background()))
	a.NoError(l.Acquire(context.Background()))
	elapsed := time.Since(start)

	// Two grants require at least one full tick between them.
	a.GreaterOrEqual(elapsed, 25*time.Millisecond)
}

func TestAcquirePreservesFIFOOrder(t *testing.T) {
	a := assert.New(t)
	l := New(15 * time.Millisecond)
	defer l.Close()

	const waiters = 5
	order := make([]int, 0, waiters)
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Enqueue strictly in order, with a small stagger so each goroutine's
	// Acquire call reaches the queue before the next one starts.
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a.NoError(l.Acquire(context.Background()))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}(i)
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	for i := 0; i < waiters; i++ {
		a.Equal(i, order[i], "grant %d arrived out of FIFO order", i)
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	a := assert.New(t)
	l := New(time.Hour) // effectively never ticks within this test
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Acquire(ctx)
	a.Error(err)
	a.Less(time.Since(start), time.Second)
}

func TestCloseStopsGrantingFutureSlots(t *testing.T) {
	a := assert.New(t)
	l := New(10 * time.Millisecond)
	a.NoError(l.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Once closed, a not-yet-enqueued caller observes l.done on its way in
	// and fails fast rather than queueing behind a dispenser that no longer
	// runs.
	err := l.Acquire(ctx)
	a.Error(err)
}
