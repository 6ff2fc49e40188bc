// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020
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
// THE SOFTWARE. }}}

// Package framequeue is a bounded, single-producer single-consumer queue
// of items, adapted from the teacher's internal/bufpipe channel-backed
// pipe. Unlike bufpipe (which always drops on overrun), a Queue can be
// opened in either backpressure mode (blocking push, for the sample path)
// or drop-with-counter mode (for the transport path), per spec §5's "bounded
// queue with at-capacity blocking for the sample-path queue and
// drop-with-counter for the transport-path queue".
package framequeue

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrClosed is returned by Push/Pop once the queue has been closed.
var ErrClosed = errors.New("framequeue: closed")

// Queue is a bounded FIFO of interface{} items.
type Queue struct {
	ch      chan interface{}
	block   bool
	dropped uint64
	closed  chan struct{}
}

// New builds a Queue with room for depth items. When block is true, Push
// waits for room (backpressure); when false, Push drops the oldest-style
// newest item and increments Dropped() instead of waiting.
func New(depth int, block bool) *Queue {
	if depth <= 0 {
		depth = 1
	}
	return &Queue{
		ch:     make(chan interface{}, depth),
		block:  block,
		closed: make(chan struct{}),
	}
}

// Push enqueues v. In blocking mode it waits until ctx is done, the queue
// has room, or the queue is closed. In drop mode it enqueues immediately if
// there is room, else increments the drop counter and returns nil without
// blocking.
func (q *Queue) Push(ctx context.Context, v interface{}) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	if q.block {
		select {
		case q.ch <- v:
			return nil
		case <-q.closed:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case q.ch <- v:
		return nil
	case <-q.closed:
		return ErrClosed
	default:
		atomic.AddUint64(&q.dropped, 1)
		return nil
	}
}

// Pop dequeues the next item, blocking until one is available, ctx is
// done, or the queue is closed and drained.
func (q *Queue) Pop(ctx context.Context) (interface{}, error) {
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closed:
		select {
		case v := <-q.ch:
			return v, nil
		default:
			return nil, ErrClosed
		}
	}
}

// Dropped reports how many Push calls were silently dropped in drop mode.
func (q *Queue) Dropped() uint64 {
	return atomic.LoadUint64(&q.dropped)
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close marks the queue closed, unblocking any pending Push/Pop. Items
// already queued are still returned by Pop; ErrClosed is only returned
// once the queue is both closed and empty. q.ch itself is never closed, so
// a racing Push can never panic on a send to a closed channel.
func (q *Queue) Close() {
	select {
	case <-q.closed:
		// already closed
	default:
		close(q.closed)
	}
}

// vim: foldmethod=marker
