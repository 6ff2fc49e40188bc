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

package framequeue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := New(4, true)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, q.Push(ctx, i))
	}
	require.Equal(t, 4, q.Len())

	for i := 0; i < 4; i++ {
		v, err := q.Pop(ctx)
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
}

func TestQueueBlockingPushRespectsContext(t *testing.T) {
	q := New(1, true)
	require.NoError(t, q.Push(context.Background(), "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Push(ctx, "b")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueDropModeCounts(t *testing.T) {
	q := New(1, false)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, "a"))
	require.NoError(t, q.Push(ctx, "b"), "drop mode never blocks")
	require.Equal(t, uint64(1), q.Dropped())
}

func TestQueueCloseDrainsThenErrors(t *testing.T) {
	q := New(2, true)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, "a"))
	q.Close()
	q.Close() // idempotent

	v, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", v)

	_, err = q.Pop(ctx)
	require.ErrorIs(t, err, ErrClosed)

	require.ErrorIs(t, q.Push(ctx, "b"), ErrClosed)
}

// vim: foldmethod=marker
