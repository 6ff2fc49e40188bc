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

package lms7

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPoolAllocateFree(t *testing.T) {
	p := NewMemoryPool(64, 2)

	a, err := p.Allocate()
	require.NoError(t, err)
	require.Equal(t, 1, p.Used())

	b, err := p.Allocate()
	require.NoError(t, err)
	require.Equal(t, 2, p.Used())

	_, err = p.Allocate()
	require.Error(t, err, "pool should be exhausted at hardCap")
	require.Equal(t, KindExhausted, FaultKind(err))

	p.Free(a)
	require.Equal(t, 1, p.Used())

	c, err := p.Allocate()
	require.NoError(t, err)
	require.Equal(t, 2, p.Used())

	p.Free(b)
	p.Free(c)
	require.Equal(t, 0, p.Used())
}

func TestMemoryPoolDoubleFreePanicsByDefault(t *testing.T) {
	p := NewMemoryPool(64, 1)
	buf, err := p.Allocate()
	require.NoError(t, err)
	p.Free(buf)
	require.Panics(t, func() { p.Free(buf) })
}

func TestMemoryPoolDoubleFreeHandler(t *testing.T) {
	p := NewMemoryPool(64, 1)
	buf, err := p.Allocate()
	require.NoError(t, err)
	p.Free(buf)

	var reported error
	p.SetDoubleFreeHandler(func(e error) { reported = e })
	require.NotPanics(t, func() { p.Free(buf) })
	require.Error(t, reported)
}

// vim: foldmethod=marker
