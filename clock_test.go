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
	"hz.tools/rf"
)

func TestClockTreeBypass(t *testing.T) {
	tree := NewClockTree(640e6)

	for _, oversample := range []int{0, 1} {
		rate := rf.Hz(80e6) // above the 62 MHz auto-bypass threshold
		if oversample == 1 {
			rate = 10e6 // oversample == 1 bypasses at any rate
		}
		s, err := tree.Compute(rate, oversample)
		require.NoError(t, err)
		require.True(t, s.Bypass)
		require.Equal(t, bypassDecimation, s.Decimation)
		require.Equal(t, bypassDecimation, s.Interpolation)
		require.Equal(t, rate*4, s.CgenHz)
	}
}

func TestClockTreeDecimationTable(t *testing.T) {
	tree := NewClockTree(640e6)

	cases := []struct {
		oversample int
		decimation int
	}{
		{2, 0}, {3, 1}, {4, 1}, {5, 2}, {6, 2}, {7, 2}, {8, 2},
		{9, 3}, {12, 3}, {16, 3},
	}
	for _, c := range cases {
		s, err := tree.Compute(1e6, c.oversample)
		require.NoError(t, err)
		require.False(t, s.Bypass)
		require.Equal(t, c.decimation, s.Decimation)
		require.Equal(t, c.decimation, s.Interpolation)
		shift := 2 << uint(c.decimation)
		require.Equal(t, rf.Hz(1e6)*4*rf.Hz(shift), s.CgenHz)
	}

	s, err := tree.Compute(1e6, 32)
	require.NoError(t, err)
	require.Equal(t, 3, s.Decimation)

	_, err = tree.Compute(1e6, 33)
	require.Error(t, err)
}

// TestClockTreeAutoOversample checks the oversample=0 search: the largest
// power of two <= 32 that still fits under the CGEN ceiling.
func TestClockTreeAutoOversample(t *testing.T) {
	tree := NewClockTree(640e6)

	// 5 MHz * 4 = 20 MHz; 640/20 = 32, so the full 32 fits, which the
	// lookup folds to decimation 3.
	s, err := tree.Compute(5e6, 0)
	require.NoError(t, err)
	require.Equal(t, 3, s.Decimation)

	// 40 MHz * 4 = 160 MHz; 640/160 = 4, so the search lands on 4.
	s, err = tree.Compute(40e6, 0)
	require.NoError(t, err)
	require.Equal(t, 1, s.Decimation)
}

func TestClockTreeConfigGuard(t *testing.T) {
	tree := NewClockTree(640e6)

	require.True(t, tree.BeginConfig())
	require.True(t, tree.InProgress())
	require.False(t, tree.BeginConfig(), "nested config passes must be refused")
	tree.EndConfig()
	require.False(t, tree.InProgress())
	require.True(t, tree.BeginConfig())
	tree.EndConfig()
}

// vim: foldmethod=marker
