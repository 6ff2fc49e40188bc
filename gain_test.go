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
	"pgregory.net/rapid"
)

// TestGainMapperRoundTrip checks P5: mapping normalized gain to dB and back
// recovers the original value within a small tolerance.
func TestGainMapperRoundTrip(t *testing.T) {
	for _, dir := range []Direction{DirRx, DirTx} {
		dir := dir
		t.Run(dir.String(), func(t *testing.T) {
			rapid.Check(t, func(rt *rapid.T) {
				g := rapid.Float64Range(0, 1).Draw(rt, "normalized")
				db := gainMappers[dir].NormalizedToDB(g)
				back := gainMappers[dir].DBToNormalized(db, gainRangeFor(dir))
				require.InDelta(rt, g, back, 1e-9)
			})
		})
	}
}

func TestGainMapperClampsOutOfRange(t *testing.T) {
	db := gainMappers[DirRx].NormalizedToDB(2.0)
	require.Equal(t, rxGainRangeDB.Max, db)

	db = gainMappers[DirRx].NormalizedToDB(-1.0)
	require.Equal(t, rxGainRangeDB.Min, db)
}

func TestGainMapperEndpoints(t *testing.T) {
	require.Equal(t, rxGainRangeDB.Min, gainMappers[DirRx].NormalizedToDB(0))
	require.Equal(t, rxGainRangeDB.Max, gainMappers[DirRx].NormalizedToDB(1))
	require.Equal(t, txGainRangeDB.Min, gainMappers[DirTx].NormalizedToDB(0))
	require.Equal(t, txGainRangeDB.Max, gainMappers[DirTx].NormalizedToDB(1))
}

// vim: foldmethod=marker
