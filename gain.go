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

import "gonum.org/v1/gonum/interp"

// gainRangeDB is the per-direction dB range a normalized [0,1] gain knob
// maps onto (§6 SetNormalizedGain/GetNormalizedGain, P5).
type gainRangeDB struct {
	Min, Max float64
}

var (
	rxGainRangeDB = gainRangeDB{Min: -12, Max: 61}
	txGainRangeDB = gainRangeDB{Min: -12, Max: 64}
)

func gainRangeFor(dir Direction) gainRangeDB {
	if dir == DirTx {
		return txGainRangeDB
	}
	return rxGainRangeDB
}

// gainMapper wraps a gonum piecewise-linear fit between normalized [0,1]
// and the chip's dB gain range, replacing a hand-rolled lerp (§11 DOMAIN
// STACK).
type gainMapper struct {
	toDB   interp.PiecewiseLinear
	toNorm interp.PiecewiseLinear
}

func newGainMapper(r gainRangeDB) *gainMapper {
	m := &gainMapper{}
	if err := m.toDB.Fit([]float64{0, 1}, []float64{r.Min, r.Max}); err != nil {
		panic(err)
	}
	if err := m.toNorm.Fit([]float64{r.Min, r.Max}, []float64{0, 1}); err != nil {
		panic(err)
	}
	return m
}

// NormalizedToDB maps a [0,1] normalized gain to its dB value, clamping out
// of range input to the fitted domain.
func (m *gainMapper) NormalizedToDB(g float64) float64 {
	g = clamp(g, 0, 1)
	return m.toDB.Predict(g)
}

// DBToNormalized is the inverse of NormalizedToDB.
func (m *gainMapper) DBToNormalized(db float64, r gainRangeDB) float64 {
	db = clamp(db, r.Min, r.Max)
	return m.toNorm.Predict(db)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var gainMappers = map[Direction]*gainMapper{
	DirRx: newGainMapper(rxGainRangeDB),
	DirTx: newGainMapper(txGainRangeDB),
}

// vim: foldmethod=marker
