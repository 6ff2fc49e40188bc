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
	"sync"
	"sync/atomic"

	"hz.tools/rf"
)

// bypassDecimation is the marker value the chip uses for "CGEN feeds the
// ADC/DAC directly, no decimation/interpolation stage" (§4.5).
const bypassDecimation = 7

// decimationLookup maps an oversample ratio (2..16) to the chip's
// decimation/interpolation register field, per §4.5's table.
var decimationLookup = map[int]int{
	2: 0,
	3: 1, 4: 1,
	5: 2, 6: 2, 7: 2, 8: 2,
	9: 3, 10: 3, 11: 3, 12: 3, 13: 3, 14: 3, 15: 3, 16: 3,
}

// ClockSettings is the result of ClockTree.Compute: the CGEN PLL frequency
// and the ADC/DAC decimation/interpolation field to program into the chip
// and the FPGA interface.
type ClockSettings struct {
	CgenHz        rf.Hz
	Decimation    int
	Interpolation int
	Bypass        bool
}

// ClockTree derives CGEN, ADC/DAC decimation/interpolation, and FPGA
// interface-clock settings from a requested sample rate and oversample
// ratio (C7, §4.5). CgenMaxHz bounds the automatic oversample search.
type ClockTree struct {
	CgenMaxHz rf.Hz

	configInProgress int32
	mu               sync.Mutex
}

// NewClockTree builds a ClockTree for a chip whose CGEN PLL tops out at
// cgenMaxHz.
func NewClockTree(cgenMaxHz rf.Hz) *ClockTree {
	return &ClockTree{CgenMaxHz: cgenMaxHz}
}

// Compute follows the §4.5 pseudocode with two departures: only
// oversample 1, or oversample 0 above 62 MHz, selects bypass, and
// auto-selected ratios of 17..32 fold to decimation 3.
func (t *ClockTree) Compute(sampleRateHz rf.Hz, oversample int) (ClockSettings, error) {
	if sampleRateHz <= 0 {
		return ClockSettings{}, NewFault(KindInvalidArgument, "sampleRateHz must be positive, got %v", sampleRateHz)
	}
	if oversample < 0 {
		return ClockSettings{}, NewFault(KindInvalidArgument, "oversample must be >= 0, got %d", oversample)
	}

	// oversample 0 means "pick for me": it only bypasses when the rate is
	// already too fast for any decimation stage to keep up.
	bypass := oversample == 1 || (oversample == 0 && sampleRateHz > 62e6)
	if bypass {
		return ClockSettings{
			CgenHz:        sampleRateHz * 4,
			Decimation:    bypassDecimation,
			Interpolation: bypassDecimation,
			Bypass:        true,
		}, nil
	}

	if oversample == 0 {
		oversample = 32
		for oversample > 1 {
			if float64(t.CgenMaxHz)/(float64(sampleRateHz)*4) >= float64(oversample) {
				break
			}
			oversample /= 2
		}
	}

	dec, ok := decimationLookup[oversample]
	if !ok {
		if oversample > 16 && oversample <= 32 {
			dec = 3 // deepest decimation stage the chip has
		} else {
			return ClockSettings{}, NewFault(KindInvalidArgument, "oversample %d outside the supported 2..32 range", oversample)
		}
	}

	shift := 2 << uint(dec)
	return ClockSettings{
		CgenHz:        sampleRateHz * 4 * rf.Hz(shift),
		Decimation:    dec,
		Interpolation: dec,
		Bypass:        false,
	}, nil
}

// BeginConfig marks a Configure pass as in progress so that a second pass
// cannot start while one is running (§4.5, §9). It returns false if a
// config pass is already in progress.
func (t *ClockTree) BeginConfig() bool {
	return atomic.CompareAndSwapInt32(&t.configInProgress, 0, 1)
}

// EndConfig clears the in-progress flag set by BeginConfig.
func (t *ClockTree) EndConfig() {
	atomic.StoreInt32(&t.configInProgress, 0)
}

// InProgress reports whether a Configure pass currently holds the flag.
func (t *ClockTree) InProgress() bool {
	return atomic.LoadInt32(&t.configInProgress) == 1
}

// vim: foldmethod=marker
