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

// StreamerState is a Streamer's lifecycle state (§3 Lifecycle).
type StreamerState uint8

const (
	StreamerIdle StreamerState = iota
	StreamerArmed
	StreamerRunning
	StreamerStopped
)

// StreamStatus answers GetStreamStatus (§6).
type StreamStatus struct {
	Active      bool
	FifoFilled  int
	FifoSize    int
	Underrun    uint64
	Overrun     uint64
	Dropped     uint64
	LinkRateBps uint64
	Timestamp   uint64
}

// Streamer pairs one Rx and one Tx StreamerDirection (C6, §4.4).
type Streamer struct {
	ModuleIndex int
	Config      StreamConfig

	rx *StreamerDirection
	tx *StreamerDirection

	pool          *MemoryPool
	resetCounters func() error
	state         StreamerState
}

// NewStreamer wires a Streamer over an already-built Rx/Tx direction pair
// and the MemoryPool they share. resetCounters, when non-nil, zeroes the
// FPGA's sample counters; Start invokes it for phase-aligned starts.
func NewStreamer(moduleIndex int, cfg StreamConfig, rx, tx *StreamerDirection, pool *MemoryPool, resetCounters func() error) *Streamer {
	return &Streamer{
		ModuleIndex:   moduleIndex,
		Config:        cfg,
		rx:            rx,
		tx:            tx,
		pool:          pool,
		resetCounters: resetCounters,
		state:         StreamerIdle,
	}
}

// Arm transitions Idle → Armed.
func (s *Streamer) Arm() error {
	if s.state != StreamerIdle {
		return NewFault(KindBusy, "streamer must be Idle to arm, is %d", s.state)
	}
	s.state = StreamerArmed
	return nil
}

// Start transitions Armed → Running. When Config.AlignPhase is set, the
// FPGA's sample counters are reset through a control register first, and
// both directions' local counters zeroed, so the first Rx and Tx frames
// share hwTimestamp=0 (§4.4).
func (s *Streamer) Start() error {
	if s.state != StreamerArmed {
		return NewFault(KindBusy, "streamer must be Armed to start, is %d", s.state)
	}
	if s.Config.AlignPhase {
		if s.resetCounters != nil {
			if err := s.resetCounters(); err != nil {
				return err
			}
		}
		if s.rx != nil {
			s.rx.ResetTimestamp()
		}
		if s.tx != nil {
			s.tx.ResetTimestamp()
		}
	}
	if s.rx != nil {
		if err := s.rx.Start(); err != nil {
			return err
		}
	}
	if s.tx != nil {
		if err := s.tx.Start(); err != nil {
			return err
		}
	}
	s.state = StreamerRunning
	return nil
}

// Stop cancels pending frames, aborts the transport endpoints, and returns
// pool buffers (§4.4, P6).
func (s *Streamer) Stop() {
	if s.state != StreamerRunning {
		return
	}
	if s.rx != nil {
		s.rx.Stop()
	}
	if s.tx != nil {
		s.tx.Stop()
	}
	s.state = StreamerStopped
}

// Rx returns the Rx direction, or nil if this Streamer has none.
func (s *Streamer) Rx() *StreamerDirection { return s.rx }

// Tx returns the Tx direction, or nil if this Streamer has none.
func (s *Streamer) Tx() *StreamerDirection { return s.tx }

// Status answers GetStreamStatus (§6), correctly attributing each delta
// counter to its own field — the original implementation's bug of writing
// the underrun delta into droppedPackets (§9 Open Questions) is not
// reproduced here.
func (s *Streamer) Status() StreamStatus {
	st := StreamStatus{Active: s.state == StreamerRunning}
	if s.pool != nil {
		st.FifoFilled = s.pool.Used()
		st.FifoSize = s.pool.Cap()
	}
	if s.rx != nil {
		st.Overrun = s.rx.Overrun.Total()
		st.Dropped = s.rx.Loss.Total()
		st.Timestamp = s.rx.HwTimestamp()
		st.LinkRateBps += s.rx.DataRateBps()
	}
	if s.tx != nil {
		st.Underrun = s.tx.Underrun.Total()
		st.LinkRateBps += s.tx.DataRateBps()
		if s.rx == nil {
			st.Timestamp = s.tx.HwTimestamp()
		}
	}
	return st
}

// vim: foldmethod=marker
