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

import "hz.tools/rf"

// Direction distinguishes the Rx and Tx signal paths of one channel.
type Direction uint8

const (
	DirRx Direction = iota
	DirTx
)

func (d Direction) String() string {
	if d == DirTx {
		return "Tx"
	}
	return "Rx"
}

// GainKind names one stage in a channel's gain chain (mirrors the
// teacher's GainStageType bitmask in spirit, but as a plain enum since
// this board family exposes one normalized+dB gain knob per channel rather
// than a composable stack of stages).
type GainKind uint8

const (
	GainKindOverall GainKind = iota
	GainKindLNA
	GainKindPAD
	GainKindPGA
)

// TestSignalKind selects the chip's internal test-signal generator mode.
type TestSignalKind uint8

const (
	TestSignalNone TestSignalKind = iota
	TestSignalDC
	TestSignalFullScale
	TestSignalNCO
)

// ChannelConfig is the declarative desired state of one direction of one
// channel (§3, SDRConfig.channel[N].{rx,tx}).
type ChannelConfig struct {
	Enabled         bool
	CenterFrequency rf.Hz
	SampleRate      rf.Hz
	Oversample      int
	PathIndex       int
	LPFBandwidth    rf.Hz
	LPFEnabled      bool
	Gain            map[GainKind]float64 // dB
	Calibrate       bool
	TestSignal      TestSignalKind
	TestSignalDCI   float64
	TestSignalDCQ   float64
}

// cloneChannelConfig returns a deep-enough copy (the Gain map is copied) so
// the stored last-applied config is never aliased with a caller's struct.
func cloneChannelConfig(c ChannelConfig) ChannelConfig {
	out := c
	if c.Gain != nil {
		out.Gain = make(map[GainKind]float64, len(c.Gain))
		for k, v := range c.Gain {
			out.Gain[k] = v
		}
	}
	return out
}

// SDRConfig is the declarative desired state of one RF chip (§3).
type SDRConfig struct {
	ReferenceClock rf.Hz // 0 means "keep current"
	SkipDefaults   bool
	Channel        []ChannelPair
}

// ChannelPair holds one channel's Rx and Tx ChannelConfig.
type ChannelPair struct {
	Rx ChannelConfig
	Tx ChannelConfig
}

func (c ChannelPair) get(dir Direction) ChannelConfig {
	if dir == DirTx {
		return c.Tx
	}
	return c.Rx
}

func (c *ChannelPair) set(dir Direction, v ChannelConfig) {
	if dir == DirTx {
		c.Tx = v
	} else {
		c.Rx = v
	}
}

// cloneSDRConfig returns a deep copy of cfg suitable for storing as the new
// last-applied configuration.
func cloneSDRConfig(cfg SDRConfig) SDRConfig {
	out := cfg
	out.Channel = make([]ChannelPair, len(cfg.Channel))
	for i, ch := range cfg.Channel {
		out.Channel[i] = ChannelPair{
			Rx: cloneChannelConfig(ch.Rx),
			Tx: cloneChannelConfig(ch.Tx),
		}
	}
	return out
}

// StreamConfig describes how a Streamer should move samples (§3).
type StreamConfig struct {
	RxChannels       []int
	TxChannels       []int
	Format           Format
	LinkFormat       Format
	BufferSize       int
	AlignPhase       bool
	FlowControlHints FlowControlHints
}

// FlowControlHints are advisory parameters for the bounded queues described
// in §5 (in-flight frame count, sample-path queue depth).
type FlowControlHints struct {
	InFlightFrames int
	QueueDepth     int
}

// StreamMeta accompanies one StreamRx/StreamTx call (§3).
type StreamMeta struct {
	Timestamp    uint64
	UseTimestamp bool
	Flush        bool
}

// FrequencyRange is an inclusive [Low, High] bound.
type FrequencyRange struct {
	Low  rf.Hz
	High rf.Hz
}

// Contains reports whether hz falls within the inclusive range.
func (r FrequencyRange) Contains(hz rf.Hz) bool {
	return hz >= r.Low && hz <= r.High
}

// vim: foldmethod=marker
