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

import "fmt"

// Format names a host-side or link-side IQ sample representation (spec.md
// §3's SDRConfig/StreamConfig `format`/`linkFormat` fields). Only the three
// formats this board family actually moves are modeled; the teacher's
// broader U8/I8/C64/lookup-table zoo belongs to a general-purpose IQ
// library, not a two-stage transceiver's wire path.
type Format uint8

const (
	// FormatF32 is a host-only format: one complex64-shaped pair of
	// float32 I/Q samples in [-1, 1]. Never a link format.
	FormatF32 Format = iota + 1

	// FormatI16 is both a host and a link format: one pair of int16 I/Q
	// samples.
	FormatI16

	// FormatI12 is a link-only format: I/Q samples quantized to 12 bits,
	// each I/Q pair packed into three bytes (see codec.go's pack12).
	FormatI12
)

// String names the Format.
func (f Format) String() string {
	switch f {
	case FormatF32:
		return "F32"
	case FormatI16:
		return "I16"
	case FormatI12:
		return "I12"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// BytesPerSample reports the link-wire size of one I/Q sample pair in this
// format. I12 has no fixed per-sample size (one pair packs into 3 bytes,
// see codec.go's pack12); callers needing link-layer sizing work in whole
// groups through PacketCodec instead.
func (f Format) BytesPerSample() int {
	switch f {
	case FormatF32:
		return 8
	case FormatI16:
		return 4
	default:
		return 0
	}
}

// IQ is one complex sample in host floating-point representation,
// regardless of the wire format it was decoded from or will be encoded to.
type IQ struct {
	I float32
	Q float32
}

// ChannelSamples is one channel's worth of host-format IQ samples, the unit
// PacketCodec.Pack/Unpack and StreamerDirection.Read/Write exchange with
// callers.
type ChannelSamples []IQ

// vim: foldmethod=marker
