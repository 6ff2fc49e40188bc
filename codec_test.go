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
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPacketCodecRejectsBadInputs(t *testing.T) {
	_, err := NewPacketCodec(FormatI16, 0, 4096)
	require.Error(t, err)

	_, err = NewPacketCodec(FormatF32, 1, 4096)
	require.Error(t, err, "F32 is a host-only format, never a link format")

	_, err = NewPacketCodec(FormatI16, 1, 8)
	require.Error(t, err, "frame too small for the header")
}

func TestPacketCodecI16RoundTrip(t *testing.T) {
	codec, err := NewPacketCodec(FormatI16, 2, 256)
	require.NoError(t, err)

	pool := NewMemoryPool(256, 8)
	in := []ChannelSamples{
		{{I: 0.5, Q: -0.5}, {I: 1, Q: 0}, {I: -1, Q: 0}},
		{{I: 0.25, Q: 0.75}, {I: -0.25, Q: -0.75}, {I: 0, Q: 0}},
	}
	meta := StreamMeta{Timestamp: 1000, UseTimestamp: true, Flush: true}

	frames, err := codec.Pack(pool, in, 3, meta)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.True(t, frames[0].Header.Flush)
	require.Equal(t, uint64(1000), frames[0].Header.Timestamp)

	out := []ChannelSamples{make(ChannelSamples, 3), make(ChannelSamples, 3)}
	n, err := codec.Unpack(frames[0], out, 0)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for ch := range in {
		for i := range in[ch] {
			require.InDelta(t, float64(in[ch][i].I), float64(out[ch][i].I), 1.0/32767)
			require.InDelta(t, float64(in[ch][i].Q), float64(out[ch][i].Q), 1.0/32767)
		}
	}
	frames[0].Release()
	require.Equal(t, 0, pool.Used())
}

// TestPacketCodecI12RoundTrip checks P2: the I12 link format may lose up to
// one 12-bit LSB (16 LSBs of a 16-bit host sample), but never more.
func TestPacketCodecI12RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numChannels := rapid.IntRange(1, 4).Draw(rt, "channels")
		count := rapid.IntRange(1, 40).Draw(rt, "count")

		codec, err := NewPacketCodec(FormatI12, numChannels, 4096)
		require.NoError(rt, err)

		pool := NewMemoryPool(4096, 16)
		in := make([]ChannelSamples, numChannels)
		for ch := range in {
			in[ch] = make(ChannelSamples, count)
			for i := range in[ch] {
				in[ch][i] = IQ{
					I: float32(rapid.Float64Range(-1, 1).Draw(rt, "i")),
					Q: float32(rapid.Float64Range(-1, 1).Draw(rt, "q")),
				}
			}
		}

		frames, err := codec.Pack(pool, in, count, StreamMeta{})
		require.NoError(rt, err)

		out := make([]ChannelSamples, numChannels)
		for ch := range out {
			out[ch] = make(ChannelSamples, count)
		}
		offset := 0
		for _, f := range frames {
			n, err := codec.Unpack(f, out, offset)
			require.NoError(rt, err)
			offset += n
			f.Release()
		}
		require.Equal(rt, count, offset)

		const oneLSB12 = 16.0 / 32767 // worst-case truncation discarding the low 4 bits of a 16-bit sample
		for ch := range in {
			for i := range in[ch] {
				require.True(rt, math.Abs(float64(in[ch][i].I-out[ch][i].I)) <= oneLSB12+1e-6)
				require.True(rt, math.Abs(float64(in[ch][i].Q-out[ch][i].Q)) <= oneLSB12+1e-6)
			}
		}
		require.Equal(rt, 0, pool.Used())
	})
}

func TestPacketCodecSplitsAcrossFrames(t *testing.T) {
	codec, err := NewPacketCodec(FormatI16, 1, 32) // small frame forces multiple packets
	require.NoError(t, err)

	pool := NewMemoryPool(32, 16)
	in := []ChannelSamples{make(ChannelSamples, 20)}
	for i := range in[0] {
		in[0][i] = IQ{I: float32(i) / 20, Q: -float32(i) / 20}
	}

	frames, err := codec.Pack(pool, in, 20, StreamMeta{Flush: true})
	require.NoError(t, err)
	require.Greater(t, len(frames), 1)
	require.True(t, frames[len(frames)-1].Header.Flush)
	for _, f := range frames[:len(frames)-1] {
		require.False(t, f.Header.Flush)
	}

	out := []ChannelSamples{make(ChannelSamples, 20)}
	offset := 0
	for _, f := range frames {
		n, err := codec.Unpack(f, out, offset)
		require.NoError(t, err)
		offset += n
		f.Release()
	}
	require.Equal(t, 20, offset)
}

// vim: foldmethod=marker
