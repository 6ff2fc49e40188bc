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

import "encoding/binary"

// PacketCodec packs and unpacks interleaved IQ samples into fixed-size
// frames (C4, §4.2). It is stateless: all state needed to pack or unpack a
// frame is passed in on each call.
type PacketCodec struct {
	LinkFormat  Format
	NumChannels int
	FrameBytes  int

	payloadBytes   int
	groupBytes     int // bytes consumed by one channel-interleaved timesample
	samplesPerFull int // timesamples per full frame
}

// NewPacketCodec builds a codec for the given link format, channel count,
// and fixed transport frame size (≈4 KiB USB bulk packet, or a DMA page).
// The usable payload is rounded down to a whole number of per-timesample
// groups so that, per §4.2's edge policy, a sample's bytes are never split
// across a frame boundary.
func NewPacketCodec(linkFormat Format, numChannels, frameBytes int) (*PacketCodec, error) {
	if numChannels <= 0 {
		return nil, NewFault(KindInvalidArgument, "numChannels must be positive, got %d", numChannels)
	}
	if linkFormat != FormatI16 && linkFormat != FormatI12 {
		return nil, NewFault(KindInvalidArgument, "link format must be I16 or I12, got %s", linkFormat)
	}
	if frameBytes <= frameHeaderBytes {
		return nil, NewFault(KindInvalidArgument, "frameBytes %d too small for a %d-byte header", frameBytes, frameHeaderBytes)
	}

	var groupBytes int
	switch linkFormat {
	case FormatI16:
		groupBytes = numChannels * 4 // (I,Q) int16 pair per channel
	case FormatI12:
		groupBytes = numChannels * 3 // (I,Q) packed 12-bit pair per channel
	}

	avail := frameBytes - frameHeaderBytes
	payload := (avail / groupBytes) * groupBytes
	if payload == 0 {
		return nil, NewFault(KindInvalidArgument, "frameBytes %d too small to carry one timesample for %d channels in %s", frameBytes, numChannels, linkFormat)
	}

	return &PacketCodec{
		LinkFormat:     linkFormat,
		NumChannels:    numChannels,
		FrameBytes:     frameBytes,
		payloadBytes:   payload,
		groupBytes:     groupBytes,
		samplesPerFull: payload / groupBytes,
	}, nil
}

// SamplesPerFrame reports how many timesamples (one I/Q pair per channel)
// a full frame carries.
func (c *PacketCodec) SamplesPerFrame() int {
	return c.samplesPerFull
}

func scaleSaturate(v float32) int16 {
	f := v * 32767
	if f > 32767 {
		return 32767
	}
	if f < -32768 {
		return -32768
	}
	return int16(f)
}

func unscale(v int16) float32 {
	return float32(v) / 32767
}

// pack12 writes the 12-bit-reduced forms of i and q into 3 bytes, the
// standard 12-bit pack: the top 8 bits of i, then i's low nibble joined
// with q's high nibble, then q's low 8 bits.
func pack12(i, q int16, out []byte) {
	i12 := i >> 4
	q12 := q >> 4
	out[0] = byte(i12 >> 4)
	out[1] = byte((i12&0xF)<<4) | byte((q12>>8)&0xF)
	out[2] = byte(q12 & 0xFF)
}

// unpack12 is the inverse of pack12, sign-extending each 12-bit field back
// out to a 16-bit value. The low 4 bits lost during packing read back as
// zero, matching the "up to 1 LSB of the link format" bound in P2.
func unpack12(in []byte) (i, q int16) {
	i12 := (int16(in[0]) << 4) | (int16(in[1]) >> 4)
	q12 := (int16(in[1]&0xF) << 8) | int16(in[2])
	i = signExtend12(i12) << 4
	q = signExtend12(q12) << 4
	return i, q
}

func signExtend12(v int16) int16 {
	v &= 0xFFF
	if v&0x800 != 0 {
		v |= ^int16(0xFFF)
	}
	return v
}

// Pack converts count timesamples of per-channel host IQ into as many
// frames as the payload requires, in the interleaved order
// Ch0_I Ch0_Q Ch1_I Ch1_Q ... (§4.2). The final frame carries the flush
// flag iff meta.Flush is set.
func (c *PacketCodec) Pack(pool *MemoryPool, perChannel []ChannelSamples, count int, meta StreamMeta) ([]*Frame, error) {
	if len(perChannel) != c.NumChannels {
		return nil, NewFault(KindInvalidArgument, "expected %d channels, got %d", c.NumChannels, len(perChannel))
	}
	for idx, ch := range perChannel {
		if len(ch) < count {
			return nil, NewFault(KindInvalidArgument, "channel %d has only %d samples, need %d", idx, len(ch), count)
		}
	}

	var frames []*Frame
	remaining := count
	offset := 0
	timestamp := meta.Timestamp

	for remaining > 0 {
		n := c.samplesPerFull
		if n > remaining {
			n = remaining
		}
		buf, err := pool.Allocate()
		if err != nil {
			return frames, err
		}
		last := n == remaining
		hdr := FrameHeader{
			Timestamp:    timestamp,
			TxImmediate:  !meta.UseTimestamp,
			Flush:        last && meta.Flush,
			PayloadBytes: n * c.groupBytes,
		}
		hdr.marshal(buf)
		payload := buf[frameHeaderBytes : frameHeaderBytes+hdr.PayloadBytes]

		for s := 0; s < n; s++ {
			base := s * c.groupBytes
			for ch := 0; ch < c.NumChannels; ch++ {
				sample := perChannel[ch][offset+s]
				i16 := scaleSaturate(sample.I)
				q16 := scaleSaturate(sample.Q)
				switch c.LinkFormat {
				case FormatI16:
					o := base + ch*4
					binary.BigEndian.PutUint16(payload[o:o+2], uint16(i16))
					binary.BigEndian.PutUint16(payload[o+2:o+4], uint16(q16))
				case FormatI12:
					o := base + ch*3
					pack12(i16, q16, payload[o:o+3])
				}
			}
		}

		frames = append(frames, &Frame{
			Header:  hdr,
			Buf:     buf,
			pool:    pool,
			payload: payload,
		})

		offset += n
		remaining -= n
		timestamp += uint64(n)
	}

	return frames, nil
}

// ExtractHeader reads the FrameHeader out of a frame's buffer without
// consuming it.
func (c *PacketCodec) ExtractHeader(buf []byte) FrameHeader {
	payloadBytes := len(buf) - frameHeaderBytes
	return unmarshalFrameHeader(buf, payloadBytes)
}

// Unpack is the inverse of Pack: it decodes a frame's whole payload into
// perChannel, starting at writeOffset, and returns the number of
// timesamples it produced.
func (c *PacketCodec) Unpack(f *Frame, perChannel []ChannelSamples, writeOffset int) (int, error) {
	return c.UnpackRange(f, perChannel, writeOffset, 0, int(^uint(0)>>1))
}

// FrameSampleCount reports how many timesamples f's payload carries.
func (c *PacketCodec) FrameSampleCount(f *Frame) int {
	return len(f.Payload()) / c.groupBytes
}

// UnpackRange decodes up to max timesamples of f's payload, starting skip
// timesamples in, writing into perChannel at writeOffset. It returns the
// number of timesamples produced. StreamerDirection.Read uses it to consume
// a frame across several calls when the caller asks for fewer samples than
// the frame holds.
func (c *PacketCodec) UnpackRange(f *Frame, perChannel []ChannelSamples, writeOffset, skip, max int) (int, error) {
	if len(perChannel) != c.NumChannels {
		return 0, NewFault(KindInvalidArgument, "expected %d channels, got %d", c.NumChannels, len(perChannel))
	}
	payload := f.Payload()
	if len(payload)%c.groupBytes != 0 {
		return 0, NewFault(KindTransportFailure, "frame payload %d bytes is not a whole number of %d-byte groups", len(payload), c.groupBytes)
	}
	total := len(payload) / c.groupBytes
	if skip >= total {
		return 0, nil
	}
	n := total - skip
	if n > max {
		n = max
	}

	for s := 0; s < n; s++ {
		base := (skip + s) * c.groupBytes
		for ch := 0; ch < c.NumChannels; ch++ {
			var i16, q16 int16
			switch c.LinkFormat {
			case FormatI16:
				o := base + ch*4
				i16 = int16(binary.BigEndian.Uint16(payload[o : o+2]))
				q16 = int16(binary.BigEndian.Uint16(payload[o+2 : o+4]))
			case FormatI12:
				o := base + ch*3
				i16, q16 = unpack12(payload[o : o+3])
			}
			if writeOffset+s < len(perChannel[ch]) {
				perChannel[ch][writeOffset+s] = IQ{I: unscale(i16), Q: unscale(q16)}
			}
		}
	}

	return n, nil
}

// vim: foldmethod=marker
