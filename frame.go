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

// frameHeaderBytes is the on-wire size of FrameHeader: an 8-byte
// timestamp, a 1-byte flag bitmap, and 7 bytes of reserved padding so the
// payload starts on an 8-byte boundary.
const frameHeaderBytes = 16

// FrameHeader is the fixed header carried by every sample frame (§3,
// "FrameHeader (wire)").
type FrameHeader struct {
	Timestamp    uint64
	TxImmediate  bool
	Flush        bool
	PayloadBytes int
}

const (
	flagTxImmediate = 1 << 0
	flagFlush       = 1 << 1
)

func (h FrameHeader) marshal(buf []byte) {
	binary.BigEndian.PutUint64(buf[0:8], h.Timestamp)
	var flags byte
	if h.TxImmediate {
		flags |= flagTxImmediate
	}
	if h.Flush {
		flags |= flagFlush
	}
	buf[8] = flags
}

func unmarshalFrameHeader(buf []byte, payloadBytes int) FrameHeader {
	return FrameHeader{
		Timestamp:    binary.BigEndian.Uint64(buf[0:8]),
		TxImmediate:  buf[8]&flagTxImmediate != 0,
		Flush:        buf[8]&flagFlush != 0,
		PayloadBytes: payloadBytes,
	}
}

// Frame is one fixed-size transport packet: a FrameHeader plus a payload of
// interleaved link-format samples, backed by a buffer on loan from a
// MemoryPool. Frames are owned by whichever component currently holds them
// (§3 Lifecycle); transfer between MemoryPool, the BulkPipe in-flight
// queue, and the codec is by passing the Frame value, never by copying Buf.
type Frame struct {
	Header  FrameHeader
	Buf     []byte
	pool    *MemoryPool
	payload []byte
}

// Payload returns the portion of Buf carrying interleaved link-format
// samples, excluding the header.
func (f *Frame) Payload() []byte {
	return f.payload
}

// Release returns the frame's buffer to the pool it was allocated from. It
// is a no-op if the frame did not come from a pool (e.g. a test fixture).
// Calling Release twice on the same Frame is a double-free and is reported
// the same way MemoryPool.Free reports any other double-free.
func (f *Frame) Release() {
	if f.pool == nil || f.Buf == nil {
		return
	}
	f.pool.Free(f.Buf)
	f.Buf = nil
	f.payload = nil
}

// vim: foldmethod=marker
