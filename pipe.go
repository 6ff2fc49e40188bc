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
	"context"
	"time"
)

// ControlPipeBytes is the fixed size of one control packet (§6, "Wire
// formats"): cmd, status, blockCount, periphID, 4 reserved bytes, 56
// payload bytes.
const ControlPipeBytes = 64

// controlPayloadBytes is the usable payload after the 8-byte fixed header.
const controlPayloadBytes = ControlPipeBytes - 8

// ControlPipe is the request/reply capability for register and command
// packets (C2, §9). Physical transport (libusb, a PCIe/DMA kernel module)
// is out of scope; board constructors accept an implementation of this
// interface instead of reaching for a concrete transport, the same
// capability-injection shape the teacher uses for its device packages.
type ControlPipe interface {
	// WriteRead sends exactly one 64-byte request and returns exactly
	// one 64-byte reply, or a KindTransportFailure Fault on I/O error or
	// timeout.
	WriteRead(ctx context.Context, req [ControlPipeBytes]byte, timeout time.Duration) ([ControlPipeBytes]byte, error)
}

// BulkCompletion describes one finished BulkPipe transfer.
type BulkCompletion struct {
	BytesTransferred int
	Err              error
}

// BulkPipe is the fixed-size framed packet flow capability (C1, §9). One
// BulkPipe handles one direction of one transport endpoint; a
// StreamerDirection owns exactly one.
type BulkPipe interface {
	// Submit enqueues buf for transfer and returns a token identifying
	// this in-flight transfer to a later Wait call.
	Submit(buf []byte) (token int, err error)

	// Wait blocks until the transfer identified by token completes or
	// timeout elapses.
	Wait(token int, timeout time.Duration) (BulkCompletion, error)

	// Abort cancels every outstanding transfer submitted through this
	// pipe; their Wait calls return with a KindTransportFailure Fault.
	Abort() error
}

// controlPacket is the decoded form of the 64-byte control wire packet
// (§6).
type controlPacket struct {
	Cmd        byte
	Status     byte
	BlockCount byte
	PeriphID   byte
	Payload    [controlPayloadBytes]byte
}

func (p controlPacket) marshal() [ControlPipeBytes]byte {
	var buf [ControlPipeBytes]byte
	buf[0] = p.Cmd
	buf[1] = p.Status
	buf[2] = p.BlockCount
	buf[3] = p.PeriphID
	copy(buf[8:], p.Payload[:])
	return buf
}

func unmarshalControlPacket(buf [ControlPipeBytes]byte) controlPacket {
	var p controlPacket
	p.Cmd = buf[0]
	p.Status = buf[1]
	p.BlockCount = buf[2]
	p.PeriphID = buf[3]
	copy(p.Payload[:], buf[8:])
	return p
}

// regWrite is one (addr16, value16) pair, big-endian on the wire, used to
// build register-write payloads (§6).
type regWrite struct {
	Addr  uint16
	Value uint16
}

// encodeRegWrites packs up to 14 (addr,value) pairs (56 bytes / 4 bytes
// each) into a control packet payload.
func encodeRegWrites(writes []regWrite) [controlPayloadBytes]byte {
	var payload [controlPayloadBytes]byte
	for i, w := range writes {
		o := i * 4
		if o+4 > len(payload) {
			break
		}
		payload[o] = byte(w.Addr >> 8)
		payload[o+1] = byte(w.Addr)
		payload[o+2] = byte(w.Value >> 8)
		payload[o+3] = byte(w.Value)
	}
	return payload
}

// encodeRegReadAddrs packs up to 28 register addresses (56 bytes / 2 bytes
// each) into a control packet payload for a read request.
func encodeRegReadAddrs(addrs []uint16) [controlPayloadBytes]byte {
	var payload [controlPayloadBytes]byte
	for i, a := range addrs {
		o := i * 2
		if o+2 > len(payload) {
			break
		}
		payload[o] = byte(a >> 8)
		payload[o+1] = byte(a)
	}
	return payload
}

// decodeRegReadReply unpacks n big-endian uint16 values from a reply
// payload.
func decodeRegReadReply(payload [controlPayloadBytes]byte, n int) []uint16 {
	out := make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		o := i * 2
		if o+2 > len(payload) {
			break
		}
		out = append(out, uint16(payload[o])<<8|uint16(payload[o+1]))
	}
	return out
}

// vim: foldmethod=marker
