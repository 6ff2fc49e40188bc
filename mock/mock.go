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

// Package mock provides in-memory ControlPipe and BulkPipe test doubles, the
// same role the teacher's mock.Sdr plays for hz.tools/sdr: a fixture a test
// can hand to NewChipConfigurator or NewStreamerDirection without any real
// transport behind it.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"rfdrv.dev/lms7"
)

// Control wire commands this mock understands, defined independently of the
// core package's private cmd* constants so this package never imports an
// unexported identifier across the module boundary; the two sets must stay
// numerically in sync with configurator.go by hand.
const (
	CmdRegWrite     byte = 1
	CmdRegRead      byte = 2
	CmdInitChip     byte = 3
	CmdGetGateware  byte = 4
	CmdResetCounter byte = 5
	CmdMemoryWrite  byte = 6
)

const controlPipeBytes = lms7.ControlPipeBytes

// BulkResult is an alias for lms7.BulkCompletion so this package's BulkPipe
// satisfies the lms7.BulkPipe interface exactly, rather than a structurally
// similar but distinct type.
type BulkResult = lms7.BulkCompletion

// RegisterFile is a bare map[addr]value register bank a ControlPipe can read
// and write against, with an optional per-address read hook for tests that
// need dynamic values (e.g. a temperature sensor or gateware version).
type RegisterFile struct {
	mu       sync.Mutex
	regs     map[uint16]uint16
	OnRead   func(addr uint16) (uint16, bool)
	OnWrite  func(addr, value uint16)
	WriteErr error // if set, every write request fails with this error
}

// NewRegisterFile builds an empty register bank.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{regs: make(map[uint16]uint16)}
}

// Set preloads addr with value, the way a test arranges the chip's initial
// state (e.g. a gateware version or a temperature revision ID).
func (r *RegisterFile) Set(addr, value uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[addr] = value
}

// Get reads back whatever was last written to addr (via ControlPipe or
// Set), defaulting to zero.
func (r *RegisterFile) Get(addr uint16) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[addr]
}

func (r *RegisterFile) read(addr uint16) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.OnRead != nil {
		if v, ok := r.OnRead(addr); ok {
			return v
		}
	}
	return r.regs[addr]
}

func (r *RegisterFile) write(addr, value uint16) {
	r.mu.Lock()
	r.regs[addr] = value
	hook := r.OnWrite
	r.mu.Unlock()
	if hook != nil {
		hook(addr, value)
	}
}

// ControlPipe is an in-process lms7.ControlPipe backed by a RegisterFile.
// It understands register read/write and treats every other command as a
// no-op success, which is enough to drive ChipConfigurator.Init/Configure
// end to end in tests without a real gateware attached.
type ControlPipe struct {
	Regs *RegisterFile

	mu    sync.Mutex
	calls []byte // Cmd byte of every request seen, for assertions
}

// NewControlPipe builds a ControlPipe over a fresh RegisterFile.
func NewControlPipe() *ControlPipe {
	return &ControlPipe{Regs: NewRegisterFile()}
}

// Calls returns the Cmd byte of every WriteRead call seen so far, in order.
func (c *ControlPipe) Calls() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.calls))
	copy(out, c.calls)
	return out
}

// WriteRead implements lms7.ControlPipe.
func (c *ControlPipe) WriteRead(ctx context.Context, req [controlPipeBytes]byte, timeout time.Duration) ([controlPipeBytes]byte, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req[0])
	c.mu.Unlock()

	var reply [controlPipeBytes]byte
	cmd := req[0]
	blockCount := int(req[2])
	payload := req[8:]

	switch cmd {
	case CmdRegWrite:
		if c.Regs.WriteErr != nil {
			reply[1] = 1
			return reply, nil
		}
		for i := 0; i < blockCount; i++ {
			o := i * 4
			if o+4 > len(payload) {
				break
			}
			addr := uint16(payload[o])<<8 | uint16(payload[o+1])
			value := uint16(payload[o+2])<<8 | uint16(payload[o+3])
			c.Regs.write(addr, value)
		}
	case CmdRegRead:
		out := reply[8:]
		for i := 0; i < blockCount; i++ {
			ao := i * 2
			if ao+2 > len(payload) {
				break
			}
			addr := uint16(payload[ao])<<8 | uint16(payload[ao+1])
			v := c.Regs.read(addr)
			oo := i * 2
			if oo+2 > len(out) {
				break
			}
			out[oo] = byte(v >> 8)
			out[oo+1] = byte(v)
		}
	case CmdInitChip, CmdGetGateware, CmdResetCounter, CmdMemoryWrite:
		// no-op: this mock has no bring-up sequence, counters, or flash.
	}
	reply[0] = cmd
	return reply, nil
}

// pendingXfer is one in-flight BulkPipe transfer awaiting Wait.
type pendingXfer struct {
	buf  []byte
	done chan BulkResult
}

// BulkPipe is an in-process lms7.BulkPipe. Rx-direction pipes are fed with
// Push, which a test calls to hand the streamer pre-built frame bytes;
// Tx-direction pipes instead record every Submit'd buffer where Sink can
// observe it.
type BulkPipe struct {
	mu       sync.Mutex
	nextTok  int
	pending  map[int]*pendingXfer
	queue    [][]byte // frames waiting to satisfy the next Submit (Rx mode)
	sink     func([]byte)
	aborted  bool
	cond     *sync.Cond
}

// NewBulkPipe builds an empty BulkPipe. For Rx use, feed it frames with
// Push; for Tx use, set Sink to observe submitted buffers.
func NewBulkPipe() *BulkPipe {
	p := &BulkPipe{pending: make(map[int]*pendingXfer)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetSink installs fn to be called with a copy of every buffer Submit'd to
// this pipe, the Tx-direction observation point.
func (p *BulkPipe) SetSink(fn func([]byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = fn
}

// Push enqueues data to satisfy a future Submit call, copying it into the
// caller-provided buffer on the matching Submit (the Rx-direction fixture
// path: a test arranges frame bytes here, the streamer's runRx loop submits
// pool buffers and receives this data back via Wait).
func (p *BulkPipe) Push(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	p.queue = append(p.queue, buf)
	p.cond.Broadcast()
}

// Submit implements lms7.BulkPipe.
func (p *BulkPipe) Submit(buf []byte) (int, error) {
	p.mu.Lock()
	if p.aborted {
		p.mu.Unlock()
		return 0, errors.New("mock: pipe aborted")
	}
	tok := p.nextTok
	p.nextTok++
	px := &pendingXfer{buf: buf, done: make(chan BulkResult, 1)}
	p.pending[tok] = px
	sink := p.sink
	var src []byte
	if len(p.queue) > 0 {
		src = p.queue[0]
		p.queue = p.queue[1:]
	}
	p.mu.Unlock()

	if sink != nil {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		sink(cp)
		px.done <- BulkResult{BytesTransferred: len(buf)}
		return tok, nil
	}

	if src != nil {
		n := copy(buf, src)
		px.done <- BulkResult{BytesTransferred: n}
	}
	// If no fixture frame and no sink is installed yet, the transfer stays
	// pending until a later Push wakes Wait's poll loop.
	return tok, nil
}

// Wait implements lms7.BulkPipe.
func (p *BulkPipe) Wait(token int, timeout time.Duration) (BulkResult, error) {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		px, ok := p.pending[token]
		if !ok {
			p.mu.Unlock()
			return BulkResult{}, errors.New("mock: unknown token")
		}
		select {
		case res := <-px.done:
			delete(p.pending, token)
			p.mu.Unlock()
			return res, nil
		default:
		}
		if p.aborted {
			delete(p.pending, token)
			p.mu.Unlock()
			return BulkResult{}, errors.New("mock: pipe aborted")
		}
		p.mu.Unlock()

		if time.Now().After(deadline) {
			return BulkResult{}, errors.New("mock: wait timeout")
		}
		// Try to satisfy this transfer from any frame pushed since Submit.
		p.mu.Lock()
		if len(p.queue) > 0 {
			src := p.queue[0]
			p.queue = p.queue[1:]
			n := copy(px.buf, src)
			p.mu.Unlock()
			return BulkResult{BytesTransferred: n}, nil
		}
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
}

// Abort implements lms7.BulkPipe.
func (p *BulkPipe) Abort() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aborted = true
	p.cond.Broadcast()
	return nil
}

// vim: foldmethod=marker
