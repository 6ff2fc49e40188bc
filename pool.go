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

import "sync"

// MemoryPool is a bounded free-list of equal-size buffers (C3, §4.1). Unlike
// a sync.Pool, it has a hard cap on the number of buffers it will ever
// create, and it reports a double-free instead of silently corrupting the
// free list.
type MemoryPool struct {
	mu           sync.Mutex
	bufSize      int
	hardCap      int
	created      int
	free         [][]byte
	outs         map[*byte]struct{}
	onDoubleFree func(error)
}

// NewMemoryPool builds a pool that hands out buffers of exactly bufSize
// bytes and will never allocate more than hardCap of them concurrently.
func NewMemoryPool(bufSize, hardCap int) *MemoryPool {
	return &MemoryPool{
		bufSize: bufSize,
		hardCap: hardCap,
		outs:    make(map[*byte]struct{}),
	}
}

// Allocate returns a buffer from the free list, or creates a new one if the
// pool has not reached its hard cap, or fails with KindExhausted (§4.1).
func (p *MemoryPool) Allocate() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var buf []byte
	if n := len(p.free); n > 0 {
		buf = p.free[n-1]
		p.free = p.free[:n-1]
	} else if p.created < p.hardCap {
		buf = make([]byte, p.bufSize)
		p.created++
	} else {
		return nil, NewFault(KindExhausted, "memory pool exhausted: %d buffers in use", p.hardCap)
	}

	p.outs[&buf[0]] = struct{}{}
	return buf, nil
}

// Free returns buf to the free list. A double-free (freeing a buffer this
// pool did not just hand out) is a programming error; it is reported via
// the onDoubleFree hook installed by SetDoubleFreeHandler, or panics if no
// hook is installed, matching the "MUST be detected and reported" wording
// in §4.1.
func (p *MemoryPool) Free(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(buf) == 0 {
		return
	}
	key := &buf[0]
	if _, ok := p.outs[key]; !ok {
		err := NewFault(KindInvalidArgument, "double free of pool buffer detected")
		if p.onDoubleFree != nil {
			p.onDoubleFree(err)
			return
		}
		panic(err)
	}
	delete(p.outs, key)
	p.free = append(p.free, buf)
}

// SetDoubleFreeHandler installs a callback invoked instead of panicking
// when Free detects a double-free. DeviceFacade wires this to its logger
// so a misbehaving caller doesn't bring a streaming goroutine down with it.
func (p *MemoryPool) SetDoubleFreeHandler(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDoubleFree = fn
}

// Used reports how many buffers are currently checked out. P6 requires this
// to read zero after StopStream.
func (p *MemoryPool) Used() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outs)
}

// Cap reports the pool's hard cap: the most buffers it will ever have live
// at once.
func (p *MemoryPool) Cap() int {
	return p.hardCap
}

// vim: foldmethod=marker
