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
	"unsafe"

	"github.com/mattn/go-pointer"
)

// StreamHandle is the opaque token SetupStream hands back to callers
// (§6). §9's design notes call for replacing the C ABI's process-wide
// stream-handle list with "a per-device registry... the external ABI
// becomes a thin wrapper that stores an integer index into that
// registry" — streamHandleRegistry is that registry, and StreamHandle
// wraps the unsafe.Pointer token go-pointer hands back for it, the same
// save/restore/unref shape the teacher's cgo callback boundaries use for
// userdata.
type StreamHandle struct {
	ptr unsafe.Pointer
}

// streamHandleRegistry owns the live Streamer set for one DeviceFacade.
type streamHandleRegistry struct {
	mu      sync.Mutex
	handles map[unsafe.Pointer]*Streamer
}

func newStreamHandleRegistry() *streamHandleRegistry {
	return &streamHandleRegistry{handles: make(map[unsafe.Pointer]*Streamer)}
}

// Register saves s and returns an opaque StreamHandle for it.
func (r *streamHandleRegistry) Register(s *Streamer) StreamHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := pointer.Save(s)
	r.handles[p] = s
	return StreamHandle{ptr: p}
}

// Lookup resolves a StreamHandle back to its Streamer, or returns nil if
// it has already been destroyed.
func (r *streamHandleRegistry) Lookup(h StreamHandle) *Streamer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[h.ptr]
}

// Release removes h from the registry and frees its go-pointer slot.
func (r *streamHandleRegistry) Release(h StreamHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[h.ptr]; !ok {
		return
	}
	delete(r.handles, h.ptr)
	pointer.Unref(h.ptr)
}

// vim: foldmethod=marker
