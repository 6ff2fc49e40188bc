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

package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestControlPipeRegisterWriteRead(t *testing.T) {
	p := NewControlPipe()

	var req [controlPipeBytes]byte
	req[0] = CmdRegWrite
	req[2] = 1
	req[8] = 0x01
	req[9] = 0x00
	req[10] = 0x12
	req[11] = 0x34
	_, err := p.WriteRead(context.Background(), req, time.Second)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), p.Regs.Get(0x0100))

	var rreq [controlPipeBytes]byte
	rreq[0] = CmdRegRead
	rreq[2] = 1
	rreq[8] = 0x01
	rreq[9] = 0x00
	reply, err := p.WriteRead(context.Background(), rreq, time.Second)
	require.NoError(t, err)
	require.Equal(t, byte(0x12), reply[8])
	require.Equal(t, byte(0x34), reply[9])

	require.Equal(t, []byte{CmdRegWrite, CmdRegRead}, p.Calls())
}

func TestBulkPipeSubmitWaitWithFixture(t *testing.T) {
	p := NewBulkPipe()
	p.Push([]byte{1, 2, 3, 4})

	buf := make([]byte, 4)
	tok, err := p.Submit(buf)
	require.NoError(t, err)

	res, err := p.Wait(tok, time.Second)
	require.NoError(t, err)
	require.Equal(t, 4, res.BytesTransferred)
	require.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestBulkPipeSink(t *testing.T) {
	p := NewBulkPipe()
	var seen []byte
	p.SetSink(func(b []byte) { seen = b })

	buf := []byte{9, 9, 9}
	tok, err := p.Submit(buf)
	require.NoError(t, err)

	res, err := p.Wait(tok, time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, res.BytesTransferred)
	require.Equal(t, []byte{9, 9, 9}, seen)
}

func TestBulkPipeAbort(t *testing.T) {
	p := NewBulkPipe()
	buf := make([]byte, 4)
	tok, err := p.Submit(buf)
	require.NoError(t, err)

	require.NoError(t, p.Abort())
	_, err = p.Wait(tok, time.Second)
	require.Error(t, err)

	_, err = p.Submit(buf)
	require.Error(t, err)
}

// vim: foldmethod=marker
