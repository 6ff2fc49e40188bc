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

package lms7_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "rfdrv.dev/lms7"
	"rfdrv.dev/lms7/mock"
)

func newTestControlPipe() *mock.ControlPipe {
	control := mock.NewControlPipe()
	// Gateware version registers: 1.0.0, matching the descriptor's minimum.
	control.Regs.Set(0x0000, 1)
	control.Regs.Set(0x0001, 0)
	return control
}

func newTestDevice(t *testing.T) (*Device, *mock.BulkPipe, *mock.BulkPipe) {
	t.Helper()
	control := newTestControlPipe()
	rx := mock.NewBulkPipe()
	tx := mock.NewBulkPipe()
	d := NewDevice("test", control, []ModulePipes{{Rx: rx, Tx: tx}}, testDescriptor())
	return d, rx, tx
}

func TestDeviceConfigureAndReadBack(t *testing.T) {
	d, _, _ := newTestDevice(t)

	require.NoError(t, d.EnableChannel(false, 0, true))
	require.NoError(t, d.SetLOFrequency(false, 0, 915e6))
	got, err := d.GetLOFrequency(false, 0)
	require.NoError(t, err)
	require.Equal(t, float64(915e6), float64(got))

	require.NoError(t, d.SetGaindB(false, 0, 30))
	db, err := d.GetGaindB(false, 0)
	require.NoError(t, err)
	require.Equal(t, 30.0, db)
}

func TestDeviceSetNormalizedGainRoundTrip(t *testing.T) {
	d, _, _ := newTestDevice(t)
	require.NoError(t, d.EnableChannel(false, 0, true))
	require.NoError(t, d.SetNormalizedGain(false, 0, 0.5))

	g, err := d.GetNormalizedGain(false, 0)
	require.NoError(t, err)
	require.InDelta(t, 0.5, g, 0.02)
}

// TestDeviceConfigureBusyWhileStreaming checks that Configure-family calls
// refuse with Busy while a Streamer on the same module is Running.
func TestDeviceConfigureBusyWhileStreaming(t *testing.T) {
	d, rx, _ := newTestDevice(t)
	_ = rx

	require.NoError(t, d.EnableChannel(false, 0, true))

	h, err := d.SetupStream(StreamConfig{
		RxChannels: []int{0},
		LinkFormat: FormatI16,
		BufferSize: 4096,
	})
	require.NoError(t, err)
	require.NoError(t, d.StartStream(h))

	err = d.SetLOFrequency(false, 0, 920e6)
	require.Error(t, err)
	require.Equal(t, KindBusy, FaultKind(err))

	require.NoError(t, d.StopStream(h))
	require.NoError(t, d.DestroyStream(h))
}

// TestDeviceStreamLifecycleReleasesBuffers checks P6: stopping a stream
// returns every outstanding buffer to the pool.
func TestDeviceStreamLifecycleReleasesBuffers(t *testing.T) {
	d, rx, _ := newTestDevice(t)

	require.NoError(t, d.EnableChannel(false, 0, true))
	h, err := d.SetupStream(StreamConfig{
		RxChannels: []int{0},
		LinkFormat: FormatI16,
		BufferSize: 256,
	})
	require.NoError(t, err)
	require.NoError(t, d.StartStream(h))

	codec, err := NewPacketCodec(FormatI16, 1, 256)
	require.NoError(t, err)
	pool := NewMemoryPool(256, 4)
	frames, err := codec.Pack(pool, []ChannelSamples{make(ChannelSamples, codec.SamplesPerFrame())}, codec.SamplesPerFrame(), StreamMeta{})
	require.NoError(t, err)
	rx.Push(frames[0].Buf)
	frames[0].Release()

	out := []ChannelSamples{make(ChannelSamples, codec.SamplesPerFrame())}
	var meta StreamMeta
	_, err = d.RecvStream(h, out, codec.SamplesPerFrame(), &meta, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, d.StopStream(h))
	status, err := d.GetStreamStatus(h)
	require.NoError(t, err)
	require.Equal(t, 0, status.FifoFilled)
}

func TestDeviceGetSampleRateReportsTwiceHostRate(t *testing.T) {
	d, _, _ := newTestDevice(t)
	require.NoError(t, d.EnableChannel(false, 0, true))
	require.NoError(t, d.SetSampleRateDir(false, 20e6, 0))

	host, rfHz, err := d.GetSampleRate(false, 0)
	require.NoError(t, err)
	require.Equal(t, float64(20e6), float64(host))
	require.Equal(t, float64(40e6), float64(rfHz))
}

func TestDeviceEnableCacheForcesRewrite(t *testing.T) {
	control := newTestControlPipe()
	d := NewDevice("test", control, []ModulePipes{{Rx: mock.NewBulkPipe(), Tx: mock.NewBulkPipe()}}, testDescriptor())
	require.NoError(t, d.EnableChannel(false, 0, true))
	require.NoError(t, d.SetLOFrequency(false, 0, 915e6))

	d.EnableCache(false)
	// Re-applying the identical LO with caching disabled re-issues register
	// writes instead of deduping them away.
	before := len(control.Calls())
	require.NoError(t, d.SetLOFrequency(false, 0, 915e6))
	require.Greater(t, len(control.Calls()), before)
}

func TestDeviceChannelIndexValidation(t *testing.T) {
	d, _, _ := newTestDevice(t)

	err := d.EnableChannel(false, 7, true)
	require.Error(t, err)
	require.Equal(t, KindInvalidArgument, FaultKind(err))

	_, err = d.GetLOFrequency(false, -1)
	require.Error(t, err)
	require.Equal(t, KindInvalidArgument, FaultKind(err))
}

func TestDeviceSPIRoundTrip(t *testing.T) {
	d, _, _ := newTestDevice(t)

	require.NoError(t, d.SPIWrite(0x0123, 0xBEEF))
	v, err := d.SPIRead(0x0123)
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), v)
}

func TestDeviceUploadMemoryChunks(t *testing.T) {
	control := mock.NewControlPipe()
	d := NewDevice("test", control, nil, testDescriptor())

	img := make([]byte, 200) // needs four 56-byte control packets
	require.NoError(t, d.UploadMemory(img))

	uploads := 0
	for _, cmd := range control.Calls() {
		if cmd == mock.CmdMemoryWrite {
			uploads++
		}
	}
	require.Equal(t, 4, uploads)

	err := d.UploadMemory(nil)
	require.Error(t, err)
	require.Equal(t, KindInvalidArgument, FaultKind(err))
}

func TestDeviceAlignPhaseStartResetsFPGACounters(t *testing.T) {
	control := newTestControlPipe()
	rx := mock.NewBulkPipe()
	tx := mock.NewBulkPipe()
	tx.SetSink(func([]byte) {})
	d := NewDevice("test", control, []ModulePipes{{Rx: rx, Tx: tx}}, testDescriptor())

	require.NoError(t, d.EnableChannel(false, 0, true))
	h, err := d.SetupStream(StreamConfig{
		RxChannels: []int{0},
		TxChannels: []int{0},
		LinkFormat: FormatI16,
		BufferSize: 256,
		AlignPhase: true,
	})
	require.NoError(t, err)
	require.NoError(t, d.StartStream(h))
	defer d.DestroyStream(h)

	resets := 0
	for _, cmd := range control.Calls() {
		if cmd == mock.CmdResetCounter {
			resets++
		}
	}
	require.Equal(t, 1, resets)
}

func TestDeviceVCTCXOTrimRoundTrip(t *testing.T) {
	d, _, _ := newTestDevice(t)
	require.NoError(t, d.SetVCTCXOTrim(1234))

	got, err := d.GetVCTCXOTrim()
	require.NoError(t, err)
	require.Equal(t, uint16(1234), got)
}

// vim: foldmethod=marker
