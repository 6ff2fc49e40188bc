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

	"github.com/stretchr/testify/require"

	"rfdrv.dev/lms7"
	"rfdrv.dev/lms7/board"
	"rfdrv.dev/lms7/mock"
)

func testDescriptor() board.Descriptor {
	return board.Descriptor{
		Name:           "test-board",
		NumChannels:    2,
		CgenMaxHz:      640e6,
		SamplingRateHz: board.FrequencyRangeHz{LowHz: 1e5, HighHz: 61.44e6},
		FrequencyHz:    board.FrequencyRangeHz{LowHz: 1e8, HighHz: 3.8e9},
		Rx: board.DirectionRanges{
			LowPassFilterHz: board.FrequencyRangeHz{LowHz: 1.4e6, HighHz: 130e6},
		},
		Tx: board.DirectionRanges{
			LowPassFilterHz: board.FrequencyRangeHz{LowHz: 1.4e6, HighHz: 130e6},
		},
		MinGatewareVersion: "1.0.0",
	}
}

func basicSDRConfig() lms7.SDRConfig {
	cfg := lms7.SDRConfig{Channel: make([]lms7.ChannelPair, 2)}
	cfg.Channel[0].Rx = lms7.ChannelConfig{Enabled: true, CenterFrequency: 915e6, SampleRate: 10e6}
	cfg.Channel[0].Tx = lms7.ChannelConfig{Enabled: true, CenterFrequency: 915e6, SampleRate: 10e6}
	cfg.Channel[1].Rx = lms7.ChannelConfig{Enabled: true, CenterFrequency: 915e6, SampleRate: 10e6}
	cfg.Channel[1].Tx = lms7.ChannelConfig{Enabled: true, CenterFrequency: 915e6, SampleRate: 10e6}
	return cfg
}

func TestChipConfiguratorConfigureValidates(t *testing.T) {
	control := mock.NewControlPipe()
	cfg := lms7.NewChipConfigurator(control, testDescriptor())

	bad := basicSDRConfig()
	bad.Channel[0].Rx.SampleRate = 1e9 // far outside the descriptor's range

	err := cfg.Configure(bad)
	require.Error(t, err)
	require.Equal(t, lms7.KindInvalidConfiguration, lms7.FaultKind(err))
}

// TestChipConfiguratorIdempotence checks P3: applying the same configuration
// twice issues no further register writes the second time.
func TestChipConfiguratorIdempotence(t *testing.T) {
	control := mock.NewControlPipe()
	cfg := lms7.NewChipConfigurator(control, testDescriptor())

	req := basicSDRConfig()
	req.SkipDefaults = true
	require.NoError(t, cfg.Configure(req))

	before := len(control.Calls())
	require.NoError(t, cfg.Configure(req))
	after := len(control.Calls())

	require.Equal(t, before, after, "re-applying an identical configuration must not issue new register writes")
}

// TestChipConfiguratorMIMOLODeferral checks I1: mismatched per-channel LOs
// on a two-channel board defer rather than fail, and a later matching call
// applies them.
func TestChipConfiguratorMIMOLODeferral(t *testing.T) {
	control := mock.NewControlPipe()
	cfg := lms7.NewChipConfigurator(control, testDescriptor())

	req := basicSDRConfig()
	req.SkipDefaults = true
	req.Channel[0].Rx.CenterFrequency = 900e6
	req.Channel[1].Rx.CenterFrequency = 910e6 // mismatch, Rx direction

	require.NoError(t, cfg.Configure(req), "mismatched MIMO LO must defer, not fail")
	require.Equal(t, uint16(0), control.Regs.Get(lms7.LoRegisterAddr(lms7.DirRx, 0)), "deferred Rx LO must not reach the chip")

	before := len(control.Calls())
	req.Channel[1].Rx.CenterFrequency = 900e6 // now matching
	require.NoError(t, cfg.Configure(req))

	// Both Rx LOs arrive in exactly one batched register-write burst.
	require.Equal(t, before+1, len(control.Calls()))
	wantLO := uint64(900e6) / 1000
	require.Equal(t, uint16(wantLO), control.Regs.Get(lms7.LoRegisterAddr(lms7.DirRx, 0)))
	require.Equal(t, uint16(wantLO), control.Regs.Get(lms7.LoRegisterAddr(lms7.DirRx, 1)))
}

func TestChipConfiguratorTemperatureRefusal(t *testing.T) {
	control := mock.NewControlPipe()
	control.Regs.Set(0x002F, 0x3840) // tempUnsupportedID
	cfg := lms7.NewChipConfigurator(control, testDescriptor())

	_, err := cfg.GetChipTemperature()
	require.Error(t, err)
	require.Equal(t, lms7.KindHardwareNotSupported, lms7.FaultKind(err))
}

func TestChipConfiguratorTemperatureReading(t *testing.T) {
	control := mock.NewControlPipe()
	control.Regs.Set(0x002F, 0) // supported revision
	control.Regs.Set(0x002E, uint16(int16(25*256)))
	cfg := lms7.NewChipConfigurator(control, testDescriptor())

	temp, err := cfg.GetChipTemperature()
	require.NoError(t, err)
	require.InDelta(t, 25.0, temp, 0.01)
}

// vim: foldmethod=marker
