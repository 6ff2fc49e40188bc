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

import "context"

// Register addresses for the byte-addressed GPIO bitmap, the named custom
// board parameter table, and the persisted reference-clock trim, all parts
// of §6's external interface that sit outside the SDRConfig delta the
// ChipConfigurator otherwise owns. They live on the same made-up register
// layout documented in configurator.go.
const (
	regGPIODir      uint16 = 0x0300
	regGPIOValue    uint16 = 0x0301
	regClockRef     uint16 = 0x0010 // mirrors the write in Configure step 3
	regClockCgen    uint16 = 0x0080
	customParamBase uint16 = 0x0400
)

// ClockID names one of the clocks GetClockFreq/SetClockFreq (§6) can target.
type ClockID uint8

const (
	ClockReference ClockID = iota
	ClockCGEN
)

func clockRegister(id ClockID) (uint16, error) {
	switch id {
	case ClockReference:
		return regClockRef, nil
	case ClockCGEN:
		return regClockCgen, nil
	default:
		return 0, NewFault(KindInvalidArgument, "unknown clock id %d", id)
	}
}

// CustomParam names one board-specific numeric knob exposed by
// ReadCustomBoardParam/WriteCustomBoardParam (§6). Value is in Unit's terms;
// the register holds a raw integer code, the same fixed-point scale used by
// the rest of the made-up register map.
type CustomParam struct {
	ID    uint8
	Unit  string
	Value float64
}

func customParamAddr(id uint8) uint16 {
	return customParamBase + uint16(id)
}

// ReadRegister issues a single-address register read over the
// ChipConfigurator's ControlPipe, for the handful of §6 operations
// (GPIO, custom params, clocks, EEPROM) that are not part of the SDRConfig
// delta ChipConfigurator.Configure otherwise owns exclusively.
func (c *ChipConfigurator) ReadRegister(ctx context.Context, addr uint16) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vals, err := c.readRegisters([]uint16{addr})
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, NewFault(KindTransportFailure, "no value returned for register 0x%04X", addr)
	}
	return vals[0], nil
}

// WriteRegister issues a single-address register write, the counterpart to
// ReadRegister.
func (c *ChipConfigurator) WriteRegister(ctx context.Context, addr, value uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeRegisters([]regWrite{{Addr: addr, Value: value}})
}

// vim: foldmethod=marker
