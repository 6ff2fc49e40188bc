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
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// eepromTrimAddr and eepromTrimBytes locate the VCTCXO trim DAC value in
// the device's small EEPROM region (§6, "Persisted state").
const (
	eepromTrimAddr  uint16 = 16
	eepromTrimBytes        = 2
)

// dumpRegisters reads back the LO, enable, path, LPF and test-signal
// registers of every channel and direction and returns them as an
// addr→value map, the source data for SaveConfig. Gain, clock, reference
// clock and override registers are not included.
func (c *ChipConfigurator) dumpRegisters() map[uint16]uint16 {
	c.mu.Lock()
	addrs := make([]uint16, 0, 64)
	for ch := range c.lastApplied.Channel {
		for _, dir := range []Direction{DirRx, DirTx} {
			addrs = append(addrs,
				LoRegisterAddr(dir, ch),
				channelEnableAddr(dir, ch),
				channelPathAddr(dir, ch),
				channelLPFAddr(dir, ch),
				channelTestSignalAddr(dir, ch),
			)
		}
	}
	c.mu.Unlock()

	// readRegisters does its own I/O without needing c.mu held.
	vals, err := c.readRegisters(addrs)
	out := make(map[uint16]uint16, len(addrs))
	if err == nil {
		for i, a := range addrs {
			if i < len(vals) {
				out[a] = vals[i]
			}
		}
	}
	return out
}

// SaveConfig writes the registers read by dumpRegisters to filename as
// plain text key=value lines (§6, "Persisted state"): one
// "0xADDR=0xVALUE" pair per line, sorted by address for stable diffs.
func SaveConfig(c *ChipConfigurator, filename string) error {
	regs := c.dumpRegisters()
	addrs := make([]uint16, 0, len(regs))
	for a := range regs {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	f, err := os.Create(filename)
	if err != nil {
		return NewFault(KindTransportFailure, "save config: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, a := range addrs {
		fmt.Fprintf(w, "0x%04X=0x%04X\n", a, regs[a])
	}
	return w.Flush()
}

// LoadConfig reads a plain text key=value register dump previously written
// by SaveConfig and replays it as register writes.
func LoadConfig(c *ChipConfigurator, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return NewFault(KindTransportFailure, "load config: %v", err)
	}
	defer f.Close()

	var writes []regWrite
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return NewFault(KindInvalidArgument, "load config: malformed line %q", line)
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "0x"), 16, 16)
		if err != nil {
			return NewFault(KindInvalidArgument, "load config: bad address %q: %v", parts[0], err)
		}
		val, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 16)
		if err != nil {
			return NewFault(KindInvalidArgument, "load config: bad value %q: %v", parts[1], err)
		}
		writes = append(writes, regWrite{Addr: uint16(addr), Value: uint16(val)})
	}
	if err := sc.Err(); err != nil {
		return NewFault(KindTransportFailure, "load config: %v", err)
	}
	return c.writeRegisters(writes)
}

// vim: foldmethod=marker
