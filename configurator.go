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
	"fmt"
	"sync"
	"time"

	"hz.tools/rf"

	"rfdrv.dev/lms7/board"
)

const controlTimeout = 100 * time.Millisecond

// Control packet commands understood by this chip family's gateware.
const (
	cmdRegWrite     byte = 1
	cmdRegRead      byte = 2
	cmdInitChip     byte = 3
	cmdGetGateware  byte = 4
	cmdResetCounter byte = 5
	cmdMemoryWrite  byte = 6
)

// controlRetries is how many times a failed control transfer is retried
// before the failure surfaces (§7: control I/O is retried a small fixed
// count, streaming I/O is not).
const controlRetries = 2

// regTempRevisionID and tempUnsupportedID are the named registers this
// package reads directly to implement the temperature-refusal rule (§8.6);
// the rest of the register map is addressed through the LoRegisterAddr /
// channel*Addr helpers below.
const (
	regTempRevisionID uint16 = 0x002F
	tempUnsupportedID uint16 = 0x3840
)

// regGatewareMajor/regGatewareMinor report the running FPGA image's version,
// checked against the descriptor's minimum during Init.
const (
	regGatewareMajor uint16 = 0x0000
	regGatewareMinor uint16 = 0x0001
)

// ChipConfigurator converts the delta between the in-memory last-applied
// SDRConfig and a new request into an ordered sequence of SPI operations
// (C8, §4.6).
type ChipConfigurator struct {
	mu sync.Mutex

	control    ControlPipe
	descriptor board.Descriptor
	clock      *ClockTree

	lastApplied  SDRConfig
	deferredLO   [2]bool // per direction (DirRx, DirTx): I1 MIMO deferral pending
	cacheEnabled bool
	initialized  bool
}

// NewChipConfigurator builds a configurator bound to one device's
// ControlPipe and board descriptor.
func NewChipConfigurator(control ControlPipe, descriptor board.Descriptor) *ChipConfigurator {
	return &ChipConfigurator{
		control:    control,
		descriptor: descriptor,
		clock:      NewClockTree(rf.Hz(descriptor.CgenMaxHz)),
		lastApplied: SDRConfig{
			Channel: make([]ChannelPair, descriptor.NumChannels),
		},
		cacheEnabled: true,
	}
}

// SetCacheEnabled toggles whether applyChannelStep diffs against the stored
// last-applied configuration before issuing register writes (§6
// EnableCache). Disabling it makes every Configure call rewrite the LO of
// every enabled channel and diff the per-channel settings against a
// zero-valued ChannelConfig, so every field that differs from its zero
// value is rewritten whether or not it changed; P3's idempotence guarantee
// only holds while the cache is enabled.
func (c *ChipConfigurator) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheEnabled = enabled
}

// Resync rewrites the per-channel registers and the LO of every enabled
// channel from the current last-applied configuration, diffing against a
// zero-valued ChannelConfig instead of lastApplied, so fields at their zero
// value are skipped (§6 Synchronize). Reference-clock and clock-tree
// registers are not rewritten.
// Useful after a device reset that may have lost register state the core's
// own bookkeeping believes is still applied.
func (c *ChipConfigurator) Resync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := cloneSDRConfig(c.lastApplied)
	for ch := range cur.Channel {
		for _, dir := range []Direction{DirRx, DirTx} {
			cfg := cur.Channel[ch].get(dir)
			if err := c.applyChannelStep(ch, dir, ChannelConfig{}, cfg); err != nil {
				return err
			}
			if cfg.Enabled && cfg.CenterFrequency != 0 {
				addr := LoRegisterAddr(dir, ch)
				if err := c.writeRegisters([]regWrite{{Addr: addr, Value: uint16(uint64(cfg.CenterFrequency) / 1000)}}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// LastApplied returns a copy of the currently stored configuration.
func (c *ChipConfigurator) LastApplied() SDRConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSDRConfig(c.lastApplied)
}

// transact sends one control packet, retrying transient transport errors up
// to controlRetries times. A device-side rejection (nonzero status) is not
// retried: the gateware has already seen and refused the request.
func (c *ChipConfigurator) transact(pkt controlPacket, what string) (controlPacket, error) {
	var lastErr error
	for attempt := 0; attempt <= controlRetries; attempt++ {
		reply, err := c.control.WriteRead(context.Background(), pkt.marshal(), controlTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		rp := unmarshalControlPacket(reply)
		if rp.Status != 0 {
			return controlPacket{}, NewFault(KindTransportFailure, "%s rejected, status=%d", what, rp.Status)
		}
		return rp, nil
	}
	return controlPacket{}, NewFault(KindTransportFailure, "%s: %v", what, lastErr)
}

func (c *ChipConfigurator) writeRegisters(writes []regWrite) error {
	for len(writes) > 0 {
		n := len(writes)
		if n > 14 {
			n = 14
		}
		pkt := controlPacket{Cmd: cmdRegWrite, BlockCount: byte(n), Payload: encodeRegWrites(writes[:n])}
		if _, err := c.transact(pkt, "register write"); err != nil {
			return err
		}
		writes = writes[n:]
	}
	return nil
}

func (c *ChipConfigurator) readRegisters(addrs []uint16) ([]uint16, error) {
	pkt := controlPacket{Cmd: cmdRegRead, BlockCount: byte(len(addrs)), Payload: encodeRegReadAddrs(addrs)}
	rp, err := c.transact(pkt, "register read")
	if err != nil {
		return nil, err
	}
	return decodeRegReadReply(rp.Payload, len(addrs)), nil
}

// UploadMemory streams a firmware or gateware image to the device in
// payload-sized chunks over the control pipe (§6).
func (c *ChipConfigurator) UploadMemory(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(data) == 0 {
		return NewFault(KindInvalidArgument, "empty memory image")
	}
	for off := 0; off < len(data); off += controlPayloadBytes {
		end := off + controlPayloadBytes
		if end > len(data) {
			end = len(data)
		}
		pkt := controlPacket{Cmd: cmdMemoryWrite, BlockCount: byte(end - off)}
		copy(pkt.Payload[:], data[off:end])
		if _, err := c.transact(pkt, "memory upload"); err != nil {
			return err
		}
	}
	return nil
}

// validate enforces I1 and I2 (§3, §4.6 step 1), collecting every
// violation before returning rather than failing on the first.
func (c *ChipConfigurator) validate(req SDRConfig) (fields []string, mimoDeferred [2]bool) {
	sr := FrequencyRange{Low: rf.Hz(c.descriptor.SamplingRateHz.LowHz), High: rf.Hz(c.descriptor.SamplingRateHz.HighHz)}
	fr := FrequencyRange{Low: rf.Hz(c.descriptor.FrequencyHz.LowHz), High: rf.Hz(c.descriptor.FrequencyHz.HighHz)}

	for ch, pair := range req.Channel {
		for _, dir := range []Direction{DirRx, DirTx} {
			cfg := pair.get(dir)
			if !cfg.Enabled {
				continue
			}
			if cfg.SampleRate != 0 && !sr.Contains(cfg.SampleRate) {
				fields = append(fields, fmt.Sprintf("channel %d %s sampleRateHz %v outside %v", ch, dir, cfg.SampleRate, sr))
			}
			lpfRange := c.descriptor.Rx.LowPassFilterHz
			if dir == DirTx {
				lpfRange = c.descriptor.Tx.LowPassFilterHz
			}
			lr := FrequencyRange{Low: rf.Hz(lpfRange.LowHz), High: rf.Hz(lpfRange.HighHz)}
			if cfg.LPFBandwidth != 0 && !lr.Contains(cfg.LPFBandwidth) {
				fields = append(fields, fmt.Sprintf("channel %d %s lpfBandwidthHz %v outside %v", ch, dir, cfg.LPFBandwidth, lr))
			}
			if cfg.CenterFrequency != 0 {
				if !fr.Contains(cfg.CenterFrequency) {
					fields = append(fields, fmt.Sprintf("channel %d %s centerFrequencyHz %v outside %v", ch, dir, cfg.CenterFrequency, fr))
				} else if !c.antennaCovers(dir, cfg.PathIndex, cfg.CenterFrequency) {
					fields = append(fields, fmt.Sprintf("channel %d %s centerFrequencyHz %v outside antenna path %d range", ch, dir, cfg.CenterFrequency, cfg.PathIndex))
				}
			}
		}
	}

	// I1: two-channel MIMO LO constraint, checked per direction across
	// all enabled channels.
	if c.descriptor.NumChannels >= 2 {
		for i, dir := range []Direction{DirRx, DirTx} {
			allEnabled := true
			var first rf.Hz
			haveFirst := false
			mismatch := false
			for _, pair := range req.Channel {
				cfg := pair.get(dir)
				if !cfg.Enabled {
					allEnabled = false
					continue
				}
				if !haveFirst {
					first = cfg.CenterFrequency
					haveFirst = true
				} else if cfg.CenterFrequency != first {
					mismatch = true
				}
			}
			if allEnabled && mismatch {
				mimoDeferred[i] = true
			}
		}
	}

	return fields, mimoDeferred
}

func (c *ChipConfigurator) antennaCovers(dir Direction, pathIndex int, hz rf.Hz) bool {
	ranges := c.descriptor.Rx
	if dir == DirTx {
		ranges = c.descriptor.Tx
	}
	if pathIndex < 0 || pathIndex >= len(ranges.Antennas) {
		return true // no path-specific range recorded; fall back to chip-wide range
	}
	p := ranges.Antennas[pathIndex]
	return hz >= rf.Hz(p.BandwidthHz.LowHz) && hz <= rf.Hz(p.BandwidthHz.HighHz)
}

// Init resets the chip and applies the board's register-default overrides
// (§4.6 step 2). It also verifies the FPGA gateware meets the board's
// minimum supported version.
func (c *ChipConfigurator) Init() error {
	gatewareRegs, err := c.readRegisters([]uint16{regGatewareMajor, regGatewareMinor})
	if err == nil && len(gatewareRegs) == 2 {
		reported := fmt.Sprintf("%d.%d.0", gatewareRegs[0], gatewareRegs[1])
		if verr := checkGatewareVersion(reported, c.descriptor.MinGatewareVersion); verr != nil {
			return verr
		}
	}

	if _, err := c.transact(controlPacket{Cmd: cmdInitChip}, "chip init"); err != nil {
		return err
	}

	var writes []regWrite
	for _, o := range c.descriptor.RegisterOverrides {
		writes = append(writes, regWrite{Addr: o.Addr, Value: o.Value})
	}
	if err := c.writeRegisters(writes); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Configure applies req against the stored last-applied configuration,
// following the fixed 7-step order in §4.6. On any SPI failure the
// remaining steps are skipped and lastApplied is left unchanged, so the
// next call retries the same delta (§4.6 Failure semantics). For an
// I1-deferred direction only the LO writes are held back, until a later
// call brings the LOs into agreement; that direction's step 5 writes still
// go out, and the request is stored as lastApplied.
func (c *ChipConfigurator) Configure(req SDRConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Step 1: validate.
	fields, deferred := c.validate(req)
	if len(fields) > 0 {
		return NewConfigFault(fields)
	}

	if !c.clock.BeginConfig() {
		return NewFault(KindBusy, "a configuration pass is already in progress")
	}
	defer c.clock.EndConfig()

	next := cloneSDRConfig(req)

	// Step 2: defaults + Init(), once per chip. A convenience setter
	// replaying the last-applied configuration must not reset the chip it
	// just finished bringing up; Device.Init is the explicit re-init path.
	if !req.SkipDefaults && !c.initialized {
		if err := c.Init(); err != nil {
			return err
		}
	}

	// Step 3: reference clock.
	if req.ReferenceClock != 0 {
		if err := c.writeRegisters([]regWrite{{Addr: 0x0010, Value: uint16(req.ReferenceClock / 1000)}}); err != nil {
			return err
		}
	}

	// Step 4: LO per direction, honoring I1 deferral. Each direction's
	// writes go out as one batched burst. A direction coming out of
	// deferral rewrites every channel's LO: the earlier pass recorded the
	// frequencies in lastApplied without ever issuing them.
	for i, dir := range []Direction{DirRx, DirTx} {
		if deferred[i] {
			c.deferredLO[i] = true
			continue
		}
		wasDeferred := c.deferredLO[i]
		c.deferredLO[i] = false
		var writes []regWrite
		for ch, pair := range next.Channel {
			cfg := pair.get(dir)
			if !cfg.Enabled || cfg.CenterFrequency == 0 {
				continue
			}
			if c.cacheEnabled && !wasDeferred && ch < len(c.lastApplied.Channel) {
				prev := c.lastApplied.Channel[ch].get(dir)
				if prev.Enabled && prev.CenterFrequency == cfg.CenterFrequency {
					continue
				}
			}
			writes = append(writes, regWrite{Addr: LoRegisterAddr(dir, ch), Value: uint16(uint64(cfg.CenterFrequency) / 1000)})
		}
		if err := c.writeRegisters(writes); err != nil {
			return err
		}
	}

	// Step 5: per-channel enable/path/LPF/gain/test-signal/calibrate.
	sampleRateChanged := false
	for ch := range next.Channel {
		for _, dir := range []Direction{DirRx, DirTx} {
			cfg := next.Channel[ch].get(dir)
			prev := ChannelConfig{}
			if c.cacheEnabled && ch < len(c.lastApplied.Channel) {
				prev = c.lastApplied.Channel[ch].get(dir)
			}
			if err := c.applyChannelStep(ch, dir, prev, cfg); err != nil {
				return err
			}
			if cfg.SampleRate != 0 && cfg.SampleRate != prev.SampleRate {
				sampleRateChanged = true
			}
		}
	}

	// Step 6: clock tree, if sample rate changed.
	if sampleRateChanged {
		for ch := range next.Channel {
			for _, dir := range []Direction{DirRx, DirTx} {
				cfg := next.Channel[ch].get(dir)
				if !cfg.Enabled || cfg.SampleRate == 0 {
					continue
				}
				settings, err := c.clock.Compute(cfg.SampleRate, cfg.Oversample)
				if err != nil {
					return err
				}
				if err := c.applyClockSettings(settings); err != nil {
					return err
				}
			}
		}
	}

	// Step 7: clear one-shot calibrate flags in the stored copy.
	for ch := range next.Channel {
		next.Channel[ch].Rx.Calibrate = false
		next.Channel[ch].Tx.Calibrate = false
	}

	c.lastApplied = next
	return nil
}

func (c *ChipConfigurator) applyChannelStep(ch int, dir Direction, prev, cfg ChannelConfig) error {
	var writes []regWrite
	if cfg.Enabled != prev.Enabled {
		v := uint16(0)
		if cfg.Enabled {
			v = 1
		}
		writes = append(writes, regWrite{Addr: channelEnableAddr(dir, ch), Value: v})
	}
	if cfg.PathIndex != prev.PathIndex {
		writes = append(writes, regWrite{Addr: channelPathAddr(dir, ch), Value: uint16(cfg.PathIndex)})
	}
	if cfg.LPFBandwidth != prev.LPFBandwidth || cfg.LPFEnabled != prev.LPFEnabled {
		v := uint16(0)
		if cfg.LPFEnabled {
			v = uint16(uint64(cfg.LPFBandwidth) / 1000)
		}
		writes = append(writes, regWrite{Addr: channelLPFAddr(dir, ch), Value: v})
	}
	for kind, db := range cfg.Gain {
		if prevDB, ok := prev.Gain[kind]; !ok || prevDB != db {
			writes = append(writes, regWrite{Addr: channelGainAddr(dir, ch, kind), Value: gainDBToRegister(db)})
		}
	}
	if cfg.TestSignal != prev.TestSignal {
		writes = append(writes, regWrite{Addr: channelTestSignalAddr(dir, ch), Value: uint16(cfg.TestSignal)})
	}
	if err := c.writeRegisters(writes); err != nil {
		return err
	}
	if cfg.Calibrate {
		calPkt := controlPacket{Cmd: cmdRegWrite, BlockCount: 1, Payload: encodeRegWrites([]regWrite{{Addr: channelCalibrateAddr(dir, ch), Value: 1}})}
		if _, err := c.transact(calPkt, "calibrate channel"); err != nil {
			return err
		}
	}
	return nil
}

func (c *ChipConfigurator) applyClockSettings(s ClockSettings) error {
	return c.writeRegisters([]regWrite{
		{Addr: 0x0080, Value: uint16(uint64(s.CgenHz) / 1000)},
		{Addr: 0x0081, Value: uint16(s.Decimation)},
		{Addr: 0x0082, Value: uint16(s.Interpolation)},
	})
}

// ResetStreamCounters zeroes the FPGA's free-running sample counters on
// both directions, so the first Rx and Tx frames after a phase-aligned
// start share hwTimestamp=0 (§4.4). Streamer.Start calls this when
// AlignPhase is set.
func (c *ChipConfigurator) ResetStreamCounters() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.transact(controlPacket{Cmd: cmdResetCounter}, "reset stream counters")
	return err
}

// GetChipTemperature reads the chip's temperature sensor, refusing on
// revisions that report tempUnsupportedID at regTempRevisionID (§6, §8.6).
func (c *ChipConfigurator) GetChipTemperature() (float64, error) {
	regs, err := c.readRegisters([]uint16{regTempRevisionID})
	if err != nil {
		return 0, err
	}
	if len(regs) == 1 && regs[0] == uint16(tempUnsupportedID) {
		return 0, NewFault(KindHardwareNotSupported, "Feature is not available on this chip revision.")
	}
	vals, err := c.readRegisters([]uint16{0x002E})
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, NewFault(KindTransportFailure, "no temperature reading returned")
	}
	return float64(int16(vals[0])) / 256.0, nil
}

// register address helpers. This board family's real register map is
// out of scope (§1); these addresses are a consistent, made-up layout
// sufficient to drive the ControlPipe protocol end to end in tests.
func LoRegisterAddr(dir Direction, ch int) uint16 {
	return 0x0100 + uint16(dir)*0x0010 + uint16(ch)*0x0002
}
func channelEnableAddr(dir Direction, ch int) uint16 {
	return 0x0200 + uint16(dir)*0x0010 + uint16(ch)
}
func channelPathAddr(dir Direction, ch int) uint16 {
	return 0x0210 + uint16(dir)*0x0010 + uint16(ch)
}
func channelLPFAddr(dir Direction, ch int) uint16 {
	return 0x0220 + uint16(dir)*0x0010 + uint16(ch)
}
func channelGainAddr(dir Direction, ch int, kind GainKind) uint16 {
	return 0x0230 + uint16(dir)*0x0020 + uint16(ch)*0x0004 + uint16(kind)
}
func channelTestSignalAddr(dir Direction, ch int) uint16 {
	return 0x0240 + uint16(dir)*0x0010 + uint16(ch)
}
func channelCalibrateAddr(dir Direction, ch int) uint16 {
	return 0x0250 + uint16(dir)*0x0010 + uint16(ch)
}

// gainDBToRegister quantizes a dB gain value into the register's
// fixed-point representation (1 LSB = 1 dB for this board family).
func gainDBToRegister(db float64) uint16 {
	return uint16(int16(db))
}

// vim: foldmethod=marker
