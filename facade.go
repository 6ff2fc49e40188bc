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
	"sync"
	"time"

	"hz.tools/rf"

	"rfdrv.dev/lms7/board"
)

// ModuleState is a module's lifecycle state (§4.7): Unconfigured →
// Configured → StreamArmed → Streaming.
type ModuleState uint8

const (
	ModuleUnconfigured ModuleState = iota
	ModuleConfigured
	ModuleStreamArmed
	ModuleStreaming
)

// ModulePipes bundles the Rx and Tx BulkPipe endpoints for one module
// (chip). Out-of-scope physical transport (§1) hands these to Open/NewDevice
// already constructed; the core never dials a transport itself.
type ModulePipes struct {
	Rx BulkPipe
	Tx BulkPipe
}

// Enumerator is the out-of-scope collaborator (§1, §6 "Device enumeration &
// open") that lists and opens physical devices. The core only consumes the
// capabilities it hands back; it never talks to libusb or a DMA ioctl layer
// itself (§9 "dynamic dispatch over transports").
type Enumerator interface {
	// Enumerate lists the opaque handle strings of every device this
	// enumerator can see.
	Enumerate() ([]string, error)

	// Open resolves handle into the capabilities and static descriptor
	// needed to drive one device: a shared ControlPipe, one ModulePipes
	// per RF module (chip) on the board, and the board's descriptor.
	Open(handle string) (control ControlPipe, modules []ModulePipes, descriptor board.Descriptor, err error)
}

// GetDeviceList lists the device handles an Enumerator can see (§6).
func GetDeviceList(e Enumerator) ([]string, error) {
	list, err := e.Enumerate()
	if err != nil {
		return nil, NewFault(KindTransportFailure, "enumerate devices: %v", err)
	}
	return list, nil
}

// moduleState is the per-chip bookkeeping DeviceFacade keeps in its
// streamers vector (§3 Ownership summary, §4.7).
type moduleState struct {
	mu       sync.Mutex
	index    int
	cfg      *ChipConfigurator
	pipes    ModulePipes
	streamer *Streamer
	handle   StreamHandle
	armed    bool
	state    ModuleState

	// lastLPF remembers each channel/direction's bandwidth from before a
	// SetLPF(false) call, so a later SetLPF(true) can restore it without
	// the caller having to resupply the value (§4.7).
	lastLPF map[int][2]rf.Hz
}

// Device is the public façade (C9, DeviceFacade): it owns the
// ChipConfigurator, ClockTree (inside ChipConfigurator), last-applied
// configuration, and the vector of Streamer slots for one opened board.
type Device struct {
	mu         sync.Mutex
	handle     string
	descriptor board.Descriptor
	control    ControlPipe
	logger     *deviceLogger
	metrics    *streamMetrics
	registry   *streamHandleRegistry
	modules    []*moduleState
	lastError  string
	cacheOn    bool
}

// NewDevice builds a Device directly from already-open capabilities,
// bypassing Enumerator/Open. Useful for boards wired up outside the
// enumeration flow (e.g. a fixed embedded target).
func NewDevice(handle string, control ControlPipe, modules []ModulePipes, descriptor board.Descriptor) *Device {
	d := &Device{
		handle:     handle,
		descriptor: descriptor,
		control:    control,
		logger:     newDeviceLogger(),
		metrics:    newStreamMetrics(nil),
		registry:   newStreamHandleRegistry(),
		cacheOn:    true,
	}
	d.modules = make([]*moduleState, len(modules))
	for i, p := range modules {
		d.modules[i] = &moduleState{
			index:   i,
			cfg:     NewChipConfigurator(control, descriptor),
			pipes:   p,
			lastLPF: make(map[int][2]rf.Hz),
		}
	}
	if len(d.modules) == 0 {
		// Always expose at least module 0, even for single-chip boards
		// opened without explicit ModulePipes (control-only operations
		// like SPI/GPIO/temperature still need a ChipConfigurator).
		d.modules = []*moduleState{{
			index:   0,
			cfg:     NewChipConfigurator(control, descriptor),
			lastLPF: make(map[int][2]rf.Hz),
		}}
	}
	return d
}

// Open resolves handle through e and builds a Device ready for use (§6).
func Open(e Enumerator, handle string) (*Device, error) {
	control, modules, descriptor, err := e.Open(handle)
	if err != nil {
		return nil, NewFault(KindTransportFailure, "open %s: %v", handle, err)
	}
	return NewDevice(handle, control, modules, descriptor), nil
}

// Close tears down every active streamer and releases the device (§6).
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.modules {
		m.mu.Lock()
		if m.streamer != nil {
			m.streamer.Stop()
			m.streamer = nil
			d.registry.Release(m.handle)
		}
		m.mu.Unlock()
	}
	return nil
}

func (d *Device) module(idx int) (*moduleState, error) {
	if idx < 0 || idx >= len(d.modules) {
		return nil, NewFault(KindInvalidArgument, "module index %d out of range", idx)
	}
	return d.modules[idx], nil
}

func (d *Device) fail(err error) error {
	if err == nil {
		return nil
	}
	d.mu.Lock()
	d.lastError = err.Error()
	d.mu.Unlock()
	if d.logger != nil {
		d.logger.Errorf("%s", err)
	}
	return err
}

// GetLastErrorMessage returns the most recent failure's human-readable
// message (§6, §7 propagation convention).
func (d *Device) GetLastErrorMessage() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastError
}

// RegisterLogHandler installs cb as the sink for this device's log lines
// (§6), or clears it when cb is nil.
func (d *Device) RegisterLogHandler(cb LogCallback) {
	d.logger.RegisterLogHandler(cb)
}

// GetLibraryVersion reports this module's version string (§6).
func GetLibraryVersion() string {
	return LibraryVersion
}

// busyIfStreaming enforces §5's "Configure is not safe to call while a
// Streamer on the same module is in Running; doing so fails with Busy."
func (m *moduleState) busyIfStreaming() error {
	if m.streamer != nil && m.state == ModuleStreaming {
		return NewFault(KindBusy, "module %d is streaming", m.index)
	}
	return nil
}

// mutate reads the module's current configuration, lets fn edit a working
// copy, and applies the result through ChipConfigurator.Configure — the
// shape every convenience setter in §6 shares.
func (m *moduleState) mutate(fn func(cfg *SDRConfig)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.busyIfStreaming(); err != nil {
		return err
	}
	cur := m.cfg.LastApplied()
	fn(&cur)
	if err := m.cfg.Configure(cur); err != nil {
		return err
	}
	if m.state == ModuleUnconfigured {
		m.state = ModuleConfigured
	}
	return nil
}

// mutateChannel is mutate with an index check up front, for the setters
// that edit exactly one channel.
func (m *moduleState) mutateChannel(ch int, fn func(cfg *SDRConfig)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.busyIfStreaming(); err != nil {
		return err
	}
	cur := m.cfg.LastApplied()
	if ch < 0 || ch >= len(cur.Channel) {
		return NewFault(KindInvalidArgument, "channel index %d out of range", ch)
	}
	fn(&cur)
	if err := m.cfg.Configure(cur); err != nil {
		return err
	}
	if m.state == ModuleUnconfigured {
		m.state = ModuleConfigured
	}
	return nil
}

func (m *moduleState) channel(idx int, dir Direction) (ChannelConfig, error) {
	cur := m.cfg.LastApplied()
	if idx < 0 || idx >= len(cur.Channel) {
		return ChannelConfig{}, NewFault(KindInvalidArgument, "channel index %d out of range", idx)
	}
	return cur.Channel[idx].get(dir), nil
}

func dirOf(isTx bool) Direction {
	if isTx {
		return DirTx
	}
	return DirRx
}

// Configure applies cfg against module 0's last-applied configuration (§4.6,
// §4.7). Most callers use the per-field convenience setters below instead;
// Configure is for callers that already have a full SDRConfig in hand (e.g.
// replaying a saved preset).
func (d *Device) Configure(cfg SDRConfig) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.busyIfStreaming(); err != nil {
		return d.fail(err)
	}
	if err := m.cfg.Configure(cfg); err != nil {
		return d.fail(err)
	}
	if m.state == ModuleUnconfigured {
		m.state = ModuleConfigured
	}
	return nil
}

// Init resets the chip and applies the board's register-default overrides
// (§6).
func (d *Device) Init() error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return d.fail(m.cfg.Init())
}

// Reset is an alias for Init on this chip family: there is no separate
// "just reset, don't rerun bring-up" register sequence (§6).
func (d *Device) Reset() error {
	return d.Init()
}

// EnableChannel enables or disables one direction of one channel (§6).
func (d *Device) EnableChannel(isTx bool, ch int, enabled bool) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	dir := dirOf(isTx)
	return d.fail(m.mutateChannel(ch, func(cfg *SDRConfig) {
		c := cfg.Channel[ch].get(dir)
		c.Enabled = enabled
		cfg.Channel[ch].set(dir, c)
	}))
}

// SetSampleRate sets the sample rate and oversample ratio for both
// directions of every channel (§6).
func (d *Device) SetSampleRate(rateHz rf.Hz, oversample int) error {
	if err := d.SetSampleRateDir(false, rateHz, oversample); err != nil {
		return err
	}
	return d.SetSampleRateDir(true, rateHz, oversample)
}

// SetSampleRateDir sets the sample rate and oversample ratio for one
// direction of every channel (§6).
func (d *Device) SetSampleRateDir(isTx bool, rateHz rf.Hz, oversample int) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	dir := dirOf(isTx)
	return d.fail(m.mutate(func(cfg *SDRConfig) {
		for i := range cfg.Channel {
			c := cfg.Channel[i].get(dir)
			c.SampleRate = rateHz
			c.Oversample = oversample
			cfg.Channel[i].set(dir, c)
		}
	}))
}

// GetSampleRate reports the host-visible sample rate and the analog
// ADC/DAC rate for one channel (§6). This chip family always runs the
// converter at twice the host-visible rate (one I or Q sample per clock
// edge), independent of the decimation/interpolation ratio ClockTree
// computes — see DESIGN.md's resolution of §8 scenario 1.
func (d *Device) GetSampleRate(isTx bool, ch int) (hostHz, rfHz rf.Hz, err error) {
	m, merr := d.module(0)
	if merr != nil {
		return 0, 0, d.fail(merr)
	}
	c, cerr := m.channel(ch, dirOf(isTx))
	if cerr != nil {
		return 0, 0, d.fail(cerr)
	}
	return c.SampleRate, c.SampleRate * 2, nil
}

// GetSampleRateRange reports the board's supported sample-rate span (§6).
func (d *Device) GetSampleRateRange() FrequencyRange {
	return FrequencyRange{Low: rf.Hz(d.descriptor.SamplingRateHz.LowHz), High: rf.Hz(d.descriptor.SamplingRateHz.HighHz)}
}

// GetNumChannels reports how many channels this board exposes per direction
// (§6).
func (d *Device) GetNumChannels() int {
	return d.descriptor.NumChannels
}

// SetLOFrequency sets one direction/channel's local oscillator frequency
// (§6). With a two-channel chip, setting mismatched LOs on both channels of
// one direction defers the write per I1/P4 until a matching call arrives.
func (d *Device) SetLOFrequency(isTx bool, ch int, hz rf.Hz) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	dir := dirOf(isTx)
	return d.fail(m.mutateChannel(ch, func(cfg *SDRConfig) {
		c := cfg.Channel[ch].get(dir)
		c.CenterFrequency = hz
		cfg.Channel[ch].set(dir, c)
	}))
}

// GetLOFrequency reports the last-applied LO frequency for one
// direction/channel (§6).
func (d *Device) GetLOFrequency(isTx bool, ch int) (rf.Hz, error) {
	m, err := d.module(0)
	if err != nil {
		return 0, d.fail(err)
	}
	c, cerr := m.channel(ch, dirOf(isTx))
	if cerr != nil {
		return 0, d.fail(cerr)
	}
	return c.CenterFrequency, nil
}

// GetLOFrequencyRange reports the board's supported LO span (§6).
func (d *Device) GetLOFrequencyRange() FrequencyRange {
	return FrequencyRange{Low: rf.Hz(d.descriptor.FrequencyHz.LowHz), High: rf.Hz(d.descriptor.FrequencyHz.HighHz)}
}

// GetAntennaList reports the selectable RF path names for one direction
// (§6).
func (d *Device) GetAntennaList(isTx bool) []string {
	return d.descriptor.AntennaNames(isTx)
}

// SetAntenna selects one of GetAntennaList's paths for a channel (§6).
func (d *Device) SetAntenna(isTx bool, ch, pathIndex int) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	dir := dirOf(isTx)
	return d.fail(m.mutateChannel(ch, func(cfg *SDRConfig) {
		c := cfg.Channel[ch].get(dir)
		c.PathIndex = pathIndex
		cfg.Channel[ch].set(dir, c)
	}))
}

// GetAntenna reports the currently selected path index for a channel (§6).
func (d *Device) GetAntenna(isTx bool, ch int) (int, error) {
	m, err := d.module(0)
	if err != nil {
		return 0, d.fail(err)
	}
	c, cerr := m.channel(ch, dirOf(isTx))
	if cerr != nil {
		return 0, d.fail(cerr)
	}
	return c.PathIndex, nil
}

// GetAntennaBW reports the frequency range one antenna path covers (§6).
func (d *Device) GetAntennaBW(isTx bool, pathIndex int) (FrequencyRange, error) {
	ranges := d.descriptor.Rx
	if isTx {
		ranges = d.descriptor.Tx
	}
	if pathIndex < 0 || pathIndex >= len(ranges.Antennas) {
		return FrequencyRange{}, d.fail(NewFault(KindInvalidArgument, "antenna path index %d out of range", pathIndex))
	}
	p := ranges.Antennas[pathIndex]
	return FrequencyRange{Low: rf.Hz(p.BandwidthHz.LowHz), High: rf.Hz(p.BandwidthHz.HighHz)}, nil
}

// SetLPFBW sets the analog low-pass filter bandwidth for a channel (§6).
func (d *Device) SetLPFBW(isTx bool, ch int, hz rf.Hz) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	dir := dirOf(isTx)
	return d.fail(m.mutateChannel(ch, func(cfg *SDRConfig) {
		c := cfg.Channel[ch].get(dir)
		c.LPFBandwidth = hz
		c.LPFEnabled = true
		cfg.Channel[ch].set(dir, c)
	}))
}

// GetLPFBW reports the channel's currently applied LPF bandwidth (§6).
func (d *Device) GetLPFBW(isTx bool, ch int) (rf.Hz, error) {
	m, err := d.module(0)
	if err != nil {
		return 0, d.fail(err)
	}
	c, cerr := m.channel(ch, dirOf(isTx))
	if cerr != nil {
		return 0, d.fail(cerr)
	}
	return c.LPFBandwidth, nil
}

// GetLPFBWRange reports the board's supported LPF bandwidth span for one
// direction (§6).
func (d *Device) GetLPFBWRange(isTx bool) FrequencyRange {
	r := d.descriptor.Rx.LowPassFilterHz
	if isTx {
		r = d.descriptor.Tx.LowPassFilterHz
	}
	return FrequencyRange{Low: rf.Hz(r.LowHz), High: rf.Hz(r.HighHz)}
}

// SetLPF enables or disables the analog low-pass filter for a channel. On
// disable, the active bandwidth is remembered so a later re-enable restores
// it without the caller resupplying it (§4.7, §6).
func (d *Device) SetLPF(isTx bool, ch int, enabled bool) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	dir := dirOf(isTx)
	dirIdx := 0
	if isTx {
		dirIdx = 1
	}
	return d.fail(m.mutateChannel(ch, func(cfg *SDRConfig) {
		c := cfg.Channel[ch].get(dir)
		if !enabled {
			memo := m.lastLPF[ch]
			memo[dirIdx] = c.LPFBandwidth
			m.lastLPF[ch] = memo
			c.LPFEnabled = false
		} else {
			if memo, ok := m.lastLPF[ch]; ok && memo[dirIdx] != 0 {
				c.LPFBandwidth = memo[dirIdx]
			}
			c.LPFEnabled = true
		}
		cfg.Channel[ch].set(dir, c)
	}))
}

// SetNormalizedGain sets a channel's overall gain as a [0,1] knob, mapped to
// the chip's dB range via gainMappers (§6, P5).
func (d *Device) SetNormalizedGain(isTx bool, ch int, g float64) error {
	dir := dirOf(isTx)
	db := gainMappers[dir].NormalizedToDB(g)
	return d.SetGaindB(isTx, ch, db)
}

// SetGaindB sets a channel's overall gain directly in dB (§6).
func (d *Device) SetGaindB(isTx bool, ch int, db float64) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	dir := dirOf(isTx)
	return d.fail(m.mutateChannel(ch, func(cfg *SDRConfig) {
		c := cfg.Channel[ch].get(dir)
		if c.Gain == nil {
			c.Gain = map[GainKind]float64{}
		}
		c.Gain[GainKindOverall] = db
		cfg.Channel[ch].set(dir, c)
	}))
}

// GetNormalizedGain is the inverse of SetNormalizedGain (§6, P5).
func (d *Device) GetNormalizedGain(isTx bool, ch int) (float64, error) {
	db, err := d.GetGaindB(isTx, ch)
	if err != nil {
		return 0, err
	}
	dir := dirOf(isTx)
	return gainMappers[dir].DBToNormalized(db, gainRangeFor(dir)), nil
}

// GetGaindB reports a channel's currently applied overall gain in dB (§6).
func (d *Device) GetGaindB(isTx bool, ch int) (float64, error) {
	m, err := d.module(0)
	if err != nil {
		return 0, d.fail(err)
	}
	c, cerr := m.channel(ch, dirOf(isTx))
	if cerr != nil {
		return 0, d.fail(cerr)
	}
	return c.Gain[GainKindOverall], nil
}

// Calibrate asserts the channel's one-shot "please calibrate" flag; the
// chip-level driver services the actual RF calibration algorithm out of
// scope of this core (§1, §6). A nonzero bwHz replaces the channel's LPF
// bandwidth; flags is accepted but not used. The change is applied by an
// immediate Configure pass.
func (d *Device) Calibrate(isTx bool, ch int, bwHz rf.Hz, flags uint32) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	dir := dirOf(isTx)
	return d.fail(m.mutateChannel(ch, func(cfg *SDRConfig) {
		c := cfg.Channel[ch].get(dir)
		c.Calibrate = true
		if bwHz != 0 {
			c.LPFBandwidth = bwHz
		}
		cfg.Channel[ch].set(dir, c)
	}))
}

// SetTestSignal selects the chip's internal test-signal generator for a
// channel (§6).
func (d *Device) SetTestSignal(isTx bool, ch int, kind TestSignalKind, dcI, dcQ float64) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	dir := dirOf(isTx)
	return d.fail(m.mutateChannel(ch, func(cfg *SDRConfig) {
		c := cfg.Channel[ch].get(dir)
		c.TestSignal = kind
		c.TestSignalDCI = dcI
		c.TestSignalDCQ = dcQ
		cfg.Channel[ch].set(dir, c)
	}))
}

// GetTestSignal reports a channel's currently selected test-signal mode and
// DC offsets (§6).
func (d *Device) GetTestSignal(isTx bool, ch int) (TestSignalKind, float64, float64, error) {
	m, err := d.module(0)
	if err != nil {
		return TestSignalNone, 0, 0, d.fail(err)
	}
	c, cerr := m.channel(ch, dirOf(isTx))
	if cerr != nil {
		return TestSignalNone, 0, 0, d.fail(cerr)
	}
	return c.TestSignal, c.TestSignalDCI, c.TestSignalDCQ, nil
}

// SetupStream builds a Streamer for module 0 from cfg and returns an opaque
// handle for it (§6). The Streamer starts in the Idle state and is
// immediately armed.
func (d *Device) SetupStream(cfg StreamConfig) (StreamHandle, error) {
	m, err := d.module(0)
	if err != nil {
		return StreamHandle{}, d.fail(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streamer != nil {
		return StreamHandle{}, d.fail(NewFault(KindBusy, "module %d already has a stream set up", m.index))
	}

	frameBytes := cfg.BufferSize
	if frameBytes <= 0 {
		frameBytes = 4096
	}
	inFlight := cfg.FlowControlHints.InFlightFrames
	queueDepth := cfg.FlowControlHints.QueueDepth

	hardCap := 2 * defaultInFlightFrames
	if inFlight > 0 {
		hardCap = 2 * inFlight
	}
	pool := NewMemoryPool(frameBytes, hardCap)
	pool.SetDoubleFreeHandler(func(err error) { d.fail(err) })

	var rx, tx *StreamerDirection
	if len(cfg.RxChannels) > 0 {
		codec, cerr := NewPacketCodec(cfg.LinkFormat, len(cfg.RxChannels), frameBytes)
		if cerr != nil {
			return StreamHandle{}, d.fail(cerr)
		}
		if m.pipes.Rx == nil {
			return StreamHandle{}, d.fail(NewFault(KindInvalidArgument, "module %d has no Rx BulkPipe", m.index))
		}
		rx = NewStreamerDirection(DirRx, m.pipes.Rx, codec, pool, queueDepth, d.metrics, m.index)
	}
	if len(cfg.TxChannels) > 0 {
		codec, cerr := NewPacketCodec(cfg.LinkFormat, len(cfg.TxChannels), frameBytes)
		if cerr != nil {
			return StreamHandle{}, d.fail(cerr)
		}
		if m.pipes.Tx == nil {
			return StreamHandle{}, d.fail(NewFault(KindInvalidArgument, "module %d has no Tx BulkPipe", m.index))
		}
		tx = NewStreamerDirection(DirTx, m.pipes.Tx, codec, pool, queueDepth, d.metrics, m.index)
	}

	s := NewStreamer(m.index, cfg, rx, tx, pool, m.cfg.ResetStreamCounters)
	if err := s.Arm(); err != nil {
		return StreamHandle{}, d.fail(err)
	}

	h := d.registry.Register(s)
	m.streamer = s
	m.handle = h
	m.state = ModuleStreamArmed
	return h, nil
}

// DestroyStream stops (if running) and releases the Streamer behind h (§6).
func (d *Device) DestroyStream(h StreamHandle) error {
	s := d.registry.Lookup(h)
	if s == nil {
		return d.fail(NewFault(KindInvalidArgument, "unknown stream handle"))
	}
	m, err := d.module(s.ModuleIndex)
	if err != nil {
		return d.fail(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Stop()
	d.registry.Release(h)
	if m.streamer == s {
		m.streamer = nil
		m.state = ModuleConfigured
	}
	return nil
}

// StartStream transitions a Streamer Armed → Running (§6).
func (d *Device) StartStream(h StreamHandle) error {
	s := d.registry.Lookup(h)
	if s == nil {
		return d.fail(NewFault(KindInvalidArgument, "unknown stream handle"))
	}
	m, err := d.module(s.ModuleIndex)
	if err != nil {
		return d.fail(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := s.Start(); err != nil {
		return d.fail(err)
	}
	m.state = ModuleStreaming
	return nil
}

// StopStream transitions a Streamer Running → Stopped, cancelling pending
// frames and returning pool buffers (§6, P6).
func (d *Device) StopStream(h StreamHandle) error {
	s := d.registry.Lookup(h)
	if s == nil {
		return d.fail(NewFault(KindInvalidArgument, "unknown stream handle"))
	}
	m, err := d.module(s.ModuleIndex)
	if err != nil {
		return d.fail(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Stop()
	m.state = ModuleStreamArmed
	return nil
}

// RecvStream blocks until nSamples timesamples per Rx channel have been
// produced or timeout elapses, writing the batch's StreamMeta into meta
// when non-nil (§6).
func (d *Device) RecvStream(h StreamHandle, out []ChannelSamples, nSamples int, meta *StreamMeta, timeout time.Duration) (int, error) {
	s := d.registry.Lookup(h)
	if s == nil {
		return -1, d.fail(NewFault(KindInvalidArgument, "unknown stream handle"))
	}
	if s.Rx() == nil {
		return -1, d.fail(NewFault(KindInvalidArgument, "stream has no Rx direction"))
	}
	n, m, err := s.Rx().Read(out, nSamples, timeout)
	if meta != nil {
		*meta = m
	}
	if err != nil {
		return -1, d.fail(err)
	}
	return n, nil
}

// SendStream enqueues nSamples timesamples per Tx channel for transmission
// (§6). A negative return is a TimestampMissed count, not an error: it
// reports how many samples late the submission arrived (§4.3, §8 scenario
// 3).
func (d *Device) SendStream(h StreamHandle, in []ChannelSamples, nSamples int, meta StreamMeta, timeout time.Duration) (int, error) {
	s := d.registry.Lookup(h)
	if s == nil {
		return -1, d.fail(NewFault(KindInvalidArgument, "unknown stream handle"))
	}
	if s.Tx() == nil {
		return -1, d.fail(NewFault(KindInvalidArgument, "stream has no Tx direction"))
	}
	n, err := s.Tx().Write(in, nSamples, meta, timeout)
	if err != nil {
		return -1, d.fail(err)
	}
	return n, nil
}

// GetStreamStatus reports a Streamer's FIFO and counter state (§6).
func (d *Device) GetStreamStatus(h StreamHandle) (StreamStatus, error) {
	s := d.registry.Lookup(h)
	if s == nil {
		return StreamStatus{}, d.fail(NewFault(KindInvalidArgument, "unknown stream handle"))
	}
	return s.Status(), nil
}

// SPIRead reads one raw transceiver register over the control SPI bus (§6).
// Most callers want the typed accessors above; this is the escape hatch for
// board bring-up and debugging.
func (d *Device) SPIRead(addr uint16) (uint16, error) {
	m, err := d.module(0)
	if err != nil {
		return 0, d.fail(err)
	}
	v, rerr := m.cfg.ReadRegister(context.Background(), addr)
	if rerr != nil {
		return 0, d.fail(rerr)
	}
	return v, nil
}

// SPIWrite writes one raw transceiver register, the counterpart to SPIRead.
func (d *Device) SPIWrite(addr, value uint16) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	return d.fail(m.cfg.WriteRegister(context.Background(), addr, value))
}

// UploadMemory streams a firmware or gateware image to the device (§6).
func (d *Device) UploadMemory(data []byte) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	return d.fail(m.cfg.UploadMemory(data))
}

// GPIORead reads the GPIO value bitmap (§6).
func (d *Device) GPIORead() (byte, error) {
	m, err := d.module(0)
	if err != nil {
		return 0, d.fail(err)
	}
	v, rerr := m.cfg.ReadRegister(context.Background(), regGPIOValue)
	return byte(v), d.fail(rerr)
}

// GPIOWrite writes the GPIO value bitmap (§6).
func (d *Device) GPIOWrite(v byte) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	return d.fail(m.cfg.WriteRegister(context.Background(), regGPIOValue, uint16(v)))
}

// GPIODirRead reads the GPIO direction bitmap (1=output) (§6).
func (d *Device) GPIODirRead() (byte, error) {
	m, err := d.module(0)
	if err != nil {
		return 0, d.fail(err)
	}
	v, rerr := m.cfg.ReadRegister(context.Background(), regGPIODir)
	return byte(v), d.fail(rerr)
}

// GPIODirWrite writes the GPIO direction bitmap (§6).
func (d *Device) GPIODirWrite(v byte) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	return d.fail(m.cfg.WriteRegister(context.Background(), regGPIODir, uint16(v)))
}

// ReadCustomBoardParam reads one named board-specific numeric knob (§6).
func (d *Device) ReadCustomBoardParam(id uint8, unit string) (CustomParam, error) {
	m, err := d.module(0)
	if err != nil {
		return CustomParam{}, d.fail(err)
	}
	v, rerr := m.cfg.ReadRegister(context.Background(), customParamAddr(id))
	if rerr != nil {
		return CustomParam{}, d.fail(rerr)
	}
	return CustomParam{ID: id, Unit: unit, Value: float64(v)}, nil
}

// WriteCustomBoardParam writes one named board-specific numeric knob (§6).
func (d *Device) WriteCustomBoardParam(p CustomParam) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	return d.fail(m.cfg.WriteRegister(context.Background(), customParamAddr(p.ID), uint16(p.Value)))
}

// GetClockFreq reads back one of the chip's clocks (§6).
func (d *Device) GetClockFreq(id ClockID) (rf.Hz, error) {
	m, err := d.module(0)
	if err != nil {
		return 0, d.fail(err)
	}
	addr, cerr := clockRegister(id)
	if cerr != nil {
		return 0, d.fail(cerr)
	}
	v, rerr := m.cfg.ReadRegister(context.Background(), addr)
	if rerr != nil {
		return 0, d.fail(rerr)
	}
	return rf.Hz(v) * 1000, nil
}

// SetClockFreq directly programs one of the chip's clocks, bypassing
// ClockTree's derivation (§6); most callers should go through
// SetSampleRate instead.
func (d *Device) SetClockFreq(id ClockID, hz rf.Hz) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	addr, cerr := clockRegister(id)
	if cerr != nil {
		return d.fail(cerr)
	}
	return d.fail(m.cfg.WriteRegister(context.Background(), addr, uint16(uint64(hz)/1000)))
}

// GetVCTCXOTrim reads the persisted reference-clock trim DAC value from the
// device's small EEPROM region (§6, "Persisted state").
func (d *Device) GetVCTCXOTrim() (uint16, error) {
	m, err := d.module(0)
	if err != nil {
		return 0, d.fail(err)
	}
	v, rerr := m.cfg.ReadRegister(context.Background(), eepromTrimAddr)
	if rerr != nil {
		return 0, d.fail(rerr)
	}
	return v, nil
}

// SetVCTCXOTrim programs the reference-clock trim DAC value and persists it
// to EEPROM so it survives a power cycle (§6, "Persisted state").
func (d *Device) SetVCTCXOTrim(trim uint16) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	return d.fail(m.cfg.WriteRegister(context.Background(), eepromTrimAddr, trim))
}

// GetChipTemperature reads the chip's temperature sensor, refusing on
// revisions that don't support it (§6, §8 scenario 6).
func (d *Device) GetChipTemperature() (float64, error) {
	m, err := d.module(0)
	if err != nil {
		return 0, d.fail(err)
	}
	t, terr := m.cfg.GetChipTemperature()
	return t, d.fail(terr)
}

// Synchronize re-pushes (toChip=true) the current last-applied per-channel
// and LO settings to hardware through ChipConfigurator.Resync, without the
// usual delta diff — useful after a device-side reset the core's
// bookkeeping doesn't know about (§6). Pulling hardware state back into the core
// (toChip=false) would need a register→SDRConfig inverse this board family
// doesn't expose, so that direction reports HardwareNotSupported.
func (d *Device) Synchronize(toChip bool) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	if !toChip {
		return d.fail(NewFault(KindHardwareNotSupported, "reading live hardware state back into SDRConfig is not supported"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return d.fail(m.cfg.Resync())
}

// EnableCache toggles whether Configure diffs against the last-applied
// configuration before issuing writes (§6); see
// ChipConfigurator.SetCacheEnabled.
func (d *Device) EnableCache(enabled bool) {
	for _, m := range d.modules {
		m.cfg.SetCacheEnabled(enabled)
	}
}

// LoadConfig replays a previously saved register dump (§6, delegated to the
// chip driver per §1).
func (d *Device) LoadConfig(filename string) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	return d.fail(LoadConfig(m.cfg, filename))
}

// SaveConfig persists the chip's current register state (§6, delegated to
// the chip driver per §1).
func (d *Device) SaveConfig(filename string) error {
	m, err := d.module(0)
	if err != nil {
		return d.fail(err)
	}
	return d.fail(SaveConfig(m.cfg, filename))
}

// vim: foldmethod=marker
