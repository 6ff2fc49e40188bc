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

// Package board holds the per-board static descriptor tables spec.md §1
// externalizes as "data the core reads" rather than code: frequency
// ranges, antenna/path names, and register-default overrides, one YAML
// document per supported board revision.
package board

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FrequencyRangeHz is an inclusive [Low, High] bound expressed in Hz, the
// plain numeric shape a YAML descriptor can hold without pulling in the
// core package's rf.Hz type.
type FrequencyRangeHz struct {
	LowHz  float64 `yaml:"low_hz"`
	HighHz float64 `yaml:"high_hz"`
}

// AntennaPath is one selectable RF path on a given channel/direction.
type AntennaPath struct {
	Name        string           `yaml:"name"`
	BandwidthHz FrequencyRangeHz `yaml:"bandwidth_hz"`
}

// DirectionRanges holds the per-direction ranges a channel's path list and
// LPF bandwidth must fall within (§3 I2).
type DirectionRanges struct {
	LowPassFilterHz FrequencyRangeHz `yaml:"low_pass_filter_hz"`
	Antennas        []AntennaPath    `yaml:"antennas"`
}

// RegisterOverride is one (address, value) pair applied during Init()
// after the chip's own power-on defaults, for board revisions that need a
// different bring-up sequence than the reference design.
type RegisterOverride struct {
	Addr  uint16 `yaml:"addr"`
	Value uint16 `yaml:"value"`
}

// Descriptor is one board revision's static capability table
// (DeviceFacade.deviceDescriptor, §4.7).
type Descriptor struct {
	Name                            string             `yaml:"name"`
	NumChannels                     int                `yaml:"num_channels"`
	CgenMaxHz                       float64            `yaml:"cgen_max_hz"`
	SamplingRateHz                  FrequencyRangeHz   `yaml:"sampling_rate_hz"`
	FrequencyHz                     FrequencyRangeHz   `yaml:"frequency_hz"`
	Rx                              DirectionRanges    `yaml:"rx"`
	Tx                              DirectionRanges    `yaml:"tx"`
	RegisterOverrides               []RegisterOverride `yaml:"register_overrides"`
	MinGatewareVersion              string             `yaml:"min_gateware_version"`
	TemperatureUnsupportedRevisions []uint16           `yaml:"temperature_unsupported_revisions"`
}

// Parse decodes a YAML board descriptor document.
func Parse(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("board: parse descriptor: %w", err)
	}
	return d, nil
}

// Load reads and parses a YAML board descriptor from path, e.g. one of the
// lms7002m_*.yaml files shipped alongside this package.
func Load(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("board: load %s: %w", path, err)
	}
	return Parse(data)
}

// AntennaNames returns the selectable path names for one direction.
func (d Descriptor) AntennaNames(isTx bool) []string {
	ranges := d.Rx
	if isTx {
		ranges = d.Tx
	}
	names := make([]string, len(ranges.Antennas))
	for i, a := range ranges.Antennas {
		names[i] = a.Name
	}
	return names
}

// vim: foldmethod=marker
