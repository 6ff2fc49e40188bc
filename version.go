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
	hashiversion "github.com/hashicorp/go-version"
)

// LibraryVersion is returned by GetLibraryVersion (§6).
const LibraryVersion = "1.0.0"

// checkGatewareVersion rejects an FPGA image older than minVersion,
// surfacing HardwareNotSupported instead of letting a too-old gateware
// fail register writes in stranger ways further down ChipConfigurator.Init.
func checkGatewareVersion(reported, minVersion string) error {
	if minVersion == "" {
		return nil
	}
	got, err := hashiversion.NewVersion(reported)
	if err != nil {
		return NewFault(KindTransportFailure, "unparseable gateware version %q: %v", reported, err)
	}
	min, err := hashiversion.NewVersion(minVersion)
	if err != nil {
		return NewFault(KindInvalidArgument, "unparseable minimum gateware version %q: %v", minVersion, err)
	}
	if got.LessThan(min) {
		return NewFault(KindHardwareNotSupported, "gateware %s is older than the minimum supported %s", got, min)
	}
	return nil
}

// vim: foldmethod=marker
