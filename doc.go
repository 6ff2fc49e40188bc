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

// Package lms7 is the host-side core of a driver for a two-stage
// software-defined-radio board: a programmable RF transceiver chip sitting
// behind an FPGA. It owns the bidirectional IQ sample streaming engine and
// the configuration/resource state machine that together make up the "hard
// core" of such a driver.
//
// The package does not talk to hardware directly. Physical transport
// (libusb, a PCIe/DMA kernel module, ...) is injected by the caller as a
// ControlPipe (request/reply register access) and a BulkPipe (fixed-size
// framed packet flow). This keeps the package testable with the fakes in
// rfdrv.dev/lms7/mock, and keeps any one transport's quirks out of the
// core.
//
// Most callers will want Device, which aggregates the rest of the package
// (ChipConfigurator, ClockTree, Streamer) behind the public surface
// described by spec.md §6: Configure, SetupStream/StartStream/StopStream,
// RecvStream/SendStream, SPIRead/SPIWrite, GPIO, custom board parameters,
// and device enumeration (GetDeviceList, Open).
package lms7

// vim: foldmethod=marker
