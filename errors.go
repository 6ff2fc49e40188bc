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
	"fmt"
	"strings"
)

// Kind enumerates the error taxonomy from spec.md §7. Every failure that
// crosses a package boundary is tagged with exactly one Kind so that the
// (out of scope) C ABI veneer can fold it into the "0 on success, -1 on
// failure, see GetLastErrorMessage" convention §6 requires.
type Kind uint8

const (
	// KindUnknown is never returned by this package; it exists so the
	// zero value of Kind is recognizably invalid.
	KindUnknown Kind = iota

	// KindInvalidArgument is returned when a caller passed a null or
	// out-of-range parameter. Nothing is mutated.
	KindInvalidArgument

	// KindInvalidConfiguration is returned when ChipConfigurator
	// validation fails. Fault.Fields carries one message per violated
	// field. lastAppliedConfig is left unchanged.
	KindInvalidConfiguration

	// KindTransportFailure is returned when a ControlPipe or BulkPipe
	// operation failed or timed out.
	KindTransportFailure

	// KindBusy is returned when an operation requires the module to be
	// not-streaming, and it is streaming.
	KindBusy

	// KindHardwareNotSupported is returned when a feature is unavailable
	// on the detected chip or board revision.
	KindHardwareNotSupported

	// KindTimestampMissed names a Tx submission that arrived after its
	// scheduled timestamp. StreamerDirection.Write reports that case
	// non-fatally as a non-positive sample count with a nil error and
	// counts an underrun; it does not return a Fault of this Kind.
	KindTimestampMissed

	// KindExhausted is returned when a MemoryPool or FIFO is full.
	KindExhausted
)

// String names the Kind, matching the §7 taxonomy labels.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindInvalidConfiguration:
		return "InvalidConfiguration"
	case KindTransportFailure:
		return "TransportFailure"
	case KindBusy:
		return "Busy"
	case KindHardwareNotSupported:
		return "HardwareNotSupported"
	case KindTimestampMissed:
		return "TimestampMissed"
	case KindExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// Fault is the sum-typed result used throughout this package in place of
// exceptions, per spec.md §9 ("replace exception-based control flow with
// sum-typed results"). The C ABI veneer (out of scope, spec.md §1) is the
// only thing that should ever need to collapse a Fault into -1 plus a
// GetLastErrorMessage string; everything inside this package should match
// on Kind or use errors.As.
type Fault struct {
	Kind    Kind
	Message string

	// Fields holds one message per violated field, populated only for
	// KindInvalidConfiguration (spec.md §3 I2).
	Fields []string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if len(f.Fields) == 0 {
		return fmt.Sprintf("lms7: %s: %s", f.Kind, f.Message)
	}
	return fmt.Sprintf("lms7: %s: %s (%s)", f.Kind, f.Message, strings.Join(f.Fields, "; "))
}

// NewFault builds a Fault of the given Kind.
func NewFault(kind Kind, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewConfigFault builds a KindInvalidConfiguration Fault carrying the
// per-field violation messages collected during validation (spec.md §4.6
// step 1: "collect all errors before aborting").
func NewConfigFault(fields []string) *Fault {
	return &Fault{
		Kind:    KindInvalidConfiguration,
		Message: "configuration rejected",
		Fields:  fields,
	}
}

// FaultKind extracts the Kind from err, returning KindUnknown if err is nil
// or not a *Fault.
func FaultKind(err error) Kind {
	f, ok := err.(*Fault)
	if !ok || f == nil {
		return KindUnknown
	}
	return f.Kind
}

// vim: foldmethod=marker
