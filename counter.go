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
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// DeltaCounter reports the difference between its current value and the
// value at the last checkpoint (GLOSSARY, "Delta counter"). It is safe for
// concurrent use: the streaming worker goroutine adds to it, the caller's
// goroutine reads it via GetStreamStatus.
type DeltaCounter struct {
	total     uint64
	checkpoint uint64
	gauge     prometheus.Counter
}

// NewDeltaCounter builds a DeltaCounter. gauge may be nil; when set, every
// Add also increments the Prometheus counter so stream health is scrapeable
// without polling GetStreamStatus (§11 DOMAIN STACK).
func NewDeltaCounter(gauge prometheus.Counter) *DeltaCounter {
	return &DeltaCounter{gauge: gauge}
}

// Add increases the running total by n.
func (c *DeltaCounter) Add(n uint64) {
	if n == 0 {
		return
	}
	atomic.AddUint64(&c.total, n)
	if c.gauge != nil {
		c.gauge.Add(float64(n))
	}
}

// Delta returns total-checkpoint without resetting the checkpoint.
func (c *DeltaCounter) Delta() uint64 {
	return atomic.LoadUint64(&c.total) - atomic.LoadUint64(&c.checkpoint)
}

// Checkpoint returns the current delta and advances the checkpoint to the
// current total, so the next Delta()/Checkpoint() call reports only new
// activity.
func (c *DeltaCounter) Checkpoint() uint64 {
	total := atomic.LoadUint64(&c.total)
	prev := atomic.SwapUint64(&c.checkpoint, total)
	return total - prev
}

// Total returns the all-time running total, unaffected by checkpointing.
func (c *DeltaCounter) Total() uint64 {
	return atomic.LoadUint64(&c.total)
}

// streamMetrics bundles the Prometheus collectors for one StreamerDirection,
// labeled by module index, direction, and metric kind.
type streamMetrics struct {
	underrun *prometheus.CounterVec
	overrun  *prometheus.CounterVec
	loss     *prometheus.CounterVec
	dataRate *prometheus.GaugeVec
}

func newStreamMetrics(reg prometheus.Registerer) *streamMetrics {
	m := &streamMetrics{
		underrun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lms7",
			Subsystem: "stream",
			Name:      "underrun_total",
			Help:      "Tx samples submitted after their scheduled hardware timestamp.",
		}, []string{"module", "direction"}),
		overrun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lms7",
			Subsystem: "stream",
			Name:      "overrun_total",
			Help:      "Rx frames dropped because no pool buffer was free.",
		}, []string{"module", "direction"}),
		loss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lms7",
			Subsystem: "stream",
			Name:      "loss_samples_total",
			Help:      "Samples missing from gaps detected in the hardware timestamp sequence.",
		}, []string{"module", "direction"}),
		dataRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lms7",
			Subsystem: "stream",
			Name:      "data_rate_bytes_per_second",
			Help:      "Most recently observed transport data rate.",
		}, []string{"module", "direction"}),
	}
	if reg != nil {
		reg.MustRegister(m.underrun, m.overrun, m.loss, m.dataRate)
	}
	return m
}

// vim: foldmethod=marker
