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
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rfdrv.dev/lms7/internal/framequeue"
)

// DirectionState is a StreamerDirection's lifecycle state (§4.3).
type DirectionState uint8

const (
	DirectionIdle DirectionState = iota
	DirectionArmed
	DirectionRunning
	DirectionStopped
)

const defaultInFlightFrames = 16

// StreamerDirection is a single-threaded cooperative worker bound to one
// BulkPipe endpoint (C5, §4.3). One instance handles either Rx or Tx, never
// both; Streamer pairs two of them.
type StreamerDirection struct {
	dir   Direction
	pipe  BulkPipe
	codec *PacketCodec
	pool  *MemoryPool

	Underrun *DeltaCounter
	Overrun  *DeltaCounter
	Loss     *DeltaCounter
	DataRate *DeltaCounter

	rateGauge prometheus.Gauge
	startedAt time.Time

	state    int32 // DirectionState, accessed atomically
	hwTS     uint64
	lastHwTS uint64
	haveLast bool
	sticky   error
	stickyMu sync.Mutex

	// leftover is a partially consumed Rx frame: the caller asked Read for
	// fewer samples than the frame held, and the rest waits here for the
	// next call. Owned by the caller's thread; Stop frees it (P6).
	leftover    *Frame
	leftoverOff int

	// sampleQueue is the bounded, at-capacity-blocking hand-off between
	// the worker goroutine and the caller's Read/Write (§5's sample-path
	// queue). The BulkPipe in-flight window plays the role of the
	// transport-path queue; drops there are counted via Overrun rather
	// than routed through a second framequeue.Queue.
	sampleQueue *framequeue.Queue

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewStreamerDirection builds a direction worker. queueDepth is the depth,
// in frames, of the sample queue between the worker and Read/Write (it holds
// queueDepth*SamplesPerFrame samples); 0 selects defaultInFlightFrames. The
// number of frames kept outstanding against pipe is always
// defaultInFlightFrames (§4.3).
func NewStreamerDirection(dir Direction, pipe BulkPipe, codec *PacketCodec, pool *MemoryPool, queueDepth int, metrics *streamMetrics, moduleIdx int) *StreamerDirection {
	if queueDepth <= 0 {
		queueDepth = defaultInFlightFrames
	}
	var labels [2]string
	labels[0] = itoa(moduleIdx)
	labels[1] = dir.String()

	var u, o, l, d *DeltaCounter
	var rate prometheus.Gauge
	if metrics != nil {
		u = NewDeltaCounter(metrics.underrun.WithLabelValues(labels[0], labels[1]))
		o = NewDeltaCounter(metrics.overrun.WithLabelValues(labels[0], labels[1]))
		l = NewDeltaCounter(metrics.loss.WithLabelValues(labels[0], labels[1]))
		d = NewDeltaCounter(nil)
		rate = metrics.dataRate.WithLabelValues(labels[0], labels[1])
	} else {
		u, o, l, d = NewDeltaCounter(nil), NewDeltaCounter(nil), NewDeltaCounter(nil), NewDeltaCounter(nil)
	}

	return &StreamerDirection{
		dir:         dir,
		pipe:        pipe,
		codec:       codec,
		pool:        pool,
		Underrun:    u,
		Overrun:     o,
		Loss:        l,
		DataRate:    d,
		rateGauge:   rate,
		sampleQueue: framequeue.New(queueDepth*codec.SamplesPerFrame(), true),
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}

func (d *StreamerDirection) State() DirectionState {
	return DirectionState(atomic.LoadInt32(&d.state))
}

func (d *StreamerDirection) setState(s DirectionState) {
	atomic.StoreInt32(&d.state, int32(s))
}

// HwTimestamp returns the direction's current free-running sample counter.
func (d *StreamerDirection) HwTimestamp() uint64 {
	return atomic.LoadUint64(&d.hwTS)
}

// ResetTimestamp zeroes the sample counter; Streamer.Start calls this on
// both directions when alignPhase is set (§4.4).
func (d *StreamerDirection) ResetTimestamp() {
	atomic.StoreUint64(&d.hwTS, 0)
	d.haveLast = false
}

func (d *StreamerDirection) setSticky(err error) {
	d.stickyMu.Lock()
	defer d.stickyMu.Unlock()
	if d.sticky == nil {
		d.sticky = err
	}
}

// StickyError returns and clears any error the worker goroutine recorded,
// per §7's "streaming-thread failures set a sticky error on the Streamer;
// the next Rx/Tx call surfaces it."
func (d *StreamerDirection) StickyError() error {
	d.stickyMu.Lock()
	defer d.stickyMu.Unlock()
	err := d.sticky
	d.sticky = nil
	return err
}

// Start transitions Idle/Armed → Running and launches the worker goroutine
// that keeps N frames in flight against the BulkPipe.
func (d *StreamerDirection) Start() error {
	if d.State() == DirectionRunning {
		return NewFault(KindBusy, "direction already running")
	}
	d.stopCh = make(chan struct{})
	d.startedAt = time.Now()
	d.setState(DirectionRunning)
	d.wg.Add(1)
	if d.dir == DirRx {
		go d.runRx()
	} else {
		go d.runTx()
	}
	return nil
}

// Stop sets the stop flag, aborts the BulkPipe, joins the worker, and
// returns every outstanding buffer to the pool (§4.4, §5, P6). The sample
// queue is closed before joining: a worker parked in a blocking Push must
// see the close to unwind.
func (d *StreamerDirection) Stop() {
	if d.State() != DirectionRunning {
		return
	}
	close(d.stopCh)
	d.sampleQueue.Close()
	_ = d.pipe.Abort()
	d.wg.Wait()
	d.setState(DirectionStopped)
	d.drainQueues()
}

func (d *StreamerDirection) drainQueues() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	d.sampleQueue.Close()
	for {
		v, err := d.sampleQueue.Pop(ctx)
		if err != nil {
			break
		}
		if f, ok := v.(*Frame); ok {
			f.Release()
		}
	}
	if d.leftover != nil {
		d.leftover.Release()
		d.leftover = nil
		d.leftoverOff = 0
	}
}

// runRx keeps N frames outstanding against the BulkPipe, reads completed
// ones, unpacks them, and feeds the sample queue.
func (d *StreamerDirection) runRx() {
	defer d.wg.Done()
	inFlight := map[int]*Frame{}
	defer func() {
		for _, f := range inFlight {
			f.Release()
		}
	}()

	submit := func() {
		buf, err := d.pool.Allocate()
		if err != nil {
			d.Overrun.Add(1)
			return
		}
		token, err := d.pipe.Submit(buf)
		if err != nil {
			d.pool.Free(buf)
			d.setSticky(NewFault(KindTransportFailure, "rx submit: %v", err))
			return
		}
		inFlight[token] = &Frame{Buf: buf, pool: d.pool}
	}

	for i := 0; i < defaultInFlightFrames; i++ {
		submit()
	}

	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		for token, f := range inFlight {
			comp, err := d.pipe.Wait(token, 100*time.Millisecond)
			if err != nil {
				continue // timeout: still outstanding, try again next loop
			}
			delete(inFlight, token)
			if comp.Err != nil {
				f.Release()
				d.setSticky(NewFault(KindTransportFailure, "rx transfer: %v", comp.Err))
				submit()
				continue
			}

			d.DataRate.Add(uint64(comp.BytesTransferred))
			hdr := d.codec.ExtractHeader(f.Buf[:comp.BytesTransferred])
			f.Header = hdr
			f.payload = f.Buf[frameHeaderBytes : frameHeaderBytes+hdr.PayloadBytes]

			if d.haveLast {
				gap := hdr.Timestamp - d.lastHwTS
				spf := uint64(d.codec.SamplesPerFrame())
				if gap > spf {
					d.Loss.Add(gap - spf)
				}
			}
			d.lastHwTS = hdr.Timestamp
			d.haveLast = true
			atomic.StoreUint64(&d.hwTS, hdr.Timestamp)

			if err := d.sampleQueue.Push(context.Background(), f); err != nil {
				f.Release()
			}
			submit()
		}
	}
}

// runTx keeps the transport queue drained: it pulls packed frames pushed by
// Write, submits them, and waits for completion to recycle the token slot.
func (d *StreamerDirection) runTx() {
	defer d.wg.Done()
	var inFlight int32

	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		for atomic.LoadInt32(&inFlight) < defaultInFlightFrames {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			v, err := d.sampleQueue.Pop(ctx)
			cancel()
			if err != nil {
				break
			}
			f := v.(*Frame)
			token, err := d.pipe.Submit(f.Buf)
			if err != nil {
				f.Release()
				d.setSticky(NewFault(KindTransportFailure, "tx submit: %v", err))
				continue
			}
			atomic.AddInt32(&inFlight, 1)
			go func(tok int, fr *Frame) {
				comp, werr := d.pipe.Wait(tok, 100*time.Millisecond)
				fr.Release()
				atomic.AddInt32(&inFlight, -1)
				if werr != nil || comp.Err != nil {
					d.setSticky(NewFault(KindTransportFailure, "tx transfer failed"))
					return
				}
				d.DataRate.Add(uint64(comp.BytesTransferred))
			}(token, f)
		}
	}
}

// DataRateBps reports the direction's average transport throughput in bytes
// per second since Start, and mirrors it to the Prometheus data-rate gauge
// when metrics are wired.
func (d *StreamerDirection) DataRateBps() uint64 {
	if d.startedAt.IsZero() {
		return 0
	}
	elapsed := time.Since(d.startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	bps := uint64(float64(d.DataRate.Total()) / elapsed)
	if d.rateGauge != nil {
		d.rateGauge.Set(float64(bps))
	}
	return bps
}

// Read produces nSamples timesamples per channel into out, blocking until
// satisfied or timeout elapses; it is legal to return fewer on timeout
// (§4.3).
func (d *StreamerDirection) Read(out []ChannelSamples, nSamples int, timeout time.Duration) (int, StreamMeta, error) {
	if err := d.StickyError(); err != nil {
		return 0, StreamMeta{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	produced := 0
	var meta StreamMeta
	for produced < nSamples {
		f := d.leftover
		skip := d.leftoverOff
		if f == nil {
			v, err := d.sampleQueue.Pop(ctx)
			if err != nil {
				return produced, meta, nil
			}
			f = v.(*Frame)
			skip = 0
		}
		if produced == 0 {
			meta = StreamMeta{Timestamp: f.Header.Timestamp + uint64(skip), UseTimestamp: true, Flush: f.Header.Flush}
		}
		n, err := d.codec.UnpackRange(f, out, produced, skip, nSamples-produced)
		if err != nil {
			f.Release()
			d.leftover, d.leftoverOff = nil, 0
			d.setSticky(err)
			return produced, meta, err
		}
		produced += n
		if skip+n < d.codec.FrameSampleCount(f) {
			d.leftover, d.leftoverOff = f, skip+n
		} else {
			f.Release()
			d.leftover, d.leftoverOff = nil, 0
		}
	}
	return produced, meta, nil
}

// Write packs nSamples timesamples per channel from in and enqueues them
// for transmission, applying the §4.3 timestamp-scheduling rules. It
// returns a negative count equal to how many samples late the submission
// was when meta.UseTimestamp is set and the deadline has already passed.
func (d *StreamerDirection) Write(in []ChannelSamples, nSamples int, meta StreamMeta, timeout time.Duration) (int, error) {
	if err := d.StickyError(); err != nil {
		return 0, err
	}

	if meta.UseTimestamp {
		hw := d.HwTimestamp()
		if meta.Timestamp <= hw {
			late := int64(meta.Timestamp) - int64(hw)
			d.Underrun.Add(1)
			return int(late), nil
		}
	} else {
		meta.Timestamp = d.HwTimestamp()
	}

	frames, err := d.codec.Pack(d.pool, in, nSamples, meta)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, f := range frames {
		if err := d.sampleQueue.Push(ctx, f); err != nil {
			f.Release()
			return nSamples, err
		}
	}
	return nSamples, nil
}

// vim: foldmethod=marker
