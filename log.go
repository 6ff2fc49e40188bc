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
	"bytes"
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// LogCallback receives one formatted log line at a time, the shape
// RegisterLogHandler (§6) exposes to callers in place of the C ABI's
// printf-style sink registration (original_source/Logger.h).
type LogCallback func(line string)

// deviceLogger wraps a charmbracelet/log logger whose output is mirrored
// to an optional caller-registered callback, falling back to stderr when
// none is registered.
type deviceLogger struct {
	mu       sync.Mutex
	logger   *charmlog.Logger
	buf      *forwardingWriter
	callback LogCallback
}

func newDeviceLogger() *deviceLogger {
	fw := &forwardingWriter{}
	l := charmlog.NewWithOptions(fw, charmlog.Options{
		Prefix:          "lms7",
		ReportTimestamp: true,
	})
	dl := &deviceLogger{logger: l, buf: fw}
	fw.dl = dl
	return dl
}

// RegisterLogHandler installs cb as the sink for future log lines, or
// clears it when cb is nil.
func (dl *deviceLogger) RegisterLogHandler(cb LogCallback) {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.callback = cb
}

func (dl *deviceLogger) Infof(format string, args ...interface{})  { dl.logger.Infof(format, args...) }
func (dl *deviceLogger) Warnf(format string, args ...interface{})  { dl.logger.Warnf(format, args...) }
func (dl *deviceLogger) Errorf(format string, args ...interface{}) { dl.logger.Errorf(format, args...) }

// forwardingWriter is the io.Writer charmlog writes formatted lines to; it
// forwards each write to the registered LogCallback, or to os.Stderr if
// none is set.
type forwardingWriter struct {
	dl *deviceLogger
}

func (w *forwardingWriter) Write(p []byte) (int, error) {
	w.dl.mu.Lock()
	cb := w.dl.callback
	w.dl.mu.Unlock()
	if cb != nil {
		cb(string(bytes.TrimRight(p, "\n")))
		return len(p), nil
	}
	return os.Stderr.Write(p)
}

// vim: foldmethod=marker
