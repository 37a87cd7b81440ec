// Package log carries the log verbosity conventions and a buffer-backed
// logr sink used to capture output in tests.
package log

import (
	"bytes"
	"fmt"

	"github.com/go-logr/logr"
)

// Verbosity levels used with logr.Logger.V. Structured messages default
// to 0; DBG carries operational detail and TRC carries per-line command
// output.
const (
	DBG int = 1
	TRC int = 2
)

// NewBufferSink returns a sink writing every message to buffer.
func NewBufferSink(buffer *bytes.Buffer) logr.LogSink {
	return bufferSink{buffer: buffer}
}

type bufferSink struct {
	name   string
	buffer *bytes.Buffer
}

var _ logr.LogSink = bufferSink{}

func (s bufferSink) Init(logr.RuntimeInfo) {}

func (s bufferSink) Enabled(int) bool { return true }

func (s bufferSink) Info(_ int, msg string, keysAndValues ...interface{}) {
	fmt.Fprintf(s.buffer, "%s %s %v\n", s.name, msg, keysAndValues)
}

func (s bufferSink) Error(err error, msg string, keysAndValues ...interface{}) {
	fmt.Fprintf(s.buffer, "%s %v %s %v\n", s.name, err, msg, keysAndValues)
}

func (s bufferSink) WithName(name string) logr.LogSink {
	return bufferSink{name: name, buffer: s.buffer}
}

func (s bufferSink) WithValues(...interface{}) logr.LogSink {
	return s
}
