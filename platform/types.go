// Package platform hides the eBPF machinery behind a small reader
// interface so the pipeline and its tests stay independent of the
// kernel-side implementation.
package platform

import (
	"errors"
	"time"
)

// ErrClosed is returned by Read once the underlying buffer has been
// closed and fully drained.
var ErrClosed = errors.New("capture reader closed")

// PerfReader is a platform-agnostic view of the kernel's perf buffer.
// On Linux it is backed by cilium/ebpf's perf.Reader.
type PerfReader interface {
	// Read returns the next record, blocking until one arrives, the
	// deadline passes (os.ErrDeadlineExceeded) or the reader is closed.
	Read() (Record, error)
	// SetDeadline bounds the next Read so callers can poll a
	// cancellation flag between attempts.
	SetDeadline(t time.Time)
	// Close releases the buffer.
	Close() error
}

// Record mirrors the essential fields of a perf buffer record.
type Record struct {
	// RawSample contains the raw kernel-emitted bytes.
	RawSample []byte
	// LostSamples is how many records the kernel dropped because the
	// consumer fell behind. When non-zero, RawSample is empty.
	LostSamples uint64
}
