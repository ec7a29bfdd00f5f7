//go:build !linux

package platform

import "errors"

// InitBPF fails on non-Linux systems: the capture engine requires
// kernel tracepoint support, and the daemon must not run without it.
func InitBPF() (PerfReader, func(), error) {
	return nil, nil, errors.New("xattr capture requires Linux tracepoint support")
}
