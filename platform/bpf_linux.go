//go:build linux

package platform

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall -Werror" sweeper ../bpf/sweeper.c

import (
	"errors"
	"fmt"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/perf"
	"github.com/cilium/ebpf/rlimit"
)

// perfReaderWrapper adapts perf.Reader to the PerfReader interface and
// maps its sentinel errors to portable ones.
type perfReaderWrapper struct {
	*perf.Reader
}

func (w *perfReaderWrapper) Read() (Record, error) {
	record, err := w.Reader.Read()
	if err != nil {
		if errors.Is(err, perf.ErrClosed) {
			return Record{}, ErrClosed
		}
		return Record{}, err
	}
	return Record{
		RawSample:   record.RawSample,
		LostSamples: record.LostSamples,
	}, nil
}

// InitBPF loads the capture program, attaches both the path and
// symlink-target variants of the xattr write syscall (entry and exit)
// and returns a reader over the program's perf buffer. Any attach
// failure is fatal: running without capture would silently stop
// honoring expiry attributes.
func InitBPF() (PerfReader, func(), error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, nil, fmt.Errorf("failed to remove memlock rlimit: %w", err)
	}

	var objs sweeperObjects
	if err := loadSweeperObjects(&objs, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load BPF objects: %w", err)
	}

	reader, err := perf.NewReader(objs.Events, os.Getpagesize()*8)
	if err != nil {
		objs.Close()
		return nil, nil, fmt.Errorf("failed to create perf reader: %w", err)
	}

	cleanupFuncs := []func(){func() {
		reader.Close()
		objs.Close()
	}}
	cleanup := func() {
		// Detach in reverse attach order.
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	tracepoints := []struct {
		name string
		prog *ebpf.Program
	}{
		{"sys_enter_setxattr", objs.SysEnterSetxattr},
		{"sys_exit_setxattr", objs.SysExitSetxattr},
		{"sys_enter_lsetxattr", objs.SysEnterLsetxattr},
		{"sys_exit_lsetxattr", objs.SysExitLsetxattr},
	}
	for _, tp := range tracepoints {
		l, err := link.Tracepoint("syscalls", tp.name, tp.prog, nil)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to attach syscalls/%s: %w", tp.name, err)
		}
		cleanupFuncs = append(cleanupFuncs, func() { l.Close() })
	}

	return &perfReaderWrapper{reader}, cleanup, nil
}
