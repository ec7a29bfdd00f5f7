// Code generated by bpf2go; DO NOT EDIT.
//go:build mips || mips64 || ppc64 || s390x

package platform

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"github.com/cilium/ebpf"
)

type sweeperEventT struct {
	Path  [50]int8
	Name  [50]int8
	Value [50]int8
}

// loadSweeper returns the embedded CollectionSpec for sweeper.
func loadSweeper() (*ebpf.CollectionSpec, error) {
	reader := bytes.NewReader(_SweeperBytes)
	spec, err := ebpf.LoadCollectionSpecFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("can't load sweeper: %w", err)
	}

	return spec, err
}

// loadSweeperObjects loads sweeper and converts it into a struct.
//
// The following types are suitable as obj argument:
//
//	*sweeperObjects
//	*sweeperPrograms
//	*sweeperMaps
//
// See ebpf.CollectionSpec.LoadAndAssign documentation for details.
func loadSweeperObjects(obj interface{}, opts *ebpf.CollectionOptions) error {
	spec, err := loadSweeper()
	if err != nil {
		return err
	}

	return spec.LoadAndAssign(obj, opts)
}

// sweeperSpecs contains maps and programs before they are loaded into the kernel.
//
// It can be passed ebpf.CollectionSpec.Assign.
type sweeperSpecs struct {
	sweeperProgramSpecs
	sweeperMapSpecs
}

// sweeperSpecs contains programs before they are loaded into the kernel.
//
// It can be passed ebpf.CollectionSpec.Assign.
type sweeperProgramSpecs struct {
	SysEnterLsetxattr *ebpf.ProgramSpec `ebpf:"sys_enter_lsetxattr"`
	SysEnterSetxattr  *ebpf.ProgramSpec `ebpf:"sys_enter_setxattr"`
	SysExitLsetxattr  *ebpf.ProgramSpec `ebpf:"sys_exit_lsetxattr"`
	SysExitSetxattr   *ebpf.ProgramSpec `ebpf:"sys_exit_setxattr"`
}

// sweeperMapSpecs contains maps before they are loaded into the kernel.
//
// It can be passed ebpf.CollectionSpec.Assign.
type sweeperMapSpecs struct {
	Events *ebpf.MapSpec `ebpf:"events"`
	Staged *ebpf.MapSpec `ebpf:"staged"`
}

// sweeperObjects contains all objects after they have been loaded into the kernel.
//
// It can be passed to loadSweeperObjects or ebpf.CollectionSpec.LoadAndAssign.
type sweeperObjects struct {
	sweeperPrograms
	sweeperMaps
}

func (o *sweeperObjects) Close() error {
	return _SweeperClose(
		&o.sweeperPrograms,
		&o.sweeperMaps,
	)
}

// sweeperMaps contains all maps after they have been loaded into the kernel.
//
// It can be passed to loadSweeperObjects or ebpf.CollectionSpec.LoadAndAssign.
type sweeperMaps struct {
	Events *ebpf.Map `ebpf:"events"`
	Staged *ebpf.Map `ebpf:"staged"`
}

func (m *sweeperMaps) Close() error {
	return _SweeperClose(
		m.Events,
		m.Staged,
	)
}

// sweeperPrograms contains all programs after they have been loaded into the kernel.
//
// It can be passed to loadSweeperObjects or ebpf.CollectionSpec.LoadAndAssign.
type sweeperPrograms struct {
	SysEnterLsetxattr *ebpf.Program `ebpf:"sys_enter_lsetxattr"`
	SysEnterSetxattr  *ebpf.Program `ebpf:"sys_enter_setxattr"`
	SysExitLsetxattr  *ebpf.Program `ebpf:"sys_exit_lsetxattr"`
	SysExitSetxattr   *ebpf.Program `ebpf:"sys_exit_setxattr"`
}

func (p *sweeperPrograms) Close() error {
	return _SweeperClose(
		p.SysEnterLsetxattr,
		p.SysEnterSetxattr,
		p.SysExitLsetxattr,
		p.SysExitSetxattr,
	)
}

func _SweeperClose(closers ...io.Closer) error {
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Do not access this directly.
//
//go:embed sweeper_bpfeb.o
var _SweeperBytes []byte
