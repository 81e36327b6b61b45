package vm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ProdMoon/go-vmm/internal/interfaces"
	"github.com/ProdMoon/go-vmm/internal/types"
)

// Process is the per-process context the memory subsystem operates
// on: its supplemental page table, its hardware page table, its
// current stack pointer and its executable image handle. Processes
// share the VM's frame and swap pools by reference.
type Process struct {
	id         uuid.UUID
	vm         *VM
	spt        *SPT
	pt         interfaces.PageTable
	rsp        types.VirtAddr
	exec       interfaces.FileHandle
	exitStatus int
	exited     bool
}

// NewProcess creates a process context with an empty address space
func (v *VM) NewProcess(pt interfaces.PageTable) (*Process, error) {
	if pt == nil {
		return nil, fmt.Errorf("page table cannot be nil")
	}

	p := &Process{
		id:  uuid.New(),
		vm:  v,
		pt:  pt,
		rsp: types.UserStackTop,
	}
	p.spt = newSPT(p)

	v.log.Debug("process created", "pid", p.id)
	return p, nil
}

// Fork creates a child process whose address space is a deep copy of
// the parent's: resident, swapped and not-yet-faulted pages are all
// replicated. The copy runs in the child's context against the same
// frame and swap singletons. On any failure the child's half-built
// address space is torn down and must not be used.
func (v *VM) Fork(parent *Process, pt interfaces.PageTable) (*Process, error) {
	child, err := v.NewProcess(pt)
	if err != nil {
		return nil, err
	}
	child.rsp = parent.rsp
	child.exec = parent.exec

	if err := child.spt.CopyFrom(parent.spt); err != nil {
		child.spt.Teardown()
		return nil, err
	}

	v.stats.add(&v.stats.forks)
	v.log.Debug("process forked", "parent", parent.id, "child", child.id)
	return child, nil
}

// ID returns the process identity
func (p *Process) ID() uuid.UUID {
	return p.id
}

// SPT returns the process's supplemental page table
func (p *Process) SPT() *SPT {
	return p.spt
}

// PageTable returns the process's hardware page table
func (p *Process) PageTable() interfaces.PageTable {
	return p.pt
}

// SetStackPointer records the thread's current stack pointer, which
// the fault handler consults for stack-growth decisions.
func (p *Process) SetStackPointer(rsp types.VirtAddr) {
	p.rsp = rsp
}

// StackPointer returns the recorded stack pointer
func (p *Process) StackPointer() types.VirtAddr {
	return p.rsp
}

// SetExecutable records the process's executable image handle. Fork
// shares this handle with the child instead of reopening it.
func (p *Process) SetExecutable(h interfaces.FileHandle) {
	p.exec = h
}

// Executable returns the process's executable image handle
func (p *Process) Executable() interfaces.FileHandle {
	return p.exec
}

// Exit tears the address space down and records the exit status
func (p *Process) Exit(status int) {
	if p.exited {
		return
	}
	p.exited = true
	p.exitStatus = status
	p.spt.Teardown()
	p.vm.log.Debug("process exited", "pid", p.id, "status", status)
}

// Exited reports whether the process has terminated
func (p *Process) Exited() bool {
	return p.exited
}

// ExitStatus returns the recorded exit status
func (p *Process) ExitStatus() int {
	return p.exitStatus
}

// LoadSegment declares one lazily loaded page of the executable
// image: readBytes bytes from the image at offset, the rest of the
// page zero-filled. The image handle is shared, not duplicated.
func (p *Process) LoadSegment(va types.VirtAddr, offset int64, readBytes, zeroBytes int, writable bool) error {
	if p.exec == nil {
		return fmt.Errorf("process has no executable image")
	}
	aux := &Aux{
		File:      p.exec,
		Offset:    offset,
		ReadBytes: readBytes,
		ZeroBytes: zeroBytes,
	}
	return p.spt.Declare(types.KindAnon, va, writable, LoadFromAux, aux)
}

// Write copies data into the address space at va, faulting pages in
// on demand the way a user-mode store would. An unhandled fault
// terminates the process with status -1.
func (p *Process) Write(va types.VirtAddr, data []byte) error {
	return p.access(va, data, true)
}

// Read copies len(buf) bytes out of the address space at va,
// faulting pages in on demand the way a user-mode load would.
func (p *Process) Read(va types.VirtAddr, buf []byte) error {
	return p.access(va, buf, false)
}

// access simulates user-mode memory access one page at a time,
// entering the fault handler for missing mappings and protection
// violations exactly as the trap layer would.
func (p *Process) access(va types.VirtAddr, buf []byte, write bool) error {
	for done := 0; done < len(buf); {
		pva := va.PageDown()
		chunk := types.PageSize - int(va.PageOffset())
		if chunk > len(buf)-done {
			chunk = len(buf) - done
		}

		frame, mapped := p.pt.Lookup(pva)
		if !mapped {
			if !p.TryHandleFault(va, true, write, true) {
				p.Exit(-1)
				return fmt.Errorf("%w: %#x", ErrNoSuchPage, va)
			}
			frame, mapped = p.pt.Lookup(pva)
			if !mapped {
				p.Exit(-1)
				return fmt.Errorf("%w: %#x", ErrNoSuchPage, va)
			}
		}

		if write {
			if page := p.spt.Lookup(pva); page != nil && !page.writable {
				if !p.TryHandleFault(va, true, true, false) {
					p.Exit(-1)
					return fmt.Errorf("%w: %#x", ErrNotWritable, va)
				}
			}
		}

		off := int(va.PageOffset())
		if write {
			copy(frame[off:off+chunk], buf[done:done+chunk])
			p.pt.SetDirty(pva, true)
		} else {
			copy(buf[done:done+chunk], frame[off:off+chunk])
		}

		done += chunk
		va += types.VirtAddr(chunk)
	}
	return nil
}
