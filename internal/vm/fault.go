package vm

import (
	"fmt"

	"github.com/ProdMoon/go-vmm/internal/types"
)

// TryHandleFault is the entry point invoked by the trap layer on
// every page fault. It decides between stack growth, lazy load,
// swap-in and rejection, and reports whether the fault was handled.
// Rejection never terminates the process here; the trap boundary
// turns an unhandled fault into termination with status -1.
func (p *Process) TryHandleFault(addr types.VirtAddr, user, write, missing bool) bool {
	// Stack growth: the access is one word below the stack pointer
	// (push), or lands between the stack pointer and the top of the
	// user stack. Either way it must stay above the stack size limit.
	if addr >= p.vm.stackBase && addr < types.UserStackTop &&
		(addr == p.rsp-types.WordSize || addr >= p.rsp) {
		if p.growStack(addr) {
			p.vm.stats.add(&p.vm.stats.faultsHandled)
			return true
		}
		p.vm.stats.add(&p.vm.stats.faultsRejected)
		return false
	}

	page := p.spt.Lookup(addr.PageDown())
	if page == nil {
		// Genuine fault: nothing was ever declared here.
		p.vm.stats.add(&p.vm.stats.faultsRejected)
		return false
	}

	if user && write && !page.writable {
		// Protection violation, not a missing page.
		p.vm.stats.add(&p.vm.stats.faultsRejected)
		return false
	}

	if err := p.vm.claim(page); err != nil {
		p.vm.log.Debug("claim failed", "pid", p.id, "va", fmt.Sprintf("%#x", addr), "error", err)
		p.vm.stats.add(&p.vm.stats.faultsRejected)
		return false
	}

	p.vm.stats.add(&p.vm.stats.faultsHandled)
	return true
}

// growStack extends the stack down to the faulting address. If a
// page already exists there it was evicted, not absent, and is
// claimed directly. Otherwise writable anonymous pages are declared
// from the target up to the lowest page already mapped, and the
// triggering page is claimed immediately; the rest stay lazy.
func (p *Process) growStack(addr types.VirtAddr) bool {
	target := addr.PageDown()

	if page := p.spt.Lookup(target); page != nil {
		return p.vm.claim(page) == nil
	}

	for va := target; va < types.UserStackTop && p.spt.Lookup(va) == nil; va += types.PageSize {
		if err := p.spt.Declare(types.KindAnon, va, true, nil, nil); err != nil {
			return false
		}
	}

	return p.vm.claim(p.spt.Lookup(target)) == nil
}
