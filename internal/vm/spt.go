package vm

import (
	"fmt"

	"github.com/ProdMoon/go-vmm/internal/types"
)

// SPT is the supplemental page table: the per-process authoritative
// record of what the address space contains, keyed by page-aligned
// virtual address and independent of what is currently resident. It
// also tracks the head pages of the process's mmap regions so they
// can be written back before raw destruction at teardown.
//
// The table is private to its process; only the owning process's
// threads mutate it, except for fork's deep copy which runs entirely
// in the child's context.
type SPT struct {
	proc        *Process
	pages       map[types.VirtAddr]*Page
	mmapRegions []*Page
}

func newSPT(proc *Process) *SPT {
	return &SPT{
		proc:  proc,
		pages: make(map[types.VirtAddr]*Page),
	}
}

// Declare registers a new uninitialized page at a page-aligned
// address. The page stays lazy until its first fault, when it
// converts to the declared concrete kind and runs the initializer.
func (t *SPT) Declare(kind types.PageKind, va types.VirtAddr, writable bool, init Initializer, aux *Aux) error {
	if !va.IsPageAligned() {
		return fmt.Errorf("%w: %#x", ErrMisaligned, va)
	}
	if !kind.IsConcrete() {
		return fmt.Errorf("%w: %v", ErrBadPageKind, kind)
	}
	if _, ok := t.pages[va]; ok {
		return fmt.Errorf("%w: %#x", ErrAddressOccupied, va)
	}

	page := &Page{
		spt:      t,
		va:       va,
		writable: writable,
		kind:     types.KindUninit,
		declared: kind,
		init:     init,
		aux:      aux,
		slot:     types.NoSlot,
	}

	return t.Insert(page)
}

// DeclareStack registers the process's initial stack page and claims
// it immediately: the stack must be usable before the first fault.
func (t *SPT) DeclareStack(va types.VirtAddr) error {
	if err := t.Declare(types.KindAnon, va, true, nil, nil); err != nil {
		return err
	}

	page := t.Lookup(va)
	page.stack = true
	return t.proc.vm.claim(page)
}

// Lookup returns the page registered at the page-aligned address va,
// or nil if none is.
func (t *SPT) Lookup(va types.VirtAddr) *Page {
	return t.pages[va]
}

// Insert registers the page at its address. Fails if a page already
// occupies that address.
func (t *SPT) Insert(page *Page) error {
	if _, ok := t.pages[page.va]; ok {
		return fmt.Errorf("%w: %#x", ErrAddressOccupied, page.va)
	}
	t.pages[page.va] = page
	return nil
}

// Remove unregisters the page and destroys it
func (t *SPT) Remove(page *Page) {
	delete(t.pages, page.va)
	page.destroy()
}

// Teardown destroys every page still registered. Mmap region heads
// are processed first, in list order, so dirty file pages are written
// back before raw destruction. Safe to call on an empty table and
// safe to call twice.
func (t *SPT) Teardown() {
	for _, head := range t.mmapRegions {
		t.writeBackRegion(head)
	}
	t.mmapRegions = nil

	for _, page := range t.pages {
		page.destroy()
	}
	t.pages = make(map[types.VirtAddr]*Page)
}

// writeBackRegion flushes every dirty resident page of an mmap region
// to its file and clears the hardware mappings.
func (t *SPT) writeBackRegion(head *Page) {
	va := head.va
	for i := 0; i < head.mapPages; i++ {
		page := t.Lookup(va)
		if page != nil {
			if page.IsResident() && t.proc.pt.IsDirty(page.va) {
				if err := page.fileSwapOut(); err != nil {
					t.proc.vm.log.Error("mmap write-back failed", "va", fmt.Sprintf("%#x", page.va), "error", err)
				}
			}
			t.proc.pt.Clear(page.va)
		}
		va += types.PageSize
	}
}

// Len returns the number of pages registered in the table
func (t *SPT) Len() int {
	return len(t.pages)
}
