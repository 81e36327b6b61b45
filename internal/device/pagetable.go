package device

import (
	"fmt"

	"github.com/ProdMoon/go-vmm/internal/types"
)

// ptEntry is one installed virtual-to-physical mapping.
type ptEntry struct {
	frame    []byte
	writable bool
	dirty    bool
}

// SoftPageTable is a software model of the hardware page table for
// one process's address space: install and clear mappings, look up
// the mapped frame, and track the per-page dirty bit.
type SoftPageTable struct {
	entries map[types.VirtAddr]*ptEntry
}

// NewSoftPageTable creates an empty page table
func NewSoftPageTable() *SoftPageTable {
	return &SoftPageTable{entries: make(map[types.VirtAddr]*ptEntry)}
}

// Install maps va to the given frame. Installing over an existing
// mapping replaces it and resets the dirty bit.
func (t *SoftPageTable) Install(va types.VirtAddr, frame []byte, writable bool) error {
	if !va.IsPageAligned() {
		return fmt.Errorf("address %#x is not page-aligned", va)
	}
	if len(frame) != types.PageSize {
		return fmt.Errorf("frame size %d does not match page size %d", len(frame), types.PageSize)
	}
	t.entries[va] = &ptEntry{frame: frame, writable: writable}
	return nil
}

// Clear removes the mapping for va, if any
func (t *SoftPageTable) Clear(va types.VirtAddr) {
	delete(t.entries, va)
}

// Lookup returns the frame mapped at va
func (t *SoftPageTable) Lookup(va types.VirtAddr) ([]byte, bool) {
	e, ok := t.entries[va.PageDown()]
	if !ok {
		return nil, false
	}
	return e.frame, true
}

// IsDirty reports whether va has been written through since the
// dirty bit was last cleared. Unmapped addresses are never dirty.
func (t *SoftPageTable) IsDirty(va types.VirtAddr) bool {
	e, ok := t.entries[va.PageDown()]
	return ok && e.dirty
}

// SetDirty sets or clears the dirty bit for va
func (t *SoftPageTable) SetDirty(va types.VirtAddr, dirty bool) {
	if e, ok := t.entries[va.PageDown()]; ok {
		e.dirty = dirty
	}
}

// Len returns the number of installed mappings
func (t *SoftPageTable) Len() int {
	return len(t.entries)
}
