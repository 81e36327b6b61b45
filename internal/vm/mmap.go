package vm

import (
	"fmt"

	"github.com/ProdMoon/go-vmm/internal/interfaces"
	"github.com/ProdMoon/go-vmm/internal/types"
)

// Map establishes a file-backed mapping of length bytes of file at
// offset, starting at addr. The mapping is rounded up to whole pages
// and every page is declared lazily; nothing is read until first
// fault. Each page carries an independently duplicated file handle so
// closing the caller's descriptor later does not invalidate the
// mapping. Returns the start address of the region.
func (p *Process) Map(addr types.VirtAddr, length int64, writable bool, file interfaces.FileHandle, offset int64) (types.VirtAddr, error) {
	if !addr.IsPageAligned() {
		return 0, fmt.Errorf("%w: %#x", ErrMisaligned, addr)
	}
	if file == nil {
		return 0, fmt.Errorf("mapping requires a file")
	}
	if length <= 0 {
		return 0, fmt.Errorf("invalid mapping length: %d", length)
	}

	readable := file.Length() - offset
	if readable <= 0 {
		return 0, fmt.Errorf("%w: offset %d, file length %d", ErrNoReadableBytes, offset, file.Length())
	}

	readBytes := length
	if readBytes > readable {
		readBytes = readable
	}
	pages := int((readBytes + types.PageSize - 1) / types.PageSize)

	// All-or-nothing: reject any overlap before declaring anything.
	for i := 0; i < pages; i++ {
		if p.spt.Lookup(addr+types.VirtAddr(i*types.PageSize)) != nil {
			return 0, fmt.Errorf("%w: %#x", ErrMappingOverlap, addr+types.VirtAddr(i*types.PageSize))
		}
	}

	remaining := readBytes
	ofs := offset
	for i := 0; i < pages; i++ {
		va := addr + types.VirtAddr(i*types.PageSize)

		pageRead := remaining
		if pageRead > types.PageSize {
			pageRead = types.PageSize
		}

		handle, err := file.Reopen()
		if err != nil {
			p.unwindMapping(addr, i)
			return 0, fmt.Errorf("failed to duplicate file handle: %w", err)
		}

		aux := &Aux{
			File:      handle,
			Offset:    ofs,
			ReadBytes: int(pageRead),
			ZeroBytes: types.PageSize - int(pageRead),
		}

		if err := p.spt.Declare(types.KindFile, va, writable, nil, aux); err != nil {
			handle.Close()
			p.unwindMapping(addr, i)
			return 0, fmt.Errorf("failed to declare mapped page %#x: %w", va, err)
		}

		remaining -= pageRead
		ofs += types.PageSize
	}

	head := p.spt.Lookup(addr)
	head.mapPages = pages
	p.spt.mmapRegions = append(p.spt.mmapRegions, head)

	return addr, nil
}

// unwindMapping removes the pages declared so far by a failed Map
func (p *Process) unwindMapping(addr types.VirtAddr, declared int) {
	for i := 0; i < declared; i++ {
		if page := p.spt.Lookup(addr + types.VirtAddr(i*types.PageSize)); page != nil {
			p.spt.Remove(page)
		}
	}
}

// Unmap tears down the mmap region starting at addr: dirty resident
// pages are written back to their file, hardware mappings are
// cleared, and each page is destroyed through the same path used at
// process teardown.
func (p *Process) Unmap(addr types.VirtAddr) error {
	head := p.spt.Lookup(addr)
	if head == nil {
		return fmt.Errorf("%w: %#x", ErrNoSuchPage, addr)
	}
	if head.mapPages == 0 {
		return fmt.Errorf("%w: %#x", ErrNotRegionHead, addr)
	}

	p.spt.writeBackRegion(head)

	for i, h := range p.spt.mmapRegions {
		if h == head {
			p.spt.mmapRegions = append(p.spt.mmapRegions[:i], p.spt.mmapRegions[i+1:]...)
			break
		}
	}

	pages := head.mapPages
	for i := 0; i < pages; i++ {
		if page := p.spt.Lookup(addr + types.VirtAddr(i*types.PageSize)); page != nil {
			p.spt.Remove(page)
		}
	}

	return nil
}
