package vm

import (
	"errors"
	"fmt"
	"io"
)

// File-backed page operations: content always comes from and returns
// to the backing file. File-backed pages are never written to swap.

// fileSwapIn loads the page's file range into the frame and zero
// fills the remainder. A fresh load is not itself a modification, so
// the hardware dirty bit is preserved across the operation.
func (p *Page) fileSwapIn(frame []byte) error {
	aux := p.aux
	if aux == nil || aux.File == nil {
		return fmt.Errorf("file page %#x has no backing file", p.va)
	}

	dirty := p.pageTable().IsDirty(p.va)

	if aux.ReadBytes > 0 {
		n, err := aux.File.ReadAt(frame[:aux.ReadBytes], aux.Offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read of %d bytes at offset %d: %w", aux.ReadBytes, aux.Offset, err)
		}
		if n != aux.ReadBytes {
			return fmt.Errorf("short file read at offset %d: got %d of %d bytes", aux.Offset, n, aux.ReadBytes)
		}
	}
	for i := aux.ReadBytes; i < len(frame); i++ {
		frame[i] = 0
	}

	p.pageTable().SetDirty(p.va, dirty)
	return nil
}

// fileSwapOut writes the page's readable range back to the file if
// the hardware dirty bit is set, then clears the bit.
func (p *Page) fileSwapOut() error {
	if !p.pageTable().IsDirty(p.va) {
		return nil
	}

	aux := p.aux
	if aux == nil || aux.File == nil {
		return fmt.Errorf("file page %#x has no backing file", p.va)
	}

	if aux.ReadBytes > 0 {
		if _, err := aux.File.WriteAt(p.frame.data[:aux.ReadBytes], aux.Offset); err != nil {
			return fmt.Errorf("write-back of page %#x: %w", p.va, err)
		}
	}

	p.pageTable().SetDirty(p.va, false)
	return nil
}

// fileDestroy releases the page's frame if resident, closes its
// private duplicated file handle and drops the aux payload.
func (p *Page) fileDestroy() {
	if p.frame != nil {
		p.pageTable().Clear(p.va)
		p.vm().frames.remove(p.frame)
		p.frame.page = nil
		p.frame = nil
	}

	if p.aux != nil && p.aux.File != nil {
		p.aux.File.Close()
	}
	p.aux = nil
}
