package vm

import (
	"fmt"

	"github.com/ProdMoon/go-vmm/internal/types"
)

// CopyFrom deep-duplicates the source table into this one. It runs
// in the destination process's context; the frame and swap pools are
// the same global singletons as the source's, shared by reference.
// Any allocation or claim failure aborts the whole copy.
func (t *SPT) CopyFrom(src *SPT) error {
	for _, srcp := range src.pages {
		if err := t.copyPage(src, srcp); err != nil {
			return fmt.Errorf("%w: page %#x: %w", ErrCopyAborted, srcp.va, err)
		}
	}

	// Replicate the mmap region list by re-resolving each head in
	// the destination table.
	for _, head := range src.mmapRegions {
		dsth := t.Lookup(head.va)
		if dsth == nil {
			return fmt.Errorf("%w: missing region head %#x", ErrCopyAborted, head.va)
		}
		dsth.mapPages = head.mapPages
		t.mmapRegions = append(t.mmapRegions, dsth)
	}

	return nil
}

// copyPage replicates one source page into the destination table,
// faithfully reproducing whichever state it is in: lazy, resident or
// swapped out.
func (t *SPT) copyPage(src *SPT, srcp *Page) error {
	v := t.proc.vm

	// The initial stack page is rebuilt eagerly: it is resident or
	// swapped in the source, never lazy.
	if srcp.stack {
		if err := t.DeclareStack(srcp.va); err != nil {
			return err
		}
		dstp := t.Lookup(srcp.va)
		// The source state is inspected after the claim above: if
		// claiming the destination evicted the source, its content
		// is picked up from swap below.
		switch {
		case srcp.IsSwapped():
			// Restore from the source's slot without disturbing it.
			if err := v.swap.readSlot(srcp.slot, dstp.frame.data); err != nil {
				return err
			}
		case srcp.IsResident():
			copy(dstp.frame.data, srcp.frame.data)
		}
		return nil
	}

	aux, err := srcp.duplicateAux()
	if err != nil {
		return err
	}

	if err := t.Declare(srcp.declared, srcp.va, srcp.writable, srcp.init, aux); err != nil {
		if aux != nil && aux.File != nil && srcp.declared == types.KindFile {
			aux.File.Close()
		}
		return err
	}
	dstp := t.Lookup(srcp.va)

	switch {
	case srcp.IsSwapped():
		// Both pages end up holding independent, identical swap
		// content.
		slot, err := v.swap.copySlot(srcp.slot)
		if err != nil {
			return err
		}
		if err := dstp.convert(); err != nil {
			v.swap.release(slot)
			return err
		}
		dstp.slot = slot

	case srcp.IsResident():
		// Snapshot the source frame first: claiming the destination
		// can evict the source page under memory pressure.
		snapshot := make([]byte, types.PageSize)
		copy(snapshot, srcp.frame.data)
		dirty := src.proc.pt.IsDirty(srcp.va)

		if err := v.claim(dstp); err != nil {
			return err
		}
		copy(dstp.frame.data, snapshot)
		t.proc.pt.SetDirty(dstp.va, dirty)

	default:
		// Still lazy in the source; stays lazy here.
	}

	return nil
}

// duplicateAux copies the page's load parameters for a child page.
// File-backed pages get an independently duplicated handle; pages
// backed by the process's executable image share the already-open
// handle.
func (p *Page) duplicateAux() (*Aux, error) {
	if p.aux == nil {
		return nil, nil
	}

	dup := *p.aux
	if p.declared == types.KindFile && dup.File != nil {
		handle, err := dup.File.Reopen()
		if err != nil {
			return nil, fmt.Errorf("failed to duplicate file handle: %w", err)
		}
		dup.File = handle
	}
	return &dup, nil
}
