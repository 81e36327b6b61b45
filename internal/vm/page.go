package vm

import (
	"fmt"

	"github.com/ProdMoon/go-vmm/internal/interfaces"
	"github.com/ProdMoon/go-vmm/internal/types"
)

// Aux carries the load parameters attached to a page before it is
// first resident: where its initial content comes from and how much
// of the page is zero-filled. It is retained for the page's lifetime
// so the same source can repopulate the frame on every swap-in, and
// duplicated during fork.
type Aux struct {
	File      interfaces.FileHandle
	Offset    int64
	ReadBytes int
	ZeroBytes int
}

// Initializer populates a freshly claimed frame the first time an
// anonymous page becomes resident. A nil initializer leaves the
// frame zero-filled.
type Initializer func(p *Page, frame []byte) error

// Page represents one virtual page of a process's address space. A
// page starts in the uninit variant and converts to its declared
// concrete variant (anon or file) on first claim. The preserved
// declaration payload (declared kind, initializer, aux) survives the
// conversion so fork can replay it.
//
// At every quiescent point exactly one of the following holds: the
// page has a frame (resident), an anonymous page holds a swap slot
// (swapped out), or the page has neither (never faulted in).
type Page struct {
	spt      *SPT
	va       types.VirtAddr
	writable bool

	// current variant; KindUninit until the first claim
	kind types.PageKind

	// stack marks the process's initial stack page, rebuilt eagerly
	// during fork
	stack bool

	// preserved declaration payload
	declared types.PageKind
	init     Initializer
	aux      *Aux

	frame *Frame
	slot  types.SlotID

	// mmap region head only: number of pages in the region
	mapPages int
}

// Addr returns the page's virtual address
func (p *Page) Addr() types.VirtAddr {
	return p.va
}

// Writable reports whether the page may be written through
func (p *Page) Writable() bool {
	return p.writable
}

// Kind returns the page's current variant
func (p *Page) Kind() types.PageKind {
	return p.kind
}

// DeclaredKind returns the concrete variant the page was declared
// with, regardless of whether it has converted yet.
func (p *Page) DeclaredKind() types.PageKind {
	return p.declared
}

// IsResident reports whether the page currently occupies a frame
func (p *Page) IsResident() bool {
	return p.frame != nil
}

// IsSwapped reports whether the page's content currently lives in a
// swap slot.
func (p *Page) IsSwapped() bool {
	return p.slot != types.NoSlot
}

// IsLazy reports whether the page has never been faulted in
func (p *Page) IsLazy() bool {
	return p.frame == nil && p.slot == types.NoSlot
}

func (p *Page) vm() *VM {
	return p.spt.proc.vm
}

func (p *Page) pageTable() interfaces.PageTable {
	return p.spt.proc.pt
}

// convert installs the declared concrete variant's operation set.
// The preserved declaration payload stays in place for fork.
func (p *Page) convert() error {
	if !p.declared.IsConcrete() {
		return fmt.Errorf("%w: %v", ErrBadPageKind, p.declared)
	}
	p.kind = p.declared
	return nil
}

// swapIn populates the given frame with the page's content. For an
// uninit page this first converts it to its concrete variant.
func (p *Page) swapIn(frame []byte) error {
	if p.kind == types.KindUninit {
		if err := p.convert(); err != nil {
			return err
		}
	}

	switch p.kind {
	case types.KindAnon:
		return p.anonSwapIn(frame)
	case types.KindFile:
		return p.fileSwapIn(frame)
	default:
		return fmt.Errorf("%w: %v", ErrBadPageKind, p.kind)
	}
}

// swapOut moves the resident page's content out of its frame: to a
// swap slot for anonymous pages, back to the file for dirty
// file-backed pages. The caller owns the eviction sequence.
func (p *Page) swapOut() error {
	switch p.kind {
	case types.KindAnon:
		return p.anonSwapOut()
	case types.KindFile:
		return p.fileSwapOut()
	default:
		return fmt.Errorf("%w: %v", ErrBadPageKind, p.kind)
	}
}

// destroy releases every resource the page still owns: its swap slot
// or its frame's queue membership, its private file handle for
// file-backed pages, and the aux payload.
func (p *Page) destroy() {
	switch p.kind {
	case types.KindAnon:
		p.anonDestroy()
	case types.KindFile:
		p.fileDestroy()
	default:
		p.uninitDestroy()
	}
}

// uninitDestroy tears down a page that never faulted in. A page
// declared file-backed owns its reopened handle from declaration
// time, so it is closed here as well.
func (p *Page) uninitDestroy() {
	if p.declared == types.KindFile && p.aux != nil && p.aux.File != nil {
		p.aux.File.Close()
	}
	p.aux = nil
}
