package vm

import (
	"fmt"

	"github.com/ProdMoon/go-vmm/internal/types"
)

// Anonymous page operations: zero-fill on first fault, swap-backed
// once evicted.

// anonSwapIn restores the page's content into the frame. A page that
// holds a swap slot reads it back from the swap device and returns
// the slot to the free pool; a page faulting for the first time runs
// its preserved initializer instead (the frame arrives zero-filled).
func (p *Page) anonSwapIn(frame []byte) error {
	if p.slot != types.NoSlot {
		slot := p.slot
		if err := p.vm().swap.readSlot(slot, frame); err != nil {
			return fmt.Errorf("swap-in of page %#x: %w", p.va, err)
		}
		p.vm().swap.release(slot)
		p.slot = types.NoSlot
		p.vm().stats.add(&p.vm().stats.swapIns)
		return nil
	}

	if p.init != nil {
		if err := p.init(p, frame); err != nil {
			return fmt.Errorf("initializer for page %#x: %w", p.va, err)
		}
	}
	return nil
}

// anonSwapOut writes the frame's content to a freshly allocated swap
// slot and records the slot on the page.
func (p *Page) anonSwapOut() error {
	slot, err := p.vm().swap.alloc()
	if err != nil {
		return fmt.Errorf("swap-out of page %#x: %w", p.va, err)
	}

	if err := p.vm().swap.writeSlot(slot, p.frame.data); err != nil {
		p.vm().swap.release(slot)
		return fmt.Errorf("swap-out of page %#x: %w", p.va, err)
	}

	p.slot = slot
	p.vm().stats.add(&p.vm().stats.swapOuts)
	return nil
}

// anonDestroy releases whichever of {swap slot, frame} the page
// holds, plus its aux payload. The executable image handle inside
// aux is shared with the process and is not closed here.
func (p *Page) anonDestroy() {
	if p.slot != types.NoSlot {
		p.vm().swap.release(p.slot)
		p.slot = types.NoSlot
	} else if p.frame != nil {
		p.pageTable().Clear(p.va)
		p.vm().frames.remove(p.frame)
		p.frame.page = nil
		p.frame = nil
	}

	p.aux = nil
}

// LoadFromAux is the initializer installed by the program loader for
// executable segments: read the aux byte range from the backing file
// and zero-fill the remainder.
func LoadFromAux(p *Page, frame []byte) error {
	aux := p.aux
	if aux == nil || aux.File == nil {
		return fmt.Errorf("page %#x has no load parameters", p.va)
	}

	if aux.ReadBytes > 0 {
		n, err := aux.File.ReadAt(frame[:aux.ReadBytes], aux.Offset)
		if err != nil || n != aux.ReadBytes {
			return fmt.Errorf("short segment read at offset %d: got %d of %d bytes: %w",
				aux.Offset, n, aux.ReadBytes, err)
		}
	}
	for i := aux.ReadBytes; i < aux.ReadBytes+aux.ZeroBytes && i < len(frame); i++ {
		frame[i] = 0
	}
	return nil
}
