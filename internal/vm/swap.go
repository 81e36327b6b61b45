package vm

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ProdMoon/go-vmm/internal/interfaces"
	"github.com/ProdMoon/go-vmm/internal/types"
)

// swapManager owns the fixed pool of page-sized swap slots on the
// swap device. The full slot set is computed once at start-up from
// device capacity; every slot is on exactly one of the free or used
// lists. The manager is a process-wide singleton shared by reference
// across fork.
type swapManager struct {
	dev  interfaces.BlockDevice
	mu   sync.Mutex
	free []types.SlotID
	used map[types.SlotID]bool
	log  *slog.Logger
}

func newSwapManager(dev interfaces.BlockDevice, log *slog.Logger) *swapManager {
	m := &swapManager{
		dev:  dev,
		used: make(map[types.SlotID]bool),
		log:  log,
	}

	slots := dev.SectorCount() * int64(dev.SectorSize()) / types.PageSize
	sector := types.SectorNo(0)
	for i := int64(0); i < slots; i++ {
		m.free = append(m.free, types.SlotID(sector))
		sector += types.SectorsPerPage
	}

	log.Info("swap pool initialized", "slots", slots)
	return m
}

// alloc moves a slot from the free list to the used list
func (m *swapManager) alloc() (types.SlotID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.free) == 0 {
		return types.NoSlot, ErrSwapFull
	}

	slot := m.free[0]
	m.free = m.free[1:]
	m.used[slot] = true
	return slot, nil
}

// release returns a used slot to the free list
func (m *swapManager) release(slot types.SlotID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.used[slot] {
		panic(fmt.Sprintf("vm: releasing swap slot %d that is not in use", slot))
	}
	delete(m.used, slot)
	m.free = append(m.free, slot)
}

// readSlot reads one page of content from the slot, sector by sector
func (m *swapManager) readSlot(slot types.SlotID, frame []byte) error {
	sector := types.SectorNo(slot)
	for off := 0; off < types.PageSize; off += types.SectorSize {
		if err := m.dev.ReadSector(sector, frame[off:off+types.SectorSize]); err != nil {
			return fmt.Errorf("failed to read swap slot %d: %w", slot, err)
		}
		sector++
	}
	return nil
}

// writeSlot writes one page of content to the slot, sector by sector
func (m *swapManager) writeSlot(slot types.SlotID, frame []byte) error {
	sector := types.SectorNo(slot)
	for off := 0; off < types.PageSize; off += types.SectorSize {
		if err := m.dev.WriteSector(sector, frame[off:off+types.SectorSize]); err != nil {
			return fmt.Errorf("failed to write swap slot %d: %w", slot, err)
		}
		sector++
	}
	return nil
}

// copySlot allocates a new slot and duplicates src's content into it
// sector by sector, leaving src untouched. Used by fork to give the
// child an independent copy of a swapped-out page.
func (m *swapManager) copySlot(src types.SlotID) (types.SlotID, error) {
	dst, err := m.alloc()
	if err != nil {
		return types.NoSlot, err
	}

	buf := make([]byte, types.SectorSize)
	srcSector := types.SectorNo(src)
	dstSector := types.SectorNo(dst)
	for i := 0; i < types.SectorsPerPage; i++ {
		if err := m.dev.ReadSector(srcSector, buf); err != nil {
			m.release(dst)
			return types.NoSlot, fmt.Errorf("failed to copy swap slot %d: %w", src, err)
		}
		if err := m.dev.WriteSector(dstSector, buf); err != nil {
			m.release(dst)
			return types.NoSlot, fmt.Errorf("failed to copy swap slot %d: %w", src, err)
		}
		srcSector++
		dstSector++
	}
	return dst, nil
}

// freeSlots returns the number of slots currently on the free list
func (m *swapManager) freeSlots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.free)
}

// usedSlots returns the number of slots currently on the used list
func (m *swapManager) usedSlots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.used)
}
