// Package vm implements a demand-paged virtual memory manager: sparse
// per-process address spaces whose pages are populated lazily from
// zero-fill memory, swap or a memory-mapped file, over a bounded pool
// of physical frames reclaimed by FIFO eviction.
package vm

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ProdMoon/go-vmm/internal/device"
	"github.com/ProdMoon/go-vmm/internal/interfaces"
	"github.com/ProdMoon/go-vmm/internal/types"
)

// VM bundles the process-wide singletons of the memory subsystem:
// the frame pool with its eviction queue and the swap slot pool.
// Both are initialized once at start and shared by reference across
// every process, including children created by fork.
type VM struct {
	frames    *frameAllocator
	swap      *swapManager
	log       *slog.Logger
	stackBase types.VirtAddr
	stats     stats
}

// New builds the memory subsystem over the given swap device. The
// swap slot pool is enumerated once here from device capacity.
func New(cfg *device.Config, swapDev interfaces.BlockDevice, logger *slog.Logger) (*VM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if swapDev == nil {
		return nil, fmt.Errorf("swap device cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	v := &VM{
		log:       logger,
		stackBase: types.UserStackTop - types.VirtAddr(cfg.StackLimitBytes),
	}
	v.frames = newFrameAllocator(cfg.Frames, logger)
	v.frames.stats = &v.stats
	v.swap = newSwapManager(swapDev, logger)

	logger.Info("vm initialized",
		"frames", cfg.Frames,
		"swap_slots", v.swap.freeSlots(),
		"stack_limit", cfg.StackLimitBytes)
	return v, nil
}

// claim is the single path by which a page becomes resident: acquire
// a frame (possibly evicting), link it to the page, install the
// hardware mapping, then populate via the page's swap-in operation.
// On failure the frame and mapping are unwound and the page returns
// to its previous non-resident state.
func (v *VM) claim(page *Page) error {
	if page == nil {
		return ErrNoSuchPage
	}
	if page.frame != nil {
		return nil
	}

	frame := v.frames.acquire()
	frame.page = page
	page.frame = frame

	if err := page.pageTable().Install(page.va, frame.data, page.writable); err != nil {
		frame.page = nil
		page.frame = nil
		v.frames.release(frame)
		return fmt.Errorf("failed to install mapping for %#x: %w", page.va, err)
	}

	if err := page.swapIn(frame.data); err != nil {
		page.pageTable().Clear(page.va)
		frame.page = nil
		page.frame = nil
		v.frames.release(frame)
		return fmt.Errorf("failed to claim page %#x: %w", page.va, err)
	}

	return nil
}

// StackBase returns the lowest address the stack may grow to
func (v *VM) StackBase() types.VirtAddr {
	return v.stackBase
}

// Statistics is a snapshot of subsystem counters
type Statistics struct {
	FaultsHandled  int64
	FaultsRejected int64
	Evictions      int64
	SwapIns        int64
	SwapOuts       int64
	Forks          int64
	FramesInUse    int
	SwapSlotsFree  int
	SwapSlotsUsed  int
}

type stats struct {
	mu             sync.Mutex
	faultsHandled  int64
	faultsRejected int64
	evictions      int64
	swapIns        int64
	swapOuts       int64
	forks          int64
}

func (s *stats) add(field *int64) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

// GetStatistics returns a snapshot of the subsystem counters
func (v *VM) GetStatistics() Statistics {
	v.stats.mu.Lock()
	snap := Statistics{
		FaultsHandled:  v.stats.faultsHandled,
		FaultsRejected: v.stats.faultsRejected,
		Evictions:      v.stats.evictions,
		SwapIns:        v.stats.swapIns,
		SwapOuts:       v.stats.swapOuts,
		Forks:          v.stats.forks,
	}
	v.stats.mu.Unlock()

	snap.FramesInUse = v.frames.allocated()
	snap.SwapSlotsFree = v.swap.freeSlots()
	snap.SwapSlotsUsed = v.swap.usedSlots()
	return snap
}
