package vm

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ProdMoon/go-vmm/internal/types"
)

// Frame is one page-sized block of physical memory. A frame is owned
// exclusively by the page resident in it; ownership transfers during
// eviction when the old page relinquishes the frame and takes a swap
// slot identifier instead.
type Frame struct {
	data []byte
	page *Page
}

// Data returns the frame's backing memory
func (f *Frame) Data() []byte {
	return f.data
}

// frameAllocator owns the bounded pool of physical frames and the
// global eviction queue. The queue is strictly FIFO over allocation
// order: the earliest-allocated frame among currently allocated
// frames is the next victim, with no promotion on access.
type frameAllocator struct {
	mu    sync.Mutex
	queue []*Frame
	limit int
	log   *slog.Logger
	stats *stats
}

func newFrameAllocator(limit int, log *slog.Logger) *frameAllocator {
	return &frameAllocator{limit: limit, log: log}
}

// acquire returns a zero-filled frame registered at the tail of the
// eviction queue. When the pool is exhausted it evicts the queue
// head's occupant and recycles that frame. Eviction failure means
// physical memory and swap are both exhausted, which is fatal for
// the whole kernel.
func (a *frameAllocator) acquire() *Frame {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.queue) < a.limit {
		frame := &Frame{data: make([]byte, types.PageSize)}
		a.queue = append(a.queue, frame)
		return frame
	}

	// Pool exhausted: evict the oldest-allocated frame.
	frame := a.queue[0]
	a.queue = a.queue[1:]

	victim := frame.page
	if victim == nil {
		panic("vm: frame in eviction queue has no occupant")
	}

	a.log.Debug("evicting page", "va", fmt.Sprintf("%#x", victim.va), "kind", victim.kind.String())

	if err := victim.swapOut(); err != nil {
		// No frame and no swap slot: no process can make progress.
		panic(fmt.Sprintf("vm: out of memory and swap: %v", err))
	}

	victim.pageTable().Clear(victim.va)
	victim.frame = nil
	frame.page = nil
	if a.stats != nil {
		a.stats.add(&a.stats.evictions)
	}
	for i := range frame.data {
		frame.data[i] = 0
	}

	a.queue = append(a.queue, frame)
	return frame
}

// remove unlinks a frame from the eviction queue when its occupant
// is destroyed, returning the capacity to the pool.
func (a *frameAllocator) remove(frame *Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, f := range a.queue {
		if f == frame {
			a.queue = append(a.queue[:i], a.queue[i+1:]...)
			return
		}
	}
}

// release drops a frame that was acquired but whose claim failed.
func (a *frameAllocator) release(frame *Frame) {
	a.remove(frame)
}

// allocated returns the number of frames currently in the queue
func (a *frameAllocator) allocated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}
