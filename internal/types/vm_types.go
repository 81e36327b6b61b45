// Package types implements the basic value types shared across the
// virtual memory subsystem.
package types

// PageSize is the size of one virtual or physical page in bytes.
const PageSize = 4096

// SectorSize is the transfer unit of the swap block device in bytes.
const SectorSize = 512

// SectorsPerPage is the number of device sectors holding one page.
const SectorsPerPage = PageSize / SectorSize

// WordSize is the size of one machine word in bytes. The fault
// handler treats an access exactly one word below the stack pointer
// as stack growth.
const WordSize = 8

// UserStackTop is the virtual address just above the highest user
// stack page.
const UserStackTop VirtAddr = 0x4800_0000

// DefaultStackLimit is the default maximum stack size in bytes. The
// lowest address the stack may grow to is UserStackTop minus this.
const DefaultStackLimit = 1 << 20 // 1 MiB

// VirtAddr represents a virtual address in a process's address space.
type VirtAddr uint64

// PageDown rounds the address down to a page boundary.
func (va VirtAddr) PageDown() VirtAddr {
	return va &^ (PageSize - 1)
}

// PageOffset returns the offset of the address within its page.
func (va VirtAddr) PageOffset() uint64 {
	return uint64(va) & (PageSize - 1)
}

// IsPageAligned reports whether the address sits on a page boundary.
func (va VirtAddr) IsPageAligned() bool {
	return va.PageOffset() == 0
}

// SectorNo represents the index of a sector on a block device.
// Negative numbers aren't valid sector indexes.
type SectorNo int64

// Validate checks if the sector number is valid.
func (s SectorNo) Validate() bool {
	return s >= 0
}

// SlotID identifies one page-sized swap slot by its starting sector.
type SlotID SectorNo

// NoSlot is the sentinel SlotID of a page that holds no swap slot.
const NoSlot SlotID = -1

// PageKind distinguishes the concrete backing of a page.
type PageKind int

const (
	// KindUninit marks a page that has been declared but never
	// faulted in. Its concrete kind is decided at first claim.
	KindUninit PageKind = iota

	// KindAnon marks a page backed by zero-fill memory and, once
	// evicted, by a swap slot.
	KindAnon

	// KindFile marks a page backed by a range of an open file.
	KindFile
)

// String returns the lowercase name of the page kind.
func (k PageKind) String() string {
	switch k {
	case KindUninit:
		return "uninit"
	case KindAnon:
		return "anon"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// IsConcrete reports whether the kind is one a page can be converted
// to at first claim.
func (k PageKind) IsConcrete() bool {
	return k == KindAnon || k == KindFile
}
