// File: internal/interfaces/vm_collaborators.go
package interfaces

import (
	"io"

	"github.com/ProdMoon/go-vmm/internal/types"
)

// BlockDevice provides sector-level access to the swap device.
// All reads and writes are synchronous and block the caller until
// the device completes the transfer.
type BlockDevice interface {
	// ReadSector reads one sector into buf. len(buf) must equal
	// SectorSize().
	ReadSector(sector types.SectorNo, buf []byte) error

	// WriteSector writes one sector from buf. len(buf) must equal
	// SectorSize().
	WriteSector(sector types.SectorNo, buf []byte) error

	// SectorCount returns the total number of sectors on the device
	SectorCount() int64

	// SectorSize returns the size of a single sector in bytes
	SectorSize() int

	io.Closer
}

// FileHandle provides byte-level access to an open file backing a
// file-backed page. Handles obtained from Reopen stay valid after
// the original handle is closed.
type FileHandle interface {
	// ReadAt reads len(p) bytes from the file starting at off
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt writes len(p) bytes to the file starting at off
	WriteAt(p []byte, off int64) (int, error)

	// Length returns the current size of the file in bytes
	Length() int64

	// Reopen returns an independent handle onto the same file
	Reopen() (FileHandle, error)

	io.Closer
}

// PageTable models the hardware mapping primitive for one process's
// address space: install and clear a virtual-to-physical mapping and
// query the dirty bit.
type PageTable interface {
	// Install maps va to the given frame with the given protection.
	// Installing over an existing mapping replaces it.
	Install(va types.VirtAddr, frame []byte, writable bool) error

	// Clear removes the mapping for va, if any
	Clear(va types.VirtAddr)

	// Lookup returns the frame mapped at va
	Lookup(va types.VirtAddr) ([]byte, bool)

	// IsDirty reports whether va has been written through since the
	// dirty bit was last cleared
	IsDirty(va types.VirtAddr) bool

	// SetDirty sets or clears the dirty bit for va
	SetDirty(va types.VirtAddr, dirty bool)
}
