package device

import (
	"fmt"
	"os"
	"sync"

	"github.com/ProdMoon/go-vmm/internal/types"
)

// DiskImage provides sector-level access to a disk image file. It is
// the file-backed BlockDevice used for swap when a swap path is
// configured.
type DiskImage struct {
	file    *os.File
	sectors int64
	stats   Statistics
	mu      sync.Mutex
}

// Statistics tracks device access counters
type Statistics struct {
	SectorsRead    int64
	SectorsWritten int64
	BytesRead      int64
	BytesWritten   int64
}

// OpenDiskImage opens (or creates) a disk image file and extends it
// to its full capacity up front so every sector is addressable.
func OpenDiskImage(path string, sectors int64) (*DiskImage, error) {
	if path == "" {
		return nil, fmt.Errorf("disk image path cannot be empty")
	}
	if sectors <= 0 {
		return nil, fmt.Errorf("invalid sector count: %d", sectors)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk image: %w", err)
	}

	if err := file.Truncate(sectors * types.SectorSize); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to size disk image: %w", err)
	}

	return &DiskImage{file: file, sectors: sectors}, nil
}

// ReadSector reads a single sector from the image
func (d *DiskImage) ReadSector(sector types.SectorNo, buf []byte) error {
	if err := d.checkAccess(sector, buf); err != nil {
		return err
	}

	offset := int64(sector) * types.SectorSize
	n, err := d.file.ReadAt(buf, offset)
	if err != nil {
		return fmt.Errorf("failed to read sector %d: %w", sector, err)
	}
	if n < types.SectorSize {
		return fmt.Errorf("incomplete sector read: got %d bytes, expected %d", n, types.SectorSize)
	}

	d.mu.Lock()
	d.stats.SectorsRead++
	d.stats.BytesRead += int64(n)
	d.mu.Unlock()

	return nil
}

// WriteSector writes a single sector to the image
func (d *DiskImage) WriteSector(sector types.SectorNo, buf []byte) error {
	if err := d.checkAccess(sector, buf); err != nil {
		return err
	}

	offset := int64(sector) * types.SectorSize
	n, err := d.file.WriteAt(buf, offset)
	if err != nil {
		return fmt.Errorf("failed to write sector %d: %w", sector, err)
	}

	d.mu.Lock()
	d.stats.SectorsWritten++
	d.stats.BytesWritten += int64(n)
	d.mu.Unlock()

	return nil
}

func (d *DiskImage) checkAccess(sector types.SectorNo, buf []byte) error {
	if !sector.Validate() || int64(sector) >= d.sectors {
		return fmt.Errorf("sector %d is beyond device size", sector)
	}
	if len(buf) != types.SectorSize {
		return fmt.Errorf("buffer size %d does not match sector size %d", len(buf), types.SectorSize)
	}
	return nil
}

// SectorCount returns the total number of sectors on the device
func (d *DiskImage) SectorCount() int64 {
	return d.sectors
}

// SectorSize returns the size of a single sector in bytes
func (d *DiskImage) SectorSize() int {
	return types.SectorSize
}

// GetStatistics returns a snapshot of the access counters
func (d *DiskImage) GetStatistics() Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Close closes the underlying image file
func (d *DiskImage) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
