package device

import (
	"fmt"
	"sync"

	"github.com/ProdMoon/go-vmm/internal/types"
)

// MemDisk is an in-memory BlockDevice. It backs swap in tests and in
// runs configured without a swap image path.
type MemDisk struct {
	data    []byte
	sectors int64
	stats   Statistics
	mu      sync.Mutex
}

// NewMemDisk creates an in-memory block device with the given
// capacity, zero-filled.
func NewMemDisk(sectors int64) (*MemDisk, error) {
	if sectors <= 0 {
		return nil, fmt.Errorf("invalid sector count: %d", sectors)
	}
	return &MemDisk{
		data:    make([]byte, sectors*types.SectorSize),
		sectors: sectors,
	}, nil
}

// ReadSector reads a single sector from the device
func (d *MemDisk) ReadSector(sector types.SectorNo, buf []byte) error {
	if err := d.checkAccess(sector, buf); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(sector) * types.SectorSize
	copy(buf, d.data[offset:offset+types.SectorSize])
	d.stats.SectorsRead++
	d.stats.BytesRead += types.SectorSize
	return nil
}

// WriteSector writes a single sector to the device
func (d *MemDisk) WriteSector(sector types.SectorNo, buf []byte) error {
	if err := d.checkAccess(sector, buf); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(sector) * types.SectorSize
	copy(d.data[offset:offset+types.SectorSize], buf)
	d.stats.SectorsWritten++
	d.stats.BytesWritten += types.SectorSize
	return nil
}

func (d *MemDisk) checkAccess(sector types.SectorNo, buf []byte) error {
	if !sector.Validate() || int64(sector) >= d.sectors {
		return fmt.Errorf("sector %d is beyond device size", sector)
	}
	if len(buf) != types.SectorSize {
		return fmt.Errorf("buffer size %d does not match sector size %d", len(buf), types.SectorSize)
	}
	return nil
}

// SectorCount returns the total number of sectors on the device
func (d *MemDisk) SectorCount() int64 {
	return d.sectors
}

// SectorSize returns the size of a single sector in bytes
func (d *MemDisk) SectorSize() int {
	return types.SectorSize
}

// GetStatistics returns a snapshot of the access counters
func (d *MemDisk) GetStatistics() Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Close is a no-op for an in-memory device
func (d *MemDisk) Close() error {
	return nil
}
