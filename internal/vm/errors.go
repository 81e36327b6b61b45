package vm

import "errors"

// Errors reported to callers at the declaration, mapping and fork
// boundaries. Simultaneous exhaustion of frames and swap is not an
// error value; it is kernel-fatal and panics.
var (
	// ErrAddressOccupied is returned when declaring a page at an
	// address that already holds one.
	ErrAddressOccupied = errors.New("address already occupied")

	// ErrMisaligned is returned when an address is not page-aligned
	ErrMisaligned = errors.New("address is not page-aligned")

	// ErrBadPageKind is returned when declaring a page whose kind is
	// not one of the concrete variants.
	ErrBadPageKind = errors.New("invalid page kind")

	// ErrNoSuchPage is returned when no page is registered at the
	// given address.
	ErrNoSuchPage = errors.New("no page at address")

	// ErrNotWritable is returned for a user write fault on a
	// read-only page.
	ErrNotWritable = errors.New("write to read-only page")

	// ErrNoReadableBytes is returned when mapping a file range that
	// holds no readable bytes.
	ErrNoReadableBytes = errors.New("no readable bytes at offset")

	// ErrMappingOverlap is returned when a requested mapping overlaps
	// an existing page.
	ErrMappingOverlap = errors.New("mapping overlaps existing pages")

	// ErrNotRegionHead is returned when unmapping an address that is
	// not the start of a mapped region.
	ErrNotRegionHead = errors.New("address is not the start of a mapped region")

	// ErrSwapFull is returned when no free swap slot is available
	ErrSwapFull = errors.New("swap space exhausted")

	// ErrCopyAborted wraps any failure while duplicating an address
	// space; the partially built copy must not be used.
	ErrCopyAborted = errors.New("address space copy aborted")
)
