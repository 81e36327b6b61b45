package vm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProdMoon/go-vmm/internal/types"
)

func TestDeclareAndLookup(t *testing.T) {
	v := newTestVM(t, 4, 4)
	proc := newTestProcess(t, v)
	spt := proc.SPT()

	va := types.VirtAddr(0x1000_0000)
	require.NoError(t, spt.Declare(types.KindAnon, va, true, nil, nil))

	page := spt.Lookup(va)
	require.NotNil(t, page, "declared page should be found")
	assert.Equal(t, types.KindUninit, page.Kind(), "page should stay uninit until first claim")
	assert.Equal(t, types.KindAnon, page.DeclaredKind())
	assert.True(t, page.IsLazy())
	assert.True(t, page.Writable())

	if spt.Lookup(va+types.PageSize) != nil {
		t.Error("lookup of an undeclared address should return nil")
	}
}

func TestDeclareRejectsConflicts(t *testing.T) {
	v := newTestVM(t, 4, 4)
	proc := newTestProcess(t, v)
	spt := proc.SPT()

	va := types.VirtAddr(0x1000_0000)
	require.NoError(t, spt.Declare(types.KindAnon, va, true, nil, nil))

	err := spt.Declare(types.KindAnon, va, true, nil, nil)
	assert.ErrorIs(t, err, ErrAddressOccupied)

	err = spt.Declare(types.KindAnon, va+1, true, nil, nil)
	assert.ErrorIs(t, err, ErrMisaligned)

	err = spt.Declare(types.KindUninit, va+types.PageSize, true, nil, nil)
	assert.ErrorIs(t, err, ErrBadPageKind)
}

func TestLookupUniqueness(t *testing.T) {
	v := newTestVM(t, 4, 8)
	proc := newTestProcess(t, v)
	spt := proc.SPT()

	va := types.VirtAddr(0x1000_0000)
	require.NoError(t, spt.Declare(types.KindAnon, va, true, nil, nil))
	require.NoError(t, proc.Write(va, pagePattern(1)))

	first := spt.Lookup(va)
	spt.Remove(first)
	require.Nil(t, spt.Lookup(va), "removed page should be gone")

	// Redeclare and fault the same address; still exactly one page.
	require.NoError(t, spt.Declare(types.KindAnon, va, true, nil, nil))
	require.NoError(t, proc.Write(va, pagePattern(2)))
	second := spt.Lookup(va)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, spt.Len())
}

func TestDeclareStackClaimsImmediately(t *testing.T) {
	v := newTestVM(t, 4, 4)
	proc := newTestProcess(t, v)

	va := types.UserStackTop - types.PageSize
	require.NoError(t, proc.SPT().DeclareStack(va))

	page := proc.SPT().Lookup(va)
	require.NotNil(t, page)
	assert.True(t, page.IsResident(), "initial stack page should be claimed at declare time")
	assert.Equal(t, types.KindAnon, page.Kind())
	assert.True(t, page.stack)

	// The frame arrives zero-filled.
	buf := make([]byte, types.PageSize)
	require.NoError(t, proc.Read(va, buf))
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("stack page byte %d = %#x, want 0", i, b)
		}
	}
}

func TestTeardownReleasesEverything(t *testing.T) {
	v := newTestVM(t, 4, 8)
	proc := newTestProcess(t, v)
	spt := proc.SPT()

	base := types.VirtAddr(0x1000_0000)
	for i := 0; i < 6; i++ {
		va := base + types.VirtAddr(i*types.PageSize)
		require.NoError(t, spt.Declare(types.KindAnon, va, true, nil, nil))
	}
	// Fault some in; with 4 frames two of these evict.
	for i := 0; i < 6; i++ {
		require.NoError(t, proc.Write(base+types.VirtAddr(i*types.PageSize), pagePattern(byte(i))))
	}

	spt.Teardown()

	assert.Equal(t, 0, spt.Len())
	assert.Equal(t, 0, v.frames.allocated(), "teardown should release every frame")
	assert.Equal(t, 0, v.swap.usedSlots(), "teardown should release every swap slot")

	// Idempotent on an already-empty table.
	spt.Teardown()
	assert.Equal(t, 0, spt.Len())
}

func TestRemoveUnknownAddressIsNoSuchPage(t *testing.T) {
	v := newTestVM(t, 4, 4)
	proc := newTestProcess(t, v)

	err := proc.Unmap(types.VirtAddr(0x3000_0000))
	assert.True(t, errors.Is(err, ErrNoSuchPage), "unmap of unknown address should report no such page")
}
