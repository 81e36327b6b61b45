package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProdMoon/go-vmm/internal/types"
)

func TestFaultOnUndeclaredAddressIsRejected(t *testing.T) {
	v := newTestVM(t, 4, 4)
	proc := newTestProcess(t, v)

	handled := proc.TryHandleFault(types.VirtAddr(0x1000_0000), true, false, true)
	assert.False(t, handled, "fault on an address with no page should be unhandled")
}

func TestFaultClaimsDeclaredPage(t *testing.T) {
	v := newTestVM(t, 4, 4)
	proc := newTestProcess(t, v)

	va := types.VirtAddr(0x1000_0000)
	require.NoError(t, proc.SPT().Declare(types.KindAnon, va, true, nil, nil))

	handled := proc.TryHandleFault(va+123, true, false, true)
	assert.True(t, handled, "fault on a declared page should be handled")
	assert.True(t, proc.SPT().Lookup(va).IsResident())
}

func TestWriteToReadOnlyPageIsProtectionViolation(t *testing.T) {
	v := newTestVM(t, 4, 4)
	proc := newTestProcess(t, v)

	va := types.VirtAddr(0x1000_0000)
	require.NoError(t, proc.SPT().Declare(types.KindAnon, va, false, nil, nil))

	// Read faults succeed on a read-only page.
	buf := make([]byte, 8)
	require.NoError(t, proc.Read(va, buf))

	// A user write is rejected and terminates the process.
	err := proc.Write(va, []byte{1})
	assert.ErrorIs(t, err, ErrNotWritable)
	assert.True(t, proc.Exited())
	assert.Equal(t, -1, proc.ExitStatus())
}

func TestStackGrowthOneWordBelowPointer(t *testing.T) {
	v := newTestVM(t, 8, 8)
	proc := newTestProcess(t, v)
	require.NoError(t, proc.SPT().DeclareStack(types.UserStackTop-types.PageSize))

	rsp := types.UserStackTop - types.PageSize - 64
	proc.SetStackPointer(rsp)

	handled := proc.TryHandleFault(rsp-types.WordSize, true, true, true)
	require.True(t, handled, "push one word below the stack pointer should grow the stack")

	page := proc.SPT().Lookup((rsp - types.WordSize).PageDown())
	require.NotNil(t, page)
	assert.True(t, page.IsResident())
	assert.True(t, page.Writable())
}

func TestStackGrowthFillsGapLazily(t *testing.T) {
	v := newTestVM(t, 8, 8)
	proc := newTestProcess(t, v)
	require.NoError(t, proc.SPT().DeclareStack(types.UserStackTop-types.PageSize))

	// Fault four pages below the existing stack.
	rsp := types.UserStackTop - 5*types.PageSize
	proc.SetStackPointer(rsp)

	handled := proc.TryHandleFault(rsp+16, true, true, true)
	require.True(t, handled)

	// Every page between the target and the old stack is declared,
	// but only the triggering page is claimed.
	target := (rsp + 16).PageDown()
	require.NotNil(t, proc.SPT().Lookup(target))
	assert.True(t, proc.SPT().Lookup(target).IsResident())
	for va := target + types.PageSize; va < types.UserStackTop-types.PageSize; va += types.PageSize {
		page := proc.SPT().Lookup(va)
		require.NotNil(t, page, "gap page %#x should be declared", va)
		assert.True(t, page.IsLazy(), "gap page %#x should stay lazy", va)
	}
}

func TestStackGrowthBelowLimitIsRejected(t *testing.T) {
	v := newTestVM(t, 8, 8)
	proc := newTestProcess(t, v)
	require.NoError(t, proc.SPT().DeclareStack(types.UserStackTop-types.PageSize))

	proc.SetStackPointer(v.StackBase() + types.PageSize)

	// One page below the stack size limit: not growth, and no page
	// is declared there, so the fault is a genuine one.
	addr := v.StackBase() - types.PageSize
	handled := proc.TryHandleFault(addr, true, true, true)
	assert.False(t, handled, "fault below the stack size limit should be rejected")
	assert.Nil(t, proc.SPT().Lookup(addr.PageDown()))
}

func TestEvictedStackPageIsClaimedNotRedeclared(t *testing.T) {
	v := newTestVM(t, 1, 4)
	proc := newTestProcess(t, v)
	require.NoError(t, proc.SPT().DeclareStack(types.UserStackTop-types.PageSize))

	stackVA := types.UserStackTop - types.PageSize
	proc.SetStackPointer(stackVA)
	require.NoError(t, proc.Write(stackVA, []byte("stack bytes")))

	// Evict the stack page with an unrelated claim.
	other := types.VirtAddr(0x1000_0000)
	require.NoError(t, proc.SPT().Declare(types.KindAnon, other, true, nil, nil))
	require.NoError(t, proc.Write(other, pagePattern(1)))
	require.True(t, proc.SPT().Lookup(stackVA).IsSwapped())

	before := proc.SPT().Len()
	handled := proc.TryHandleFault(stackVA+8, true, true, true)
	require.True(t, handled, "fault on the evicted stack page should be handled")
	assert.Equal(t, before, proc.SPT().Len(), "no new page should be declared")

	buf := make([]byte, 11)
	require.NoError(t, proc.Read(stackVA, buf))
	assert.Equal(t, "stack bytes", string(buf))
}
