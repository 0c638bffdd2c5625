package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tickforge/internal/common"
)

func TestAllocReuseAndRelease(t *testing.T) {
	a := New(2)
	assert.True(t, a.HasFreeSlot())

	idx1, ok := a.Alloc(Order{OrderID: "a", QtyOpen: 10, QtyTotal: 10, Side: common.Buy})
	assert.True(t, ok)

	idx2, ok := a.Alloc(Order{OrderID: "b", QtyOpen: 5, QtyTotal: 5, Side: common.Sell})
	assert.True(t, ok)
	assert.NotEqual(t, idx1, idx2)

	assert.False(t, a.HasFreeSlot())
	_, ok = a.Alloc(Order{OrderID: "c"})
	assert.False(t, ok, "arena should reject alloc when full")

	assert.True(t, a.IsLive("a"))
	a.Release(idx1)
	assert.False(t, a.IsLive("a"))
	assert.True(t, a.HasFreeSlot())

	idx3, ok := a.Alloc(Order{OrderID: "c", QtyOpen: 1, QtyTotal: 1})
	assert.True(t, ok)
	assert.Equal(t, idx1, idx3, "released slot should be reused")
}

func TestDuplicateOrderDetection(t *testing.T) {
	a := New(4)
	_, ok := a.Alloc(Order{OrderID: "dup"})
	assert.True(t, ok)
	assert.True(t, a.IsLive("dup"))

	idx, ok := a.Lookup("dup")
	assert.True(t, ok)
	assert.Equal(t, "dup", a.Get(idx).OrderID)
}
