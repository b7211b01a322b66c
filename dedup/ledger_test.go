package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordTwice(t *testing.T) {
	ledger := NewLedger(10)
	assert.False(t, ledger.Seen("1/100"))
	assert.True(t, ledger.Record("1/100"))
	assert.True(t, ledger.Seen("1/100"))
	assert.False(t, ledger.Record("1/100"))
	assert.Equal(t, 1, ledger.Len())
}

func TestEvictionIsOldestFirst(t *testing.T) {
	ledger := NewLedger(3)
	for i := 1; i <= 3; i++ {
		ledger.Record(fmt.Sprintf("key-%d", i))
	}
	assert.Equal(t, 3, ledger.Len())

	// a fourth key pushes out the first
	ledger.Record("key-4")
	assert.Equal(t, 3, ledger.Len())
	assert.False(t, ledger.Seen("key-1"))
	assert.True(t, ledger.Seen("key-2"))
	assert.True(t, ledger.Seen("key-3"))
	assert.True(t, ledger.Seen("key-4"))
}

func TestKeysOldestToNewest(t *testing.T) {
	ledger := NewLedger(3)
	assert.Empty(t, ledger.Keys())

	ledger.Record("a")
	ledger.Record("b")
	assert.Equal(t, []string{"a", "b"}, ledger.Keys())

	ledger.Record("c")
	ledger.Record("d")
	assert.Equal(t, []string{"b", "c", "d"}, ledger.Keys())
}

func TestLoadRoundTrip(t *testing.T) {
	ledger := NewLedger(10)
	ledger.Record("a")
	ledger.Record("b")
	ledger.Record("c")

	restored := NewLedger(10)
	restored.Load(ledger.Keys())
	assert.Equal(t, ledger.Keys(), restored.Keys())
	assert.True(t, restored.Seen("b"))
}

func TestDefaultCapacity(t *testing.T) {
	ledger := NewLedger(0)
	assert.Equal(t, DefaultCapacity, ledger.capacity)
}
