package queue

import (
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkedfinance/relayer/lib/oracle/types"
)

func item(i int) Item {
	return Item{ID: fmt.Sprint(i), Address: fmt.Sprintf("0x%d", i), Value: big.NewInt(int64(i))}
}

func TestFIFO(t *testing.T) {
	q := New(10)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(item(i)))
	}

	assert.Equal(t, 5, q.Len())

	b := q.PopBatch(3)
	require.Len(t, b, 3)
	assert.Equal(t, []string{"0", "1", "2"}, []string{b[0].ID, b[1].ID, b[2].ID})
	assert.Equal(t, 2, q.Len())

	// pushes between batches keep their order after the remaining ones
	require.NoError(t, q.Push(item(5)))

	b = q.PopBatch(3)
	require.Len(t, b, 3)
	assert.Equal(t, []string{"3", "4", "5"}, []string{b[0].ID, b[1].ID, b[2].ID})

	assert.Empty(t, q.PopBatch(3))
	assert.Empty(t, q.PopBatch(0))
	assert.Equal(t, 0, q.Len())
}

func TestBounds(t *testing.T) {
	q := New(2)
	require.NoError(t, q.Push(item(1)))
	require.NoError(t, q.Push(item(2)))
	assert.ErrorIs(t, q.Push(item(3)), ErrFull)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Cap())

	assert.ErrorIs(t, q.Push(Item{Address: "0x1"}), ErrInvalid)
	assert.ErrorIs(t, q.Push(Item{Value: big.NewInt(1)}), ErrInvalid)

	q.PopBatch(1)
	assert.NoError(t, q.Push(item(3)))
}

func TestConcurrentPushPop(t *testing.T) {
	const n = 1000

	q := New(n)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 0; i < n; i++ {
			_ = q.Push(item(i))
		}
	}()

	got := make([]Item, 0, n)
	for len(got) < n {
		got = append(got, q.PopBatch(7)...)
	}

	wg.Wait()

	for i, it := range got {
		if it.ID != fmt.Sprint(i) {
			t.Fatalf("item %d out of order: %s", i, it.ID)
		}
	}
}

func TestNewItem(t *testing.T) {
	u := types.Update{Address: "0xA", Value: big.NewInt(10_000_000), Amount: types.ToAmount(big.NewInt(10_000_000)),
		ID: big.NewInt(4), TxHash: "0xff", Index: 2}

	it := NewItem(u)
	assert.NotEmpty(t, it.ID)
	assert.Equal(t, "0xA", it.Address)
	assert.Equal(t, "10", it.Amount.String())
	assert.Equal(t, int64(4), it.RequestID.Int64())
	assert.Equal(t, uint(2), it.Index)
	assert.False(t, it.Received.IsZero())
	assert.NotEqual(t, it.ID, NewItem(u).ID)
}
