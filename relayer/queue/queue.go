// Package queue implements the pending work queue of the relayer: a bounded FIFO of balance requests waiting to be
// processed by the drain loop.
package queue

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/forkedfinance/relayer/lib/oracle/types"
)

// Errors returned by Push.
var (
	ErrFull    = errors.New("queue is full")
	ErrInvalid = errors.New("item requires an address and a value")
)

// Item is a pending balance request. Items are not modified once pushed.
type Item struct {
	ID        string          `json:"id"`
	Address   string          `json:"address"`
	Value     *big.Int        `json:"value"`
	Amount    decimal.Decimal `json:"amount"`
	RequestID *big.Int        `json:"requestId,omitempty"` // nil for contracts without request ids
	TxHash    string          `json:"txHash,omitempty"`
	Index     uint            `json:"index"`
	Received  time.Time       `json:"received"`
}

// NewItem returns the Item for an UpdateUserBalanceEvent.
func NewItem(u types.Update) Item {
	return Item{
		ID:        uuid.NewString(),
		Address:   u.Address,
		Value:     u.Value,
		Amount:    u.Amount,
		RequestID: u.ID,
		TxHash:    u.TxHash,
		Index:     u.Index,
		Received:  time.Now().UTC(),
	}
}

// Queue is a bounded FIFO safe for one producer and one consumer running in different goroutines. None of its
// operations block on I/O.
type Queue struct {
	l     sync.Mutex
	items []Item
	cap   int
}

// New returns an empty queue that holds at most capacity items.
func New(capacity int) *Queue {
	return &Queue{cap: capacity}
}

// Push appends it to the tail. It fails with ErrInvalid for items without address or value and with ErrFull when the
// queue is at capacity, leaving the queue untouched.
func (q *Queue) Push(it Item) error {
	if it.Address == "" || it.Value == nil {
		return ErrInvalid
	}

	q.l.Lock()
	defer q.l.Unlock()

	if len(q.items) >= q.cap {
		return ErrFull
	}

	q.items = append(q.items, it)

	return nil
}

// PopBatch removes and returns up to max items from the head, in order.
func (q *Queue) PopBatch(max int) []Item {
	q.l.Lock()
	defer q.l.Unlock()

	n := max
	if n > len(q.items) {
		n = len(q.items)
	}

	if n <= 0 {
		return nil
	}

	out := make([]Item, n)
	copy(out, q.items[:n])

	// release references held by the backing array
	for i := 0; i < n; i++ {
		q.items[i] = Item{}
	}

	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}

	return out
}

// Len returns the number of items waiting.
func (q *Queue) Len() int {
	q.l.Lock()
	defer q.l.Unlock()

	return len(q.items)
}

// Cap returns the capacity of the queue.
func (q *Queue) Cap() int {
	return q.cap
}
