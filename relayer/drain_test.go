package relayer

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkedfinance/relayer/lib/store"
	"github.com/forkedfinance/relayer/relayer/queue"
)

// recordingHandler records the processed item IDs and optionally cancels ctx after the first one.
type recordingHandler struct {
	l      sync.Mutex
	ids    []string
	cancel context.CancelFunc
}

func (h *recordingHandler) Process(ctx context.Context, it queue.Item) store.Outcome {
	h.l.Lock()
	defer h.l.Unlock()

	h.ids = append(h.ids, it.ID)
	if h.cancel != nil {
		h.cancel()
	}

	return store.Outcome{ID: it.ID, Address: it.Address, Status: store.Written, Attempts: 1}
}

func (h *recordingHandler) processed() []string {
	h.l.Lock()
	defer h.l.Unlock()

	return append([]string(nil), h.ids...)
}

func fill(t *testing.T, q *queue.Queue, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		require.NoError(t, q.Push(queue.Item{ID: fmt.Sprint(i), Address: userAddr.Hex(), Value: big.NewInt(1)}))
	}
}

func TestTick(t *testing.T) {
	q := queue.New(10)
	h := &recordingHandler{}
	d := NewDrain(q, h, 3, time.Hour, testMetric())

	fill(t, q, 5)

	assert.Equal(t, 3, d.Tick(context.Background()))
	assert.Equal(t, []string{"0", "1", "2"}, h.processed())
	assert.Equal(t, 2, q.Len())

	assert.Equal(t, 2, d.Tick(context.Background()))
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, h.processed())

	assert.Equal(t, 0, d.Tick(context.Background()))
	assert.Len(t, h.processed(), 5)
}

func TestTickCanceled(t *testing.T) {
	q := queue.New(10)
	ctx, cancel := context.WithCancel(context.Background())
	h := &recordingHandler{cancel: cancel}
	d := NewDrain(q, h, 3, time.Hour, testMetric())

	fill(t, q, 3)

	assert.Equal(t, 1, d.Tick(ctx))
	assert.Equal(t, []string{"0"}, h.processed())
}

func TestRun(t *testing.T) {
	q := queue.New(10)
	h := &recordingHandler{}
	d := NewDrain(q, h, 3, 10*time.Millisecond, testMetric())

	fill(t, q, 7)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)

	go func() { done <- d.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(h.processed()) == 7 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6"}, h.processed())

	cancel()
	assert.NoError(t, <-done)
}
