package relayer

import (
	"context"
	"log"
	"time"

	"github.com/forkedfinance/relayer/lib/store"
	"github.com/forkedfinance/relayer/relayer/queue"
)

// Handler processes one queued request.
type Handler interface {
	Process(ctx context.Context, it queue.Item) store.Outcome
}

// Drain takes up to chunk requests from the queue on every tick and processes them one after the other, in FIFO
// order. Ticks never overlap: a tick that takes longer than the interval delays the next one.
type Drain struct {
	q        *queue.Queue
	h        Handler
	chunk    int
	interval time.Duration
	m        *Metrics
}

// NewDrain returns a drain loop over q.
func NewDrain(q *queue.Queue, h Handler, chunk int, interval time.Duration, m *Metrics) *Drain {
	return &Drain{q: q, h: h, chunk: chunk, interval: interval, m: m}
}

// Tick processes the next chunk of the queue and returns the number of requests processed. Requests left in the
// chunk when ctx is done are not processed.
func (d *Drain) Tick(ctx context.Context) int {
	d.m.Drained.Inc()

	items := d.q.PopBatch(d.chunk)
	defer d.m.QueueDepth.Set(float64(d.q.Len()))

	if len(items) == 0 {
		return 0
	}

	log.Printf("[drain] Processing %d of %d queued requests", len(items), len(items)+d.q.Len())

	n := 0

	for _, it := range items {
		if ctx.Err() != nil {
			log.Printf("[drain] Stopping with %d requests of the chunk not processed", len(items)-n)

			break
		}

		o := d.h.Process(ctx, it)
		log.Printf("[drain] %s user:%s %s after %d attempts", o.ID, o.Address, o.Status, o.Attempts)

		n++
	}

	return n
}

// Run ticks every interval until ctx is done.
func (d *Drain) Run(ctx context.Context) error {
	t := time.NewTicker(d.interval)
	defer t.Stop()

	log.Printf("[drain] Draining %d requests every %v", d.chunk, d.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[drain] Stopped with %d requests queued", d.q.Len())

			return nil
		case <-t.C:
			d.Tick(ctx)
		}
	}
}
