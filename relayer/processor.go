package relayer

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/forkedfinance/relayer/lib/balance"
	"github.com/forkedfinance/relayer/lib/config"
	"github.com/forkedfinance/relayer/lib/oracle"
	"github.com/forkedfinance/relayer/lib/store"
	"github.com/forkedfinance/relayer/relayer/queue"
)

// Lookup gets the raw balance response for an address. *balance.Client implements it.
type Lookup interface {
	Get(ctx context.Context, address string) ([]byte, error)
}

// Backoff computes the wait between attempts: Base doubled after every failed attempt, up to Max. A zero Base
// disables waiting.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait after the failed attempt number attempt (1 based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 || attempt < 1 {
		return 0
	}

	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}

	if b.Max > 0 && d > b.Max {
		return b.Max
	}

	return d
}

// Processor looks up the authoritative balance of a request and writes it on chain, retrying the whole step up to
// retries times.
type Processor struct {
	lookup  Lookup
	w       *ChainWriter
	retries int
	backoff Backoff
	policy  string
	m       *Metrics
	rec     recorder
}

// NewProcessor returns a processor. policy is config.PolicyDrop or config.PolicyZero.
func NewProcessor(lookup Lookup, w *ChainWriter, retries int, backoff Backoff, policy string, m *Metrics,
	rec recorder) *Processor {
	return &Processor{
		lookup:  lookup,
		w:       w,
		retries: retries,
		backoff: backoff,
		policy:  policy,
		m:       m,
		rec:     rec,
	}
}

// Process runs the request it and returns its outcome, which is also recorded. It never returns an error: failures
// end up in the outcome status.
func (p *Processor) Process(ctx context.Context, it queue.Item) store.Outcome {
	o := store.Outcome{
		ID:      it.ID,
		Address: it.Address,
		Amount:  it.Amount.String(),
	}
	if it.RequestID != nil {
		o.RequestID = it.RequestID.String()
	}

	var err error

	for attempt := 1; attempt <= p.retries; attempt++ {
		o.Attempts = attempt

		var bal *big.Int

		var hash string

		if bal, hash, err = p.attempt(ctx, it); err == nil {
			o.Status, o.Balance, o.TxHash = store.Written, bal.String(), hash

			break
		}

		log.Printf("[processor] %s user:%s attempt %d/%d failed: %v", it.ID, it.Address, attempt, p.retries, err)

		if attempt < p.retries {
			if errWait := p.wait(ctx, attempt); errWait != nil {
				err = errWait

				break
			}
		}
	}

	if o.Status == "" {
		p.exhausted(ctx, it, &o, err)
	}

	o.Time = time.Now().UTC()

	p.m.Outcomes.WithLabelValues(o.Status).Inc()
	p.m.Attempts.Observe(float64(o.Attempts))
	p.rec.outcome(o)

	return o
}

// attempt runs one lookup and write.
func (p *Processor) attempt(ctx context.Context, it queue.Item) (*big.Int, string, error) {
	start := time.Now()
	body, err := p.lookup.Get(ctx, it.Address)

	result := "ok"
	if err != nil {
		result = "error"
	}

	p.m.Lookups.WithLabelValues(result).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, "", err
	}

	bal, err := balance.Parse(body)
	if err != nil {
		return nil, "", err
	}

	hash, err := p.w.Write(ctx, oracle.Call{Balance: bal, User: it.Address, ID: it.RequestID, Amount: it.Value})
	if err != nil {
		return nil, "", err
	}

	return bal, hash, nil
}

// exhausted applies the exhaustion policy once all the attempts failed with err.
func (p *Processor) exhausted(ctx context.Context, it queue.Item, o *store.Outcome, err error) {
	o.Status = store.Dropped
	if err != nil {
		o.Error = err.Error()
	}

	if p.policy != config.PolicyZero || ctx.Err() != nil {
		log.Printf("[processor] %s user:%s dropped after %d attempts", it.ID, it.Address, o.Attempts)

		return
	}

	hash, errW := p.w.Write(ctx, oracle.Call{Balance: new(big.Int), User: it.Address, ID: it.RequestID,
		Amount: it.Value})
	if errW != nil {
		o.Status = store.Failed
		o.Error = fmt.Sprintf("%s; fallback: %v", o.Error, errW)
		log.Printf("[processor] %s user:%s fallback write failed: %v", it.ID, it.Address, errW)

		return
	}

	o.Status, o.Balance, o.TxHash = store.Fallback, "0", hash
	log.Printf("[processor] %s user:%s wrote zero balance after %d attempts", it.ID, it.Address, o.Attempts)
}

// wait sleeps the backoff delay or until ctx is done.
func (p *Processor) wait(ctx context.Context, attempt int) error {
	d := p.backoff.Delay(attempt)
	if d == 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
