package relayer

import (
	"context"
	"log"
	"time"

	"github.com/forkedfinance/relayer/lib/oracle"
)

// Setter sends the setUserBalance transaction. *oracle.Oracle implements it.
type Setter interface {
	SetUserBalance(ctx context.Context, c oracle.Call) (string, error)
}

// ChainWriter commits balances on chain. Every call is bounded by timeout and its failures are logged and returned,
// so they consume a retry of the processor.
type ChainWriter struct {
	s       Setter
	timeout time.Duration
	m       *Metrics
}

// NewChainWriter returns a ChainWriter using s.
func NewChainWriter(s Setter, timeout time.Duration, m *Metrics) *ChainWriter {
	return &ChainWriter{s: s, timeout: timeout, m: m}
}

// Write sends one setUserBalance transaction and returns its hash.
func (w *ChainWriter) Write(ctx context.Context, c oracle.Call) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	hash, err := w.s.SetUserBalance(ctx, c)
	if err != nil {
		w.m.Writes.WithLabelValues("error").Inc()
		log.Printf("[writer] Error encountered while calling setUserBalance for %s: %v", c.User, err)

		return hash, err
	}

	w.m.Writes.WithLabelValues("ok").Inc()
	log.Printf("[writer] setUserBalance balance:%s user:%s id:%v amount:%s tx:%s", c.Balance, c.User, c.ID, c.Amount,
		hash)

	return hash, nil
}
