package relayer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/forkedfinance/relayer/lib/oracle/types"
	"github.com/forkedfinance/relayer/lib/store"
	"github.com/forkedfinance/relayer/relayer/queue"
)

// Events the listener subscribes to.
var Events = []string{types.UpdateUserBalance, types.SetUserBalance}

// Source delivers and decodes the contract logs. *oracle.Oracle implements it.
type Source interface {
	Subscribe(ctx context.Context, name string) (<-chan ethtypes.Log, event.Subscription, error)
	Unpack(name string, l ethtypes.Log) (map[string]interface{}, error)
}

// errDuplicate is returned by handle for logs already seen or removed by a reorg.
var errDuplicate = errors.New("duplicate or removed log")

// Listener turns the contract events into queue items (UpdateUserBalanceEvent) or audit records
// (SetUserBalanceEvent). It holds at most one subscription per event name.
type Listener struct {
	src  Source
	q    *queue.Queue
	m    *Metrics
	rec  recorder
	seen *lru.Cache[string, struct{}]

	il   sync.Mutex // serializes Install and Uninstall
	l    sync.Mutex // guards subs
	subs map[string]event.Subscription
	wg   sync.WaitGroup
}

// NewListener returns a listener pushing to q. dedupe is the number of recent logs remembered to drop replays.
func NewListener(src Source, q *queue.Queue, m *Metrics, rec recorder, dedupe int) (*Listener, error) {
	if dedupe <= 0 {
		dedupe = 1
	}

	seen, err := lru.New[string, struct{}](dedupe)
	if err != nil {
		return nil, fmt.Errorf("listener: %w", err)
	}

	return &Listener{
		src:  src,
		q:    q,
		m:    m,
		rec:  rec,
		seen: seen,
		subs: make(map[string]event.Subscription),
	}, nil
}

// Install removes the subscriptions previously installed and subscribes again to all Events. If a subscription
// fails, the ones already installed are kept and the error is returned.
func (ls *Listener) Install(ctx context.Context) error {
	ls.il.Lock()
	defer ls.il.Unlock()

	ls.uninstall()

	for _, name := range Events {
		logs, sub, err := ls.src.Subscribe(ctx, name)
		if err != nil {
			return fmt.Errorf("listener: %w", err)
		}

		ls.l.Lock()
		ls.subs[name] = sub
		ls.l.Unlock()

		ls.wg.Add(1)

		go ls.run(name, logs, sub)

		log.Printf("[listener] Listening to %s", name)
	}

	return nil
}

// Uninstall removes all the subscriptions and waits for their handlers to return.
func (ls *Listener) Uninstall() {
	ls.il.Lock()
	defer ls.il.Unlock()

	ls.uninstall()
}

func (ls *Listener) uninstall() {
	ls.l.Lock()
	subs := ls.subs
	ls.subs = make(map[string]event.Subscription)
	ls.l.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	ls.wg.Wait()
}

// Listening returns true when every event has a live subscription.
func (ls *Listener) Listening() bool {
	ls.l.Lock()
	defer ls.l.Unlock()

	for _, name := range Events {
		if _, ok := ls.subs[name]; !ok {
			return false
		}
	}

	return true
}

// run handles the logs of one subscription until it is unsubscribed or fails.
func (ls *Listener) run(name string, logs <-chan ethtypes.Log, sub event.Subscription) {
	defer ls.wg.Done()

	for {
		select {
		case err := <-sub.Err():
			if err != nil {
				log.Printf("[listener] %s subscription error: %v. Not listening anymore", name, err)
			}

			ls.l.Lock()
			if ls.subs[name] == sub {
				delete(ls.subs, name)
			}
			ls.l.Unlock()

			return
		case l := <-logs:
			if err := ls.handle(name, l); err != nil && !errors.Is(err, errDuplicate) {
				log.Printf("[listener] Dropping %s tx:%s index:%d: %v", name, l.TxHash.Hex(), l.Index, err)
			}
		}
	}
}

// handle processes one log of the event name.
func (ls *Listener) handle(name string, l ethtypes.Log) error {
	ls.m.Events.WithLabelValues(name).Inc()
	log.Printf("[listener] Received %s tx:%s index:%d", name, l.TxHash.Hex(), l.Index)

	key := fmt.Sprintf("%s:%d", l.TxHash.Hex(), l.Index)
	if l.Removed || ls.seen.Contains(key) {
		ls.m.Duplicates.Inc()

		return errDuplicate
	}

	ls.seen.Add(key, struct{}{})

	fields, err := ls.src.Unpack(name, l)
	if err != nil {
		ls.m.Malformed.WithLabelValues(name).Inc()

		return err
	}

	switch name {
	case types.UpdateUserBalance:
		u, err := types.DecodeUpdate(fields)
		if err != nil {
			ls.m.Malformed.WithLabelValues(name).Inc()

			return err
		}

		u.TxHash, u.Index = l.TxHash.Hex(), l.Index

		log.Printf("* New Update User Balance Event. Amount: %s with id %v at address: %s", u.Amount, u.ID, u.Address)

		if err = ls.q.Push(queue.NewItem(u)); err != nil {
			if errors.Is(err, queue.ErrFull) {
				ls.m.Shed.Inc()
			}

			return err
		}

		ls.m.QueueDepth.Set(float64(ls.q.Len()))
	case types.SetUserBalance:
		s, err := types.DecodeSettled(fields)
		if err != nil {
			ls.m.Malformed.WithLabelValues(name).Inc()

			return err
		}

		log.Printf("* New Set User Balance Event. Amount: %s with a total balance of %s at address: %s", s.Amount,
			s.Balance, s.Address)

		ls.rec.audit(store.Audit{
			Address: s.Address,
			Balance: s.Balance.String(),
			Amount:  s.Amount.String(),
			TxHash:  l.TxHash.Hex(),
			Index:   l.Index,
			Time:    time.Now().UTC(),
		})
	default:
		return fmt.Errorf("%w: %s", types.ErrUnknownEvent, name)
	}

	return nil
}
