package relayer

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/forkedfinance/relayer/lib/oracle"
	"github.com/forkedfinance/relayer/lib/store"
)

var (
	errFake    = errors.New("fake failure")
	errNoData  = errors.New("no data for log")
	userAddr   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	otherAddr  = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	testMetric = func() *Metrics { return NewMetrics(prometheus.NewRegistry()) }
)

// fakeSub is a subscription the test can fail.
type fakeSub struct {
	logs chan ethtypes.Log
	fail chan error
	sub  event.Subscription
}

// fakeSource hands out subscriptions and unpacks logs from the fields registered by tx hash.
type fakeSource struct {
	l      sync.Mutex
	subs   map[string][]*fakeSub
	active int
	err    error
	fields map[common.Hash]map[string]interface{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		subs:   make(map[string][]*fakeSub),
		fields: make(map[common.Hash]map[string]interface{}),
	}
}

func (f *fakeSource) Subscribe(ctx context.Context, name string) (<-chan ethtypes.Log, event.Subscription, error) {
	f.l.Lock()
	defer f.l.Unlock()

	if f.err != nil {
		return nil, nil, f.err
	}

	fs := &fakeSub{logs: make(chan ethtypes.Log), fail: make(chan error, 1)}
	fs.sub = event.NewSubscription(func(quit <-chan struct{}) error {
		defer func() {
			f.l.Lock()
			f.active--
			f.l.Unlock()
		}()

		select {
		case <-quit:
			return nil
		case err := <-fs.fail:
			return err
		}
	})

	f.active++
	f.subs[name] = append(f.subs[name], fs)

	return fs.logs, fs.sub, nil
}

func (f *fakeSource) Unpack(name string, l ethtypes.Log) (map[string]interface{}, error) {
	f.l.Lock()
	defer f.l.Unlock()

	fields, ok := f.fields[l.TxHash]
	if !ok {
		return nil, errNoData
	}

	return fields, nil
}

// last returns the latest subscription of the event name.
func (f *fakeSource) last(name string) *fakeSub {
	f.l.Lock()
	defer f.l.Unlock()

	s := f.subs[name]
	if len(s) == 0 {
		return nil
	}

	return s[len(s)-1]
}

func (f *fakeSource) count(name string) int {
	f.l.Lock()
	defer f.l.Unlock()

	return len(f.subs[name])
}

func (f *fakeSource) running() int {
	f.l.Lock()
	defer f.l.Unlock()

	return f.active
}

func (f *fakeSource) register(tx common.Hash, fields map[string]interface{}) {
	f.l.Lock()
	defer f.l.Unlock()

	f.fields[tx] = fields
}

// response is a scripted balance service reply.
type response struct {
	body string
	err  error
}

// fakeLookup replies the scripted responses in order, repeating the last one.
type fakeLookup struct {
	l     sync.Mutex
	resp  []response
	calls []string
}

func (f *fakeLookup) Get(ctx context.Context, address string) ([]byte, error) {
	f.l.Lock()
	defer f.l.Unlock()

	f.calls = append(f.calls, address)

	r := f.resp[len(f.resp)-1]
	if len(f.calls) <= len(f.resp) {
		r = f.resp[len(f.calls)-1]
	}

	return []byte(r.body), r.err
}

// fakeSetter records the calls and fails the first fails ones.
type fakeSetter struct {
	l     sync.Mutex
	fails int
	calls []oracle.Call
}

func (f *fakeSetter) SetUserBalance(ctx context.Context, c oracle.Call) (string, error) {
	f.l.Lock()
	defer f.l.Unlock()

	f.calls = append(f.calls, c)
	if len(f.calls) <= f.fails {
		return "", errFake
	}

	return common.BigToHash(big.NewInt(int64(len(f.calls)))).Hex(), nil
}

func (f *fakeSetter) written() []oracle.Call {
	f.l.Lock()
	defer f.l.Unlock()

	return append([]oracle.Call(nil), f.calls...)
}

// fakeDB keeps outcomes and audits in memory.
type fakeDB struct {
	l        sync.Mutex
	outcomes []store.Outcome
	audits   []store.Audit
}

func (f *fakeDB) SaveOutcome(o store.Outcome) error {
	f.l.Lock()
	defer f.l.Unlock()

	f.outcomes = append(f.outcomes, o)

	return nil
}

func (f *fakeDB) GetOutcomes(address string, limit int) ([]store.Outcome, error) {
	f.l.Lock()
	defer f.l.Unlock()

	res := []store.Outcome{}

	for i := len(f.outcomes) - 1; i >= 0 && len(res) < limit; i-- {
		if f.outcomes[i].Address == address {
			res = append(res, f.outcomes[i])
		}
	}

	if len(res) == 0 {
		return res, store.ErrDataNotFound
	}

	return res, nil
}

func (f *fakeDB) SaveAudit(a store.Audit) error {
	f.l.Lock()
	defer f.l.Unlock()

	f.audits = append(f.audits, a)

	return nil
}

func (f *fakeDB) savedAudits() []store.Audit {
	f.l.Lock()
	defer f.l.Unlock()

	return append([]store.Audit(nil), f.audits...)
}
