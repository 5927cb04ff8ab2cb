// Package relayer keeps the on-chain balance oracle in sync with the balance service: it listens to the oracle
// contract events, queues the balance update requests and drains the queue on a fixed interval, looking up each
// balance over HTTP and writing it back with setUserBalance.
package relayer

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/forkedfinance/relayer/lib/config"
	"github.com/forkedfinance/relayer/lib/msg"
	"github.com/forkedfinance/relayer/lib/store"
	"github.com/forkedfinance/relayer/relayer/queue"
)

const (
	httpTimeout     = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Relayer wires the listener, the queue, the drain loop and the status API.
type Relayer struct {
	conf config.ServiceConfig
	reg  *prometheus.Registry
	m    *Metrics
	q    *queue.Queue
	rec  recorder
	ls   *Listener
	p    *Processor
	d    *Drain
}

// New returns a relayer reading events from src, balances from lookup and writing them with s. db and mb are optional
// and may be nil.
func New(conf config.ServiceConfig, src Source, lookup Lookup, s Setter, db store.DB, mb msg.MsgBroker) (*Relayer,
	error) {
	r := &Relayer{
		conf: conf,
		reg:  prometheus.NewRegistry(),
		q:    queue.New(conf.QueueCap),
		rec:  recorder{db: db, mb: mb},
	}

	r.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.m = NewMetrics(r.reg)

	var err error
	if r.ls, err = NewListener(src, r.q, r.m, r.rec, conf.Dedupe); err != nil {
		return nil, err
	}

	w := NewChainWriter(s, time.Duration(conf.WriteTimeout)*time.Millisecond, r.m)
	b := Backoff{
		Base: time.Duration(conf.BackoffBase) * time.Millisecond,
		Max:  time.Duration(conf.BackoffMax) * time.Millisecond,
	}
	r.p = NewProcessor(lookup, w, conf.Retries, b, conf.Policy, r.m, r.rec)
	r.d = NewDrain(r.q, r.p, conf.Chunk, time.Duration(conf.Poll)*time.Millisecond, r.m)

	return r, nil
}

// Run installs the listener, starts the drain loop and serves the status API on the configured port until ctx is
// done. A listener that cannot be installed does not stop the relayer: it keeps serving and reports itself unhealthy.
func (r *Relayer) Run(ctx context.Context) error {
	if err := r.ls.Install(ctx); err != nil {
		log.Printf("[relayer] Error installing event listeners: %v", err)
	}

	srv := &http.Server{
		Handler:      r.router(),
		Addr:         ":" + r.conf.Port,
		WriteTimeout: httpTimeout,
		ReadTimeout:  httpTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.d.Run(gctx)
	})

	g.Go(func() error {
		log.Printf("[relayer] Listening to API http requests on port %s", r.conf.Port)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		log.Println("[relayer] Shutting down")
		r.ls.Uninstall()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
