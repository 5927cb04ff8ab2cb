// Package msg defines the interface for different message brokers. The relayer publishes the outcome of every
// processed request and the settled balances reported by the contract so other services can follow them.
package msg

import (
	"sync"

	"github.com/forkedfinance/relayer/lib/store"
)

// Exchange is the name of the topic exchange the relayer publishes to.
const Exchange = "relayer"

// Routing key prefixes.
const (
	OUTCOME = "outcome"
	AUDIT   = "audit"
)

type MsgBroker interface {
	Setup(interface{}) error
	Close() error

	// methods for the relayer
	SendOutcome(o store.Outcome) error
	SendAudit(a store.Audit) error

	// methods for consumers of the relayer
	GetOutcomes(queue string, mut *sync.Mutex) (<-chan store.Outcome, <-chan error, error)
}
