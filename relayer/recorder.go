package relayer

import (
	"log"

	"github.com/forkedfinance/relayer/lib/msg"
	"github.com/forkedfinance/relayer/lib/store"
)

// recorder saves and publishes outcomes and audits. Both the database and the broker are optional and their
// failures are only logged.
type recorder struct {
	db store.DB
	mb msg.MsgBroker
}

func (r recorder) outcome(o store.Outcome) {
	if r.db != nil {
		if err := r.db.SaveOutcome(o); err != nil {
			log.Printf("[recorder] Error saving outcome %s to DB: %v", o.ID, err)
		}
	}

	if r.mb != nil {
		if err := r.mb.SendOutcome(o); err != nil {
			log.Printf("[recorder] Error sending outcome %s to message broker: %v", o.ID, err)
		}
	}
}

func (r recorder) audit(a store.Audit) {
	if r.db != nil {
		if err := r.db.SaveAudit(a); err != nil {
			log.Printf("[recorder] Error saving audit of %s to DB: %v", a.Address, err)
		}
	}

	if r.mb != nil {
		if err := r.mb.SendAudit(a); err != nil {
			log.Printf("[recorder] Error sending audit of %s to message broker: %v", a.Address, err)
		}
	}
}
