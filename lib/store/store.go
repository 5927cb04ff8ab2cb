// Package store defines the interface for database implementations used by the relayer to keep the outcome of every
// processed request and the audit trail of settled balances.
package store

import (
	"errors"
)

// DB defines required methods for the relayer.
type DB interface {
	// outcomes of processed requests
	SaveOutcome(Outcome) error
	GetOutcomes(address string, limit int) ([]Outcome, error)
	// settled balances reported by the contract
	SaveAudit(Audit) error
}

// Errors returned
var (
	ErrDataNotFound = errors.New("data was not found in store")
)
