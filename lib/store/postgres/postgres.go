// Package postgres implements the store interface for PostgreSQL.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" //nolint:gci // load the postgres driver that is used by the system

	"github.com/forkedfinance/relayer/lib/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	id         TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	amount     TEXT NOT NULL,
	balance    TEXT NOT NULL DEFAULT '',
	attempts   INTEGER NOT NULL,
	status     TEXT NOT NULL,
	tx_hash    TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT '',
	time       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS outcomes_address_time ON outcomes (address, time DESC);
CREATE TABLE IF NOT EXISTS audit (
	address   TEXT NOT NULL,
	balance   TEXT NOT NULL,
	amount    TEXT NOT NULL,
	tx_hash   TEXT NOT NULL,
	log_index INTEGER NOT NULL,
	time      TIMESTAMPTZ NOT NULL
);`

type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in 'connection' and creates the tables if
// they do not exist.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	if _, err = db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("cannot create schema: %w", err)
	}

	return &Postgres{db: db}, nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// SaveOutcome inserts or replaces the outcome with the same ID.
func (p *Postgres) SaveOutcome(o store.Outcome) error {
	_, err := p.db.Exec(`INSERT INTO outcomes
		(id, address, request_id, amount, balance, attempts, status, tx_hash, error, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET balance = $5, attempts = $6, status = $7, tx_hash = $8, error = $9, time = $10`,
		o.ID, o.Address, o.RequestID, o.Amount, o.Balance, o.Attempts, o.Status, o.TxHash, o.Error, o.Time)
	if err != nil {
		return fmt.Errorf("could not save outcome in db: %w", err)
	}

	return nil
}

// GetOutcomes returns the last limit outcomes for address, newest first.
func (p *Postgres) GetOutcomes(address string, limit int) ([]store.Outcome, error) {
	rows, err := p.db.Query(`SELECT id, address, request_id, amount, balance, attempts, status, tx_hash, error, time
		FROM outcomes WHERE address = $1 ORDER BY time DESC LIMIT $2`, address, limit)
	if err != nil {
		return nil, fmt.Errorf("error getting outcomes from db: %w", err)
	}
	defer rows.Close()

	res := []store.Outcome{}

	for rows.Next() {
		var o store.Outcome
		if err = rows.Scan(&o.ID, &o.Address, &o.RequestID, &o.Amount, &o.Balance, &o.Attempts, &o.Status, &o.TxHash,
			&o.Error, &o.Time); err != nil {
			return nil, fmt.Errorf("error scanning outcome: %w", err)
		}

		res = append(res, o)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading outcomes: %w", err)
	}

	if len(res) == 0 {
		return res, store.ErrDataNotFound
	}

	return res, nil
}

// SaveAudit inserts a settled balance record.
func (p *Postgres) SaveAudit(a store.Audit) error {
	_, err := p.db.Exec(`INSERT INTO audit (address, balance, amount, tx_hash, log_index, time)
		VALUES ($1, $2, $3, $4, $5, $6)`, a.Address, a.Balance, a.Amount, a.TxHash, a.Index, a.Time)
	if err != nil {
		return fmt.Errorf("could not insert audit in db: %w", err)
	}

	return nil
}
