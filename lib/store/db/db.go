// Package db implements the opening and graceful closing of database connections.
package db

import (
	"errors"
	"fmt"

	"github.com/forkedfinance/relayer/lib/store"
	"github.com/forkedfinance/relayer/lib/store/mongo"
	"github.com/forkedfinance/relayer/lib/store/postgres"
)

const (
	MONGODB  string = "mongodb"
	POSTGRES string = "postgresql"
)

// ErrUnknownDB is returned for database types not implemented.
var ErrUnknownDB = errors.New("unknown database type")

// New returns a new database connection according to the options (database type).
func New(options, connection string) (store.DB, error) {
	switch options {
	case MONGODB:
		return mongo.New(connection)
	case POSTGRES:
		return postgres.New(connection)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownDB, options)
}

// Close gracefully closes the database connection.
func Close(options string, dh store.DB) error {
	switch options {
	case MONGODB:
		return dh.(*mongo.Mongo).CloseMongo()
	case POSTGRES:
		return dh.(*postgres.Postgres).ClosePostgres()
	}

	return nil
}
