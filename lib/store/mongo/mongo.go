// Package mongo implements the store interface for MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/forkedfinance/relayer/lib/store"
)

// Database and collection names.
const (
	database = "relayer"
	outcomes = "outcomes"
	audit    = "audit"
)

const timeout = 5 * time.Second

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

// SaveOutcome inserts or replaces the outcome with the same ID.
func (m *Mongo) SaveOutcome(o store.Outcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := m.c.Database(database).Collection(outcomes).ReplaceOne(ctx, bson.M{"_id": o.ID}, o,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("could not save outcome in db: %w", err)
	}

	return nil
}

// GetOutcomes returns the last limit outcomes for address, newest first.
func (m *Mongo) GetOutcomes(address string, limit int) ([]store.Outcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "time", Value: -1}}).SetLimit(int64(limit))

	cur, err := m.c.Database(database).Collection(outcomes).Find(ctx, bson.M{"address": address}, opts)
	if err != nil {
		return nil, fmt.Errorf("error getting outcomes from db: %w", err)
	}

	res := []store.Outcome{}
	if err = cur.All(ctx, &res); err != nil {
		return nil, fmt.Errorf("error decoding outcomes: %w", err)
	}

	if len(res) == 0 {
		return res, store.ErrDataNotFound
	}

	return res, nil
}

// SaveAudit inserts a settled balance record.
func (m *Mongo) SaveAudit(a store.Audit) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, err := m.c.Database(database).Collection(audit).InsertOne(ctx, a); err != nil {
		return fmt.Errorf("could not insert audit in db: %w", err)
	}

	return nil
}
