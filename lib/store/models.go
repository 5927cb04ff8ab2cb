package store

import "time"

// Outcome statuses.
const (
	Written  = "written"  // the authoritative balance was written
	Fallback = "fallback" // retries exhausted, a zero balance was written
	Dropped  = "dropped"  // retries exhausted, nothing was written
	Failed   = "failed"   // retries exhausted and the fallback write failed too
)

// Outcome contains the fields saved to DB for a processed request.
type Outcome struct {
	ID        string    `json:"id" bson:"_id"`
	Address   string    `json:"address" bson:"address"`
	RequestID string    `json:"requestId,omitempty" bson:"requestId,omitempty"`
	Amount    string    `json:"amount" bson:"amount"`
	Balance   string    `json:"balance,omitempty" bson:"balance,omitempty"`
	Attempts  int       `json:"attempts" bson:"attempts"`
	Status    string    `json:"status" bson:"status"`
	TxHash    string    `json:"txHash,omitempty" bson:"txHash,omitempty"`
	Error     string    `json:"error,omitempty" bson:"error,omitempty"`
	Time      time.Time `json:"time" bson:"time"`
}

// Audit contains the fields saved to DB for a SetUserBalanceEvent.
type Audit struct {
	Address string    `json:"address" bson:"address"`
	Balance string    `json:"balance" bson:"balance"`
	Amount  string    `json:"amount" bson:"amount"`
	TxHash  string    `json:"txHash" bson:"txHash"`
	Index   uint      `json:"index" bson:"index"`
	Time    time.Time `json:"time" bson:"time"`
}
