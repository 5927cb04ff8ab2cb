// Package relayer and its sub-packages implement an off-chain relayer that keeps a balance oracle contract in sync
// with the authoritative balance service.
/*
The relayer is a single microservice (cmd/relayer) that can be started running cmd/relayer/main.go with a JSON config
file (see cmd/conf.json), a .env file or RELAYER_ environment variables.

Architecture

The oracle contract emits UpdateUserBalanceEvent when the balance of a user has to be refreshed. The relayer subscribes
to the contract events (package lib/oracle) and pushes every valid request to an in-memory bounded FIFO queue (package
relayer/queue). Requests are never processed inline with event delivery.

A drain loop (package relayer) takes up to a chunk of requests from the queue on a fixed interval and processes them
one after the other: the balance of the user is requested to the balance service (package lib/balance) and written
back to the contract calling setUserBalance. Both steps are retried together a bounded number of times. When all the
attempts fail, the configured exhaustion policy either drops the request or writes a zero balance once.

The contract confirms every written balance with SetUserBalanceEvent, which the relayer logs and audits.

Outcomes and audits can be persisted to a database (package lib/store, MongoDB or PostgreSQL) and published to a
message broker (package lib/msg, AMQP) so other services can follow them. Both are optional.

Status

The relayer serves a small HTTP API: "/" for liveness, "/health" for the listener and queue status, "/outcomes/{address}"
for the last outcomes of an address when a database is configured and "/metrics" for Prometheus.
*/
package relayer
