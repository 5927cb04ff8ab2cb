// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/streadway/amqp"

	"github.com/forkedfinance/relayer/lib/msg"
	"github.com/forkedfinance/relayer/lib/store"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	l    sync.Mutex // publishes come from the drain loop and the listener
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (*Amqp, error) {
	r := Amqp{}

	var err error

	if r.conn, err = amqp.Dial(uri); err != nil {
		return &r, err
	}

	log.Printf("Connected to %s", redact(uri))

	return &r, err
}

// redact hides the password of the uri for logging.
func redact(uri string) string {
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")

	if at < 0 || scheme < 0 {
		return uri
	}

	creds := uri[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		return uri[:scheme+3] + creds[:i] + ":***" + uri[at:]
	}

	return uri
}

// Setup obtains an amqp channel and declares the "relayer" topic exchange where outcomes and audits are published.
func (r *Amqp) Setup(x interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	return channel.ExchangeDeclare(msg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	r.l.Lock()
	defer r.l.Unlock()

	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Printf("Error closing amqp.Channel:%v", err)
		}

		r.ch = nil

		log.Printf("amqp.Channel closed!")
	}

	return r.conn.Close()
}

// publish marshals v to JSON and publishes it with the routing key.
func (r *Amqp) publish(key string, v interface{}) (err error) {
	var jsonDoc []byte
	if jsonDoc, err = json.Marshal(v); err != nil {
		return
	}

	r.l.Lock()
	defer r.l.Unlock()
	// obtain channel if not present
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return
		}
	}

	m := amqp.Publishing{
		Headers:     amqp.Table{"x-relayer-key": key},
		Body:        jsonDoc,
		ContentType: "application/json",
	}

	if err = r.ch.Publish(msg.Exchange, key, false, false, m); err != nil {
		log.Printf("Error publishing %s to message broker %v", key, err)
		// the channel is closed by the server on errors
		r.ch = nil
	}

	return
}

// SendOutcome publishes an outcome with routing key outcome.<status>.<address>
func (r *Amqp) SendOutcome(o store.Outcome) error {
	return r.publish(msg.OUTCOME+"."+o.Status+"."+o.Address, o)
}

// SendAudit publishes a settled balance with routing key audit.<address>
func (r *Amqp) SendAudit(a store.Audit) error {
	return r.publish(msg.AUDIT+"."+a.Address, a)
}

// GetOutcomes consumes outcomes from the "relayer" exchange through the durable queue name, pushing them to the
// returned channel. The Mutex pointer is provided to ensure the consumed message has been fully dealt with by the
// management function, so the message consumed is only acknowledged when the mutex is unlocked.
func (r *Amqp) GetOutcomes(queue string, mut *sync.Mutex) (<-chan store.Outcome, <-chan error, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	// declare queue
	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, nil, err
	}
	// bind queue to exchange
	if err = ch.QueueBind(queue, msg.OUTCOME+".#", msg.Exchange, false, nil); err != nil {
		return nil, nil, err
	}
	// create channel for receiving outcomes
	msgs, errCons := ch.Consume(queue, "relayer-"+queue, false, false, false, false, nil)
	if errCons != nil {
		return nil, nil, errCons
	}
	// define channels to return
	outs := make(chan store.Outcome)
	errs := make(chan error)
	// start routine to consume messages from broker
	go func() {
		defer close(outs)
		defer close(errs)

		for m := range msgs {
			var o store.Outcome
			if err := json.Unmarshal(m.Body, &o); err != nil {
				errs <- err

				_ = m.Nack(false, false)

				continue
			}
			outs <- o
			mut.Lock() // wait for the consumer to finish processing the outcome
			_ = m.Ack(false)
		}
	}()

	return outs, errs, nil
}
