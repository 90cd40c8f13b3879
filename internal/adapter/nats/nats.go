// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/democrm/internal/port/messagequeue"
	"github.com/Strob0t/democrm/internal/resilience"
)

const streamName = "DEMOCRM"

// Publishing stops for publishCoolDown after this many consecutive failures,
// so requests do not each wait on an unreachable server.
const (
	publishMaxFailures = 5
	publishCoolDown    = 30 * time.Second
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	breaker *resilience.Breaker
	log     *slog.Logger
}

var _ messagequeue.Queue = (*Queue)(nil)

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string, log *slog.Logger) (*Queue, error) {
	nc, err := nats.Connect(url, nats.Name("democrm"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	// Ensure the stream exists with subjects matching our topic patterns.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"tenants.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	breaker := resilience.NewBreaker(publishMaxFailures, publishCoolDown)
	breaker.OnStateChange(func(from, to resilience.State) {
		log.Warn("nats publish breaker", "from", from.String(), "to", to.String())
	})

	log.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js, breaker: breaker, log: log}, nil
}

// JetStream returns the JetStream context of the connection.
func (q *Queue) JetStream() jetstream.JetStream {
	return q.js
}

// Publish validates and sends a message to the given subject.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	err := q.breaker.Do(ctx, func(ctx context.Context) error {
		_, err := q.js.Publish(ctx, subject, data)
		return err
	})
	if err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject.
// Messages failing validation are terminated, handler errors are nak'ed
// for redelivery.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := messagequeue.Validate(msg.Subject(), msg.Data()); err != nil {
			q.log.Error("dropping invalid message", "subject", msg.Subject(), "error", err)
			if termErr := msg.Term(); termErr != nil {
				q.log.Error("nats term failed", "error", termErr)
			}
			return
		}
		if err := handler(ctx, msg.Subject(), msg.Data()); err != nil {
			q.log.Error("message handler failed", "subject", msg.Subject(), "error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				q.log.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			q.log.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// Close drains subscriptions and shuts down the NATS connection.
func (q *Queue) Close() error {
	if err := q.nc.Drain(); err != nil {
		q.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
