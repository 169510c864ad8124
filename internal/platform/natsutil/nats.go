// Package natsutil wraps the JetStream connection used to mirror dashboard
// events and receive dashboard commands.
package natsutil

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/coursedash/dashboard/internal/messaging"
	"github.com/coursedash/dashboard/internal/platform/logfields"
)

const clientName = "coursedash-dashboard"

type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
}

// Connect dials url, opens JetStream and makes sure the dashboard streams
// exist.
func Connect(url string) (*Client, error) {
	conn, err := nats.Connect(url, nats.Name(clientName), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	client := &Client{Conn: conn}
	if client.JS, err = conn.JetStream(); err == nil {
		err = messaging.EnsureStreams(client.JS)
	}
	if err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// ConnectWithRetry keeps calling Connect until it succeeds, ctx is done or
// timeout passes.
func ConnectWithRetry(ctx context.Context, url string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		client, err := Connect(url)
		if err == nil {
			return client, nil
		}
		logger.Debug("nats connect failed", slog.Int("attempt", attempt), logfields.Error(err))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect jetstream at %s: %w", url, err)
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 2*time.Second)
	}
}

// Close drains pending messages before closing. It accepts a nil client.
func (c *Client) Close() {
	if c == nil || c.Conn == nil {
		return
	}
	_ = c.Conn.Drain()
	c.Conn.Close()
}

// Publish sends payload on subject through JetStream.
func (c *Client) Publish(subject string, payload []byte) error {
	if _, err := c.JS.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Disposition is how a consumed message is settled.
type Disposition int

const (
	Ack Disposition = iota
	// Nak asks for redelivery.
	Nak
	// Term drops a message that can never succeed.
	Term
)

// ConsumeCommands queue-subscribes handle to every dashboard command subject
// with manual acks.
func (c *Client) ConsumeCommands(queue string, handle func(subject string, data []byte) Disposition) (*nats.Subscription, error) {
	return c.JS.QueueSubscribe(messaging.CommandSubjects, queue, func(msg *nats.Msg) {
		switch handle(msg.Subject, msg.Data) {
		case Term:
			_ = msg.Term()
		case Nak:
			_ = msg.Nak()
		default:
			_ = msg.Ack()
		}
	}, nats.ManualAck())
}
