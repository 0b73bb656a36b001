// Package kafka builds the franz-go producer and admin clients.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"backoffice/internal/platform/config"
)

// Client pairs the producer with an admin client on the same connection.
type Client struct {
	*kgo.Client
	Admin *kadm.Client
}

// New connects to the configured brokers. Returns nil when none are set.
func New(ctx context.Context, cfg config.KafkaConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return &Client{Client: cl, Admin: kadm.NewClient(cl)}, nil
}

// Health pings the seed brokers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx)
}
