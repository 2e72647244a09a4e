package etcd

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
)

const (
	defaultDialTimeout    = 5 * time.Second
	defaultRequestTimeout = 5 * time.Second
)

// KeyValue is one entry returned by a prefix read.
type KeyValue struct {
	Key   string
	Value string
}

// Client wraps an etcd v3 client.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	cli            *clientv3.Client
	endpoints      []string
	requestTimeout time.Duration
}

// Connect creates the etcd client and verifies that the first endpoint
// answers a status request.
//
// Parameters:
//   - ctx: Bounds the connectivity check
//   - cfg: The directory.etcd section of config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrNoEndpoints or a wrapped ErrConnectionFailed
func Connect(ctx context.Context, cfg config.EtcdConfig) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		cli:            cli,
		endpoints:      cfg.Endpoints,
		requestTimeout: requestTimeout,
	}

	if err := c.HealthCheck(ctx); err != nil {
		cli.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// Close releases the underlying gRPC connections.
func (c *Client) Close() error {
	if c.cli == nil {
		return nil
	}
	return c.cli.Close()
}

// HealthCheck asks the first configured endpoint for its status.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	if _, err := c.cli.Status(ctx, c.endpoints[0]); err != nil {
		return fmt.Errorf("etcd health check failed: %w", err)
	}
	return nil
}

// GetPrefix returns every key under prefix together with its value.
// A prefix with no keys returns an empty slice and no error.
func (c *Client) GetPrefix(ctx context.Context, prefix string) ([]KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrRequestFailed, prefix, err)
	}

	kvs := make([]KeyValue, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		kvs = append(kvs, KeyValue{Key: string(kv.Key), Value: string(kv.Value)})
	}
	return kvs, nil
}

// Put writes a single key.
func (c *Client) Put(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	if _, err := c.cli.Put(ctx, key, value); err != nil {
		return fmt.Errorf("%w: put %s: %w", ErrRequestFailed, key, err)
	}
	return nil
}

// Delete removes a single key. Deleting an absent key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	if _, err := c.cli.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrRequestFailed, key, err)
	}
	return nil
}
