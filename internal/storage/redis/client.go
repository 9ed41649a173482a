package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace префикс всех ключей design vault.
const DefaultNamespace = "vault"

type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	Namespace   string
}

// Client redis с пространством имен ключей.
type Client struct {
	*redis.Client
	namespace string
}

func NewClient(opts Options) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 2 * time.Second
	}

	return &Client{
		Client: redis.NewClient(&redis.Options{
			Addr:        opts.Addr,
			Password:    opts.Password,
			DB:          opts.DB,
			DialTimeout: opts.DialTimeout,
			ReadTimeout: opts.DialTimeout,
		}),
		namespace: namespaceOr(opts.Namespace),
	}
}

// Wrap оборачивает готовый клиент (например, из redismock)
func Wrap(c *redis.Client) *Client {
	return &Client{Client: c, namespace: DefaultNamespace}
}

// Key собирает ключ вида namespace:part1:part2
func (c *Client) Key(parts ...string) string {
	return c.namespace + ":" + strings.Join(parts, ":")
}

func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "storage.redis.HealthCheck"

	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) Close() {
	_ = c.Client.Close()
}

func namespaceOr(ns string) string {
	if ns = strings.Trim(ns, ": "); ns == "" {
		return DefaultNamespace
	}
	return ns
}
