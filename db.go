package falkorpersist

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Conn defines the interface for a generic command executor.
// It abstracts the transport that sends a command to the server and returns
// the raw nested-array reply, allowing for different implementations or
// mocking in tests.
type Conn interface {
	// Do sends one command and returns its raw reply.
	Do(ctx context.Context, args ...any) (any, error)
}

//---

// RedisExecutor is a concrete implementation of the Conn interface that uses
// go-redis. It owns the client and its connection pool.
type RedisExecutor struct {
	Client *redis.Client
}

// NewRedisExecutor creates and initializes a new RedisExecutor from cfg.
// No connection is made until the first command; call Verify to check
// connectivity eagerly.
//
// Returns:
//
//	A pointer to the newly created RedisExecutor or an error if the
//	configuration is invalid.
func NewRedisExecutor(cfg Config) (*RedisExecutor, error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, fmt.Errorf("could not configure FalkorDB client: %w", err)
	}
	return &RedisExecutor{Client: redis.NewClient(opts)}, nil
}

// Verify checks the connectivity to the server with a PING.
func (e *RedisExecutor) Verify(ctx context.Context) error {
	if err := e.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("could not reach FalkorDB: %w", err)
	}
	return nil
}

// Do executes a single command and returns its reply as decoded by go-redis:
// arrays as []any, integers as int64 and bulk strings as string. A nil reply
// is returned as nil without error.
func (e *RedisExecutor) Do(ctx context.Context, args ...any) (any, error) {
	reply, err := e.Client.Do(ctx, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error executing falkordb command: %w", err)
	}
	return reply, nil
}

// Close releases the connection pool.
func (e *RedisExecutor) Close() error {
	return e.Client.Close()
}
