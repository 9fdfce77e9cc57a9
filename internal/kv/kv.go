// Package kv defines the key-value store contract used for per-conversation state.
//
// Every method is atomic on its own. Sequences of calls are not isolated from
// concurrent dispatches, so callers mutate shared state only through the set
// primitives instead of read-modify-write.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("kv store closed")

// Store is the subset of redis-like operations plugbot relies on.
type Store interface {
	// Get returns a scalar value and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores a scalar value.
	Set(ctx context.Context, key, value string) error

	// HGet returns a hash field and whether it exists.
	HGet(ctx context.Context, key, field string) (string, bool, error)
	// HSet stores a hash field.
	HSet(ctx context.Context, key, field, value string) error

	// SAdd adds members to a set and returns how many were not already present.
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	// SRem removes members from a set and returns how many were present.
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	// SIsMember tests membership of one member.
	SIsMember(ctx context.Context, key, member string) (bool, error)
	// SMIsMember tests membership of several members in one round trip.
	SMIsMember(ctx context.Context, key string, members ...string) ([]bool, error)
	// SRandMember returns a random member and whether the set is non-empty.
	SRandMember(ctx context.Context, key string) (string, bool, error)

	Close() error
}
