// Package kvstore provides the string key/value stores backing the thumbnail
// cache and the sidecar verdict cache.
//
// Both implementations enforce an optional byte quota, counted as the summed
// length of keys and values, and fail writes that would exceed it with
// ErrQuotaExceeded so that callers can evict and retry.
package kvstore

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by Set when the write would exceed the quota.
var ErrQuotaExceeded = errors.New("kvstore: quota exceeded")

// Store is a flat string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Keys returns the keys starting with prefix in ascending byte order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// FindSuffix returns the first key, in ascending order, ending with suffix.
	FindSuffix(ctx context.Context, suffix string) (key, value string, found bool, err error)
	// ValueBytes sums the value lengths of the keys starting with prefix.
	ValueBytes(ctx context.Context, prefix string) (int64, error)
	// Clear removes every key starting with prefix and reports how many were removed.
	Clear(ctx context.Context, prefix string) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

// Stats summarizes store occupancy.
type Stats struct {
	Entries int
	Bytes   int64
	Quota   int64
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}
