// Package kv is the string key-value port the history lists are persisted through.
package kv

import "context"

// Store reads and writes whole string values by key. Get reports found=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}
