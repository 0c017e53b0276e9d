package storage

import (
	"context"
	"io"
)

// ObjectStore persists attachment bytes. Keys are slash-separated paths
// scoped by conversation and message.
type ObjectStore interface {
	// Location describes where objects live ("local" dir or "s3" bucket),
	// recorded as the attachment's storage path prefix.
	Location() string

	PutObject(ctx context.Context, key string, data io.Reader) error

	// DeleteObjects removes every object under the given key prefix.
	DeleteObjects(ctx context.Context, prefix string) error
}
