// Package storage defines the blob backends that hold the master and delta
// artifacts. Implementations live in the local, gcs and memory subpackages.
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Read when the object has never been written.
var ErrNotExist = errors.New("object does not exist")

// ErrLocked is returned by Lock when another process holds the run lock.
var ErrLocked = errors.New("storage is locked by another run")

// Backend reads and replaces whole objects. Write must be atomic: readers
// see either the previous content or the new content, never a mix.
type Backend interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	// URI describes where name lives, for logs.
	URI(name string) string
}

// Locker is implemented by backends that can guard a run across processes.
type Locker interface {
	// Lock acquires the lock without blocking, returning ErrLocked when it is held.
	Lock(ctx context.Context) (unlock func() error, err error)
}
