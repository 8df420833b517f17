// internal/storage/archive/interface.go
package archive

import "context"

// Storage is a flat key-addressed artifact store. Keys use "/" separators
// regardless of backend; the archiver composes them as run_<id>/<name>.
type Storage interface {
	// Put stores an artifact under the key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the artifact stored under the key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Keys lists every stored key beginning with the prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Remove deletes the artifact stored under the key.
	Remove(ctx context.Context, key string) error
}
