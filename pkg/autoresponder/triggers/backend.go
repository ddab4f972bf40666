package triggers

import (
	"context"
)

// Backend is the durable store behind a Store.
//
// Load returns *ConfigError wrapping ErrBackendMissing when nothing has been
// stored yet and wrapping ErrMalformed when the content cannot be decoded.
// Save writes the whole document, replacing what was there.
type Backend interface {
	// Name identifies the backend in logs (a path or DSN).
	Name() string

	Load(ctx context.Context) (*Document, error)

	Save(ctx context.Context, doc *Document) error
}
