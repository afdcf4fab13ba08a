package repository

import (
	"context"

	"github.com/beam-cloud/gmail2tg/pkg/types"
)

// StateRepository persists the poller's watermark and processed set.
//
// Load returns a fresh state, not an error, when nothing is stored yet or the
// stored copy cannot be parsed. Errors from Load mean the backend itself is
// unreachable. Save always replaces the whole stored state.
type StateRepository interface {
	Load(ctx context.Context) (*types.PersistedState, error)
	Save(ctx context.Context, state *types.PersistedState) error
}

// ObjectStore is the slice of an object storage client the s3 backend needs.
// GetObject returns types.ErrObjectNotFound for keys that do not exist.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte) error
}
