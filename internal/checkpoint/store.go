package checkpoint

import (
	"context"

	"github.com/akindolabs/akindo/internal/state"
)

// Store persists session snapshots between turns so a restarted process can
// resume conversations.
type Store interface {
	Get(ctx context.Context, threadID string) (*state.Session, error)
	Put(ctx context.Context, s *state.Session) error
	Delete(ctx context.Context, threadID string) error
	List(ctx context.Context) ([]string, error)
}

// NullStore is the disabled-checkpointing store: sessions live only in
// memory.
type NullStore struct{}

func (NullStore) Get(ctx context.Context, threadID string) (*state.Session, error) {
	return nil, nil
}

func (NullStore) Put(ctx context.Context, s *state.Session) error { return nil }

func (NullStore) Delete(ctx context.Context, threadID string) error { return nil }

func (NullStore) List(ctx context.Context) ([]string, error) { return nil, nil }
