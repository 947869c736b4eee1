package authstate

import (
	"context"
	"errors"
)

// Store persists one State per session id.
type Store interface {
	// Load returns the stored state or ErrNotFound.
	Load(ctx context.Context, id string) (*State, error)
	// Save replaces the stored state, creating the partition on first use.
	Save(ctx context.Context, id string, s *State) error
	// Delete removes the partition. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error
	// List returns the ids that currently have a partition.
	List(ctx context.Context) ([]string, error)
}

// LoadOrNew loads the state for id, falling back to an empty one when nothing
// is stored yet. The boolean reports whether the state came from the store.
func LoadOrNew(ctx context.Context, store Store, id string) (*State, bool, error) {
	s, err := store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return New(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}
