package authstate

import (
	"context"
	"errors"
)

// Sealer encrypts credential material for one scope. *secrets.Cipher satisfies it.
type Sealer interface {
	Seal(scope string, plaintext []byte) ([]byte, error)
	Open(scope string, sealed []byte) ([]byte, error)
}

// ErrSealFailed wraps errors from the Sealer.
var ErrSealFailed = errors.New("authstate: seal credentials")

// EncryptedStore seals State.Creds with a per-session key before delegating.
// Registration flag and metadata stay readable so Resume can list sessions
// without the key.
type EncryptedStore struct {
	next   Store
	sealer Sealer
}

var _ Store = (*EncryptedStore)(nil)

// NewEncryptedStore decorates next.
func NewEncryptedStore(next Store, sealer Sealer) *EncryptedStore {
	return &EncryptedStore{next: next, sealer: sealer}
}

func (e *EncryptedStore) Load(ctx context.Context, id string) (*State, error) {
	s, err := e.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(s.Creds) == 0 {
		return s, nil
	}
	plain, err := e.sealer.Open(id, s.Creds)
	if err != nil {
		return nil, errors.Join(ErrCorruptState, err)
	}
	s.Creds = plain
	return s, nil
}

func (e *EncryptedStore) Save(ctx context.Context, id string, s *State) error {
	if s == nil {
		return ErrNilState
	}
	c := s.Clone()
	if len(c.Creds) > 0 {
		sealed, err := e.sealer.Seal(id, c.Creds)
		if err != nil {
			return errors.Join(ErrSealFailed, err)
		}
		c.Creds = sealed
	}
	return e.next.Save(ctx, id, c)
}

func (e *EncryptedStore) Delete(ctx context.Context, id string) error {
	return e.next.Delete(ctx, id)
}

func (e *EncryptedStore) List(ctx context.Context) ([]string, error) {
	return e.next.List(ctx)
}
