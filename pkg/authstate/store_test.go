package authstate_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/secrets"
)

// storeContract runs the behaviour every backend must share.
func storeContract(t *testing.T, newStore func(t *testing.T) authstate.Store) {
	ctx := context.Background()

	t.Run("load missing returns ErrNotFound", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Load(ctx, "628123456789")
		require.ErrorIs(t, err, authstate.ErrNotFound)
	})

	t.Run("save then load", func(t *testing.T) {
		store := newStore(t)
		in := &authstate.State{
			Registered: true,
			Creds:      []byte(`{"jid":"628123456789.0:1@s.whatsapp.net"}`),
			Meta:       map[string]string{"platform": "web"},
		}
		require.NoError(t, store.Save(ctx, "628123456789", in))

		out, err := store.Load(ctx, "628123456789")
		require.NoError(t, err)
		assert.True(t, out.Registered)
		assert.Equal(t, in.Creds, out.Creds)
		assert.Equal(t, "web", out.Meta["platform"])
		assert.False(t, out.UpdatedAt.IsZero())
	})

	t.Run("last write wins", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "1", &authstate.State{Creds: []byte("a")}))
		require.NoError(t, store.Save(ctx, "1", &authstate.State{Registered: true, Creds: []byte("b")}))

		out, err := store.Load(ctx, "1")
		require.NoError(t, err)
		assert.True(t, out.Registered)
		assert.Equal(t, []byte("b"), out.Creds)
	})

	t.Run("delete is idempotent and removes the partition", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "2", authstate.New()))
		require.NoError(t, store.Delete(ctx, "2"))
		require.NoError(t, store.Delete(ctx, "2"))

		_, err := store.Load(ctx, "2")
		require.ErrorIs(t, err, authstate.ErrNotFound)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, "2")
	})

	t.Run("partitions are independent", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "10", &authstate.State{Creds: []byte("ten")}))
		require.NoError(t, store.Save(ctx, "11", &authstate.State{Creds: []byte("eleven")}))
		require.NoError(t, store.Delete(ctx, "10"))

		out, err := store.Load(ctx, "11")
		require.NoError(t, err)
		assert.Equal(t, []byte("eleven"), out.Creds)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"11"}, ids)
	})

	t.Run("rejects invalid ids and nil state", func(t *testing.T) {
		store := newStore(t)
		require.ErrorIs(t, store.Save(ctx, "", authstate.New()), authstate.ErrInvalidID)
		require.ErrorIs(t, store.Save(ctx, "../etc", authstate.New()), authstate.ErrInvalidID)
		require.ErrorIs(t, store.Save(ctx, "1", nil), authstate.ErrNilState)
		_, err := store.Load(ctx, "a/b")
		require.ErrorIs(t, err, authstate.ErrInvalidID)
	})

	t.Run("concurrent saves for one id", func(t *testing.T) {
		store := newStore(t)
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Save(ctx, "3", &authstate.State{Creds: []byte{byte(i)}}))
			}()
		}
		wg.Wait()

		out, err := store.Load(ctx, "3")
		require.NoError(t, err)
		assert.Len(t, out.Creds, 1)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) authstate.Store {
		return authstate.NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	storeContract(t, func(t *testing.T) authstate.Store {
		store, err := authstate.NewFileStore(t.TempDir())
		require.NoError(t, err)
		return store
	})

	t.Run("partition layout", func(t *testing.T) {
		root := t.TempDir()
		store, err := authstate.NewFileStore(root)
		require.NoError(t, err)

		require.NoError(t, store.Save(context.Background(), "628123456789", authstate.New()))
		info, err := os.Stat(filepath.Join(root, "628123456789", "creds.json"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		require.NoError(t, store.Delete(context.Background(), "628123456789"))
		_, err = os.Stat(filepath.Join(root, "628123456789"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("corrupt file", func(t *testing.T) {
		root := t.TempDir()
		store, err := authstate.NewFileStore(root)
		require.NoError(t, err)

		require.NoError(t, os.MkdirAll(filepath.Join(root, "5"), 0o700))
		require.NoError(t, os.WriteFile(filepath.Join(root, "5", "creds.json"), []byte("{"), 0o600))

		_, err = store.Load(context.Background(), "5")
		require.ErrorIs(t, err, authstate.ErrCorruptState)
	})
}

func TestEncryptedStore(t *testing.T) {
	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	cipher, err := secrets.New(key)
	require.NoError(t, err)

	storeContract(t, func(t *testing.T) authstate.Store {
		return authstate.NewEncryptedStore(authstate.NewMemoryStore(), cipher)
	})

	t.Run("creds are sealed at rest", func(t *testing.T) {
		inner := authstate.NewMemoryStore()
		store := authstate.NewEncryptedStore(inner, cipher)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, "7", &authstate.State{Registered: true, Creds: []byte("secret")}))

		raw, err := inner.Load(ctx, "7")
		require.NoError(t, err)
		assert.True(t, raw.Registered)
		assert.NotEqual(t, []byte("secret"), raw.Creds)

		// A blob moved to another partition must not open.
		require.NoError(t, inner.Save(ctx, "8", raw))
		_, err = store.Load(ctx, "8")
		require.ErrorIs(t, err, authstate.ErrCorruptState)
	})
}

func TestLoadOrNew(t *testing.T) {
	t.Parallel()
	store := authstate.NewMemoryStore()
	ctx := context.Background()

	s, found, err := authstate.LoadOrNew(ctx, store, "1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, s.Registered)

	require.NoError(t, store.Save(ctx, "1", &authstate.State{Registered: true}))
	s, found, err = authstate.LoadOrNew(ctx, store, "1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, s.Registered)
}

func TestStateClone(t *testing.T) {
	t.Parallel()
	s := &authstate.State{Creds: []byte("abc"), Meta: map[string]string{"k": "v"}}
	c := s.Clone()
	c.Creds[0] = 'x'
	c.Meta["k"] = "changed"

	assert.Equal(t, []byte("abc"), s.Creds)
	assert.Equal(t, "v", s.Meta["k"])
	assert.Nil(t, (*authstate.State)(nil).Clone())
}
