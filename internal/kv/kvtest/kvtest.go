// Package kvtest holds a conformance suite that every kv.Store backend runs.
package kvtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plugbot/internal/kv"
)

// Run exercises open against the kv.Store contract. open must return a fresh, empty store.
func Run(t *testing.T, open func(t *testing.T) kv.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("scalar get set", func(t *testing.T) {
		s := open(t)

		_, ok, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Set(ctx, "k", "v1"))
		require.NoError(t, s.Set(ctx, "k", "v2"))
		v, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v2", v)
	})

	t.Run("hash get set", func(t *testing.T) {
		s := open(t)

		_, ok, err := s.HGet(ctx, "usernames", "alice")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.HSet(ctx, "usernames", "alice", `{"id":1}`))
		require.NoError(t, s.HSet(ctx, "usernames", "bob", `{"id":2}`))
		require.NoError(t, s.HSet(ctx, "usernames", "alice", `{"id":3}`))

		v, ok, err := s.HGet(ctx, "usernames", "alice")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"id":3}`, v)
	})

	t.Run("set add and remove counts", func(t *testing.T) {
		s := open(t)

		n, err := s.SAdd(ctx, "set", "a", "b")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.SAdd(ctx, "set", "b", "c")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.SRem(ctx, "set", "a", "zzz")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.SRem(ctx, "other", "a")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("set membership", func(t *testing.T) {
		s := open(t)
		_, err := s.SAdd(ctx, "set", "a", "c")
		require.NoError(t, err)

		ok, err := s.SIsMember(ctx, "set", "a")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.SIsMember(ctx, "set", "b")
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := s.SMIsMember(ctx, "set", "a", "b", "c")
		require.NoError(t, err)
		assert.Equal(t, []bool{true, false, true}, got)

		got, err = s.SMIsMember(ctx, "empty", "a")
		require.NoError(t, err)
		assert.Equal(t, []bool{false}, got)
	})

	t.Run("random member", func(t *testing.T) {
		s := open(t)

		_, ok, err := s.SRandMember(ctx, "quotes")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.SAdd(ctx, "quotes", "x", "y")
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			m, ok, err := s.SRandMember(ctx, "quotes")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Contains(t, []string{"x", "y"}, m)
		}
	})

	t.Run("concurrent disjoint adds", func(t *testing.T) {
		s := open(t)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.SAdd(ctx, "set", fmt.Sprintf("m%d", i))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		members := make([]string, 8)
		for i := range members {
			members[i] = fmt.Sprintf("m%d", i)
		}
		got, err := s.SMIsMember(ctx, "set", members...)
		require.NoError(t, err)
		for i, ok := range got {
			assert.True(t, ok, members[i])
		}
	})
}
