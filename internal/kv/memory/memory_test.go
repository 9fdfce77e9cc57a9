package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plugbot/internal/kv"
	"plugbot/internal/kv/kvtest"
)

func TestStore_Conformance(t *testing.T) {
	kvtest.Run(t, func(_ *testing.T) kv.Store {
		return New()
	})
}

func TestStore_Closed(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())

	_, err := s.SAdd(context.Background(), "k", "a")
	assert.ErrorIs(t, err, kv.ErrClosed)
	_, err = s.SIsMember(context.Background(), "k", "a")
	assert.ErrorIs(t, err, kv.ErrClosed)
}

func TestStore_Members(t *testing.T) {
	s := New()
	_, err := s.SAdd(context.Background(), "k", "a", "b")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, s.Members("k"))
	assert.Empty(t, s.Members("missing"))
}
