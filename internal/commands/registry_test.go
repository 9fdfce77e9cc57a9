package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plugbot/internal/logger"
	"plugbot/pkg/bottypes"
)

func newTestBuilder() *Builder {
	b := NewBuilder()
	b.SetLogger(logger.Discard())
	return b
}

func textHandler(body string) bottypes.Handler {
	return bottypes.Handler{
		Fn: func(_ context.Context, _ *bottypes.Message) (bottypes.Reply, error) {
			return bottypes.Say(body), nil
		},
	}
}

func reply(t *testing.T, h bottypes.Handler) string {
	t.Helper()
	r, err := h.Fn(context.Background(), &bottypes.Message{})
	require.NoError(t, err)
	text, ok := r.(bottypes.Text)
	require.True(t, ok)
	return text.Body
}

func TestBuilder_NewBuilder(t *testing.T) {
	b := NewBuilder()

	assert.NotNil(t, b)
	assert.NotNil(t, b.commands)
	assert.Equal(t, 0, len(b.commands))
	assert.False(t, b.Sealed())
}

func TestScope_Register(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		wantErr error
	}{
		{
			name:  "single name",
			names: []string{"coinflip"},
		},
		{
			name:  "several aliases",
			names: []string{"spongebob", "spongify", "mock"},
		},
		{
			name:    "empty name",
			names:   []string{""},
			wantErr: ErrEmptyName,
		},
		{
			name:    "whitespace name",
			names:   []string{"   "},
			wantErr: ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := newTestBuilder().Scope("memes")
			err := scope.Register(tt.names, textHandler("ok"))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, scope.Commit())
		})
	}
}

func TestScope_RegisterTagsModule(t *testing.T) {
	b := newTestBuilder()
	scope := b.Scope("Memes")
	require.NoError(t, scope.Register([]string{"flip"}, textHandler("heads")))
	require.NoError(t, scope.Commit())

	h, ok := b.Build().Lookup("flip")
	require.True(t, ok)
	assert.Equal(t, "memes", h.Module)
}

func TestScope_RegisterWithoutFunction(t *testing.T) {
	scope := newTestBuilder().Scope("memes")
	err := scope.Register([]string{"flip"}, bottypes.Handler{})
	assert.Error(t, err)
}

func TestScope_CollisionAcrossModules(t *testing.T) {
	pairs := []struct {
		first  string
		second string
	}{
		{"quote", "quote"},
		{"quote", "QUOTE"},
		{"Quote", "qUoTe"},
	}

	for _, p := range pairs {
		t.Run(p.first+"/"+p.second, func(t *testing.T) {
			b := newTestBuilder()

			first := b.Scope("quote")
			require.NoError(t, first.Register([]string{p.first}, textHandler("original")))
			require.NoError(t, first.Commit())

			second := b.Scope("impostor")
			err := second.Register([]string{p.second}, textHandler("impostor"))

			var collision *CollisionError
			require.True(t, errors.As(err, &collision))
			assert.Equal(t, "quote", collision.Owner)
			assert.Equal(t, p.second, collision.Command)
			assert.Contains(t, err.Error(), "already registered by quote plugin")

			second.Discard()
			h, ok := b.Build().Lookup(p.first)
			require.True(t, ok)
			assert.Equal(t, "quote", h.Module)
			assert.Equal(t, "original", reply(t, h))
		})
	}
}

func TestScope_CollisionWithinCall(t *testing.T) {
	scope := newTestBuilder().Scope("memes")

	err := scope.Register([]string{"flip", "FLIP"}, textHandler("x"))

	var collision *CollisionError
	require.True(t, errors.As(err, &collision))
	assert.Equal(t, "memes", collision.Owner)
}

func TestScope_CollisionWithOwnStagedCommand(t *testing.T) {
	scope := newTestBuilder().Scope("memes")
	require.NoError(t, scope.Register([]string{"flip"}, textHandler("x")))

	err := scope.Register([]string{"flip"}, textHandler("y"))

	var collision *CollisionError
	assert.True(t, errors.As(err, &collision))
}

func TestScope_DiscardRollsBackModule(t *testing.T) {
	b := newTestBuilder()
	scope := b.Scope("broken")
	require.NoError(t, scope.Register([]string{"a", "b"}, textHandler("x")))
	scope.Observe(bottypes.ObserverFunc(func(context.Context, *bottypes.Message) (bool, error) {
		return false, nil
	}))

	scope.Discard()

	r := b.Build()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, scope.Observers())
}

func TestScope_FailedModuleDoesNotBlockNames(t *testing.T) {
	b := newTestBuilder()

	broken := b.Scope("broken")
	require.NoError(t, broken.Register([]string{"id"}, textHandler("broken")))
	broken.Discard()

	id := b.Scope("id")
	require.NoError(t, id.Register([]string{"id"}, textHandler("ok")))
	require.NoError(t, id.Commit())

	h, ok := b.Build().Lookup("id")
	require.True(t, ok)
	assert.Equal(t, "id", h.Module)
}

func TestScope_CommitDetectsLateCollision(t *testing.T) {
	b := newTestBuilder()
	a := b.Scope("a")
	c := b.Scope("c")
	require.NoError(t, a.Register([]string{"same"}, textHandler("a")))
	require.NoError(t, c.Register([]string{"same"}, textHandler("c")))

	require.NoError(t, a.Commit())
	err := c.Commit()

	var collision *CollisionError
	require.True(t, errors.As(err, &collision))
	assert.Equal(t, "a", collision.Owner)

	h, _ := b.Build().Lookup("same")
	assert.Equal(t, "a", reply(t, h))
}

func TestBuilder_RegisterAfterBuildFails(t *testing.T) {
	b := newTestBuilder()
	scope := b.Scope("late")

	r := b.Build()
	err := scope.Register([]string{"late"}, textHandler("x"))

	assert.ErrorIs(t, err, ErrSealed)
	assert.True(t, b.Sealed())
	_, ok := r.Lookup("late")
	assert.False(t, ok)
}

func TestBuilder_CommitAfterBuildFails(t *testing.T) {
	b := newTestBuilder()
	scope := b.Scope("late")
	require.NoError(t, scope.Register([]string{"late"}, textHandler("x")))

	r := b.Build()

	assert.ErrorIs(t, scope.Commit(), ErrSealed)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Lookup(t *testing.T) {
	b := newTestBuilder()
	scope := b.Scope("memes")
	require.NoError(t, scope.Register([]string{"CoinFlip"}, textHandler("heads")))
	require.NoError(t, scope.Commit())
	r := b.Build()

	tests := []struct {
		name  string
		query string
		found bool
	}{
		{"exact lowercase", "coinflip", true},
		{"upper case", "COINFLIP", true},
		{"mixed case", "cOiNfLiP", true},
		{"prefix only", "coin", false},
		{"longer", "coinflips", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := r.Lookup(tt.query)
			assert.Equal(t, tt.found, ok)
		})
	}
}

func TestRegistry_Commands(t *testing.T) {
	b := newTestBuilder()
	scope := b.Scope("memes")
	require.NoError(t, scope.Register([]string{"mock", "cat", "flip"}, textHandler("x")))
	require.NoError(t, scope.Commit())

	entries := b.Build().Commands()

	require.Len(t, entries, 3)
	assert.Equal(t, "cat", entries[0].Name)
	assert.Equal(t, "flip", entries[1].Name)
	assert.Equal(t, "mock", entries[2].Name)
}

func TestRegistry_IsSnapshot(t *testing.T) {
	b := newTestBuilder()
	scope := b.Scope("memes")
	require.NoError(t, scope.Register([]string{"flip"}, textHandler("x")))
	require.NoError(t, scope.Commit())

	r := b.Build()
	r2 := b.Build()

	assert.Equal(t, r.Len(), r2.Len())
	_, ok := r2.Lookup("flip")
	assert.True(t, ok)
}
