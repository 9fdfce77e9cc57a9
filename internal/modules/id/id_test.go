package id

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plugbot/internal/kv/memory"
	"plugbot/internal/modules/modtest"
	"plugbot/internal/plugins"
	"plugbot/internal/testutils"
	"plugbot/pkg/bottypes"
)

func newHarness(t *testing.T) *modtest.Harness {
	t.Helper()
	return modtest.New(t, []plugins.Spec{{Name: "id"}}, func(h *modtest.Harness) map[string]plugins.Factory {
		return map[string]plugins.Factory{
			"id": func() bottypes.Module { return New(h.KV, h.Transport) },
		}
	})
}

func TestID_CurrentChat(t *testing.T) {
	h := newHarness(t)

	got := h.Send(t, "/id")

	assert.Equal(t, []string{"id: -1001\ntype: supergroup\ntitle: Test group"}, got)
}

func TestID_Targets(t *testing.T) {
	tests := []struct {
		name  string
		build func() *bottypes.Message
		want  string
	}{
		{
			name:  "known username",
			build: func() *bottypes.Message { return testutils.CommandMessage("/id @Alice") },
			want:  "id: 7\ntype: private\nusername: @alice\nfirst name: Alice\nlast seen: ",
		},
		{
			name:  "username without at",
			build: func() *bottypes.Message { return testutils.CommandMessage("/id alice") },
			want:  "id: 7\ntype: private",
		},
		{
			name:  "unknown username",
			build: func() *bottypes.Message { return testutils.CommandMessage("/id @nobody") },
			want:  MsgUnresolved,
		},
		{
			name:  "known numeric id",
			build: func() *bottypes.Message { return testutils.CommandMessage("/id -200") },
			want:  "id: -200\ntype: channel\ntitle: News\nusername: @news",
		},
		{
			name:  "unknown numeric id",
			build: func() *bottypes.Message { return testutils.CommandMessage("/id 31337") },
			want:  MsgNoChatInfo,
		},
		{
			name: "replied-to sender",
			build: func() *bottypes.Message {
				m := testutils.CommandMessage("/id")
				m.ReplyTo = &bottypes.Message{ID: 50, From: &bottypes.User{ID: 9, FirstName: "Bob", IsBot: true}}
				return m
			},
			want: "id: 9\ntype: private\nfirst name: Bob\nbot: yes",
		},
		{
			name: "text mention wins over args",
			build: func() *bottypes.Message {
				m := testutils.CommandMessage("/id Carol")
				m.Entities = append(m.Entities, bottypes.Entity{
					Type: bottypes.EntityTextMention, Offset: 4, Length: 5,
					User: &bottypes.User{ID: 11, FirstName: "Carol"},
				})
				return m
			},
			want: "id: 11\ntype: private\nfirst name: Carol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.Transport.Chats[-200] = bottypes.Chat{ID: -200, Type: bottypes.ChatChannel, Title: "News", Username: "news"}
			h.Send(t, "hello")

			got := h.SendMessage(t, tt.build())

			require.Len(t, got, 1)
			assert.Contains(t, got[0], tt.want)
		})
	}
}

func TestResolver_Record(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := NewResolver(store)
	date := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	require.NoError(t, r.Record(ctx, &bottypes.Message{
		Date: date,
		From: &bottypes.User{ID: 7, Username: "Alice", FirstName: "Alice"},
		Chat: bottypes.Chat{ID: -5, Type: bottypes.ChatSupergroup, Title: "Gophers", Username: "GoGroup"},
	}))
	require.NoError(t, r.Record(ctx, &bottypes.Message{
		Date: date,
		From: &bottypes.User{ID: 8, FirstName: "Anon"},
		Chat: bottypes.Chat{ID: 8, Type: bottypes.ChatPrivate, Username: "privatechat"},
	}))

	alice, ok, err := r.Resolve(ctx, "@ALICE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, &Identity{ID: 7, Type: bottypes.ChatPrivate, Username: "Alice", FirstName: "Alice"}, alice)

	group, ok, err := r.Resolve(ctx, "gogroup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(-5), group.ID)
	assert.False(t, group.IsPrivate())

	_, ok, err = r.Resolve(ctx, "privatechat")
	require.NoError(t, err)
	assert.False(t, ok)

	seen, ok, err := r.LastSeen(ctx, 8)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, date, seen)

	_, ok, err = r.LastSeen(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_CorruptEntries(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := NewResolver(store)
	require.NoError(t, store.HSet(ctx, UsernamesKey, "broken", "{"))
	require.NoError(t, store.Set(ctx, LastSeenKey(1), "yesterday"))

	_, _, err := r.Resolve(ctx, "broken")
	assert.Error(t, err)
	_, _, err = r.LastSeen(ctx, 1)
	assert.Error(t, err)
}

func TestResolver_TargetNone(t *testing.T) {
	r := NewResolver(memory.New())

	target, err := r.Target(context.Background(), testutils.CommandMessage("/quote"))

	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestIdentity_IDOnly(t *testing.T) {
	assert.True(t, (&Identity{ID: 5}).IDOnly())
	assert.False(t, (&Identity{ID: 5, Type: "private"}).IDOnly())
}

func TestID_ObserverNeverConsumes(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "invoked", h.Dispatch(testutils.CommandMessage("/id")).String())
}
