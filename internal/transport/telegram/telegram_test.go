package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plugbot/internal/transport"
	"plugbot/pkg/bottypes"
)

type fakeAPI struct {
	sent    []tgbotapi.Chattable
	sendErr error
	member  tgbotapi.ChatMember
	chat    tgbotapi.Chat
	updates chan tgbotapi.Update
	stopped bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) GetChat(_ tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return f.chat, nil
}

func (f *fakeAPI) GetChatMember(_ tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return f.member, nil
}

func (f *fakeAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.stopped = true
}

func TestClient_SendText(t *testing.T) {
	f := &fakeAPI{}
	c := newClient(f, tgbotapi.User{UserName: "plugbot"}, 0)

	err := c.SendText(context.Background(), 42, "<b>hi</b>", transport.SendOptions{HTML: true, ReplyTo: 7})
	require.NoError(t, err)

	require.Len(t, f.sent, 1)
	msg, ok := f.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "<b>hi</b>", msg.Text)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Equal(t, 7, msg.ReplyToMessageID)
}

func TestClient_SendTextError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantDesc string
	}{
		{
			name:     "api error pointer",
			err:      &tgbotapi.Error{Code: 400, Message: "Bad Request: message text is empty"},
			wantCode: "400",
			wantDesc: "Bad Request: message text is empty",
		},
		{
			name:     "api error value",
			err:      tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"},
			wantCode: "403",
			wantDesc: "Forbidden: bot was blocked by the user",
		},
		{
			name:     "network error",
			err:      errors.New("dial tcp: i/o timeout"),
			wantCode: "NETWORK",
			wantDesc: "dial tcp: i/o timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(&fakeAPI{sendErr: tt.err}, tgbotapi.User{}, 0)

			err := c.SendText(context.Background(), 1, "x", transport.SendOptions{})

			te, ok := transport.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, te.Code)
			assert.Equal(t, tt.wantDesc, te.Description)
		})
	}
}

func TestClient_SendPhotoAndForward(t *testing.T) {
	f := &fakeAPI{}
	c := newClient(f, tgbotapi.User{}, 0)

	require.NoError(t, c.SendPhoto(context.Background(), 5, "https://example.com/cat.jpg",
		transport.PhotoOptions{Caption: "Meow!", ReplyTo: 3}))
	require.NoError(t, c.Forward(context.Background(), 5, 9, 11))

	require.Len(t, f.sent, 2)
	photo, ok := f.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "Meow!", photo.Caption)
	assert.Equal(t, 3, photo.ReplyToMessageID)

	fwd, ok := f.sent[1].(tgbotapi.ForwardConfig)
	require.True(t, ok)
	assert.Equal(t, int64(9), fwd.FromChatID)
	assert.Equal(t, 11, fwd.MessageID)
}

func TestClient_ChatMember(t *testing.T) {
	f := &fakeAPI{member: tgbotapi.ChatMember{Status: "administrator", CanChangeInfo: true}}
	c := newClient(f, tgbotapi.User{}, 0)

	m, err := c.ChatMember(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, transport.StatusAdministrator, m.Status)
	assert.True(t, m.CanChangeInfo)
}

func TestClient_Me(t *testing.T) {
	c := newClient(&fakeAPI{}, tgbotapi.User{ID: 99, UserName: "PlugBot", IsBot: true}, 0)

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PlugBot", me.Username)
	assert.True(t, me.IsBot)
}

func TestClient_Updates(t *testing.T) {
	f := &fakeAPI{updates: make(chan tgbotapi.Update, 3)}
	c := newClient(f, tgbotapi.User{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := c.Updates(ctx)
	require.NoError(t, err)

	f.updates <- tgbotapi.Update{UpdateID: 1}
	f.updates <- tgbotapi.Update{UpdateID: 2, Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: 1}}}
	f.updates <- tgbotapi.Update{UpdateID: 3, Message: &tgbotapi.Message{
		MessageID: 2, Text: "/flip", Chat: &tgbotapi.Chat{ID: 1},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
	}}

	select {
	case msg := <-out:
		assert.Equal(t, 2, msg.ID)
		assert.Equal(t, "/flip", msg.Text)
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}

	cancel()
	for range out {
	}
	assert.True(t, f.stopped)
}

func TestConvertMessage(t *testing.T) {
	in := &tgbotapi.Message{
		MessageID: 10,
		Date:      1700000000,
		Text:      "/id@PlugBot",
		From:      &tgbotapi.User{ID: 7, UserName: "alice", FirstName: "Alice"},
		Chat:      &tgbotapi.Chat{ID: -100, Type: "supergroup", Title: "Group"},
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: 11},
			{Type: "text_mention", Offset: 12, Length: 3, User: &tgbotapi.User{ID: 8}},
		},
		ReplyToMessage: &tgbotapi.Message{MessageID: 9, From: &tgbotapi.User{ID: 8}, Chat: &tgbotapi.Chat{ID: -100}},
	}

	got := ConvertMessage(in)

	assert.Equal(t, 10, got.ID)
	assert.Equal(t, time.Unix(1700000000, 0), got.Date)
	assert.Equal(t, "alice", got.From.Username)
	assert.Equal(t, bottypes.Chat{ID: -100, Type: "supergroup", Title: "Group"}, got.Chat)
	require.Len(t, got.Entities, 2)
	assert.Equal(t, bottypes.EntityBotCommand, got.Entities[0].Type)
	assert.Equal(t, int64(8), got.Entities[1].User.ID)
	require.NotNil(t, got.ReplyTo)
	assert.Equal(t, 9, got.ReplyTo.ID)
	assert.Nil(t, ConvertMessage(nil))
}
