// Package transport defines what plugbot needs from the chat service client.
package transport

import (
	"context"
	"errors"
	"fmt"

	"plugbot/pkg/bottypes"
)

// Error is a failure reported by the chat service, carrying its own code and description.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport error %s: %s", e.Code, e.Description)
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// SendOptions controls how a text message is delivered.
type SendOptions struct {
	HTML    bool
	ReplyTo int // message id, 0 for none
}

// PhotoOptions controls how a photo is delivered.
type PhotoOptions struct {
	Caption string
	ReplyTo int
}

// Member describes a user's standing in a chat.
type Member struct {
	Status        string // creator, administrator, member, restricted, left, kicked
	CanChangeInfo bool
}

// Member statuses.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
)

// Sender delivers text messages.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) error
}

// Client is the full chat-service surface used by plugbot and its modules.
type Client interface {
	Sender
	// Me returns the bot's own identity; Username drives mention disambiguation.
	Me(ctx context.Context) (bottypes.User, error)
	SendPhoto(ctx context.Context, chatID int64, url string, opts PhotoOptions) error
	Forward(ctx context.Context, chatID, fromChatID int64, messageID int) error
	GetChat(ctx context.Context, chatID int64) (bottypes.Chat, error)
	ChatMember(ctx context.Context, chatID, userID int64) (Member, error)
	// Updates streams inbound messages until ctx is done, then closes the channel.
	Updates(ctx context.Context) (<-chan *bottypes.Message, error)
}
