// Package bottypes defines the data model shared between the dispatcher core and
// feature modules: inbound messages, handlers, replies and the module contract.
package bottypes

import "time"

// Entity types produced by the chat transport.
const (
	EntityBotCommand  = "bot_command"
	EntityMention     = "mention"
	EntityTextMention = "text_mention"
)

// Chat types.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// Entity is a span inside a message text. Offset and Length count UTF-16 code units.
type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	User   *User  `json:"user,omitempty"` // set for text_mention
}

// User is a message sender.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Type         string `json:"type,omitempty"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// IsPrivate reports whether the chat is a one-to-one conversation.
func (c Chat) IsPrivate() bool {
	return c.Type == ChatPrivate
}

// Message is an inbound chat message.
//
// Args is filled in by the dispatcher before a handler runs and holds the text
// following the command token.
type Message struct {
	ID       int       `json:"message_id"`
	Date     time.Time `json:"date"`
	Text     string    `json:"text,omitempty"`
	Entities []Entity  `json:"entities,omitempty"`
	From     *User     `json:"from,omitempty"`
	Chat     Chat      `json:"chat"`
	ReplyTo  *Message  `json:"reply_to_message,omitempty"`

	Args string `json:"-"`
}
