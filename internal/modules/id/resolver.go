// Package id records who has been seen in which chat and answers /id.
package id

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"plugbot/internal/kv"
	"plugbot/pkg/bottypes"
)

// UsernamesKey is the hash mapping lowercase usernames to identities.
const UsernamesKey = "usernames"

// ErrUnresolved is returned when a username has never been seen.
var ErrUnresolved = errors.New("Failed to resolve")

var numericID = regexp.MustCompile(`^-?\d+$`)

// Identity is a user or chat as stored in the usernames hash.
type Identity struct {
	ID        int64  `json:"id"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// IsPrivate reports whether the identity is a user rather than a group or channel.
func (i *Identity) IsPrivate() bool {
	return i.Type == bottypes.ChatPrivate
}

// IDOnly reports whether nothing but the numeric id is known.
func (i *Identity) IDOnly() bool {
	return *i == Identity{ID: i.ID}
}

// FromUser converts a message sender.
func FromUser(u *bottypes.User) *Identity {
	return &Identity{
		ID:        u.ID,
		Type:      bottypes.ChatPrivate,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}
}

// FromChat converts a chat.
func FromChat(c bottypes.Chat) *Identity {
	return &Identity{
		ID:        c.ID,
		Type:      c.Type,
		Title:     c.Title,
		Username:  c.Username,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

// Resolver looks identities up in the key-value store.
type Resolver struct {
	store kv.Store
}

// NewResolver creates a Resolver.
func NewResolver(store kv.Store) *Resolver {
	return &Resolver{store: store}
}

// LastSeenKey is the scalar key holding when a user last wrote anything.
func LastSeenKey(userID int64) string {
	return fmt.Sprintf("user%d:lastseen", userID)
}

// Resolve returns the identity stored for username. A leading @ is ignored.
func (r *Resolver) Resolve(ctx context.Context, username string) (*Identity, bool, error) {
	key := strings.ToLower(strings.TrimPrefix(username, "@"))
	raw, ok, err := r.store.HGet(ctx, UsernamesKey, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var ident Identity
	if err := json.Unmarshal([]byte(raw), &ident); err != nil {
		return nil, false, fmt.Errorf("decode identity %s: %w", key, err)
	}
	return &ident, true, nil
}

// Target picks who a command is about: a text mention, a numeric id or
// username in the arguments, or the sender of the replied-to message.
// It returns nil when none of these is present.
func (r *Resolver) Target(ctx context.Context, msg *bottypes.Message) (*Identity, error) {
	if len(msg.Entities) > 1 && msg.Entities[1].Type == bottypes.EntityTextMention && msg.Entities[1].User != nil {
		return FromUser(msg.Entities[1].User), nil
	}
	if msg.Args != "" {
		if numericID.MatchString(msg.Args) {
			id, err := strconv.ParseInt(msg.Args, 10, 64)
			if err != nil {
				return nil, ErrUnresolved
			}
			return &Identity{ID: id}, nil
		}
		ident, ok, err := r.Resolve(ctx, msg.Args)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUnresolved
		}
		return ident, nil
	}
	if msg.ReplyTo != nil && msg.ReplyTo.From != nil {
		return FromUser(msg.ReplyTo.From), nil
	}
	return nil, nil
}

// Record stores the chat and sender of msg. Private chats and identities
// without a username are not stored in the usernames hash.
func (r *Resolver) Record(ctx context.Context, msg *bottypes.Message) error {
	if !msg.Chat.IsPrivate() && msg.Chat.Username != "" {
		if err := r.put(ctx, FromChat(msg.Chat)); err != nil {
			return err
		}
	}
	if msg.From == nil {
		return nil
	}
	if msg.From.Username != "" {
		if err := r.put(ctx, FromUser(msg.From)); err != nil {
			return err
		}
	}
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	return r.store.Set(ctx, LastSeenKey(msg.From.ID), strconv.FormatInt(date.Unix(), 10))
}

// LastSeen returns when userID last wrote a message.
func (r *Resolver) LastSeen(ctx context.Context, userID int64) (time.Time, bool, error) {
	raw, ok, err := r.store.Get(ctx, LastSeenKey(userID))
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode last seen of %d: %w", userID, err)
	}
	return time.Unix(sec, 0).UTC(), true, nil
}

func (r *Resolver) put(ctx context.Context, ident *Identity) error {
	raw, err := json.Marshal(ident)
	if err != nil {
		return err
	}
	return r.store.HSet(ctx, UsernamesKey, strings.ToLower(ident.Username), string(raw))
}
