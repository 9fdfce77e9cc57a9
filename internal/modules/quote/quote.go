// Package quote saves replied-to messages as quotes and forwards random ones back.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"plugbot/internal/kv"
	"plugbot/internal/logger"
	"plugbot/internal/modules/id"
	"plugbot/internal/transport"
	"plugbot/pkg/bottypes"
)

// Replies shown to users.
const (
	MsgNoReply  = "Reply to a message you'd like to save"
	MsgOwnQuote = "You cannot save your own message, someone else must find it worthwhile"
	MsgSaved    = "Quote saved. Use /quote to retrieve a random quote."
	MsgNoQuotes = "No quotes. Reply to a message with /savequote first."
)

// staleDescriptions are forward failures after which a quote is dropped and another one tried.
var staleDescriptions = map[string]bool{
	"Bad Request: message to forward not found":          true,
	"Forbidden: bot was kicked from the supergroup chat": true,
}

// Key returns the quote set of a chat or user.
func Key(id int64) string {
	return fmt.Sprintf("chat%d:quotes", id)
}

// Entry points at a saved message.
type Entry struct {
	Chat int64 `json:"chat"`
	Msg  int   `json:"msg"`
}

// Module implements bottypes.Module.
type Module struct {
	store    kv.Store
	client   transport.Client
	resolver *id.Resolver
	logger   *log.Logger
}

var _ bottypes.Module = (*Module)(nil)

// New creates the module.
func New(store kv.Store, client transport.Client, resolver *id.Resolver) *Module {
	return &Module{
		store:    store,
		client:   client,
		resolver: resolver,
		logger:   logger.NewStyledLogger("Quote"),
	}
}

// Name implements bottypes.Module.
func (m *Module) Name() string {
	return "quote"
}

// Init implements bottypes.Module.
func (m *Module) Init(reg bottypes.Registrar, _ bottypes.Prefs) error {
	if err := reg.Register([]string{"savequote"}, bottypes.Handler{
		Fn:   m.save,
		Help: "Reply to a message to save it as quote. It may then randomly appear when /quote is used.",
	}); err != nil {
		return err
	}
	return reg.Register([]string{"quote"}, bottypes.Handler{
		Fn: m.quote,
		Help: "Get a random quote of person specified as argument (by id or username), replied-to person, or someone random from this chat.\n" +
			"Reply to message with /savequote to save it as possible quote.",
	})
}

func (m *Module) save(ctx context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
	if msg.ReplyTo == nil || msg.ReplyTo.From == nil {
		return bottypes.Say(MsgNoReply), nil
	}
	if msg.From != nil && msg.From.ID == msg.ReplyTo.From.ID {
		return bottypes.Say(MsgOwnQuote), nil
	}

	raw, err := json.Marshal(Entry{Chat: msg.Chat.ID, Msg: msg.ReplyTo.ID})
	if err != nil {
		return nil, err
	}
	if _, err := m.store.SAdd(ctx, Key(msg.Chat.ID), string(raw)); err != nil {
		return nil, err
	}
	if _, err := m.store.SAdd(ctx, Key(msg.ReplyTo.From.ID), string(raw)); err != nil {
		return nil, err
	}
	return bottypes.Say(MsgSaved), nil
}

func (m *Module) quote(_ context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
	return bottypes.Defer(func(ctx context.Context) (bottypes.Reply, error) {
		target, err := m.resolver.Target(ctx, msg)
		if errors.Is(err, id.ErrUnresolved) {
			return bottypes.Say(id.MsgUnresolved), nil
		}
		if err != nil {
			return nil, err
		}
		owner := msg.Chat.ID
		if target != nil {
			owner = target.ID
		}
		return m.forwardRandom(ctx, msg.Chat.ID, owner)
	}), nil
}

// forwardRandom forwards a random quote of owner into chatID. Quotes that can
// no longer be forwarded are removed and another one is picked.
func (m *Module) forwardRandom(ctx context.Context, chatID, owner int64) (bottypes.Reply, error) {
	key := Key(owner)
	for {
		raw, ok, err := m.store.SRandMember(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return bottypes.Say(MsgNoQuotes), nil
		}

		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			m.logger.Warn("Dropping unreadable quote", "key", key, "error", err)
			if _, err := m.store.SRem(ctx, key, raw); err != nil {
				return nil, err
			}
			continue
		}

		err = m.client.Forward(ctx, chatID, entry.Chat, entry.Msg)
		if err == nil {
			return bottypes.None(), nil
		}
		te, ok := transport.AsError(err)
		if !ok || !staleDescriptions[te.Description] {
			return nil, err
		}
		m.logger.Debug("Dropping stale quote", "key", key, "chat", entry.Chat, "error", te.Description)
		if _, err := m.store.SRem(ctx, key, raw); err != nil {
			return nil, err
		}
	}
}
