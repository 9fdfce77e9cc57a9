package id

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plugbot/internal/kv"
	"plugbot/internal/transport"
	"plugbot/pkg/bottypes"
)

// Replies shown to users.
const (
	MsgUnresolved = "Failed to resolve."
	MsgNoChatInfo = "I couldn't obtain any info about chat with this id."
)

// Module implements bottypes.Module.
type Module struct {
	resolver *Resolver
	chats    transport.Client
}

var _ bottypes.Module = (*Module)(nil)

// New creates the module over store, looking unknown ids up through chats.
func New(store kv.Store, chats transport.Client) *Module {
	return &Module{resolver: NewResolver(store), chats: chats}
}

// Resolver returns the module's resolver for use by other modules.
func (m *Module) Resolver() *Resolver {
	return m.resolver
}

// Name implements bottypes.Module.
func (m *Module) Name() string {
	return "id"
}

// Init implements bottypes.Module.
func (m *Module) Init(reg bottypes.Registrar, _ bottypes.Prefs) error {
	reg.Observe(bottypes.ObserverFunc(func(ctx context.Context, msg *bottypes.Message) (bool, error) {
		return false, m.resolver.Record(ctx, msg)
	}))

	return reg.Register([]string{"id"}, bottypes.Handler{
		Fn:   m.id,
		Help: "Shows details of a user or chat given by id, @username, mention or reply. Without one, shows this chat.",
	})
}

func (m *Module) id(ctx context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
	target, err := m.resolver.Target(ctx, msg)
	if errors.Is(err, ErrUnresolved) {
		return bottypes.Say(MsgUnresolved), nil
	}
	if err != nil {
		return nil, err
	}
	if target == nil {
		target = FromChat(msg.Chat)
	}

	if target.IDOnly() {
		chat, err := m.chats.GetChat(ctx, target.ID)
		if err != nil {
			return bottypes.Say(MsgNoChatInfo), nil
		}
		target = FromChat(chat)
	}

	var lastSeen time.Time
	if target.IsPrivate() {
		if seen, ok, err := m.resolver.LastSeen(ctx, target.ID); err == nil && ok {
			lastSeen = seen
		}
	}
	return bottypes.Say(describe(target, lastSeen)), nil
}

func describe(i *Identity, lastSeen time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d", i.ID)
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "\n%s: %s", name, value)
		}
	}
	field("type", i.Type)
	field("title", i.Title)
	if i.Username != "" {
		field("username", "@"+i.Username)
	}
	field("first name", i.FirstName)
	field("last name", i.LastName)
	if i.IsBot {
		field("bot", "yes")
	}
	if !lastSeen.IsZero() {
		field("last seen", lastSeen.Format(time.RFC3339))
	}
	return b.String()
}
