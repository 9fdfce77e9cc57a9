// Package plugins is the module that lists plugins and enables or disables them
// per chat. It is the one module that can never be disabled.
package plugins

import (
	"context"
	"errors"
	"strings"

	"plugbot/internal/data/embedded"
	"plugbot/internal/enablement"
	pluginload "plugbot/internal/plugins"
	"plugbot/internal/transport"
	"plugbot/pkg/bottypes"
)

// Replies shown to users.
const (
	MsgNoDisableArgs = "Give me name of a plugin to disable."
	MsgNoEnableArgs  = "Give me name of a plugin to enable."
	MsgNoPermission  = "You need the permission to change chat info to do that."
	MsgNoPlugins     = "There are no configurable plugins."
)

// Module implements bottypes.Module.
type Module struct {
	members transport.Client
	emoji   *emojiCatalog
	store   *enablement.Store
}

var (
	_ bottypes.Module    = (*Module)(nil)
	_ pluginload.Starter = (*Module)(nil)
)

// New creates the module. members is used to check the caller's chat permissions.
func New(members transport.Client) *Module {
	return &Module{members: members}
}

// Name implements bottypes.Module.
func (m *Module) Name() string {
	return enablement.SelfModule
}

// Init implements bottypes.Module.
func (m *Module) Init(reg bottypes.Registrar, _ bottypes.Prefs) error {
	emoji, err := loadEmoji(embedded.EmojiData)
	if err != nil {
		return err
	}
	m.emoji = emoji

	if err := reg.Register([]string{"plugins"}, bottypes.Handler{
		Fn: m.list,
		Help: strings.Join([]string{
			"Lists configurable plugins and their status in this chat:",
			"",
			emoji.State(enablement.StateEnabled) + " -- enabled",
			emoji.State(enablement.StateDisabled) + " -- disabled",
			emoji.State(enablement.StateFailed) + " -- failed to load. It's our fault, not yours.",
		}, "\n"),
	}); err != nil {
		return err
	}
	if err := reg.Register([]string{"disable"}, bottypes.Handler{
		Fn:   m.requireChangeInfo(m.disable),
		Help: "Disables the given plugins in this chat. Needs the permission to change chat info.",
	}); err != nil {
		return err
	}
	return reg.Register([]string{"enable"}, bottypes.Handler{
		Fn:   m.requireChangeInfo(m.enable),
		Help: "Enables the given plugins in this chat. Needs the permission to change chat info.",
	})
}

// Start implements plugins.Starter.
func (m *Module) Start(rt *pluginload.Runtime) error {
	if rt.Enablement == nil {
		return errors.New("plugins module needs an enablement store")
	}
	m.store = rt.Enablement
	return nil
}

func (m *Module) list(ctx context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
	statuses, err := m.store.ListStatus(ctx, msg.Chat.ID)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return bottypes.Say(MsgNoPlugins), nil
	}

	lines := make([]string, len(statuses))
	for i, s := range statuses {
		lines[i] = m.emoji.State(s.State()) + " " + s.Module
	}
	return bottypes.Say(strings.Join(lines, "\n")), nil
}

func (m *Module) disable(ctx context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
	if msg.Args == "" {
		return bottypes.Say(MsgNoDisableArgs), nil
	}
	n, err := m.store.Disable(ctx, msg.Chat.ID, strings.Fields(msg.Args))
	if err != nil {
		return validationReply(err)
	}
	return bottypes.Sayf("%d plugins disabled.", n), nil
}

func (m *Module) enable(ctx context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
	if msg.Args == "" {
		return bottypes.Say(MsgNoEnableArgs), nil
	}
	n, err := m.store.Enable(ctx, msg.Chat.ID, strings.Fields(msg.Args))
	if err != nil {
		return validationReply(err)
	}
	return bottypes.Sayf("%d plugins enabled.", n), nil
}

// validationReply shows validation failures as plain text and passes store
// failures on to the tagged-error channel.
func validationReply(err error) (bottypes.Reply, error) {
	var unknown *enablement.UnknownModuleError
	if errors.Is(err, enablement.ErrSelf) || errors.As(err, &unknown) {
		return bottypes.Say(err.Error()), nil
	}
	return nil, err
}

func (m *Module) requireChangeInfo(next bottypes.HandlerFunc) bottypes.HandlerFunc {
	return func(ctx context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
		if msg.Chat.IsPrivate() {
			return next(ctx, msg)
		}
		if msg.From == nil {
			return bottypes.Say(MsgNoPermission), nil
		}
		member, err := m.members.ChatMember(ctx, msg.Chat.ID, msg.From.ID)
		if err != nil {
			return nil, err
		}
		switch {
		case member.Status == transport.StatusCreator:
		case member.Status == transport.StatusAdministrator && member.CanChangeInfo:
		default:
			return bottypes.Say(MsgNoPermission), nil
		}
		return next(ctx, msg)
	}
}
