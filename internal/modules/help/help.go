// Package help lists the commands available in a chat.
package help

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"plugbot/internal/commands"
	"plugbot/internal/enablement"
	"plugbot/internal/plugins"
	"plugbot/pkg/bottypes"
)

// Module implements bottypes.Module.
type Module struct {
	registry   *commands.Registry
	enablement *enablement.Store
}

var (
	_ bottypes.Module = (*Module)(nil)
	_ plugins.Starter = (*Module)(nil)
)

// New creates the module.
func New() *Module {
	return &Module{}
}

// Name implements bottypes.Module.
func (m *Module) Name() string {
	return "help"
}

// Init implements bottypes.Module.
func (m *Module) Init(reg bottypes.Registrar, _ bottypes.Prefs) error {
	return reg.Register([]string{"help"}, bottypes.Handler{
		Fn:   m.help,
		Help: "Lists available commands. /help <command> shows help for one command.",
	})
}

// Start implements plugins.Starter.
func (m *Module) Start(rt *plugins.Runtime) error {
	if rt.Registry == nil {
		return errors.New("help needs the command registry")
	}
	m.registry = rt.Registry
	m.enablement = rt.Enablement
	return nil
}

type group struct {
	names []string
	help  string
}

func (m *Module) help(ctx context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
	if name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(msg.Args)), "/"); name != "" {
		h, ok := m.registry.Lookup(name)
		if !ok {
			return bottypes.Sayf("Unknown command: /%s", name), nil
		}
		if h.Help == "" {
			return bottypes.Sayf("/%s has no help text.", name), nil
		}
		return bottypes.Sayf("/%s\n%s", name, h.Help), nil
	}

	disabled, err := m.disabledModules(ctx, msg.Chat.ID)
	if err != nil {
		return nil, err
	}

	// Aliases share one handler and help text, so they are listed together.
	var groups []*group
	index := make(map[string]*group)
	for _, e := range m.registry.Commands() {
		if disabled[e.Handler.Module] {
			continue
		}
		key := e.Handler.Module + "\x00" + e.Handler.Help
		g, ok := index[key]
		if !ok || e.Handler.Help == "" {
			g = &group{help: e.Handler.Help}
			index[key] = g
			groups = append(groups, g)
		}
		g.names = append(g.names, "/"+e.Name)
	}

	var b strings.Builder
	b.WriteString("Available commands:")
	for _, g := range groups {
		fmt.Fprintf(&b, "\n%s", strings.Join(g.names, ", "))
		if g.help != "" {
			first, _, _ := strings.Cut(g.help, "\n")
			fmt.Fprintf(&b, " - %s", first)
		}
	}
	return bottypes.Say(b.String()), nil
}

func (m *Module) disabledModules(ctx context.Context, chatID int64) (map[string]bool, error) {
	disabled := make(map[string]bool)
	if m.enablement == nil {
		return disabled, nil
	}
	statuses, err := m.enablement.ListStatus(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for _, s := range statuses {
		if s.Disabled {
			disabled[s.Module] = true
		}
	}
	return disabled, nil
}
