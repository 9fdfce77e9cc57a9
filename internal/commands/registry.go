// Package commands provides the command registry for plugbot.
// Registration happens through a Builder during the module load phase; Build seals
// the builder and returns a read-only Registry that is shared by all dispatches.
package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"plugbot/internal/logger"
	"plugbot/pkg/bottypes"
)

// ErrSealed is returned by Register once the load phase is over.
var ErrSealed = errors.New("command registry is sealed")

// ErrEmptyName is returned when a command name is empty.
var ErrEmptyName = errors.New("command name cannot be empty")

// CollisionError reports a command name that another module already owns.
type CollisionError struct {
	Command string
	Owner   string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("Attempt to register %s command, already registered by %s plugin", e.Command, e.Owner)
}

// Builder collects registrations during the load phase.
type Builder struct {
	mu       sync.Mutex
	commands map[string]bottypes.Handler
	sealed   bool
	logger   *log.Logger
}

// NewBuilder creates an empty, unsealed builder.
func NewBuilder() *Builder {
	return &Builder{
		commands: make(map[string]bottypes.Handler),
		logger:   logger.NewStyledLogger("Registry"),
	}
}

// SetLogger replaces the builder's logger.
func (b *Builder) SetLogger(l *log.Logger) {
	b.logger = l
}

// Scope returns a registrar bound to one module. Registrations made through the
// scope are staged until Commit.
func (b *Builder) Scope(module string) *Scope {
	return &Scope{
		builder: b,
		module:  strings.ToLower(module),
		staged:  make(map[string]bottypes.Handler),
	}
}

// owner returns the module owning name across committed registrations.
func (b *Builder) owner(name string) (string, bool) {
	h, ok := b.commands[name]
	return h.Module, ok
}

// Build seals the builder and returns the runtime registry. Calling Build twice
// returns registries with identical contents.
func (b *Builder) Build() *Registry {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sealed = true
	commands := make(map[string]bottypes.Handler, len(b.commands))
	for name, h := range b.commands {
		commands[name] = h
	}
	return &Registry{commands: commands}
}

// Sealed reports whether Build has been called.
func (b *Builder) Sealed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealed
}

// Scope is a per-module view of a Builder.
type Scope struct {
	builder   *Builder
	module    string
	staged    map[string]bottypes.Handler
	observers []bottypes.Observer
}

// Module returns the slug this scope registers for.
func (s *Scope) Module() string {
	return s.module
}

// Register binds each name to h. The whole call fails on the first collision,
// either with another module's committed command or with a name this module already staged.
func (s *Scope) Register(names []string, h bottypes.Handler) error {
	s.builder.mu.Lock()
	defer s.builder.mu.Unlock()

	if s.builder.sealed {
		s.builder.logger.Error("Register called after load phase", "plugin", s.module, "commands", names)
		return fmt.Errorf("register %v: %w", names, ErrSealed)
	}
	if h.Fn == nil {
		return fmt.Errorf("register %v: handler has no function", names)
	}

	h.Module = s.module
	lowered := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return ErrEmptyName
		}
		if owner, taken := s.builder.owner(key); taken {
			return &CollisionError{Command: name, Owner: owner}
		}
		if _, taken := s.staged[key]; taken || seen[key] {
			return &CollisionError{Command: name, Owner: s.module}
		}
		seen[key] = true
		lowered = append(lowered, key)
	}

	for _, key := range lowered {
		s.staged[key] = h
	}
	return nil
}

// Observe subscribes o to the raw message stream once the scope commits.
func (s *Scope) Observe(o bottypes.Observer) {
	s.observers = append(s.observers, o)
}

// Observers returns the observers staged by this scope.
func (s *Scope) Observers() []bottypes.Observer {
	return s.observers
}

// Commit publishes the staged registrations. It fails if the builder was sealed
// or a staged name was taken in the meantime; nothing is published in that case.
func (s *Scope) Commit() error {
	s.builder.mu.Lock()
	defer s.builder.mu.Unlock()

	if s.builder.sealed {
		return ErrSealed
	}
	for key := range s.staged {
		if owner, taken := s.builder.owner(key); taken {
			return &CollisionError{Command: key, Owner: owner}
		}
	}
	for key, h := range s.staged {
		s.builder.commands[key] = h
	}
	s.staged = make(map[string]bottypes.Handler)
	return nil
}

// Discard drops everything staged by this scope.
func (s *Scope) Discard() {
	s.builder.mu.Lock()
	defer s.builder.mu.Unlock()
	s.staged = make(map[string]bottypes.Handler)
	s.observers = nil
}

// Registry is the sealed, read-only command table.
type Registry struct {
	commands map[string]bottypes.Handler
}

// Entry is a registered command and its handler.
type Entry struct {
	Name    string
	Handler bottypes.Handler
}

// Lookup returns the handler bound to name, matched case-insensitively.
func (r *Registry) Lookup(name string) (bottypes.Handler, bool) {
	h, ok := r.commands[strings.ToLower(name)]
	return h, ok
}

// Len returns the number of registered command names.
func (r *Registry) Len() int {
	return len(r.commands)
}

// Commands returns all registrations sorted by command name.
func (r *Registry) Commands() []Entry {
	entries := make([]Entry, 0, len(r.commands))
	for name, h := range r.commands {
		entries = append(entries, Entry{Name: name, Handler: h})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}
