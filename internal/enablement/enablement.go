// Package enablement stores which modules are disabled in each conversation.
//
// The disabled set of a conversation lives under chat<id>:disabledPlugins in the
// key-value store. Only the configurable modules of the catalog may appear in it.
package enablement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"plugbot/internal/kv"
)

// SelfModule is the slug of the module exposing enable and disable commands.
const SelfModule = "plugins"

// ErrSelf is returned when asked to disable SelfModule.
var ErrSelf = errors.New("I won't disable myself")

// UnknownModuleError names a slug that is unknown or essential.
type UnknownModuleError struct {
	Name string
}

func (e *UnknownModuleError) Error() string {
	return "Unknown plugin: " + e.Name
}

// Catalog is the view of the loaded modules the store validates against.
type Catalog interface {
	// Configurable returns the sorted slugs that can be enabled or disabled.
	Configurable() []string
	// Known reports whether slug is configurable.
	Known(slug string) bool
	// Failed reports whether slug failed to load.
	Failed(slug string) bool
}

// State is how a module is displayed in a status listing.
type State int

const (
	StateEnabled State = iota
	StateDisabled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateFailed:
		return "failed"
	default:
		return "enabled"
	}
}

// Status is one row of ListStatus.
type Status struct {
	Module   string
	Disabled bool
	Failed   bool
}

// State returns the display state. A failed module shows as failed even when it
// is also disabled.
func (s Status) State() State {
	switch {
	case s.Failed:
		return StateFailed
	case s.Disabled:
		return StateDisabled
	default:
		return StateEnabled
	}
}

// Store validates and applies enablement changes.
type Store struct {
	kv      kv.Store
	catalog Catalog
}

// New creates a Store over a key-value backend.
func New(store kv.Store, catalog Catalog) *Store {
	return &Store{kv: store, catalog: catalog}
}

// Key returns the disabled-set key of a conversation.
func Key(conversationID int64) string {
	return fmt.Sprintf("chat%d:disabledPlugins", conversationID)
}

// Disable adds names to the conversation's disabled set and returns how many
// were newly added. Nothing is applied if any name is invalid.
func (s *Store) Disable(ctx context.Context, conversationID int64, names []string) (int64, error) {
	slugs, err := s.validate(names, true)
	if err != nil {
		return 0, err
	}
	if len(slugs) == 0 {
		return 0, nil
	}
	return s.kv.SAdd(ctx, Key(conversationID), slugs...)
}

// Enable removes names from the conversation's disabled set and returns how many
// were removed. Nothing is applied if any name is invalid.
func (s *Store) Enable(ctx context.Context, conversationID int64, names []string) (int64, error) {
	slugs, err := s.validate(names, false)
	if err != nil {
		return 0, err
	}
	if len(slugs) == 0 {
		return 0, nil
	}
	return s.kv.SRem(ctx, Key(conversationID), slugs...)
}

// IsDisabled reports whether slug is disabled in the conversation. It costs one
// store round trip.
func (s *Store) IsDisabled(ctx context.Context, conversationID int64, slug string) (bool, error) {
	return s.kv.SIsMember(ctx, Key(conversationID), strings.ToLower(slug))
}

// ListStatus reports every configurable module in catalog order using one
// batched membership query.
func (s *Store) ListStatus(ctx context.Context, conversationID int64) ([]Status, error) {
	modules := s.catalog.Configurable()
	if len(modules) == 0 {
		return nil, nil
	}

	disabled, err := s.kv.SMIsMember(ctx, Key(conversationID), modules...)
	if err != nil {
		return nil, fmt.Errorf("list plugin status: %w", err)
	}
	if len(disabled) != len(modules) {
		return nil, fmt.Errorf("list plugin status: got %d answers for %d plugins", len(disabled), len(modules))
	}

	statuses := make([]Status, len(modules))
	for i, slug := range modules {
		statuses[i] = Status{
			Module:   slug,
			Disabled: disabled[i],
			Failed:   s.catalog.Failed(slug),
		}
	}
	return statuses, nil
}

func (s *Store) validate(names []string, disabling bool) ([]string, error) {
	slugs := make([]string, 0, len(names))
	for _, name := range names {
		slug := strings.ToLower(name)
		if disabling && slug == SelfModule {
			return nil, ErrSelf
		}
		if !s.catalog.Known(slug) {
			return nil, &UnknownModuleError{Name: slug}
		}
		slugs = append(slugs, slug)
	}
	return slugs, nil
}
