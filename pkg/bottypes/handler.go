package bottypes

import "context"

// HandlerFunc runs a command. A returned error is shown to the user as a tagged error.
type HandlerFunc func(ctx context.Context, msg *Message) (Reply, error)

// Handler is a command implementation contributed by a module.
type Handler struct {
	Fn   HandlerFunc
	Help string
	// HTML sends text replies in HTML parse mode.
	HTML bool
	// Module is the owning module slug. The registry sets it; modules leave it empty.
	Module string
}

// Observer sees every inbound message before command dispatch, without
// disablement gating. Returning consumed=true suppresses the command handler.
type Observer interface {
	Observe(ctx context.Context, msg *Message) (consumed bool, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, msg *Message) (bool, error)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, msg *Message) (bool, error) {
	return f(ctx, msg)
}

// Registrar is the load-time surface handed to each module.
type Registrar interface {
	// Register binds each of names to h. Names are case-insensitive and must be unique
	// across all modules.
	Register(names []string, h Handler) error
	// Observe subscribes to the raw inbound message stream.
	Observe(o Observer)
}

// Prefs is the free-form per-module configuration value.
type Prefs map[string]interface{}

// String returns the string preference key, or def when unset.
func (p Prefs) String(key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Module is a unit of functionality loaded once at startup.
type Module interface {
	// Name is the module's source identifier; its lowercase form is the slug.
	Name() string
	// Init registers commands and observers. It runs during the load phase only.
	Init(reg Registrar, prefs Prefs) error
}
