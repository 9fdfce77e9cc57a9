// Package bot wires configuration, storage, transport and feature modules into
// a running dispatcher.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"plugbot/internal/commands"
	"plugbot/internal/config"
	"plugbot/internal/dispatch"
	"plugbot/internal/enablement"
	"plugbot/internal/kv"
	"plugbot/internal/kv/memory"
	"plugbot/internal/kv/redis"
	"plugbot/internal/kv/sqlite"
	"plugbot/internal/logger"
	"plugbot/internal/modules/help"
	"plugbot/internal/modules/id"
	"plugbot/internal/modules/memes"
	pluginsmod "plugbot/internal/modules/plugins"
	"plugbot/internal/modules/quote"
	"plugbot/internal/plugins"
	"plugbot/internal/respond"
	"plugbot/internal/transport"
	"plugbot/internal/transport/telegram"
	"plugbot/pkg/bottypes"
)

// OpenStore opens the configured key-value backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (kv.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return memory.New(), nil
	case config.BackendRedis:
		s, err := redis.Open(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Factories returns the constructors of every built-in module, keyed by slug.
func Factories(client transport.Client, store kv.Store) map[string]plugins.Factory {
	return map[string]plugins.Factory{
		enablement.SelfModule: func() bottypes.Module { return pluginsmod.New(client) },
		"help":                func() bottypes.Module { return help.New() },
		"id":                  func() bottypes.Module { return id.New(store, client) },
		"memes":               func() bottypes.Module { return memes.New(client) },
		"quote":               func() bottypes.Module { return quote.New(store, client, id.NewResolver(store)) },
	}
}

// Bot is a loaded plugin set bound to a transport and a store.
type Bot struct {
	client     transport.Client
	store      kv.Store
	catalog    *plugins.Catalog
	registry   *commands.Registry
	enablement *enablement.Store
	dispatcher *dispatch.Dispatcher
	logger     *log.Logger
}

// New loads cfg.Plugins and builds the dispatcher. The bot takes ownership of
// store and closes it in Close.
func New(ctx context.Context, cfg *config.Config, client transport.Client, store kv.Store) (*Bot, error) {
	return NewWithFactories(ctx, cfg, client, store, Factories(client, store))
}

// NewWithFactories is New with a custom module set.
func NewWithFactories(ctx context.Context, cfg *config.Config, client transport.Client, store kv.Store, factories map[string]plugins.Factory) (*Bot, error) {
	if cfg == nil || client == nil || store == nil {
		return nil, errors.New("bot needs a config, a transport and a store")
	}
	me, err := client.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bot identity: %w", err)
	}

	b := &Bot{client: client, store: store, logger: logger.NewStyledLogger("Bot")}

	builder := commands.NewBuilder()
	b.catalog = plugins.Load(ctx, builder, cfg.Plugins, factories)
	b.registry = builder.Build()
	b.enablement = enablement.New(store, b.catalog)
	plugins.Start(&plugins.Runtime{Registry: b.registry, Enablement: b.enablement, Catalog: b.catalog})

	b.dispatcher, err = dispatch.New(dispatch.Config{
		Registry:    b.registry,
		Enablement:  b.enablement,
		Responder:   respond.New(client),
		Observers:   b.catalog.Observers(),
		Username:    me.Username,
		MaxAge:      cfg.MaxMessageAge,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("Bot ready", "username", me.Username, "commands", b.registry.Len(),
		"plugins", b.catalog.Loaded(), "failed", b.catalog.FailedCount())
	return b, nil
}

// Catalog returns the load outcomes.
func (b *Bot) Catalog() *plugins.Catalog {
	return b.catalog
}

// Dispatcher returns the message dispatcher.
func (b *Bot) Dispatcher() *dispatch.Dispatcher {
	return b.dispatcher
}

// Run receives updates and dispatches them until ctx is cancelled or the
// update stream ends.
func (b *Bot) Run(ctx context.Context) error {
	in, err := b.client.Updates(ctx)
	if err != nil {
		return fmt.Errorf("failed to start receiving updates: %w", err)
	}
	b.logger.Info("Receiving updates")
	b.dispatcher.Run(ctx, in)
	b.logger.Info("Stopped receiving updates")
	return nil
}

// Close releases the store.
func (b *Bot) Close() error {
	return b.store.Close()
}

// Start opens the configured store and the Telegram transport, then builds the bot.
func Start(ctx context.Context, cfg *config.Config) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	client, err := telegram.New(telegram.Options{
		Token:       cfg.Token,
		Endpoint:    cfg.APIEndpoint,
		PollTimeout: cfg.PollTimeout,
		Debug:       cfg.Debug,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	b, err := New(ctx, cfg, client, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return b, nil
}
