package plugins

import (
	"context"
	"fmt"
	"time"

	"plugbot/internal/commands"
	"plugbot/internal/enablement"
	"plugbot/internal/logger"
	"plugbot/pkg/bottypes"
)

// Load instantiates and initializes each configured module in order. A module
// whose Init fails or panics is recorded as failed and its registrations are
// rolled back; loading continues with the next module. Unknown names fail too.
func Load(ctx context.Context, b *commands.Builder, specs []Spec, factories map[string]Factory) *Catalog {
	log := logger.NewStyledLogger("Plugins")
	started := time.Now()
	catalog := newCatalog()

	for _, spec := range specs {
		slug := Slug(spec.Name)
		entry := Entry{Slug: slug, Essential: spec.Essential}

		switch {
		case ctx.Err() != nil:
			entry.Err = ctx.Err()
		case catalog.Has(slug):
			entry.Err = fmt.Errorf("plugin %s is listed twice", slug)
		default:
			factory, ok := factories[slug]
			if !ok {
				entry.Err = fmt.Errorf("no plugin named %s", slug)
				break
			}
			scope := b.Scope(slug)
			entry.Module, entry.Err = initModule(factory, scope, spec.Prefs)
			if entry.Err == nil {
				entry.Err = scope.Commit()
			}
			if entry.Err != nil {
				scope.Discard()
			} else {
				catalog.observers = append(catalog.observers, scope.Observers()...)
			}
		}

		if entry.Err != nil {
			log.Error("Failed to load plugin", "plugin", spec.Name, "error", entry.Err)
		} else {
			log.Debug("Loaded plugin", "plugin", slug, "essential", spec.Essential)
		}
		catalog.add(entry)
	}

	log.Info(fmt.Sprintf("Done loading plugins: %d OK, %d failed.", catalog.Loaded(), catalog.FailedCount()),
		"elapsed", time.Since(started))
	return catalog
}

func initModule(factory Factory, reg bottypes.Registrar, prefs bottypes.Prefs) (m bottypes.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during init: %v", r)
		}
	}()

	m = factory()
	if m == nil {
		return nil, fmt.Errorf("factory returned no module")
	}
	if prefs == nil {
		prefs = bottypes.Prefs{}
	}
	if err := m.Init(reg, prefs); err != nil {
		return m, err
	}
	return m, nil
}

// Runtime is the read-only context handed to modules once the registry is sealed.
type Runtime struct {
	Registry   *commands.Registry
	Enablement *enablement.Store
	Catalog    *Catalog
}

// Starter is implemented by modules that need the runtime after loading.
type Starter interface {
	Start(rt *Runtime) error
}

// Start calls Start on every loaded module implementing Starter. A module whose
// Start fails is marked failed; its commands stay registered.
func Start(rt *Runtime) {
	log := logger.NewStyledLogger("Plugins")
	for i, e := range rt.Catalog.entries {
		if !e.OK() {
			continue
		}
		s, ok := e.Module.(Starter)
		if !ok {
			continue
		}
		if err := s.Start(rt); err != nil {
			log.Error("Failed to start plugin", "plugin", e.Slug, "error", err)
			rt.Catalog.entries[i].Err = err
		}
	}
}
