// Package dispatch routes inbound messages to command handlers.
//
// Each message first goes through every observer, then through a chain of
// guards that end the dispatch silently at the first failure: freshness,
// command entity, bot mention, registry lookup, per-conversation disablement
// and the observers' consumed signal. Only a message that passes all of them
// reaches its handler, whose result goes to the responder.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"plugbot/internal/commands"
	"plugbot/internal/logger"
	"plugbot/internal/parser"
	"plugbot/internal/respond"
	"plugbot/pkg/bottypes"
)

// DefaultMaxAge is the staleness threshold used when Config.MaxAge is zero.
const DefaultMaxAge = time.Minute

// DefaultConcurrency bounds in-flight dispatches when Config.Concurrency is zero.
const DefaultConcurrency = 64

// Outcome is the terminal state of one dispatch.
type Outcome int

const (
	Invoked Outcome = iota
	Stale
	NotCommand
	ForeignMention
	UnknownCommand
	Disabled
	Consumed
	StoreError
)

func (o Outcome) String() string {
	switch o {
	case Invoked:
		return "invoked"
	case Stale:
		return "stale"
	case NotCommand:
		return "not-command"
	case ForeignMention:
		return "foreign-mention"
	case UnknownCommand:
		return "unknown-command"
	case Disabled:
		return "disabled"
	case Consumed:
		return "consumed"
	case StoreError:
		return "store-error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Enablement answers the disablement guard.
type Enablement interface {
	IsDisabled(ctx context.Context, conversationID int64, slug string) (bool, error)
}

// Responder turns a handler result into a reply.
type Responder interface {
	Respond(ctx context.Context, msg *bottypes.Message, html bool, reply bottypes.Reply, err error)
}

// Config wires a Dispatcher.
type Config struct {
	Registry   *commands.Registry
	Enablement Enablement
	Responder  Responder
	Observers  []bottypes.Observer
	// Username is the bot's own username, used for @mention matching.
	Username string
	// MaxAge is the staleness threshold. Zero means DefaultMaxAge, negative disables the check.
	MaxAge time.Duration
	// Concurrency bounds in-flight dispatches in Run. Zero means DefaultConcurrency.
	Concurrency int
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *log.Logger
}

// Dispatcher runs the per-message pipeline. It is safe for concurrent use.
type Dispatcher struct {
	registry    *commands.Registry
	enablement  Enablement
	responder   Responder
	observers   []bottypes.Observer
	username    string
	maxAge      time.Duration
	concurrency int64
	now         func() time.Time
	logger      *log.Logger
}

// New creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("dispatch: registry is required")
	}
	if cfg.Enablement == nil {
		return nil, errors.New("dispatch: enablement store is required")
	}
	if cfg.Responder == nil {
		return nil, errors.New("dispatch: responder is required")
	}

	d := &Dispatcher{
		registry:    cfg.Registry,
		enablement:  cfg.Enablement,
		responder:   cfg.Responder,
		observers:   append([]bottypes.Observer(nil), cfg.Observers...),
		username:    cfg.Username,
		maxAge:      cfg.MaxAge,
		concurrency: int64(cfg.Concurrency),
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
	if d.maxAge == 0 {
		d.maxAge = DefaultMaxAge
	}
	if d.concurrency <= 0 {
		d.concurrency = DefaultConcurrency
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.logger == nil {
		d.logger = logger.NewStyledLogger("Dispatch")
	}
	return d, nil
}

// Dispatch processes one message to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *bottypes.Message) Outcome {
	l := d.logger.With("dispatch", uuid.NewString(), "chat", msg.Chat.ID)

	consumed := d.observe(ctx, l, msg)

	if d.maxAge > 0 && d.now().Sub(msg.Date) > d.maxAge {
		l.Debug("Ignoring stale message", "age", d.now().Sub(msg.Date))
		return Stale
	}

	cmd, err := parser.ParseCommand(msg.Text, msg.Entities, d.username)
	switch {
	case errors.Is(err, parser.ErrForeignMention):
		l.Debug("Ignoring command for another bot")
		return ForeignMention
	case err != nil:
		return NotCommand
	}

	h, ok := d.registry.Lookup(cmd.Name)
	if !ok {
		l.Debug("Ignoring unknown command", "command", cmd.Name)
		return UnknownCommand
	}

	disabled, err := d.enablement.IsDisabled(ctx, msg.Chat.ID, h.Module)
	if err != nil {
		l.Debug("Disablement lookup failed", "command", cmd.Name, "plugin", h.Module, "error", err)
		return StoreError
	}
	if disabled {
		l.Debug("Ignoring disabled command", "command", cmd.Name, "plugin", h.Module)
		return Disabled
	}

	if consumed {
		l.Debug("Message consumed by observer", "command", cmd.Name)
		return Consumed
	}

	msg.Args = cmd.Args
	l.Debug("Invoking handler", "command", cmd.Name, "plugin", h.Module)
	reply, err := d.invoke(ctx, l, h, msg)
	d.responder.Respond(ctx, msg, h.HTML, reply, err)
	return Invoked
}

func (d *Dispatcher) observe(ctx context.Context, l *log.Logger, msg *bottypes.Message) bool {
	consumed := false
	for _, o := range d.observers {
		c, err := safeObserve(ctx, o, msg)
		if err != nil {
			l.Warn("Observer failed", "error", err)
		}
		consumed = consumed || c
	}
	return consumed
}

func safeObserve(ctx context.Context, o bottypes.Observer, msg *bottypes.Message) (consumed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			consumed, err = false, fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return o.Observe(ctx, msg)
}

func (d *Dispatcher) invoke(ctx context.Context, l *log.Logger, h bottypes.Handler, msg *bottypes.Message) (reply bottypes.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.Error("Handler panicked", "plugin", h.Module, "panic", r)
			reply, err = nil, &respond.Error{Code: respond.CodePanic, Description: fmt.Sprintf("Function Error: %v", r)}
		}
	}()
	return h.Fn(ctx, msg)
}

// Run dispatches messages from in concurrently until in is closed or ctx is
// cancelled, then waits for in-flight dispatches. Handlers already running are
// not cancelled.
func (d *Dispatcher) Run(ctx context.Context, in <-chan *bottypes.Message) {
	sem := semaphore.NewWeighted(d.concurrency)
	handlerCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			// A received message is always dispatched, even if ctx ends while waiting for a slot.
			if err := sem.Acquire(handlerCtx, 1); err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				d.Dispatch(handlerCtx, msg)
			}()
		}
	}
}
