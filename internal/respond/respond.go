// Package respond turns handler results into at most one outbound reply and owns
// the tagged-error format shown to users.
package respond

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"plugbot/internal/logger"
	"plugbot/internal/transport"
	"plugbot/pkg/bottypes"
)

// Error codes produced by the normalizer itself.
const (
	CodeType    = "TYPE"
	CodeHandler = "HANDLER"
	CodePanic   = "PANIC"
)

// Error is a handler failure with an explicit user-facing code.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Errorf builds an *Error with a formatted description.
func Errorf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// Format renders the tagged error text.
func Format(code, description string) string {
	return fmt.Sprintf("Failed. #E_%s ⚠️\n%s.", code, description)
}

// Responder delivers replies through a transport.Sender.
type Responder struct {
	sender transport.Sender
	logger *log.Logger
}

// New creates a Responder.
func New(sender transport.Sender) *Responder {
	return &Responder{
		sender: sender,
		logger: logger.NewStyledLogger("Respond"),
	}
}

// SetLogger replaces the responder's logger.
func (r *Responder) SetLogger(l *log.Logger) {
	r.logger = l
}

// Respond normalizes a handler result for msg. err, when set, wins over reply.
// html is the handler's default format flag for text replies.
func (r *Responder) Respond(ctx context.Context, msg *bottypes.Message, html bool, reply bottypes.Reply, err error) {
	if err != nil {
		r.Fail(ctx, msg, err)
		return
	}

	switch rep := reply.(type) {
	case nil, bottypes.NoReply:
		return
	case bottypes.Text:
		r.Text(ctx, msg, rep.Body, html || rep.HTML)
	case bottypes.Deferred:
		r.settle(ctx, msg, html, rep)
	case bottypes.Invalid:
		r.Error(ctx, msg, CodeType, fmt.Sprintf("Function Error: returned %s instead of string", rep.Kind))
	default:
		r.Error(ctx, msg, CodeType, fmt.Sprintf("Function Error: returned %T instead of string", reply))
	}
}

// settle awaits a deferred reply. The resolution must be NoReply or Text.
func (r *Responder) settle(ctx context.Context, msg *bottypes.Message, html bool, d bottypes.Deferred) {
	if d.Wait == nil {
		return
	}
	resolved, err := d.Wait(ctx)
	if err != nil {
		r.Fail(ctx, msg, err)
		return
	}
	switch rep := resolved.(type) {
	case nil, bottypes.NoReply:
		return
	case bottypes.Text:
		r.Text(ctx, msg, rep.Body, html || rep.HTML)
	case bottypes.Invalid:
		r.Error(ctx, msg, CodeType, fmt.Sprintf("Function Error: resolved to %s instead of string", rep.Kind))
	default:
		r.Error(ctx, msg, CodeType, "Function Error: deferred result resolved to another deferred result")
	}
}

// Text sends body as a reply to msg. A transport failure becomes a tagged error reply.
func (r *Responder) Text(ctx context.Context, msg *bottypes.Message, body string, html bool) {
	err := r.sender.SendText(ctx, msg.Chat.ID, body, transport.SendOptions{HTML: html, ReplyTo: msg.ID})
	if err == nil {
		return
	}
	r.logger.Warn("Reply delivery failed", "chat", msg.Chat.ID, "error", err)
	if te, ok := transport.AsError(err); ok {
		r.Error(ctx, msg, te.Code, te.Description)
		return
	}
	r.Error(ctx, msg, "SEND", err.Error())
}

// Error sends a tagged error reply. If that fails too, the failure is only logged.
func (r *Responder) Error(ctx context.Context, msg *bottypes.Message, code, description string) {
	text := Format(code, description)
	if err := r.sender.SendText(ctx, msg.Chat.ID, text, transport.SendOptions{ReplyTo: msg.ID}); err != nil {
		r.logger.Error("Tagged error delivery failed", "chat", msg.Chat.ID, "code", code, "error", err)
	}
}

// Fail reports a handler error through the tagged-error channel.
func (r *Responder) Fail(ctx context.Context, msg *bottypes.Message, err error) {
	code, description := Classify(err)
	r.logger.Debug("Handler failed", "chat", msg.Chat.ID, "code", code, "error", err)
	r.Error(ctx, msg, code, description)
}

// Classify picks the code and description shown for err.
func Classify(err error) (code, description string) {
	var re *Error
	if errors.As(err, &re) {
		return re.Code, re.Description
	}
	if te, ok := transport.AsError(err); ok {
		return te.Code, te.Description
	}
	return CodeHandler, err.Error()
}
