package bottypes

import (
	"context"
	"fmt"
	"strconv"
)

// Reply is what a handler hands back to the dispatcher. It is a closed set:
// NoReply, Text, Deferred and Invalid are the only implementations.
type Reply interface {
	isReply()
}

// NoReply means the handler succeeded without output.
type NoReply struct{}

// Text is sent verbatim as a reply to the triggering message.
type Text struct {
	Body string
	HTML bool
}

// Deferred is awaited by the dispatcher. Wait must resolve to NoReply or Text;
// handlers that only perform side effects resolve to NoReply.
type Deferred struct {
	Wait func(ctx context.Context) (Reply, error)
}

// Invalid records a dynamic value that does not fit the reply contract.
// It is only produced by Value.
type Invalid struct {
	Kind string
}

func (NoReply) isReply()  {}
func (Text) isReply()     {}
func (Deferred) isReply() {}
func (Invalid) isReply()  {}

// None returns the empty reply.
func None() Reply {
	return NoReply{}
}

// Say returns a plain text reply.
func Say(body string) Reply {
	return Text{Body: body}
}

// Sayf returns a formatted plain text reply.
func Sayf(format string, args ...interface{}) Reply {
	return Text{Body: fmt.Sprintf(format, args...)}
}

// HTML returns a text reply rendered in HTML mode.
func HTML(body string) Reply {
	return Text{Body: body, HTML: true}
}

// Number returns a text reply holding the decimal form of n.
func Number(n int64) Reply {
	return Text{Body: strconv.FormatInt(n, 10)}
}

// Defer wraps an asynchronous computation.
func Defer(wait func(ctx context.Context) (Reply, error)) Reply {
	return Deferred{Wait: wait}
}

// Value coerces a dynamic value into a Reply: strings and numbers become Text,
// nil becomes NoReply, a Reply is returned unchanged and everything else is Invalid.
func Value(v interface{}) Reply {
	switch x := v.(type) {
	case nil:
		return NoReply{}
	case Reply:
		return x
	case string:
		return Text{Body: x}
	case int:
		return Text{Body: strconv.Itoa(x)}
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Text{Body: fmt.Sprintf("%d", x)}
	case float32:
		return Text{Body: strconv.FormatFloat(float64(x), 'g', -1, 32)}
	case float64:
		return Text{Body: strconv.FormatFloat(x, 'g', -1, 64)}
	case bool:
		return Invalid{Kind: "boolean"}
	case func(), func() error:
		return Invalid{Kind: "function"}
	default:
		return Invalid{Kind: "object"}
	}
}
