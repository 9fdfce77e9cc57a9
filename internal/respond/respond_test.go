package respond

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plugbot/internal/logger"
	"plugbot/internal/testutils"
	"plugbot/internal/transport"
	"plugbot/pkg/bottypes"
)

func newTestResponder() (*Responder, *testutils.FakeTransport) {
	ft := testutils.NewFakeTransport("plugbot")
	r := New(ft)
	r.SetLogger(logger.Discard())
	return r, ft
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "Failed. #E_TYPE ⚠️\nbad value.", Format("TYPE", "bad value"))
	assert.Equal(t, "Failed. #E_400 ⚠️\nBad Request: chat not found.", Format("400", "Bad Request: chat not found"))
}

func TestResponder_Respond(t *testing.T) {
	tests := []struct {
		name      string
		reply     bottypes.Reply
		err       error
		wantTexts []string
		wantHTML  bool
	}{
		{
			name:      "string reply",
			reply:     bottypes.Say("Heads or Tails!"),
			wantTexts: []string{"Heads or Tails!"},
		},
		{
			name:      "number reply",
			reply:     bottypes.Number(42),
			wantTexts: []string{"42"},
		},
		{
			name:      "dynamic number",
			reply:     bottypes.Value(42),
			wantTexts: []string{"42"},
		},
		{
			name:      "dynamic float",
			reply:     bottypes.Value(1.5),
			wantTexts: []string{"1.5"},
		},
		{
			name:  "no reply",
			reply: bottypes.None(),
		},
		{
			name:  "nil reply",
			reply: nil,
		},
		{
			name:  "dynamic nil",
			reply: bottypes.Value(nil),
		},
		{
			name:      "plain object",
			reply:     bottypes.Value(struct{ A int }{1}),
			wantTexts: []string{"Failed. #E_TYPE ⚠️\nFunction Error: returned object instead of string."},
		},
		{
			name:      "boolean",
			reply:     bottypes.Value(true),
			wantTexts: []string{"Failed. #E_TYPE ⚠️\nFunction Error: returned boolean instead of string."},
		},
		{
			name:      "html reply",
			reply:     bottypes.HTML("<b>bold</b>"),
			wantTexts: []string{"<b>bold</b>"},
			wantHTML:  true,
		},
		{
			name:      "handler error",
			err:       errors.New("Failed to resolve"),
			wantTexts: []string{"Failed. #E_HANDLER ⚠️\nFailed to resolve."},
		},
		{
			name:      "coded handler error",
			err:       Errorf("ARGS", "expected %d arguments", 2),
			wantTexts: []string{"Failed. #E_ARGS ⚠️\nexpected 2 arguments."},
		},
		{
			name:      "transport error from handler",
			err:       &transport.Error{Code: "403", Description: "Forbidden: bot was kicked"},
			wantTexts: []string{"Failed. #E_403 ⚠️\nForbidden: bot was kicked."},
		},
		{
			name:      "error wins over reply",
			reply:     bottypes.Say("ignored"),
			err:       errors.New("boom"),
			wantTexts: []string{"Failed. #E_HANDLER ⚠️\nboom."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ft := newTestResponder()
			msg := testutils.CommandMessage("/test")

			r.Respond(context.Background(), msg, false, tt.reply, tt.err)

			sent := ft.Sent()
			require.Len(t, sent, len(tt.wantTexts))
			for i, want := range tt.wantTexts {
				assert.Equal(t, want, sent[i].Text)
				assert.Equal(t, msg.Chat.ID, sent[i].ChatID)
				assert.Equal(t, msg.ID, sent[i].Opts.ReplyTo)
			}
			if tt.wantHTML {
				assert.True(t, sent[0].Opts.HTML)
			}
		})
	}
}

func TestResponder_HandlerHTMLFlag(t *testing.T) {
	r, ft := newTestResponder()

	r.Respond(context.Background(), testutils.CommandMessage("/x"), true, bottypes.Say("<i>x</i>"), nil)

	sent := ft.Sent()
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Opts.HTML)
}

func TestResponder_TaggedErrorsAreNeverHTML(t *testing.T) {
	r, ft := newTestResponder()

	r.Respond(context.Background(), testutils.CommandMessage("/x"), true, bottypes.Value(false), nil)

	sent := ft.Sent()
	require.Len(t, sent, 1)
	assert.False(t, sent[0].Opts.HTML)
}

func TestResponder_Deferred(t *testing.T) {
	tests := []struct {
		name      string
		wait      func(ctx context.Context) (bottypes.Reply, error)
		wantTexts []string
	}{
		{
			name: "resolves to text",
			wait: func(context.Context) (bottypes.Reply, error) {
				return bottypes.Say("later"), nil
			},
			wantTexts: []string{"later"},
		},
		{
			name: "fire and forget",
			wait: func(context.Context) (bottypes.Reply, error) {
				return bottypes.None(), nil
			},
		},
		{
			name: "resolves to nil",
			wait: func(context.Context) (bottypes.Reply, error) {
				return nil, nil
			},
		},
		{
			name: "rejects",
			wait: func(context.Context) (bottypes.Reply, error) {
				return nil, &transport.Error{Code: "429", Description: "Too Many Requests"}
			},
			wantTexts: []string{"Failed. #E_429 ⚠️\nToo Many Requests."},
		},
		{
			name: "resolves to another deferred",
			wait: func(context.Context) (bottypes.Reply, error) {
				return bottypes.Defer(func(context.Context) (bottypes.Reply, error) {
					return bottypes.Say("nested"), nil
				}), nil
			},
			wantTexts: []string{"Failed. #E_TYPE ⚠️\nFunction Error: deferred result resolved to another deferred result."},
		},
		{
			name: "resolves to invalid",
			wait: func(context.Context) (bottypes.Reply, error) {
				return bottypes.Value(map[string]int{}), nil
			},
			wantTexts: []string{"Failed. #E_TYPE ⚠️\nFunction Error: resolved to object instead of string."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ft := newTestResponder()

			r.Respond(context.Background(), testutils.CommandMessage("/x"), false, bottypes.Defer(tt.wait), nil)

			sent := ft.Sent()
			require.Len(t, sent, len(tt.wantTexts))
			for i, want := range tt.wantTexts {
				assert.Equal(t, want, sent[i].Text)
			}
		})
	}
}

func TestResponder_DeferredWithoutWait(t *testing.T) {
	r, ft := newTestResponder()

	r.Respond(context.Background(), testutils.CommandMessage("/x"), false, bottypes.Deferred{}, nil)

	assert.Empty(t, ft.Sent())
}

func TestResponder_TransportFailureBecomesTaggedError(t *testing.T) {
	r, ft := newTestResponder()
	ft.SendErrors = []error{&transport.Error{Code: "400", Description: "Bad Request: message is too long"}}

	r.Respond(context.Background(), testutils.CommandMessage("/x"), false, bottypes.Say("very long"), nil)

	sent := ft.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Failed. #E_400 ⚠️\nBad Request: message is too long.", sent[0].Text)
}

func TestResponder_NonTransportSendFailure(t *testing.T) {
	r, ft := newTestResponder()
	ft.SendErrors = []error{errors.New("socket closed")}

	r.Respond(context.Background(), testutils.CommandMessage("/x"), false, bottypes.Say("hi"), nil)

	sent := ft.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Failed. #E_SEND ⚠️\nsocket closed.", sent[0].Text)
}

func TestResponder_FailedErrorReplyDoesNotLoop(t *testing.T) {
	r, ft := newTestResponder()
	ft.SendErrors = []error{
		&transport.Error{Code: "403", Description: "Forbidden"},
		&transport.Error{Code: "403", Description: "Forbidden"},
	}

	r.Respond(context.Background(), testutils.CommandMessage("/x"), false, bottypes.Say("hi"), nil)

	assert.Empty(t, ft.Sent())
	assert.Empty(t, ft.SendErrors)
}

func TestClassify(t *testing.T) {
	code, desc := Classify(errors.New("plain"))
	assert.Equal(t, CodeHandler, code)
	assert.Equal(t, "plain", desc)

	code, desc = Classify(fmtWrap(&Error{Code: "X", Description: "y"}))
	assert.Equal(t, "X", code)
	assert.Equal(t, "y", desc)
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("context"), err)
}
