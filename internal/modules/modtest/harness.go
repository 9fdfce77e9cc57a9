// Package modtest runs feature modules through the real load phase and
// dispatcher against in-memory collaborators.
package modtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"plugbot/internal/commands"
	"plugbot/internal/dispatch"
	"plugbot/internal/enablement"
	"plugbot/internal/kv/memory"
	"plugbot/internal/logger"
	"plugbot/internal/plugins"
	"plugbot/internal/respond"
	"plugbot/internal/testutils"
	"plugbot/pkg/bottypes"
)

// BotUsername is the username of the bot under test.
const BotUsername = "PlugBot"

// Harness is a fully wired bot with a fake transport and a memory store.
type Harness struct {
	Transport  *testutils.FakeTransport
	KV         *memory.Store
	Catalog    *plugins.Catalog
	Registry   *commands.Registry
	Enablement *enablement.Store
	Dispatcher *dispatch.Dispatcher
}

// New loads specs with the factories returned by build. build receives the
// harness so factories can capture its transport and store.
func New(t *testing.T, specs []plugins.Spec, build func(h *Harness) map[string]plugins.Factory) *Harness {
	t.Helper()
	h := &Harness{
		Transport: testutils.NewFakeTransport(BotUsername),
		KV:        memory.New(),
	}

	b := commands.NewBuilder()
	b.SetLogger(logger.Discard())
	h.Catalog = plugins.Load(context.Background(), b, specs, build(h))
	h.Registry = b.Build()
	h.Enablement = enablement.New(h.KV, h.Catalog)
	plugins.Start(&plugins.Runtime{Registry: h.Registry, Enablement: h.Enablement, Catalog: h.Catalog})

	responder := respond.New(h.Transport)
	responder.SetLogger(logger.Discard())
	d, err := dispatch.New(dispatch.Config{
		Registry:   h.Registry,
		Enablement: h.Enablement,
		Responder:  responder,
		Observers:  h.Catalog.Observers(),
		Username:   BotUsername,
		Logger:     logger.Discard(),
	})
	require.NoError(t, err)
	h.Dispatcher = d
	t.Cleanup(func() { _ = h.KV.Close() })
	return h
}

// Dispatch runs msg through the dispatcher.
func (h *Harness) Dispatch(msg *bottypes.Message) dispatch.Outcome {
	return h.Dispatcher.Dispatch(context.Background(), msg)
}

// Send dispatches a fresh command message and returns the texts sent in response.
func (h *Harness) Send(t *testing.T, text string) []string {
	t.Helper()
	return h.SendMessage(t, testutils.CommandMessage(text))
}

// SendMessage dispatches msg and returns the texts sent in response.
func (h *Harness) SendMessage(t *testing.T, msg *bottypes.Message) []string {
	t.Helper()
	before := len(h.Transport.Sent())
	h.Dispatch(msg)
	var texts []string
	for _, s := range h.Transport.Sent()[before:] {
		texts = append(texts, s.Text)
	}
	return texts
}
