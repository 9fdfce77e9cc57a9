// Package memes contains the joke commands: mocking text, Bill memes, cats,
// Chuck Norris jokes and coin flips.
package memes

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"plugbot/internal/transport"
	"plugbot/pkg/bottypes"
)

// Default endpoints, overridable through module prefs.
const (
	DefaultSpongebobImage = "https://i.imgflip.com/1p4jje.jpg"
	DefaultBillURL        = "http://belikebill.azurewebsites.net/billgen-API.php"
	DefaultCatURL         = "http://thecatapi.com/api/images/get?type=jpg&size=small"
	DefaultChuckURL       = "https://api.icndb.com/jokes/random?escape=javascript"
)

// Replies shown to users.
const (
	MsgNoMockText = "ProVidE SoME TExt, duDE!!"
	MsgNoBillText = "Please provide some text..."
)

// Module implements bottypes.Module.
type Module struct {
	photos transport.Client
	http   *http.Client
	random func() float64
	now    func() time.Time

	spongebobImage string
	billURL        string
	catURL         string
	chuckURL       string
}

var _ bottypes.Module = (*Module)(nil)

// Option configures a Module.
type Option func(*Module)

// WithHTTPClient sets the client used for the joke API.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Module) { m.http = c }
}

// WithRandom sets the source of randomness, returning values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(m *Module) { m.random = f }
}

// WithClock sets the clock used to bust image caches.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

// New creates the module. photos sends the meme images.
func New(photos transport.Client, opts ...Option) *Module {
	m := &Module{
		photos: photos,
		http:   &http.Client{Timeout: 10 * time.Second},
		random: rand.Float64,
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Name implements bottypes.Module.
func (m *Module) Name() string {
	return "memes"
}

// Init implements bottypes.Module.
func (m *Module) Init(reg bottypes.Registrar, prefs bottypes.Prefs) error {
	m.spongebobImage = prefs.String("spongebob_image", DefaultSpongebobImage)
	m.billURL = prefs.String("belikebill_url", DefaultBillURL)
	m.catURL = prefs.String("cat_url", DefaultCatURL)
	m.chuckURL = prefs.String("chuck_url", DefaultChuckURL)

	handlers := []struct {
		names []string
		h     bottypes.Handler
	}{
		{[]string{"spongebob", "spongify", "mock"}, bottypes.Handler{Fn: m.spongebob, Help: "MoCKs thE GIvEn TexT."}},
		{[]string{"belikebill", "blb"}, bottypes.Handler{Fn: m.belikebill, Help: "Makes a Be like Bill meme from the given text."}},
		{[]string{"cat"}, bottypes.Handler{Fn: m.cat, Help: "Sends a random cat picture."}},
		{[]string{"chuck"}, bottypes.Handler{Fn: m.chuck, Help: "Tells a Chuck Norris joke."}},
		{[]string{"coinflip", "flip"}, bottypes.Handler{Fn: m.coinflip, Help: "Flips a coin."}},
	}
	for _, c := range handlers {
		if err := reg.Register(c.names, c.h); err != nil {
			return err
		}
	}
	return nil
}

// Mock randomizes the case of every letter in s.
func Mock(s string, random func() float64) string {
	var b strings.Builder
	for _, r := range s {
		if random() < .6 {
			b.WriteString(strings.ToLower(string(r)))
		} else {
			b.WriteString(strings.ToUpper(string(r)))
		}
	}
	return b.String()
}

func (m *Module) spongebob(ctx context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
	if msg.Args == "" {
		return bottypes.Say(MsgNoMockText), nil
	}
	return bottypes.None(), m.photos.SendPhoto(ctx, msg.Chat.ID, m.spongebobImage, transport.PhotoOptions{
		Caption: Mock(msg.Args, m.random),
		ReplyTo: msg.ID,
	})
}

func (m *Module) belikebill(ctx context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
	if msg.Args == "" {
		return bottypes.Say(MsgNoBillText), nil
	}
	u, err := withQuery(m.billURL, "text", msg.Args)
	if err != nil {
		return nil, err
	}
	return bottypes.None(), m.photos.SendPhoto(ctx, msg.Chat.ID, u, transport.PhotoOptions{
		Caption: "Be like Bill...",
		ReplyTo: msg.ID,
	})
}

func (m *Module) cat(ctx context.Context, msg *bottypes.Message) (bottypes.Reply, error) {
	u, err := withQuery(m.catURL, "ts", strconv.FormatInt(m.now().UnixMilli(), 10))
	if err != nil {
		return nil, err
	}
	return bottypes.None(), m.photos.SendPhoto(ctx, msg.Chat.ID, u, transport.PhotoOptions{
		Caption: "Meow!",
		ReplyTo: msg.ID,
	})
}

type chuckResponse struct {
	Value struct {
		Joke string `json:"joke"`
	} `json:"value"`
}

func (m *Module) chuck(_ context.Context, _ *bottypes.Message) (bottypes.Reply, error) {
	return bottypes.Defer(func(ctx context.Context) (bottypes.Reply, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.chuckURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := m.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("joke API: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("joke API returned %s", resp.Status)
		}

		var body chuckResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("joke API: %w", err)
		}
		if body.Value.Joke == "" {
			return nil, fmt.Errorf("joke API returned no joke")
		}
		return bottypes.Say(body.Value.Joke), nil
	}), nil
}

func (m *Module) coinflip(_ context.Context, _ *bottypes.Message) (bottypes.Reply, error) {
	side := "Tails"
	if m.random() >= .5 {
		side = "Heads"
	}
	return bottypes.Sayf("The coin landed on %s!", side), nil
}

func withQuery(raw, key, value string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
