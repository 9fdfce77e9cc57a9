// Package testutils provides fakes and builders shared by plugbot tests.
package testutils

import (
	"context"
	"sync"

	"plugbot/internal/transport"
	"plugbot/pkg/bottypes"
)

// Sent is one outbound text message recorded by FakeTransport.
type Sent struct {
	ChatID int64
	Text   string
	Opts   transport.SendOptions
}

// Photo is one outbound photo recorded by FakeTransport.
type Photo struct {
	ChatID int64
	URL    string
	Opts   transport.PhotoOptions
}

// Forwarded is one forward recorded by FakeTransport.
type Forwarded struct {
	ChatID     int64
	FromChatID int64
	MessageID  int
}

// FakeTransport is an in-memory transport.Client. Failures can be scripted per call.
type FakeTransport struct {
	mu sync.Mutex

	Self    bottypes.User
	Chats   map[int64]bottypes.Chat
	Members map[int64]transport.Member // keyed by user id

	// SendErrors is consumed one entry per SendText call; nil entries succeed.
	SendErrors []error
	// PhotoErrors is consumed one entry per SendPhoto call.
	PhotoErrors []error
	// ForwardErrors is consumed one entry per Forward call.
	ForwardErrors []error

	sent      []Sent
	photos    []Photo
	forwarded []Forwarded
	inbox     chan *bottypes.Message
}

var _ transport.Client = (*FakeTransport)(nil)

// NewFakeTransport returns a fake whose own username is username.
func NewFakeTransport(username string) *FakeTransport {
	return &FakeTransport{
		Self:    bottypes.User{ID: 1000, IsBot: true, FirstName: "Plug", Username: username},
		Chats:   make(map[int64]bottypes.Chat),
		Members: make(map[int64]transport.Member),
		inbox:   make(chan *bottypes.Message, 64),
	}
}

// Me implements transport.Client.
func (f *FakeTransport) Me(_ context.Context) (bottypes.User, error) {
	return f.Self, nil
}

// SendText implements transport.Sender. Failed sends are not recorded.
func (f *FakeTransport) SendText(_ context.Context, chatID int64, text string, opts transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := next(&f.SendErrors); err != nil {
		return err
	}
	f.sent = append(f.sent, Sent{ChatID: chatID, Text: text, Opts: opts})
	return nil
}

// SendPhoto implements transport.Client.
func (f *FakeTransport) SendPhoto(_ context.Context, chatID int64, url string, opts transport.PhotoOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := next(&f.PhotoErrors); err != nil {
		return err
	}
	f.photos = append(f.photos, Photo{ChatID: chatID, URL: url, Opts: opts})
	return nil
}

// Forward implements transport.Client.
func (f *FakeTransport) Forward(_ context.Context, chatID, fromChatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := next(&f.ForwardErrors); err != nil {
		return err
	}
	f.forwarded = append(f.forwarded, Forwarded{ChatID: chatID, FromChatID: fromChatID, MessageID: messageID})
	return nil
}

// GetChat implements transport.Client.
func (f *FakeTransport) GetChat(_ context.Context, chatID int64) (bottypes.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.Chats[chatID]
	if !ok {
		return bottypes.Chat{}, &transport.Error{Code: "400", Description: "Bad Request: chat not found"}
	}
	return chat, nil
}

// ChatMember implements transport.Client.
func (f *FakeTransport) ChatMember(_ context.Context, _ int64, userID int64) (transport.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.Members[userID]
	if !ok {
		return transport.Member{Status: "member"}, nil
	}
	return m, nil
}

// Updates implements transport.Client and streams messages pushed with Push.
func (f *FakeTransport) Updates(ctx context.Context) (<-chan *bottypes.Message, error) {
	out := make(chan *bottypes.Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-f.inbox:
				if !ok {
					return
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// next pops the first scripted error, if any.
func next(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// Push queues an inbound message for Updates.
func (f *FakeTransport) Push(m *bottypes.Message) {
	f.inbox <- m
}

// CloseInbox ends the Updates stream.
func (f *FakeTransport) CloseInbox() {
	close(f.inbox)
}

// Sent returns a copy of every successfully sent text message.
func (f *FakeTransport) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Photos returns a copy of every sent photo.
func (f *FakeTransport) Photos() []Photo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Photo(nil), f.photos...)
}

// Forwards returns a copy of every forward.
func (f *FakeTransport) Forwards() []Forwarded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Forwarded(nil), f.forwarded...)
}

// Reset drops everything recorded so far.
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent, f.photos, f.forwarded = nil, nil, nil
}
