// Package telegram adapts the Telegram Bot API client to transport.Client.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"plugbot/internal/logger"
	"plugbot/internal/transport"
	"plugbot/pkg/bottypes"
)

// api is the part of *tgbotapi.BotAPI the adapter uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client implements transport.Client over the Bot API.
type Client struct {
	api         api
	self        tgbotapi.User
	pollTimeout int
	logger      *log.Logger
}

var _ transport.Client = (*Client)(nil)

// Options configures the adapter.
type Options struct {
	Token string
	// Endpoint overrides the Bot API endpoint format (tgbotapi.APIEndpoint).
	Endpoint string
	// PollTimeout is the long-polling timeout in seconds.
	PollTimeout int
	Debug       bool
}

// New authenticates with the Bot API. The call fetches the bot's own profile.
func New(opts Options) (*Client, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(opts.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", convertError(err))
	}
	bot.Debug = opts.Debug
	return newClient(bot, bot.Self, opts.PollTimeout), nil
}

func newClient(a api, self tgbotapi.User, pollTimeout int) *Client {
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	return &Client{
		api:         a,
		self:        self,
		pollTimeout: pollTimeout,
		logger:      logger.NewStyledLogger("Telegram"),
	}
}

// Me implements transport.Client.
func (c *Client) Me(_ context.Context) (bottypes.User, error) {
	return convertUser(&c.self), nil
}

// SendText implements transport.Sender.
func (c *Client) SendText(_ context.Context, chatID int64, text string, opts transport.SendOptions) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if opts.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	msg.ReplyToMessageID = opts.ReplyTo
	_, err := c.api.Send(msg)
	return convertError(err)
}

// SendPhoto implements transport.Client.
func (c *Client) SendPhoto(_ context.Context, chatID int64, url string, opts transport.PhotoOptions) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.Caption = opts.Caption
	photo.ReplyToMessageID = opts.ReplyTo
	_, err := c.api.Send(photo)
	return convertError(err)
}

// Forward implements transport.Client.
func (c *Client) Forward(_ context.Context, chatID, fromChatID int64, messageID int) error {
	_, err := c.api.Send(tgbotapi.NewForward(chatID, fromChatID, messageID))
	return convertError(err)
}

// GetChat implements transport.Client.
func (c *Client) GetChat(_ context.Context, chatID int64) (bottypes.Chat, error) {
	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return bottypes.Chat{}, convertError(err)
	}
	return convertChat(&chat), nil
}

// ChatMember implements transport.Client.
func (c *Client) ChatMember(_ context.Context, chatID, userID int64) (transport.Member, error) {
	m, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return transport.Member{}, convertError(err)
	}
	return transport.Member{Status: m.Status, CanChangeInfo: m.CanChangeInfo}, nil
}

// Updates implements transport.Client. Only messages carrying text are forwarded.
func (c *Client) Updates(ctx context.Context) (<-chan *bottypes.Message, error) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.pollTimeout
	updates := c.api.GetUpdatesChan(cfg)

	out := make(chan *bottypes.Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.api.StopReceivingUpdates()
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				if upd.Message == nil || upd.Message.Text == "" {
					continue
				}
				msg := ConvertMessage(upd.Message)
				select {
				case out <- msg:
				case <-ctx.Done():
					c.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	c.logger.Info("Polling for updates", "timeout", c.pollTimeout)
	return out, nil
}

// ConvertMessage maps a Bot API message to the bot's message model.
func ConvertMessage(m *tgbotapi.Message) *bottypes.Message {
	if m == nil {
		return nil
	}
	msg := &bottypes.Message{
		ID:   m.MessageID,
		Date: time.Unix(int64(m.Date), 0),
		Text: m.Text,
		From: userPtr(m.From),
	}
	if m.Chat != nil {
		msg.Chat = convertChat(m.Chat)
	}
	for _, e := range m.Entities {
		msg.Entities = append(msg.Entities, bottypes.Entity{
			Type:   e.Type,
			Offset: e.Offset,
			Length: e.Length,
			User:   userPtr(e.User),
		})
	}
	if m.ReplyToMessage != nil {
		msg.ReplyTo = ConvertMessage(m.ReplyToMessage)
	}
	return msg
}

func userPtr(u *tgbotapi.User) *bottypes.User {
	if u == nil {
		return nil
	}
	cu := convertUser(u)
	return &cu
}

func convertUser(u *tgbotapi.User) bottypes.User {
	return bottypes.User{
		ID:           u.ID,
		IsBot:        u.IsBot,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.UserName,
		LanguageCode: u.LanguageCode,
	}
}

func convertChat(c *tgbotapi.Chat) bottypes.Chat {
	return bottypes.Chat{
		ID:        c.ID,
		Type:      c.Type,
		Title:     c.Title,
		Username:  c.UserName,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

// convertError turns Bot API failures into *transport.Error. Failures that never
// reached the API (network, encoding) get code NETWORK.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *tgbotapi.Error:
		return &transport.Error{Code: strconv.Itoa(e.Code), Description: e.Message}
	case tgbotapi.Error:
		return &transport.Error{Code: strconv.Itoa(e.Code), Description: e.Message}
	case *transport.Error:
		return e
	default:
		return &transport.Error{Code: "NETWORK", Description: err.Error()}
	}
}
