// Package parser extracts the leading bot command from an inbound message.
package parser

import (
	"errors"
	"strings"
	"unicode/utf16"

	"plugbot/pkg/bottypes"
)

var (
	// ErrNoEntities means the message carries no entity list.
	ErrNoEntities = errors.New("message has no entities")
	// ErrNotCommand means the first entity is not a command at offset zero.
	ErrNotCommand = errors.New("message does not start with a command")
	// ErrForeignMention means the command is addressed to another bot.
	ErrForeignMention = errors.New("command addressed to another bot")
)

// Command is a parsed leading command.
type Command struct {
	// Name is the lowercase command name without the slash or mention.
	Name string
	// Mention is the lowercase bot username after '@', empty when absent.
	Mention string
	// Args is the text following the command token, trimmed.
	Args string
}

// ParseCommand parses the command marked by the first entity of a message.
// Only the first entity is considered; it must be a bot_command at offset 0.
// Entity offsets and lengths are UTF-16 code units. A mention suffix must match
// botUsername case-insensitively.
func ParseCommand(text string, entities []bottypes.Entity, botUsername string) (*Command, error) {
	if len(entities) == 0 {
		return nil, ErrNoEntities
	}

	first := entities[0]
	if first.Type != bottypes.EntityBotCommand || first.Offset != 0 {
		return nil, ErrNotCommand
	}

	units := utf16.Encode([]rune(text))
	if first.Length < 2 || first.Length > len(units) {
		return nil, ErrNotCommand
	}

	token := strings.ToLower(string(utf16.Decode(units[1:first.Length])))
	cmd := &Command{
		Name: token,
		Args: strings.TrimSpace(string(utf16.Decode(units[first.Length:]))),
	}

	if at := strings.IndexByte(token, '@'); at >= 0 {
		cmd.Name = token[:at]
		cmd.Mention = token[at+1:]
		if cmd.Mention != strings.ToLower(botUsername) {
			return nil, ErrForeignMention
		}
	}
	if cmd.Name == "" {
		return nil, ErrNotCommand
	}

	return cmd, nil
}

// String renders the command back into message form.
func (c *Command) String() string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(c.Name)
	if c.Mention != "" {
		b.WriteByte('@')
		b.WriteString(c.Mention)
	}
	if c.Args != "" {
		b.WriteByte(' ')
		b.WriteString(c.Args)
	}
	return b.String()
}
