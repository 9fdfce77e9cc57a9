package testutils

import (
	"time"
	"unicode/utf16"

	"plugbot/pkg/bottypes"
)

// Default identities used by message builders.
const (
	ChatID   int64 = -1001
	SenderID int64 = 7
)

// CommandMessage builds a fresh group message whose text starts with a command
// entity covering the first whitespace-delimited token.
func CommandMessage(text string) *bottypes.Message {
	token := text
	for i, r := range text {
		if r == ' ' || r == '\n' {
			token = text[:i]
			break
		}
	}
	return &bottypes.Message{
		ID:   100,
		Date: time.Now(),
		Text: text,
		Entities: []bottypes.Entity{
			{Type: bottypes.EntityBotCommand, Offset: 0, Length: UTF16Len(token)},
		},
		From: &bottypes.User{ID: SenderID, FirstName: "Alice", Username: "alice"},
		Chat: bottypes.Chat{ID: ChatID, Type: bottypes.ChatSupergroup, Title: "Test group"},
	}
}

// PlainMessage builds a fresh group message without entities.
func PlainMessage(text string) *bottypes.Message {
	m := CommandMessage(text)
	m.Entities = nil
	return m
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
