// Package lineutil provides helpers for building LINE messages within
// the platform's constraints.
package lineutil

import (
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// MaxTextLength is the LINE API limit for a single text message.
const MaxTextLength = 5000

// NewTextMessage creates a text message, truncating over-long text so
// the reply API never rejects it.
func NewTextMessage(text string) *messaging_api.TextMessage {
	if utf8.RuneCountInString(text) > MaxTextLength {
		text = TruncateText(text, MaxTextLength-3) + "..."
	}
	return &messaging_api.TextMessage{Text: text}
}

// TruncateText shortens text to at most maxRunes runes without
// splitting a multi-byte character.
func TruncateText(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}
