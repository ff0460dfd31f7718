package discord

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/formbot/pkg/domain"
)

// MaxMessageLength is Discord's per-message character limit.
const MaxMessageLength = 2000

// Chunk splits text into pieces of at most limit runes, preferring to break
// at a newline, then at a space. Empty input yields no chunks.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	var chunks []string
	for text != "" {
		if utf8.RuneCountInString(text) <= limit {
			chunks = append(chunks, text)
			break
		}
		cut := byteOffset(text, limit)
		head := text[:cut]
		if c := text[cut]; c != ' ' && c != '\n' {
			if i := strings.LastIndex(head, "\n"); i > 0 {
				cut = i + 1
			} else if i := strings.LastIndex(head, " "); i > 0 {
				cut = i + 1
			}
		}
		if chunk := strings.TrimRight(text[:cut], "\n "); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimLeft(text[cut:], "\n ")
	}
	return chunks
}

// byteOffset returns the byte index just past the first n runes of s.
func byteOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// channelSink delivers bot output to one Discord channel.
type channelSink struct {
	session   Session
	channelID string
}

var _ domain.MessageSink = (*channelSink)(nil)

func (c *channelSink) Send(ctx context.Context, text string) error {
	for _, chunk := range Chunk(text, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.session.ChannelMessageSend(c.channelID, chunk); err != nil {
			return err
		}
	}
	return nil
}
