package discord

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"empty", "", 10, nil},
		{"fits", "hello", 10, []string{"hello"}},
		{"breaks at space", "hello brave new world", 11, []string{"hello brave", "new world"}},
		{"prefers newline", "line one\nline two here", 16, []string{"line one", "line two here"}},
		{"hard cut", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"multibyte", "ééééé", 2, []string{"éé", "éé", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.text, tt.limit))
		})
	}
}

func TestChannelSink_SplitsLongMessages(t *testing.T) {
	s := &fakeSession{}
	sink := &channelSink{session: s, channelID: "c1"}

	long := strings.Repeat("word ", 900) // 4500 chars
	require.NoError(t, sink.Send(context.Background(), long))

	msgs := s.messages("c1")
	require.Len(t, msgs, 3)
	total := 0
	for _, m := range msgs {
		assert.LessOrEqual(t, utf8.RuneCountInString(m), MaxMessageLength)
		total += strings.Count(m, "word")
	}
	assert.Equal(t, 900, total)
}

func TestChannelSink_CancelledContext(t *testing.T) {
	s := &fakeSession{}
	sink := &channelSink{session: s, channelID: "c1"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sink.Send(ctx, "hi"), context.Canceled)
	assert.Empty(t, s.sent)
}
