package advisor

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswer(t *testing.T) {
	questions := Questions()
	require.Len(t, questions, 4)
	for _, q := range questions {
		answer, ok := Answer(q)
		assert.True(t, ok, q)
		assert.NotEqual(t, Fallback, answer)
	}

	answer, ok := Answer("  how do I LOG a purchase?  ")
	assert.True(t, ok)
	assert.Contains(t, answer, "Log Purchase")

	answer, ok = Answer("What is the weather?")
	assert.False(t, ok)
	assert.Equal(t, Fallback, answer)
}

func TestTranscript(t *testing.T) {
	var tr Transcript
	require.True(t, tr.Ask("How can I reduce my water usage?"))
	assert.True(t, tr.Typing())
	assert.False(t, tr.Ask("How do I redeem my MossCoins?"))
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, Message{Kind: KindTyping, Text: TypingText}, tr.Messages[1])

	answer := tr.Resolve()
	assert.Equal(t, KindAnswer, answer.Kind)
	assert.Contains(t, answer.Text, "shorter showers")
	assert.False(t, tr.Typing())
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, KindUser, tr.Messages[0].Kind)

	assert.Equal(t, Message{}, tr.Resolve())
}

func TestWebsocketExchange(t *testing.T) {
	h := NewHandler(log.New(io.Discard, "", 0))
	h.Delay = 10 * time.Millisecond
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer c.Close()

	var seen []Message
	answer, err := c.Ask(ctx, "What's the most impactful way to recycle?", func(m Message) { seen = append(seen, m) })
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "Big 4")
	require.Len(t, seen, 3)
	assert.Equal(t, KindUser, seen[0].Kind)
	assert.Equal(t, KindTyping, seen[1].Kind)

	answer, err = c.Ask(ctx, "Tell me a joke", nil)
	require.NoError(t, err)
	assert.Equal(t, Fallback, answer.Text)
}
