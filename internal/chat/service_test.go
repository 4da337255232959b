package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/mmcdole/quizdeck/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	chunks   []string
	err      error
	last     domain.ChatRequest
	streamed bool
}

func (f *fakeClient) Complete(ctx context.Context, req domain.ChatRequest) (string, error) {
	f.last = req
	if f.err != nil {
		return "", f.err
	}
	var out string
	for _, c := range f.chunks {
		out += c
	}
	return out, nil
}

func (f *fakeClient) Stream(ctx context.Context, req domain.ChatRequest, onChunk func(string)) error {
	f.last = req
	f.streamed = true
	for _, c := range f.chunks {
		onChunk(c)
	}
	return f.err
}

func newTestService(t *testing.T, client domain.ChatClient) *Service {
	t.Helper()
	st, err := store.NewBoltStore("", "")
	require.NoError(t, err)
	return NewService(client, st, "be brief", nil)
}

var card = domain.Item{GlobalIndex: 4, Question: "What is a slice?", Answer: "A view over an array."}

func TestAsk_StreamsAndPersists(t *testing.T) {
	client := &fakeClient{chunks: []string{"It has ", "len and cap."}}
	svc := newTestService(t, client)

	var seen []string
	msg, err := svc.Ask(context.Background(), card, "  What else?  ", func(acc string) {
		seen = append(seen, acc)
	})
	require.NoError(t, err)
	assert.True(t, client.streamed)

	assert.Equal(t, []string{"It has ", "It has len and cap."}, seen)
	assert.Equal(t, "It has len and cap.", msg.Content)
	assert.Equal(t, domain.ChatRoleAssistant, msg.Role)
	assert.False(t, msg.Failed)
	assert.NotEmpty(t, msg.ID)

	req := client.last
	assert.Equal(t, "be brief", req.Instruction)
	require.Len(t, req.Turns, 3)
	assert.Equal(t, domain.ChatTurn{Role: domain.ChatRoleUser, Content: card.Question}, req.Turns[0])
	assert.Equal(t, domain.ChatTurn{Role: domain.ChatRoleAssistant, Content: card.Answer}, req.Turns[1])
	assert.Equal(t, domain.ChatTurn{Role: domain.ChatRoleUser, Content: "What else?"}, req.Turns[2])

	history := svc.History(4)
	require.Len(t, history, 2)
	assert.True(t, history[0].IsUser())
	assert.Equal(t, 4, history[1].RelatedIndex)
}

func TestAsk_WithoutChunksCompletesInOnePiece(t *testing.T) {
	client := &fakeClient{chunks: []string{"A nil ", "slice has no array."}}
	svc := newTestService(t, client)

	msg, err := svc.Ask(context.Background(), card, "nil?", nil)
	require.NoError(t, err)
	assert.False(t, client.streamed)
	assert.Equal(t, "A nil slice has no array.", msg.Content)
	assert.Len(t, svc.History(4), 2)
}

func TestAsk_IncludesHistory(t *testing.T) {
	client := &fakeClient{chunks: []string{"first reply"}}
	svc := newTestService(t, client)
	ctx := context.Background()

	_, err := svc.Ask(ctx, card, "one", nil)
	require.NoError(t, err)

	client.chunks = []string{"second reply"}
	_, err = svc.Ask(ctx, card, "two", nil)
	require.NoError(t, err)

	turns := client.last.Turns
	require.Len(t, turns, 5)
	assert.Equal(t, "one", turns[2].Content)
	assert.Equal(t, "first reply", turns[3].Content)
	assert.Equal(t, "two", turns[4].Content)
}

func TestAsk_FailureIsInline(t *testing.T) {
	client := &fakeClient{chunks: []string{"partial"}, err: errors.New("connection reset")}
	svc := newTestService(t, client)

	msg, err := svc.Ask(context.Background(), card, "why?", nil)
	assert.ErrorIs(t, err, domain.ErrChatRequestFailure)
	assert.True(t, msg.Failed)
	assert.Contains(t, msg.Content, "connection reset")

	history := svc.History(4)
	require.Len(t, history, 2)
	assert.True(t, history[1].Failed)

	// failed exchanges are not replayed
	client.err = nil
	client.chunks = []string{"ok"}
	_, err = svc.Ask(context.Background(), card, "again", nil)
	require.NoError(t, err)
	assert.Len(t, client.last.Turns, 3)
}

func TestAsk_NotConfigured(t *testing.T) {
	svc := newTestService(t, nil)
	assert.False(t, svc.Enabled())

	msg, err := svc.Ask(context.Background(), card, "hello", nil)
	assert.ErrorIs(t, err, domain.ErrChatRequestFailure)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, msg.Failed)
	assert.Contains(t, msg.Content, "not configured")
}

func TestAsk_EmptyPrompt(t *testing.T) {
	svc := newTestService(t, &fakeClient{})
	_, err := svc.Ask(context.Background(), card, "   ", nil)
	assert.ErrorIs(t, err, domain.ErrChatRequestFailure)
	assert.Empty(t, svc.History(4))
}

func TestClear(t *testing.T) {
	svc := newTestService(t, &fakeClient{chunks: []string{"x"}})
	_, err := svc.Ask(context.Background(), card, "q", nil)
	require.NoError(t, err)

	svc.Clear(4)
	assert.Empty(t, svc.History(4))
}
