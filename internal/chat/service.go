// Package chat keeps the follow-up conversation attached to each card.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/quizdeck/internal/domain"
)

// ErrNotConfigured is returned when no chat client is available
var ErrNotConfigured = errors.New("chat is not configured")

// Service sends follow-up questions about a card and persists the exchange.
type Service struct {
	client      domain.ChatClient // nil disables chat
	store       domain.ChatStore
	instruction string
	logger      *slog.Logger

	mu sync.Mutex // guards read-modify-write of histories
}

// NewService creates a new chat service
func NewService(client domain.ChatClient, store domain.ChatStore, instruction string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, store: store, instruction: instruction, logger: logger}
}

// Enabled reports whether questions can be sent
func (s *Service) Enabled() bool {
	return s.client != nil
}

// History returns the conversation for a card, oldest first
func (s *Service) History(globalIndex int) []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages, _ := s.store.GetChatHistory(globalIndex)
	return messages
}

// Clear forgets the conversation for a card
func (s *Service) Clear(globalIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.DeleteChatHistory(globalIndex)
	s.logger.Debug("chat history cleared", "index", globalIndex)
}

// Ask sends prompt about item. With onChunk set the reply is streamed and
// onChunk receives the accumulated reply after every chunk; without it the
// reply is requested in one piece. The returned message
// is the stored assistant message; on failure it carries an inline error
// and Failed is set.
func (s *Service) Ask(ctx context.Context, item domain.Item, prompt string, onChunk func(accumulated string)) (domain.ChatMessage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: empty prompt", domain.ErrChatRequestFailure)
	}

	history := s.History(item.GlobalIndex)
	userMsg := s.newMessage(domain.ChatRoleUser, prompt, item.GlobalIndex)
	req := BuildRequest(s.instruction, item, history, prompt)

	var reply strings.Builder
	var err error
	if s.client == nil {
		err = fmt.Errorf("%w: %w", domain.ErrChatRequestFailure, ErrNotConfigured)
	} else {
		s.logger.Info("sending chat request", "index", item.GlobalIndex, "turns", len(req.Turns))
		if onChunk == nil {
			var content string
			content, err = s.client.Complete(ctx, req)
			reply.WriteString(content)
		} else {
			err = s.client.Stream(ctx, req, func(delta string) {
				reply.WriteString(delta)
				onChunk(reply.String())
			})
		}
		if err != nil && !errors.Is(err, domain.ErrChatRequestFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrChatRequestFailure, err)
		}
	}

	assistantMsg := s.newMessage(domain.ChatRoleAssistant, reply.String(), item.GlobalIndex)
	if err != nil {
		s.logger.Error("chat request failed", "index", item.GlobalIndex, "error", err)
		assistantMsg.Content = FailureText(err)
		assistantMsg.Failed = true
	}

	s.append(item.GlobalIndex, userMsg, assistantMsg)
	return assistantMsg, err
}

func (s *Service) append(globalIndex int, msgs ...domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, _ := s.store.GetChatHistory(globalIndex)
	updated := append(existing, msgs...)
	if err := s.store.SaveChatHistory(globalIndex, updated); err != nil {
		s.logger.Error("failed to save chat history", "index", globalIndex, "error", err)
	}
}

func (s *Service) newMessage(role domain.ChatRole, content string, globalIndex int) domain.ChatMessage {
	return domain.ChatMessage{
		ID:           uuid.NewString(),
		Role:         role,
		Content:      content,
		RelatedIndex: globalIndex,
		CreatedAt:    time.Now(),
	}
}

// BuildRequest assembles the turns sent for a follow-up: the card's
// question and answer, the earlier exchange (failed replies and the
// questions that caused them are skipped), then the new prompt.
func BuildRequest(instruction string, item domain.Item, history []domain.ChatMessage, prompt string) domain.ChatRequest {
	turns := []domain.ChatTurn{
		{Role: domain.ChatRoleUser, Content: item.Question},
		{Role: domain.ChatRoleAssistant, Content: item.Answer},
	}

	for i := 0; i < len(history); i++ {
		msg := history[i]
		if msg.Failed {
			continue
		}
		if msg.IsUser() && i+1 < len(history) && history[i+1].Failed {
			continue
		}
		turns = append(turns, domain.ChatTurn{Role: msg.Role, Content: msg.Content})
	}

	turns = append(turns, domain.ChatTurn{Role: domain.ChatRoleUser, Content: prompt})
	return domain.ChatRequest{Instruction: instruction, Turns: turns}
}

// FailureText is the inline message shown in place of a failed reply
func FailureText(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "Chat is not configured. Set chat.api_key in the config file or QUIZDECK_CHAT_API_KEY."
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out. Try again."
	default:
		return "Request failed: " + err.Error()
	}
}
