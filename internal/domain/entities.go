package domain

import (
	"strings"
	"time"
)

// Item is a question/answer pair from the remote catalog.
// GlobalIndex is stable across fetches and identifies the item.
type Item struct {
	GlobalIndex int       `json:"index"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Thinking    string    `json:"thinking"`
	Category    string    `json:"category"`
	IsViewed    bool      `json:"isViewed"`
	IsLiked     bool      `json:"isLiked"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsComplete reports whether the item has both a question and an answer.
// Incomplete items are never shown.
func (i Item) IsComplete() bool {
	return strings.TrimSpace(i.Question) != "" && strings.TrimSpace(i.Answer) != ""
}

// Card is the constructed, render-ready form of an Item.
// Cards hold content only; viewed/liked flags are read from the item at draw time.
type Card struct {
	GlobalIndex int
	Question    string
	Answer      string
	Paragraphs  []string // Answer split on blank lines
	Thinking    string
	Category    string
}

// NewCard builds a Card from an item.
func NewCard(item Item) *Card {
	answer := strings.TrimSpace(item.Answer)
	return &Card{
		GlobalIndex: item.GlobalIndex,
		Question:    strings.TrimSpace(strings.TrimPrefix(item.Question, "Q: ")),
		Answer:      answer,
		Paragraphs:  splitParagraphs(answer),
		Thinking:    strings.TrimSpace(item.Thinking),
		Category:    item.Category,
	}
}

// HasThinking returns true if the card carries a reasoning section
func (c *Card) HasThinking() bool {
	return c.Thinking != ""
}

func splitParagraphs(text string) []string {
	if text == "" {
		return nil
	}
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// CatalogInfo describes the catalog as last seen, remotely or from the local snapshot.
type CatalogInfo struct {
	Version   int  // Remote data version
	Size      int  // Number of addressable indices: [0, Size)
	FromCache bool // true if the remote was unreachable and local data was used
}

// IsEmpty returns true when the catalog has no addressable indices
func (c CatalogInfo) IsEmpty() bool {
	return c.Size <= 0
}

// ChatRole identifies the author of a chat turn
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of the follow-up conversation attached to a card.
type ChatMessage struct {
	ID           string    `json:"id"`
	Role         ChatRole  `json:"role"`
	Content      string    `json:"content"`
	RelatedIndex int       `json:"relatedIndex"` // GlobalIndex of the card being discussed
	CreatedAt    time.Time `json:"createdAt"`
	Failed       bool      `json:"failed,omitempty"` // Content is an inline error, not a reply
}

// IsUser returns true if the message was typed by the user
func (m ChatMessage) IsUser() bool {
	return m.Role == ChatRoleUser
}
