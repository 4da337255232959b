package domain

import (
	"context"
)

// CatalogClient provides access to the remote question catalog
type CatalogClient interface {
	// FetchVersion returns the current remote data version
	FetchVersion(ctx context.Context) (int, error)

	// FetchMaxIndex returns the highest global index in the catalog (inclusive).
	// A negative value means the catalog is empty.
	FetchMaxIndex(ctx context.Context) (int, error)

	// FetchByIndices returns the items for the given global indices.
	// Missing or incomplete items are omitted; callers must not pass more
	// indices than the server page size.
	FetchByIndices(ctx context.Context, indices []int) ([]Item, error)
}

// ChatTurn is one message sent to the chat completion API
type ChatTurn struct {
	Role    ChatRole
	Content string
}

// ChatRequest is an ordered conversation plus the system instruction
type ChatRequest struct {
	Instruction string
	Turns       []ChatTurn
}

// ChatClient sends chat completion requests to an LLM API
type ChatClient interface {
	// Complete returns the full reply in one piece
	Complete(ctx context.Context, req ChatRequest) (string, error)

	// Stream delivers the reply incrementally; onChunk receives each text delta.
	Stream(ctx context.Context, req ChatRequest, onChunk func(delta string)) error
}
