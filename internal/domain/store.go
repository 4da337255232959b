package domain

// ProgressStore persists the single progress record of this installation.
type ProgressStore interface {
	// InstallationID returns the id of this installation, creating it on first use
	InstallationID() (string, error)

	LoadProgress(installID string) (ProgressState, bool, error)
	SaveProgress(installID string, state ProgressState) error
}

// CatalogSnapshot is the last-known-good copy of the remote catalog.
type CatalogSnapshot interface {
	// GetCatalogInfo returns the last recorded version/size
	GetCatalogInfo() (CatalogInfo, bool)
	SaveCatalogInfo(info CatalogInfo) error

	// GetItems returns the stored items for the given indices (in request order)
	// and the indices that were not found.
	GetItems(indices []int) (items []Item, missing []int)
	GetAllItems() []Item
	SaveItems(items []Item) error

	// InvalidateItems drops every stored item (catalog content changed)
	InvalidateItems()
}

// ChatStore persists follow-up conversations per card.
type ChatStore interface {
	GetChatHistory(globalIndex int) ([]ChatMessage, bool)
	SaveChatHistory(globalIndex int, messages []ChatMessage) error
	DeleteChatHistory(globalIndex int)
}

// Store handles local persistence (BoltDB + memory).
type Store interface {
	ProgressStore
	CatalogSnapshot
	ChatStore

	// InvalidateAll wipes everything except the installation id
	InvalidateAll()

	Close() error
}
