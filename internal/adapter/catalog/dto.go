package catalog

// VersionResponse is the body of GET /version
type VersionResponse struct {
	Version int `json:"version"`
}

// MaxIndexResponse is the body of GET /max-index
type MaxIndexResponse struct {
	MaxIndex int `json:"maxIndex"`
}

// ItemsResponse is the body of GET /items
type ItemsResponse struct {
	Items []Question `json:"items"`
}

// Question is one catalog row as served by the backend
type Question struct {
	Index     int    `json:"index"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Thinking  string `json:"thinking,omitempty"`
	Type      string `json:"type,omitempty"`      // Category
	CreatedAt string `json:"createdAt,omitempty"` // RFC 3339
}
