package models

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	TotalChunks       int      `json:"total_chunks"`
	Capacity          int      `json:"capacity"`
	Dimensions        int      `json:"dimensions"`
	IndexType         string   `json:"index_type"`
	TotalAdded        int      `json:"total_added"`
	TotalEvicted      int      `json:"total_evicted"`
	Rebuilds          int      `json:"rebuilds"`
	EmbeddingProvider string   `json:"embedding_provider"`
	EmbeddingModel    string   `json:"embedding_model"`
	WatchDirectories  []string `json:"watch_directories"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
