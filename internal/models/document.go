// Package models defines the request and response bodies of the kioku HTTP API,
// shared by the server and the CLI client.
package models

// UploadResponse is returned by POST /upload_doc.
type UploadResponse struct {
	Status      string `json:"status"`
	ChunksAdded int    `json:"chunks_added"`
	TotalChunks int    `json:"total_chunks"`
	DocumentID  string `json:"document_id"`
	Evicted     int    `json:"evicted,omitempty"`
	Truncated   int    `json:"truncated,omitempty"`
}

// ChunksRequest adds raw chunks. Embeddings may be omitted, in which case the
// server embeds the chunks itself.
type ChunksRequest struct {
	Chunks     []string    `json:"chunks"`
	Embeddings [][]float32 `json:"embeddings,omitempty"`
}

// ChunksResponse is returned by POST /api/v1/chunks.
type ChunksResponse struct {
	Added     int `json:"added"`
	Truncated int `json:"truncated"`
	Evicted   int `json:"evicted"`
	Total     int `json:"total_chunks"`
}
