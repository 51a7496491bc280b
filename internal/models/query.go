package models

import (
	"errors"
	"strings"
)

// MaxTopK caps the number of chunks a single prompt request may retrieve.
const MaxTopK = 100

// ErrEmptyQuery is returned by Validate for a blank query.
var ErrEmptyQuery = errors.New("query cannot be empty")

// PromptRequest asks for a prompt built from query and its retrieved context.
type PromptRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate rejects a blank query and caps TopK. A TopK of zero or less is
// left at zero so the server applies its configured default.
func (q *PromptRequest) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	if q.TopK < 0 {
		q.TopK = 0
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	return nil
}

// ContextChunk is one retrieved chunk in a PromptResponse.
type ContextChunk struct {
	Index    int     `json:"index"`
	Distance float32 `json:"distance"`
	Text     string  `json:"text"`
}

// PromptResponse carries the assembled prompt and the chunks it was built from.
type PromptResponse struct {
	Prompt  string         `json:"prompt"`
	Context []ContextChunk `json:"context"`
}

// TestPromptResponse is the reply of POST /test-prompt.
type TestPromptResponse struct {
	Prompt string `json:"prompt"`
}
