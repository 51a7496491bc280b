// Package prompt combines a user query with retrieved context.
package prompt

import (
	"strings"

	"github.com/hyperjump/kioku/internal/sanitize"
)

// Assemble returns query followed by the sanitized retrieved texts, joined
// with single spaces. With nothing retrieved the query is returned as is.
func Assemble(query string, retrieved []string) string {
	if len(retrieved) == 0 {
		return query
	}
	cleaned := make([]string, len(retrieved))
	for i, text := range retrieved {
		cleaned[i] = sanitize.Clean(text)
	}
	return query + " " + strings.Join(cleaned, " ")
}
