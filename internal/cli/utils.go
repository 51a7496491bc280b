// Package cli implements the kioku command line: the server command that wires
// every component together and client commands that talk to a running server.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const previewLen = 200

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WritePrompt writes a prompt response in the given format.
func WritePrompt(w io.Writer, resp *models.PromptResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintln(w, resp.Prompt)
	if len(resp.Context) == 0 {
		fmt.Fprintln(w, "\n(no stored context; prompt is the query unchanged)")
		return nil
	}
	fmt.Fprintf(w, "\n--- Context (%d chunk(s)) ---\n", len(resp.Context))
	for i, c := range resp.Context {
		fmt.Fprintf(w, "%d. [#%d] distance %.4f\n   %s\n", i+1, c.Index, c.Distance, utils.Truncate(oneLine(c.Text), previewLen))
	}
	return nil
}

// WriteStatus writes index status in the given format.
func WriteStatus(w io.Writer, st *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Chunks:      %d / %d\n", st.TotalChunks, st.Capacity)
	fmt.Fprintf(w, "Index:       %s (%d dimensions)\n", st.IndexType, st.Dimensions)
	fmt.Fprintf(w, "Added:       %d (evicted %d, rebuilds %d)\n", st.TotalAdded, st.TotalEvicted, st.Rebuilds)
	fmt.Fprintf(w, "Embeddings:  %s / %s\n", st.EmbeddingProvider, st.EmbeddingModel)
	if len(st.WatchDirectories) == 0 {
		fmt.Fprintln(w, "Watching:    (none)")
	} else {
		fmt.Fprintf(w, "Watching:    %s\n", strings.Join(st.WatchDirectories, ", "))
	}
	return nil
}

// WriteUpload writes the result of one uploaded file.
func WriteUpload(w io.Writer, path string, resp *models.UploadResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, struct {
			Path string `json:"path"`
			*models.UploadResponse
		}{path, resp})
	}
	fmt.Fprintf(w, "%s: %d chunk(s) added, %d total (document %s)", path, resp.ChunksAdded, resp.TotalChunks, resp.DocumentID)
	if resp.Evicted > 0 {
		fmt.Fprintf(w, ", %d evicted", resp.Evicted)
	}
	if resp.Truncated > 0 {
		fmt.Fprintf(w, ", %d dropped over capacity", resp.Truncated)
	}
	fmt.Fprintln(w)
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
