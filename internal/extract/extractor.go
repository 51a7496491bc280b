// Package extract provides text extraction from the document formats accepted for ingestion.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupported is returned for extensions no extractor handles.
var ErrUnsupported = errors.New("unsupported file type")

type extractFunc func(content []byte) (string, error)

// Extractor extracts plain text from document files, keyed by lowercase extension.
type Extractor struct {
	formats map[string]extractFunc
}

// NewExtractor returns an Extractor for .pdf, .docx, .xlsx, .pptx, .odt, .odp,
// .ods, .rtf, .txt and .md.
func NewExtractor() *Extractor {
	return &Extractor{formats: map[string]extractFunc{
		".pdf":  extractPDF,
		".docx": extractDOCX,
		".xlsx": extractExcel,
		".pptx": extractPPTX,
		".odt":  extractWithCat,
		".odp":  extractODP,
		".ods":  extractODS,
		".rtf":  extractWithCat,
		".txt":  extractPlain,
		".md":   extractPlain,
	}}
}

// Supports reports whether ext (with leading dot, any case) can be extracted.
func (e *Extractor) Supports(ext string) bool {
	_, ok := e.formats[strings.ToLower(ext)]
	return ok
}

// Extensions returns the supported extensions, sorted.
func (e *Extractor) Extensions() []string {
	exts := make([]string, 0, len(e.formats))
	for ext := range e.formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !e.Supports(ext) {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := e.formats[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return fn(content)
}
