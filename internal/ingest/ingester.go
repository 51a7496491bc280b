// Package ingest turns uploaded or watched documents into indexed chunks:
// extension and size checks, text extraction, recursive character splitting,
// embedding and insertion into the bounded index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/index"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedFileType is returned for extensions outside the allow-list.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileTooLarge is returned when a document exceeds its size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrNoText is returned when a document yields no chunks.
	ErrNoText = errors.New("no extractable text")
	// ErrUnreadable is returned when a document of a supported type cannot be parsed.
	ErrUnreadable = errors.New("document could not be read")
)

// fileNamespace derives stable document IDs for files on disk.
var fileNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kioku:file"))

// Sink embeds chunks and stores them; retrieval.Service implements it.
type Sink interface {
	EmbedAndAdd(ctx context.Context, chunks []string) (index.AddResult, error)
}

// Report describes one ingested document.
type Report struct {
	DocumentID  string `json:"document_id"`
	Source      string `json:"source"`
	ChunksAdded int    `json:"chunks_added"`
	TotalChunks int    `json:"total_chunks"`
	Evicted     int    `json:"evicted"`
	Truncated   int    `json:"truncated"`
	Skipped     bool   `json:"skipped,omitempty"`
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// Ingester validates, extracts, splits and stores documents.
type Ingester struct {
	sink       Sink
	extractor  *extract.Extractor
	splitter   *Splitter
	extensions []string
	maxPDF     int64
	maxUpload  int64
	logger     *zap.Logger

	mu   sync.Mutex
	seen map[string]fileStamp
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger for debug output (file ingested, file skipped, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// NewIngester creates an ingester. extractor may be nil, in which case a
// default extract.Extractor is used.
func NewIngester(sink Sink, extractor *extract.Extractor, cfg config.IngestConfig, opts ...Option) (*Ingester, error) {
	splitter, err := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	in := &Ingester{
		sink:       sink,
		extractor:  extractor,
		splitter:   splitter,
		extensions: cfg.Extensions,
		maxPDF:     cfg.MaxPDFBytes(),
		maxUpload:  cfg.MaxUploadBytes(),
		logger:     zap.NewNop(),
		seen:       make(map[string]fileStamp),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// Allowed reports whether filename has an extension the ingester accepts.
// With no configured extensions every extractable type is accepted.
func (in *Ingester) Allowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(in.extensions) > 0 && !extensionAllowed(ext, in.extensions) {
		return false
	}
	return in.extractor.Supports(ext)
}

// CheckSize applies the size limits for filename without reading it.
func (in *Ingester) CheckSize(filename string, size int64) error {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") && in.maxPDF > 0 && size > in.maxPDF {
		return fmt.Errorf("%w: PDF exceeds size limit of %d MB", ErrFileTooLarge, in.maxPDF>>20)
	}
	if in.maxUpload > 0 && size > in.maxUpload {
		return fmt.Errorf("%w: file exceeds size limit of %d MB", ErrFileTooLarge, in.maxUpload>>20)
	}
	return nil
}

// IngestBytes ingests an uploaded document under a new random document ID.
func (in *Ingester) IngestBytes(ctx context.Context, filename string, content []byte) (*Report, error) {
	return in.ingestBytes(ctx, uuid.NewString(), filename, content)
}

func (in *Ingester) ingestBytes(ctx context.Context, docID, filename string, content []byte) (*Report, error) {
	if !in.Allowed(filename) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(filename))
	}
	if err := in.CheckSize(filename, int64(len(content))); err != nil {
		return nil, err
	}
	text, err := in.extractor.ExtractBytes(content, filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, filename, err)
	}
	return in.ingestText(ctx, docID, filename, text)
}

// IngestText splits and stores already-extracted text.
func (in *Ingester) IngestText(ctx context.Context, source, text string) (*Report, error) {
	return in.ingestText(ctx, uuid.NewString(), source, text)
}

func (in *Ingester) ingestText(ctx context.Context, docID, source, text string) (*Report, error) {
	chunks := in.splitter.Split(Normalize(text))
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, source)
	}
	res, err := in.sink.EmbedAndAdd(ctx, chunks)
	if err != nil {
		return nil, err
	}
	in.logger.Debug("document ingested",
		zap.String("source", source),
		zap.String("document_id", docID),
		zap.Int("chunks", res.Added),
		zap.Int("evicted", res.Evicted),
		zap.Int("total", res.Total))
	return &Report{
		DocumentID:  docID,
		Source:      source,
		ChunksAdded: res.Added,
		TotalChunks: res.Total,
		Evicted:     res.Evicted,
		Truncated:   res.Truncated,
	}, nil
}

// IngestFile reads and ingests a file. The document ID is derived from the
// absolute path. A file already ingested with the same mtime and size is
// skipped, since the index has no way to replace its earlier chunks.
func (in *Ingester) IngestFile(ctx context.Context, path string) (*Report, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if !in.Allowed(absPath) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	docID := uuid.NewSHA1(fileNamespace, []byte(filepath.Clean(absPath))).String()
	stamp := fileStamp{modTime: info.ModTime(), size: info.Size()}

	in.mu.Lock()
	prev, ok := in.seen[absPath]
	in.mu.Unlock()
	if ok && prev.modTime.Equal(stamp.modTime) && prev.size == stamp.size {
		in.logger.Debug("skipping unchanged file", zap.String("path", absPath))
		return &Report{DocumentID: docID, Source: absPath, Skipped: true}, nil
	}

	if err := in.CheckSize(absPath, info.Size()); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	report, err := in.ingestBytes(ctx, docID, absPath, content)
	if err != nil {
		return nil, err
	}
	in.mu.Lock()
	in.seen[absPath] = stamp
	in.mu.Unlock()
	return report, nil
}

// IngestDirectory walks dir and ingests each regular file with an allowed
// extension. It returns the number of files ingested (skipped files excluded)
// and the first error encountered.
func (in *Ingester) IngestDirectory(ctx context.Context, dir string, recursive bool) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	n := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !in.Allowed(path) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		report, err := in.IngestFile(ctx, path)
		if err != nil {
			if errors.Is(err, ErrNoText) {
				in.logger.Warn("skipping file without text", zap.String("path", path))
				return nil
			}
			return err
		}
		if !report.Skipped {
			n++
		}
		return nil
	})
	return n, err
}

// Forget drops the remembered stamp for path so the next IngestFile re-reads it.
func (in *Ingester) Forget(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	in.mu.Lock()
	delete(in.seen, absPath)
	in.mu.Unlock()
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
