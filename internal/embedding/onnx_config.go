package embedding

import (
	"errors"
	"fmt"
	"os"
)

// ONNXConfig configures a local ONNX Runtime embedder. The model must take
// input_ids, attention_mask and token_type_ids of shape [1, MaxTokens] and
// produce a pooled "output" of shape [1, Dimensions].
type ONNXConfig struct {
	ModelPath   string
	VocabPath   string
	LibraryPath string
	Dimensions  int
	MaxTokens   int
}

func (c ONNXConfig) check() error {
	if c.ModelPath == "" {
		return errors.New("onnx model path is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", c.Dimensions)
	}
	if _, err := os.Stat(c.ModelPath); err != nil {
		return fmt.Errorf("onnx model: %w", err)
	}
	return nil
}

// tokenizer returns a WordPiece tokenizer over VocabPath, or HashTokenizer
// when no vocab is configured.
func (c ONNXConfig) tokenizer() (Tokenizer, error) {
	if c.VocabPath == "" {
		return HashTokenizer{}, nil
	}
	return LoadVocab(c.VocabPath)
}

func (c ONNXConfig) maxTokens() int {
	if c.MaxTokens < 2 {
		return defaultMaxTokens
	}
	return c.MaxTokens
}
