package embedding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVocab = []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "the", "fox", "jump", "##s", "##ed", ",", "!", "cafe"}

func newTestTokenizer(t *testing.T) *WordPieceTokenizer {
	t.Helper()
	tok, err := NewWordPieceTokenizer(testVocab)
	require.NoError(t, err)
	return tok
}

func TestWordPieceTokenizer_Tokenize(t *testing.T) {
	tok := newTestTokenizer(t)
	ids, mask, types := tok.Tokenize("The fox jumps, jumped!", 12)

	assert.Equal(t, []int64{2, 4, 5, 6, 7, 9, 6, 8, 10, 3, 0, 0}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0}, mask)
	assert.Equal(t, make([]int64, 12), types)
}

func TestWordPieceTokenizer_AccentsAndUnknown(t *testing.T) {
	tok := newTestTokenizer(t)

	ids, _, _ := tok.Tokenize("Café", 4)
	assert.Equal(t, []int64{2, 11, 3, 0}, ids)

	ids, _, _ = tok.Tokenize("zebra", 4)
	assert.Equal(t, []int64{2, 1, 3, 0}, ids)

	ids, _, _ = tok.Tokenize(strings.Repeat("a", maxWordRunes+1), 4)
	assert.Equal(t, []int64{2, 1, 3, 0}, ids)
}

func TestWordPieceTokenizer_Truncates(t *testing.T) {
	tok := newTestTokenizer(t)
	ids, mask, _ := tok.Tokenize("the fox jumps", 4)
	assert.Equal(t, []int64{2, 4, 5, 3}, ids, "[SEP] always closes the sequence")
	assert.Equal(t, []int64{1, 1, 1, 1}, mask)
}

func TestNewWordPieceTokenizer_MissingSpecialToken(t *testing.T) {
	_, err := NewWordPieceTokenizer([]string{"[PAD]", "[CLS]", "[SEP]", "the"})
	assert.ErrorContains(t, err, "[UNK]")
}

func TestLoadVocab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(testVocab, "\r\n")+"\n"), 0o644))

	tok, err := LoadVocab(path)
	require.NoError(t, err)
	ids, _, _ := tok.Tokenize("fox", 3)
	assert.Equal(t, []int64{2, 5, 3}, ids)

	_, err = LoadVocab(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestHashTokenizer(t *testing.T) {
	var tok HashTokenizer
	ids, mask, _ := tok.Tokenize("Hello, world", 8)

	require.Len(t, ids, 8)
	assert.Equal(t, int64(hashCLS), ids[0])
	assert.Equal(t, int64(hashSEP), ids[4], "hello , world then [SEP]")
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 0, 0, 0}, mask)

	again, _, _ := tok.Tokenize("hello , WORLD", 8)
	assert.Equal(t, ids, again)
}

func TestONNXConfig_tokenizer(t *testing.T) {
	tok, err := ONNXConfig{}.tokenizer()
	require.NoError(t, err)
	assert.IsType(t, HashTokenizer{}, tok)

	assert.Equal(t, defaultMaxTokens, ONNXConfig{}.maxTokens())
	assert.Equal(t, 64, ONNXConfig{MaxTokens: 64}.maxTokens())
}
