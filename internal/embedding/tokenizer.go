package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	defaultMaxTokens = 256
	// maxWordRunes is the length past which a word maps to [UNK] outright.
	maxWordRunes = 100

	hashCLS = 101
	hashSEP = 102
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids),
// padded to maxTokens.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// WordPieceTokenizer is the uncased BERT tokenizer: lowercase, strip accents,
// split on whitespace and punctuation, then greedy longest-match-first
// word pieces with "##" continuations.
type WordPieceTokenizer struct {
	vocab              map[string]int64
	cls, sep, unk, pad int64
}

// LoadVocab reads a vocab.txt (one token per line, ID = line number) and
// returns a tokenizer over it.
func LoadVocab(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	var tokens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return NewWordPieceTokenizer(tokens)
}

// NewWordPieceTokenizer builds a tokenizer where tokens[i] has ID i. The vocab
// must contain [CLS], [SEP] and [UNK]; [PAD] defaults to 0 when absent.
func NewWordPieceTokenizer(tokens []string) (*WordPieceTokenizer, error) {
	vocab := make(map[string]int64, len(tokens))
	for i, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = int64(i)
		}
	}
	t := &WordPieceTokenizer{vocab: vocab}
	for _, special := range []struct {
		name string
		dst  *int64
	}{{"[CLS]", &t.cls}, {"[SEP]", &t.sep}, {"[UNK]", &t.unk}} {
		id, ok := vocab[special.name]
		if !ok {
			return nil, fmt.Errorf("vocab has no %s token", special.name)
		}
		*special.dst = id
	}
	t.pad = vocab["[PAD]"]
	return t, nil
}

// Tokenize returns [CLS] pieces... [SEP], truncated and padded to maxTokens.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = defaultMaxTokens
	}
	ids := []int64{t.cls}
words:
	for _, word := range basicTokens(text) {
		for _, id := range t.wordPieces(word) {
			if len(ids) >= maxTokens-1 {
				break words
			}
			ids = append(ids, id)
		}
	}
	ids = append(ids, t.sep)
	return padTokens(ids, maxTokens, t.pad)
}

func (t *WordPieceTokenizer) wordPieces(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []int64{t.unk}
	}
	var out []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		id, found := int64(0), false
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, found = t.vocab[piece]; found {
				break
			}
		}
		if !found {
			return []int64{t.unk}
		}
		out = append(out, id)
		start = end
	}
	return out
}

// HashTokenizer maps each word to a hash-derived ID. It needs no vocab and
// only suits models trained with the same scheme, or tests.
type HashTokenizer struct{}

// Tokenize splits text like WordPieceTokenizer and hashes whole words.
func (HashTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = defaultMaxTokens
	}
	ids := []int64{hashCLS}
	for _, word := range basicTokens(text) {
		if len(ids) >= maxTokens-1 {
			break
		}
		ids = append(ids, int64(hashString(word)%30000))
	}
	ids = append(ids, hashSEP)
	return padTokens(ids, maxTokens, 0)
}

func padTokens(ids []int64, maxTokens int, pad int64) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i := range inputIDs {
		if i < len(ids) {
			inputIDs[i] = ids[i]
			attentionMask[i] = 1
		} else {
			inputIDs[i] = pad
		}
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// basicTokens lowercases and strips accents, then splits on whitespace with
// every punctuation, symbol and Han character as its own token.
func basicTokens(text string) []string {
	var (
		tokens []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsSpace(r):
			flush()
		case r == 0 || r == unicode.ReplacementChar || unicode.IsControl(r):
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
