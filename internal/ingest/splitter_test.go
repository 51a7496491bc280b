package ingest

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func mustSplitter(t *testing.T, size, overlap int) *Splitter {
	t.Helper()
	s, err := NewSplitter(size, overlap)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSplitter_words(t *testing.T) {
	s := mustSplitter(t, 10, 3)
	got := s.Split("aaa bbb ccc ddd eee")
	want := []string{"aaa bbb", "ccc ddd", "eee"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplitter_overlap(t *testing.T) {
	s := mustSplitter(t, 10, 4)
	got := s.Split("aaa bbb ccc ddd eee")
	want := []string{"aaa bbb", "bbb ccc", "ccc ddd", "ddd eee"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplitter_characters(t *testing.T) {
	s := mustSplitter(t, 5, 2)
	got := s.Split("abcdefghij")
	want := []string{"abcde", "defgh", "ghij"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplitter_shortTextSingleChunk(t *testing.T) {
	s := mustSplitter(t, 100, 20)
	got := s.Split("para one.\n\npara two is longer")
	want := []string{"para one.\n\npara two is longer"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplitter_prefersParagraphs(t *testing.T) {
	s := mustSplitter(t, 30, 0)
	text := "first paragraph here\n\nsecond paragraph here\n\nthird"
	got := s.Split(text)
	want := []string{"first paragraph here", "second paragraph here\n\nthird"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplitter_recursesIntoLongParagraph(t *testing.T) {
	s := mustSplitter(t, 12, 0)
	got := s.Split("short\n\nthis paragraph is long")
	want := []string{"short", "this", "paragraph", "is long"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplitter_chunkSizeBound(t *testing.T) {
	s := mustSplitter(t, 100, 20)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if c != strings.TrimSpace(c) || c == "" {
			t.Errorf("chunk %d not trimmed: %q", i, c)
		}
	}
}

func TestSplitter_empty(t *testing.T) {
	s := mustSplitter(t, 5, 1)
	if chunks := s.Split("   \n\t  "); len(chunks) != 0 {
		t.Errorf("whitespace text should yield no chunks, got %q", chunks)
	}
	if chunks := s.Split(""); len(chunks) != 0 {
		t.Errorf("empty text should yield no chunks, got %q", chunks)
	}
}

func TestNewSplitter_invalid(t *testing.T) {
	if _, err := NewSplitter(0, 0); err == nil {
		t.Error("expected error for zero chunk size")
	}
	if _, err := NewSplitter(10, 10); err == nil {
		t.Error("expected error for overlap >= size")
	}
	if _, err := NewSplitter(10, -1); err == nil {
		t.Error("expected error for negative overlap")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("a\r\nb\rc\x00d\te"); got != "a\nb\ncd\te" {
		t.Errorf("got %q", got)
	}
}
