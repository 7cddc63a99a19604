package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello   world  ", "hello world"},
		{"one\ntwo\t\tthree", "one two three"},
		{"", ""},
		{"   ", ""},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSnippetWhole(t *testing.T) {
	got := Snippet("hello world", 0, 200)
	if got != "hello world" {
		t.Errorf("got %q, want whole text without ellipsis", got)
	}
}

func TestSnippetTruncatedEdges(t *testing.T) {
	text := strings.Repeat("x", 300)
	got := Snippet(text, 150, 100)
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("got %q, want ellipsis on both edges", got)
	}
	if len(got) != 100+6 {
		t.Errorf("len = %d, want 106", len(got))
	}
}

func TestSnippetRuneBoundaries(t *testing.T) {
	// 2-byte runes throughout: odd window edges land mid-rune unless the
	// window is adjusted.
	text := strings.Repeat("é", 200)
	for pos := 0; pos <= len(text); pos += 7 {
		got := Snippet(text, pos, 101)
		if !utf8.ValidString(got) {
			t.Errorf("Snippet(pos=%d) is not valid UTF-8: %q", pos, got)
		}
	}
}

func TestSnippetClampsPosition(t *testing.T) {
	if got := Snippet("short", -5, 100); got != "short" {
		t.Errorf("negative pos: got %q", got)
	}
	if got := Snippet("short", 999, 100); got != "short" {
		t.Errorf("overlarge pos: got %q", got)
	}
}

func TestPageForOffset(t *testing.T) {
	pages := []string{"abc", "def", "ghi"}
	tests := []struct {
		offset, want int
	}{
		{0, 1},
		{3, 1},  // the joining newline still belongs to page 1
		{4, 2},
		{8, 3},
		{999, 3}, // clamps past the end
	}
	for _, tt := range tests {
		if got := PageForOffset(pages, tt.offset); got != tt.want {
			t.Errorf("PageForOffset(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
	if got := PageForOffset(nil, 0); got != 1 {
		t.Errorf("empty pages = %d, want 1", got)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		matches, strong, textLen int
		want                     float64
	}{
		{0, 0, 2000, 0},
		{1, 0, 2000, 0.2},
		{4, 0, 2000, 0.8},
		{10, 0, 2000, 0.8}, // base capped at 0.8
		{4, 2, 2000, 1.0},
		{10, 5, 2000, 1.0}, // clamped at 1
		{1, 0, 500, 0.16},  // short document discount
	}
	for _, tt := range tests {
		got := Confidence(tt.matches, tt.strong, tt.textLen)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Confidence(%d, %d, %d) = %v, want %v",
				tt.matches, tt.strong, tt.textLen, got, tt.want)
		}
	}
}

func TestChunkWords(t *testing.T) {
	got := ChunkWords("a b c d e", 2)
	want := []string{"a b", "c d", "e"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if got := ChunkWords("", 2); got != nil {
		t.Errorf("empty text = %v, want nil", got)
	}
}
