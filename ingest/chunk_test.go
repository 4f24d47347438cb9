package ingest_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rivaldy/secondbrain-go/ingest"
)

func TestChunkTextPacksParagraphs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "   \n\n  ",
			want: nil,
		},
		{
			name: "single paragraph",
			text: "just one paragraph",
			want: []string{"just one paragraph"},
		},
		{
			name: "small paragraphs pack together",
			text: "first paragraph\n\nsecond paragraph",
			want: []string{"first paragraph\n\nsecond paragraph"},
		},
		{
			name: "blank lines with trailing spaces still split",
			text: "alpha\n   \nbeta",
			want: []string{"alpha\n\nbeta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ingest.ChunkText(tt.text, ingest.DefaultChunkSize)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks %q, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkTextRespectsLimit(t *testing.T) {
	para := strings.TrimSpace(strings.Repeat("word ", 60)) // ~300 chars
	text := para + "\n\n" + para + "\n\n" + para

	chunks := ingest.ChunkText(text, 650)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 650 {
			t.Errorf("chunk %d is %d chars, over the limit", i, len(c))
		}
	}
}

func TestChunkTextSplitsOversizeParagraphOnWords(t *testing.T) {
	words := strings.Fields(strings.Repeat("alpha beta gamma ", 80))
	para := strings.Join(words, " ") // well over 1000 chars, no blank lines

	chunks := ingest.ChunkText(para, ingest.DefaultChunkSize)

	if len(chunks) < 2 {
		t.Fatalf("oversize paragraph should split, got %d chunk(s)", len(chunks))
	}
	var rejoined []string
	for i, c := range chunks {
		if len(c) > ingest.DefaultChunkSize {
			t.Errorf("chunk %d is %d chars, over the limit", i, len(c))
		}
		rejoined = append(rejoined, strings.Fields(c)...)
	}
	if strings.Join(rejoined, " ") != strings.Join(words, " ") {
		t.Error("splitting lost or reordered words")
	}
}

func TestChunkTextSplitsJustOverLimit(t *testing.T) {
	// 1001 characters, a single paragraph of short words.
	page := strings.Repeat("ab ", 333) + "cd"
	if len(page) != 1001 {
		t.Fatalf("fixture is %d chars, want 1001", len(page))
	}

	chunks := ingest.ChunkText(page, ingest.DefaultChunkSize)

	if len(chunks) < 2 {
		t.Fatalf("got %d chunk(s), want at least 2", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > ingest.DefaultChunkSize {
			t.Errorf("chunk %d is %d chars, over the limit", i, len(c))
		}
	}
	if strings.Join(strings.Fields(strings.Join(chunks, " ")), " ") != strings.Join(strings.Fields(page), " ") {
		t.Error("chunks do not reassemble to the original text")
	}
}

func TestChunkTextCountsCharactersNotBytes(t *testing.T) {
	// 1500 runes, 4500 bytes, no splittable boundary.
	word := strings.Repeat("日", 1500)

	chunks := ingest.ChunkText(word, ingest.DefaultChunkSize)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	totalRunes := 0
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d contains invalid UTF-8", i)
		}
		if n := utf8.RuneCountInString(c); n > ingest.DefaultChunkSize {
			t.Errorf("chunk %d is %d characters, over the limit", i, n)
		}
		totalRunes += utf8.RuneCountInString(c)
	}
	if totalRunes != 1500 {
		t.Errorf("total %d characters, want 1500", totalRunes)
	}
}

func TestChunkTextHardCutsGiantWord(t *testing.T) {
	word := strings.Repeat("x", 2500)

	chunks := ingest.ChunkText(word, ingest.DefaultChunkSize)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	total := 0
	for i, c := range chunks {
		if len(c) > ingest.DefaultChunkSize {
			t.Errorf("chunk %d is %d chars, over the limit", i, len(c))
		}
		total += len(c)
	}
	if total != 2500 {
		t.Errorf("total %d chars, want 2500", total)
	}
}
