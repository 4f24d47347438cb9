// Package ingest turns uploaded documents into bounded-size text chunks with
// page attribution, ready for batched embedding.
package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the character budget per chunk.
const DefaultChunkSize = 1000

var paragraphBoundary = regexp.MustCompile(`\n[ \t]*\n`)

// ChunkText splits page text into chunks of at most limit characters.
// Paragraphs (blank-line separated) are packed greedily; a paragraph that
// alone exceeds the limit is split on word boundaries instead. The limit
// counts characters, not bytes, so multibyte text is never cut mid-rune.
func ChunkText(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkSize
	}

	var chunks []string
	var current strings.Builder
	size := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, para := range paragraphBoundary.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		paraSize := utf8.RuneCountInString(para)
		if paraSize > limit {
			flush()
			chunks = append(chunks, splitWords(para, limit)...)
			continue
		}

		// +2 for the paragraph join
		if size > 0 && size+2+paraSize > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
			size += 2
		}
		current.WriteString(para)
		size += paraSize
	}
	flush()

	return chunks
}

// splitWords packs words into chunks of at most limit characters. A single
// word longer than the limit is hard-cut on a rune boundary.
func splitWords(para string, limit int) []string {
	var chunks []string
	var current strings.Builder
	size := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, word := range strings.Fields(para) {
		runes := []rune(word)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		if len(runes) == 0 {
			continue
		}
		if size > 0 && size+1+len(runes) > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
			size++
		}
		current.WriteString(string(runes))
		size += len(runes)
	}
	flush()

	return chunks
}
