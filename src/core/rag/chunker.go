package rag

import (
	"regexp"
	"strings"
)

// Chunk size bounds in words. The minimum is advisory: a final partial
// chunk (or a text shorter than the minimum) is emitted as-is.
const (
	ChunkMinWords = 300
	ChunkMaxWords = 500
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// SplitChunks splits raw document text into word-bounded chunks between
// ChunkMinWords and ChunkMaxWords, preferring paragraph boundaries. Text
// without any paragraph break falls back to hard word-window splitting.
// Empty chunks are never produced.
func SplitChunks(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paragraphs := make([]string, 0)
	for _, p := range paragraphSplit.Split(text, -1) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}

	if len(paragraphs) <= 1 {
		return hardSplit(strings.TrimSpace(text))
	}

	var chunks []string
	var buf []string
	bufWords := 0

	flush := func() {
		if len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, "\n\n"))
			buf = buf[:0]
			bufWords = 0
		}
	}

	for _, para := range paragraphs {
		words := len(strings.Fields(para))
		// flush before adding when the paragraph would push past the
		// maximum and the buffer already holds a full chunk
		if bufWords+words > ChunkMaxWords && bufWords >= ChunkMinWords {
			flush()
		}
		buf = append(buf, para)
		bufWords += words
		if bufWords >= ChunkMaxWords {
			flush()
		}
	}
	flush()
	return chunks
}

// hardSplit cuts a contiguous block into ChunkMaxWords windows without
// overlap.
func hardSplit(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var chunks []string
	for start := 0; start < len(words); start += ChunkMaxWords {
		end := start + ChunkMaxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
