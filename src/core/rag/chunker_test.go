package rag

import (
	"strings"
	"testing"
)

func words(n int, w string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = w
	}
	return strings.Join(parts, " ")
}

func TestSplitChunks_ShortTextSingleChunk(t *testing.T) {
	text := "hello world\n\nsecond paragraph"
	chunks := SplitChunks(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "second paragraph") {
		t.Errorf("chunk lost content: %q", chunks[0])
	}
}

func TestSplitChunks_Empty(t *testing.T) {
	if chunks := SplitChunks("   \n\n  "); chunks != nil {
		t.Errorf("expected no chunks, got %v", chunks)
	}
}

func TestSplitChunks_NeverEmptyChunks(t *testing.T) {
	text := words(120, "a") + "\n\n\n\n" + words(450, "b") + "\n\n" + words(200, "c")
	for i, c := range SplitChunks(text) {
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitChunks_ParagraphBoundariesPreferred(t *testing.T) {
	// 400 + 400 words: the second paragraph would push past the maximum
	// while the buffer already holds a full chunk, so it starts a new one.
	text := words(400, "alpha") + "\n\n" + words(400, "beta")
	chunks := SplitChunks(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if strings.Contains(chunks[0], "beta") {
		t.Error("first chunk should only hold the first paragraph")
	}
}

func TestSplitChunks_LosslessWordContent(t *testing.T) {
	text := words(250, "one") + "\n\n" + words(310, "two") + "\n\n" + words(90, "three")
	chunks := SplitChunks(text)

	got := strings.Fields(strings.Join(chunks, " "))
	want := strings.Fields(text)
	if len(got) != len(want) {
		t.Fatalf("word count changed: got %d want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("word %d differs: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestSplitChunks_HardSplitWithoutParagraphs(t *testing.T) {
	text := words(1200, "x")
	chunks := SplitChunks(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:2] {
		if n := len(strings.Fields(c)); n != ChunkMaxWords {
			t.Errorf("chunk %d has %d words, want %d", i, n, ChunkMaxWords)
		}
	}
	if n := len(strings.Fields(chunks[2])); n != 200 {
		t.Errorf("last chunk has %d words, want 200", n)
	}
}

func TestSplitChunks_OversizedParagraphFlushedWhole(t *testing.T) {
	// A single oversized paragraph among others exceeds the maximum by at
	// most its own length and is flushed as one chunk.
	text := words(50, "pre") + "\n\n" + words(700, "big") + "\n\n" + words(50, "post")
	chunks := SplitChunks(text)
	for _, c := range chunks {
		if n := len(strings.Fields(c)); n > 750+ChunkMaxWords {
			t.Errorf("chunk exceeds max by more than one paragraph: %d words", n)
		}
	}
	if len(chunks) < 2 {
		t.Fatalf("expected oversized paragraph to force a flush, got %d chunks", len(chunks))
	}
}
