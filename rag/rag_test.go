package rag

import (
	"strings"
	"testing"

	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/store"
)

func TestSplitText(t *testing.T) {
	t.Parallel()

	t.Run("short text is one chunk", func(t *testing.T) {
		t.Parallel()
		chunks := SplitText("hello world", 500, 50)
		if len(chunks) != 1 || chunks[0] != "hello world" {
			t.Fatalf("unexpected chunks: %#v", chunks)
		}
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		t.Parallel()
		if chunks := SplitText("", 500, 50); len(chunks) != 0 {
			t.Fatalf("expected no chunks, got %d", len(chunks))
		}
	})

	t.Run("long text overlaps", func(t *testing.T) {
		t.Parallel()
		text := strings.Repeat("abcdefghij", 30)
		chunks := SplitText(text, 100, 20)

		if len(chunks) < 3 {
			t.Fatalf("expected several chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if len([]rune(c)) > 100 {
				t.Fatalf("chunk %d exceeds size: %d runes", i, len([]rune(c)))
			}
		}
		// The last 20 runes of each chunk open the next one.
		for i := 0; i < len(chunks)-1; i++ {
			tail := []rune(chunks[i])
			head := []rune(chunks[i+1])
			if string(tail[len(tail)-20:]) != string(head[:20]) {
				t.Fatalf("chunks %d and %d do not overlap", i, i+1)
			}
		}
	})

	t.Run("covers the whole text", func(t *testing.T) {
		t.Parallel()
		text := strings.Repeat("x", 250)
		chunks := SplitText(text, 100, 20)
		var total int
		for _, c := range chunks {
			total += len([]rune(c))
		}
		// Overlap re-counts runes, so the sum must be at least the input length.
		if total < 250 {
			t.Fatalf("chunks cover %d runes of %d", total, 250)
		}
	})
}

func TestRankChunks(t *testing.T) {
	t.Parallel()

	chunks := []store.KnowledgeChunk{
		{Content: "potassium advice", Source: "renal_diet.md", Embedding: []float64{1, 0, 0}},
		{Content: "sodium advice", Source: "renal_diet.md", Embedding: []float64{0.9, 0.1, 0}},
		{Content: "wound care", Source: "surgery.md", Embedding: []float64{0, 1, 0}},
		{Content: "broken embedding", Source: "bad.md", Embedding: nil},
	}

	passages := rankChunks(chunks, []float64{1, 0, 0}, 2)
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(passages))
	}
	if passages[0].Content != "potassium advice" || passages[1].Content != "sodium advice" {
		t.Fatalf("unexpected ranking: %#v", passages)
	}
}

func TestRankChunksTopKClamped(t *testing.T) {
	t.Parallel()

	chunks := []store.KnowledgeChunk{
		{Content: "only one", Source: "a.md", Embedding: []float64{1, 0}},
	}
	passages := rankChunks(chunks, []float64{1, 0}, 3)
	if len(passages) != 1 {
		t.Fatalf("topK must clamp to corpus size, got %d", len(passages))
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	if got, ok := cosineSimilarity([]float64{1, 0}, []float64{1, 0}); !ok || got < 0.999 {
		t.Fatalf("identical vectors: (%f, %v)", got, ok)
	}
	if got, ok := cosineSimilarity([]float64{1, 0}, []float64{0, 1}); !ok || got > 0.001 {
		t.Fatalf("orthogonal vectors: (%f, %v)", got, ok)
	}
	if _, ok := cosineSimilarity([]float64{1, 0}, []float64{1}); ok {
		t.Fatal("mismatched lengths must not score")
	}
	if _, ok := cosineSimilarity(nil, nil); ok {
		t.Fatal("empty vectors must not score")
	}
}
