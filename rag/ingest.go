package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/uptrace/bun"

	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/store"
)

const (
	chunkSize    = 500
	chunkOverlap = 50
)

// Ingest reads a reference text file, splits it into overlapping chunks,
// embeds them, and replaces the stored corpus for that source.
func Ingest(ctx context.Context, db *bun.DB, embedder Embedder, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read reference file: %w", err)
	}

	chunks := SplitText(string(raw), chunkSize, chunkOverlap)
	if len(chunks) == 0 {
		return 0, errors.New("reference file produced no chunks")
	}

	vectors, err := embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("vector count mismatch: got %d want %d", len(vectors), len(chunks))
	}

	source := filepath.Base(path)
	rows := make([]store.KnowledgeChunk, 0, len(chunks))
	for i, content := range chunks {
		rows = append(rows, store.KnowledgeChunk{
			Source:    source,
			Content:   content,
			Embedding: vectors[i],
		})
	}

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*store.KnowledgeChunk)(nil)).Where("source = ?", source).Exec(ctx); err != nil {
			return fmt.Errorf("clear previous chunks: %w", err)
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// SplitText cuts text into rune chunks of at most size, with the tail of
// each chunk repeated as overlap at the head of the next.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		if len([]rune(chunk)) > 0 {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
