// Package rag retrieves reference passages for clinical questions. Chunks
// of the reference corpus are embedded once at ingest time and ranked by
// cosine similarity at query time.
package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/uptrace/bun"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/store"
)

const defaultTopK = 3

// Embedder turns texts into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// OpenAIEmbedder embeds via the OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(client *openai.Client, model string) (*OpenAIEmbedder, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if strings.TrimSpace(model) == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	return &OpenAIEmbedder{client: client, model: model}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings count mismatch: got %d want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Retriever answers knowledge queries from the knowledge_chunks table.
type Retriever struct {
	db       *bun.DB
	embedder Embedder
	topK     int
}

type RetrieverOption func(*Retriever)

func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

func NewRetriever(db *bun.DB, embedder Embedder, opts ...RetrieverOption) (*Retriever, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	r := &Retriever{db: db, embedder: embedder, topK: defaultTopK}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Query embeds the question (narrowed by patient context when present) and
// returns the topK closest chunks.
func (r *Retriever) Query(ctx context.Context, question string, patientContext string) ([]contractx.Passage, error) {
	query := strings.TrimSpace(question)
	if query == "" {
		return nil, errors.New("question is empty")
	}
	if strings.TrimSpace(patientContext) != "" {
		query = fmt.Sprintf("Context: %s\nQuestion: %s", strings.TrimSpace(patientContext), query)
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("embedder returned no query vector")
	}

	var chunks []store.KnowledgeChunk
	if err := r.db.NewSelect().Model(&chunks).Scan(ctx); err != nil {
		return nil, fmt.Errorf("load knowledge chunks: %w", err)
	}

	return rankChunks(chunks, vectors[0], r.topK), nil
}

type scoredChunk struct {
	chunk store.KnowledgeChunk
	score float64
}

func rankChunks(chunks []store.KnowledgeChunk, query []float64, topK int) []contractx.Passage {
	scored := make([]scoredChunk, 0, len(chunks))
	for _, c := range chunks {
		score, ok := cosineSimilarity(query, c.Embedding)
		if !ok {
			continue
		}
		scored = append(scored, scoredChunk{chunk: c, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	passages := make([]contractx.Passage, 0, topK)
	for _, sc := range scored[:topK] {
		passages = append(passages, contractx.Passage{
			Content: sc.chunk.Content,
			Source:  sc.chunk.Source,
		})
	}
	return passages
}

func cosineSimilarity(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
