package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultHashDimension = 384

// HashingClient embeds text without a model: every lower-cased word is
// hashed into one of Dimension buckets with a hash-derived sign, and the
// result is L2-normalised. Identical input always yields identical output.
type HashingClient struct {
	dimension int
}

func NewHashingClient(dimension int) (*HashingClient, error) {
	if dimension < 1 {
		return nil, fmt.Errorf("hash dimension must be positive, got %d", dimension)
	}
	return &HashingClient{dimension: dimension}, nil
}

func (c *HashingClient) Dimension() int {
	return c.dimension
}

// CreateEmbedding implements embeddings.EmbedderClient.
func (c *HashingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors = append(vectors, c.embed(text))
	}
	return vectors, nil
}

func (c *HashingClient) embed(text string) []float32 {
	vec := make([]float32, c.dimension)

	for _, word := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		sum := h.Sum32()

		weight := float32(1)
		if sum&(1<<31) != 0 {
			weight = -1
		}
		vec[int(sum%uint32(c.dimension))] += weight
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
