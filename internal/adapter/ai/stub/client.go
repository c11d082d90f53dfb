// Package stub is a deterministic offline provider used when no API key is configured.
package stub

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

// Dims is the length of every stub vector.
const Dims = 256

// Client embeds by feature hashing and answers every chat with an empty JSON array.
type Client struct{}

// New returns a stub client.
func New() *Client { return &Client{} }

// Model names the stub for audit records.
func (c *Client) Model() string { return "stub" }

// Embed hashes lower-cased word tokens into a unit vector. Texts sharing words score high cosine similarity.
func (c *Client) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashEmbed(t)
	}
	return out, nil
}

// ChatJSON always returns "[]" so callers take their empty-result path.
func (c *Client) ChatJSON(_ domain.Context, _ domain.ChatRequest) (string, error) {
	return "[]", nil
}

func hashEmbed(text string) []float32 {
	v := make([]float32, Dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		v[(sum>>1)%Dims] += sign
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

var _ domain.AIClient = (*Client)(nil)
