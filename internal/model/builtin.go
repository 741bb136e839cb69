package model

import (
	"fmt"
	"math"
	"math/rand"
)

// Builtin is a small self-contained recurrent language model. It exists so
// the server, its tests, and development setups can run the full decode path
// without external weights: each call to Forward folds the new tokens into a
// hidden state held in the cache and projects that state back to vocabulary
// logits. Outputs are deterministic for a given seed and token history.
type Builtin struct {
	vocab  int
	hidden int

	emb  [][]float32 // [vocab][hidden]
	proj [][]float32 // [hidden][vocab]
	bias []float32   // [vocab]
}

// builtinCache carries the recurrent hidden state for one session.
type builtinCache struct {
	h      []float32
	nTok   int
	hidden int
}

func (c *builtinCache) Positions() int { return c.nTok }

func (c *builtinCache) Reset() {
	for i := range c.h {
		c.h[i] = 0
	}
	c.nTok = 0
}

// NewBuiltin constructs the built-in runtime with weights derived
// deterministically from seed.
func NewBuiltin(vocab, hidden int, seed int64) *Builtin {
	rng := rand.New(rand.NewSource(seed))
	m := &Builtin{
		vocab:  vocab,
		hidden: hidden,
		emb:    randMat(rng, vocab, hidden),
		proj:   randMat(rng, hidden, vocab),
		bias:   make([]float32, vocab),
	}
	return m
}

func randMat(rng *rand.Rand, rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		row := make([]float32, cols)
		for j := range row {
			row[j] = float32(rng.NormFloat64()) * 0.1
		}
		m[i] = row
	}
	return m
}

func (m *Builtin) NewCache() Cache {
	return &builtinCache{h: make([]float32, m.hidden), hidden: m.hidden}
}

// Forward folds tokens into the cache's hidden state and returns logits for
// the final position.
func (m *Builtin) Forward(tokens []int, cache Cache) ([]float32, error) {
	c, ok := cache.(*builtinCache)
	if !ok {
		return nil, fmt.Errorf("cache type %T does not belong to the builtin runtime", cache)
	}
	if c.hidden != m.hidden {
		return nil, fmt.Errorf("cache hidden size %d does not match model %d", c.hidden, m.hidden)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("forward requires at least one token")
	}

	for _, tok := range tokens {
		if tok < 0 || tok >= m.vocab {
			return nil, fmt.Errorf("token id %d outside vocabulary of size %d", tok, m.vocab)
		}
		row := m.emb[tok]
		for i := range c.h {
			c.h[i] = tanh32(0.7*c.h[i] + row[i])
		}
		c.nTok++
	}

	logits := make([]float32, m.vocab)
	for j := 0; j < m.vocab; j++ {
		var sum float32
		for i := 0; i < m.hidden; i++ {
			sum += c.h[i] * m.proj[i][j]
		}
		logits[j] = sum + m.bias[j]
	}
	return logits, nil
}

func tanh32(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}
