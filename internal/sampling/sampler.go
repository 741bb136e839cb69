// Package sampling chooses the next token from a logits vector.
package sampling

import (
	"math"
	"math/rand"
	"sort"
)

const minTemperature = 1e-6

// Config controls sampling behaviour. Temperature 0 selects deterministic
// argmax; TopP 1 disables nucleus filtering; RepeatPenalty 1 disables the
// repetition penalty.
type Config struct {
	Seed          int64
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	RepeatLastN   int
}

// Sampler draws token ids from logit vectors. One sampler belongs to one
// generation session; it is not safe for concurrent use.
type Sampler struct {
	cfg    Config
	rng    *rand.Rand
	greedy bool

	idx  []int
	prob []float64
}

// New builds a sampler. Out-of-range config values fall back to their
// neutral settings.
func New(cfg Config) *Sampler {
	greedy := cfg.Temperature <= 0
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.RepeatPenalty <= 0 {
		cfg.RepeatPenalty = 1
	}
	if cfg.RepeatLastN <= 0 {
		cfg.RepeatLastN = 64
	}
	return &Sampler{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		greedy: greedy,
	}
}

// Sample picks the next token id. recent is the token history used by the
// repetition penalty; logits is modified in place when a penalty applies.
func (s *Sampler) Sample(logits []float32, recent []int) int {
	if s.cfg.RepeatPenalty > 1 && len(recent) > 0 {
		start := len(recent) - s.cfg.RepeatLastN
		if start < 0 {
			start = 0
		}
		penalty := float32(s.cfg.RepeatPenalty)
		for _, id := range recent[start:] {
			if id < 0 || id >= len(logits) {
				continue
			}
			if logits[id] > 0 {
				logits[id] /= penalty
			} else {
				logits[id] *= penalty
			}
		}
	}

	if s.greedy {
		return Argmax(logits)
	}

	temp := s.cfg.Temperature
	if temp < minTemperature {
		temp = minTemperature
	}

	// Softmax over temperature-scaled logits, with the usual max
	// subtraction for numerical stability.
	if cap(s.idx) < len(logits) {
		s.idx = make([]int, len(logits))
		s.prob = make([]float64, len(logits))
	}
	idx := s.idx[:len(logits)]
	prob := s.prob[:len(logits)]

	maxLogit := float64(logits[Argmax(logits)])
	var sum float64
	for i, l := range logits {
		idx[i] = i
		p := math.Exp(float64(l)/temp - maxLogit/temp)
		prob[i] = p
		sum += p
	}
	if sum == 0 {
		return Argmax(logits)
	}
	for i := range prob {
		prob[i] /= sum
	}

	// Probability-sorted order; ties resolve to the lower id so runs with
	// the same seed stay reproducible across platforms.
	sort.SliceStable(idx, func(a, b int) bool {
		return prob[idx[a]] > prob[idx[b]]
	})

	// Nucleus cut: smallest prefix whose cumulative mass reaches TopP.
	cut := len(idx)
	if s.cfg.TopP < 1 {
		var cum float64
		for i, id := range idx {
			cum += prob[id]
			if cum >= s.cfg.TopP {
				cut = i + 1
				break
			}
		}
	}

	var mass float64
	for _, id := range idx[:cut] {
		mass += prob[id]
	}
	r := s.rng.Float64() * mass
	var cum float64
	for _, id := range idx[:cut] {
		cum += prob[id]
		if r <= cum {
			return id
		}
	}
	return idx[cut-1]
}

// Argmax returns the index of the largest logit. Ties resolve to the lowest
// index.
func Argmax(logits []float32) int {
	best := 0
	bestVal := logits[0]
	for i := 1; i < len(logits); i++ {
		if logits[i] > bestVal {
			best = i
			bestVal = logits[i]
		}
	}
	return best
}
