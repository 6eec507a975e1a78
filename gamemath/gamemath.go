package gamemath

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
)

// Symbol is one reel symbol: line multiplier and appearance weight.
type Symbol struct {
	Name   string  `json:"name" yaml:"name"`
	Value  float64 `json:"value" yaml:"value"`
	Weight int64   `json:"weight" yaml:"weight"`
}

// RNG is the randomness collaborator. Int64N returns a uniform value in [0, n).
type RNG interface {
	Int64N(n int64) int64
}

// SecureRNG draws from crypto/rand.
type SecureRNG struct{}

func (SecureRNG) Int64N(n int64) int64 {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

// NewSeededRNG returns a reproducible generator for simulation and tests. Not safe for concurrent use.
func NewSeededRNG(seed uint64) RNG {
	return mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Intn is a convenience wrapper returning an int in [0, n).
func Intn(rng RNG, n int) int {
	if n <= 0 {
		return 0
	}
	return int(rng.Int64N(int64(n)))
}

// Draw selects a symbol by weight. Returns false if the table is empty or has no positive weight.
func Draw(rng RNG, symbols []Symbol) (Symbol, bool) {
	var total int64
	for _, s := range symbols {
		if s.Weight > 0 {
			total += s.Weight
		}
	}
	if total <= 0 {
		return Symbol{}, false
	}
	idx := rng.Int64N(total)
	var cum int64
	for i := range symbols {
		s := &symbols[i]
		if s.Weight <= 0 {
			continue
		}
		cum += s.Weight
		if idx < cum {
			return *s, true
		}
	}
	return symbols[len(symbols)-1], true
}

// DrawStrip fills a reel strip of length n with weighted draws.
func DrawStrip(rng RNG, symbols []Symbol, n int) ([]Symbol, error) {
	strip := make([]Symbol, 0, n)
	for i := 0; i < n; i++ {
		s, ok := Draw(rng, symbols)
		if !ok {
			return nil, fmt.Errorf("gamemath: no drawable symbols")
		}
		strip = append(strip, s)
	}
	return strip, nil
}
