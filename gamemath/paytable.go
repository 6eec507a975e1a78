package gamemath

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModelID    = "jackpot_royale"
	DefaultReelLength = 20
	JackpotSymbol     = "star"
)

// SpecialRule pays Multiplier x stake when at least Count of the listed symbols are visible.
// Rules are checked in order and the first match wins.
type SpecialRule struct {
	Name       string   `json:"name" yaml:"name"`
	Symbols    []string `json:"symbols" yaml:"symbols"`
	Count      int      `json:"count" yaml:"count"`
	Multiplier float64  `json:"multiplier" yaml:"multiplier"`
}

// Paytable is the reel math: symbol catalog, strip length, jackpot symbol and special rules.
type Paytable struct {
	ModelID       string        `json:"model_id" yaml:"model_id"`
	ReelLength    int           `json:"reel_length" yaml:"reel_length"`
	JackpotSymbol string        `json:"jackpot_symbol" yaml:"jackpot_symbol"`
	Symbols       []Symbol      `json:"symbols" yaml:"symbols"`
	Special       []SpecialRule `json:"special,omitempty" yaml:"special"`
}

var fruit = []string{"cherry", "watermelon", "grape", "lemon", "plum"}

// Default returns the stock 7-symbol catalog. Weights sum to 100.
func Default() *Paytable {
	return &Paytable{
		ModelID:       DefaultModelID,
		ReelLength:    DefaultReelLength,
		JackpotSymbol: JackpotSymbol,
		Symbols: []Symbol{
			{Name: "lemon", Value: 5, Weight: 21},
			{Name: "plum", Value: 8, Weight: 19},
			{Name: "cherry", Value: 10, Weight: 17},
			{Name: "grape", Value: 12, Weight: 15},
			{Name: "watermelon", Value: 15, Weight: 12},
			{Name: "bell", Value: 20, Weight: 10},
			{Name: "star", Value: 50, Weight: 6},
		},
		Special: []SpecialRule{
			{Name: "grand", Symbols: []string{"star"}, Count: 7, Multiplier: 1000},
			{Name: "major", Symbols: []string{"star"}, Count: 5, Multiplier: 150},
			{Name: "minor", Symbols: []string{"star"}, Count: 3, Multiplier: 50},
			{Name: "bell_bonus", Symbols: []string{"bell"}, Count: 6, Multiplier: 100},
			{Name: "mini", Symbols: fruit, Count: 7, Multiplier: 25},
		},
	}
}

// Symbol returns the catalog entry for name.
func (p *Paytable) Symbol(name string) (Symbol, bool) {
	for _, s := range p.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// TotalWeight is the sum of all symbol weights.
func (p *Paytable) TotalWeight() int64 {
	var total int64
	for _, s := range p.Symbols {
		total += s.Weight
	}
	return total
}

var ErrInvalidPaytable = errors.New("invalid paytable")

// Validate checks the catalog is usable by the reels and the evaluator.
func (p *Paytable) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil", ErrInvalidPaytable)
	}
	if len(p.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols", ErrInvalidPaytable)
	}
	if p.ReelLength < 3 {
		return fmt.Errorf("%w: reel_length %d below visible rows", ErrInvalidPaytable, p.ReelLength)
	}
	seen := make(map[string]bool, len(p.Symbols))
	for _, s := range p.Symbols {
		if s.Name == "" {
			return fmt.Errorf("%w: symbol without name", ErrInvalidPaytable)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate symbol %q", ErrInvalidPaytable, s.Name)
		}
		seen[s.Name] = true
		if s.Weight <= 0 {
			return fmt.Errorf("%w: symbol %q weight must be positive", ErrInvalidPaytable, s.Name)
		}
		if s.Value < 0 {
			return fmt.Errorf("%w: symbol %q value is negative", ErrInvalidPaytable, s.Name)
		}
	}
	if !seen[p.JackpotSymbol] {
		return fmt.Errorf("%w: jackpot symbol %q not in catalog", ErrInvalidPaytable, p.JackpotSymbol)
	}
	for _, r := range p.Special {
		if r.Count <= 0 || r.Multiplier <= 0 || len(r.Symbols) == 0 {
			return fmt.Errorf("%w: special rule %q", ErrInvalidPaytable, r.Name)
		}
	}
	return nil
}

// LoadPaytable reads a YAML paytable. An empty path returns Default.
func LoadPaytable(path string) (*Paytable, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read paytable: %w", err)
	}
	p := &Paytable{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse paytable: %w", err)
	}
	if p.ModelID == "" {
		p.ModelID = DefaultModelID
	}
	if p.ReelLength == 0 {
		p.ReelLength = DefaultReelLength
	}
	if p.JackpotSymbol == "" {
		p.JackpotSymbol = JackpotSymbol
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
