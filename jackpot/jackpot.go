// Package jackpot owns the shared progressive pool.
package jackpot

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

// DateLayout is the MM/DD/YYYY form used for the last won date.
const DateLayout = "01/02/2006"

type Settings struct {
	Seed             decimal.Decimal
	Floor            decimal.Decimal
	Divergence       decimal.Decimal
	IncrementPercent decimal.Decimal
}

func DefaultSettings() Settings {
	return Settings{
		Seed:             money.Must("10000"),
		Floor:            money.Must("1000"),
		Divergence:       money.Must("1000"),
		IncrementPercent: money.Must("100"),
	}
}

// Decision is the outcome of merging an external pool value.
type Decision int

const (
	// Skipped: a spin holds the pool.
	Skipped Decision = iota
	// Applied: the external value was larger and replaced the local one.
	Applied
	// PushLocal: local is ahead by more than the divergence and should be written out.
	PushLocal
	// Kept: local stays, nothing to write.
	Kept
)

func (d Decision) String() string {
	switch d {
	case Skipped:
		return "skipped"
	case Applied:
		return "applied"
	case PushLocal:
		return "push_local"
	case Kept:
		return "kept"
	}
	return "unknown"
}

// Outcome is what Settle paid and the pool state right after.
type Outcome struct {
	Paid    decimal.Decimal
	Jackpot store.Jackpot
}

type Pool struct {
	mu       sync.Mutex
	settings Settings
	state    store.Jackpot
	held     int
	now      func() time.Time
}

// NewPool starts from initial, resetting a corrupt or under-floor amount to the seed.
func NewPool(s Settings, initial store.Jackpot) *Pool {
	p := &Pool{settings: s, now: time.Now}
	initial.Amount = p.guard(initial.Amount)
	initial.LastWonAmount = money.Round(initial.LastWonAmount)
	if initial.UpdatedAt.IsZero() {
		initial.UpdatedAt = p.now()
	}
	initial.Seq = 0
	p.state = initial
	return p
}

// Fresh is the record used when nothing has been stored yet.
func Fresh(s Settings) store.Jackpot {
	return store.Jackpot{Amount: s.Seed}
}

func (p *Pool) Settings() Settings { return p.settings }

func (p *Pool) guard(v decimal.Decimal) decimal.Decimal {
	v = money.Round(v)
	if v.LessThan(p.settings.Floor) {
		return p.settings.Seed
	}
	return v
}

// touch stamps a state change. Callers hold mu.
func (p *Pool) touch() {
	p.state.UpdatedAt = p.now()
	p.state.Seq++
}

func (p *Pool) Snapshot() store.Jackpot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pool) Amount() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Amount
}

// Settle applies one spin result to the pool. A jackpot pays the whole pool
// and reseeds it; a line win pays at most what the pool holds; a losing spin
// feeds the pool with its stake share.
func (p *Pool) Settle(win decimal.Decimal, jackpotWon bool, stake decimal.Decimal) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	var paid decimal.Decimal
	switch {
	case jackpotWon:
		paid = p.state.Amount
		p.state.LastWonAmount = paid
		p.state.LastWonDate = p.now().Format(DateLayout)
		p.state.Amount = p.settings.Seed
	case win.IsPositive():
		paid = money.Round(money.Min(win, p.state.Amount))
		left := p.state.Amount.Sub(paid)
		if left.IsNegative() {
			left = decimal.Zero
		}
		if left.LessThan(p.settings.Floor) {
			left = p.settings.Seed
		}
		p.state.Amount = money.Round(left)
	default:
		paid = decimal.Zero
		p.state.Amount = money.Round(p.state.Amount.Add(money.Percent(stake, p.settings.IncrementPercent)))
	}
	p.touch()
	return Outcome{Paid: paid, Jackpot: p.state}
}

// Grow adds amount to the pool and returns the new state.
func (p *Pool) Grow(amount decimal.Decimal) store.Jackpot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Amount = money.Round(p.state.Amount.Add(amount))
	p.touch()
	return p.state
}

// Hold marks a spin in flight until the returned release is called.
// Release is idempotent.
func (p *Pool) Hold() (release func()) {
	p.mu.Lock()
	p.held++
	p.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.held--
			p.mu.Unlock()
		})
	}
}

func (p *Pool) Held() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held > 0
}

// Reconcile merges an externally stored pool into the local one.
func (p *Pool) Reconcile(ext store.Jackpot) (Decision, store.Jackpot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.held > 0 {
		return Skipped, p.state
	}
	amount := p.guard(ext.Amount)
	switch {
	case amount.GreaterThan(p.state.Amount):
		p.state.Amount = amount
		if ext.LastWonDate != "" {
			p.state.LastWonAmount = money.Round(ext.LastWonAmount)
			p.state.LastWonDate = ext.LastWonDate
		}
		p.touch()
		return Applied, p.state
	case p.state.Amount.Sub(amount).GreaterThan(p.settings.Divergence):
		return PushLocal, p.state
	}
	return Kept, p.state
}
