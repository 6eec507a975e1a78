package session

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Ashenafi-pixel/jackpot-royale/money"
)

const (
	StakeIncrease = "increase"
	StakeDecrease = "decrease"
)

// ValidStake reports whether v lies in the configured range on a step boundary.
func (st Settings) ValidStake(v decimal.Decimal) bool {
	if v.LessThan(st.MinStake) || v.GreaterThan(st.MaxStake) {
		return false
	}
	return v.Sub(st.MinStake).Mod(st.StakeStep).IsZero()
}

// AdjustStake moves the stake one step, clamped to the range.
func (e *Engine) AdjustStake(id, action string) (decimal.Decimal, error) {
	var next func(cur decimal.Decimal) decimal.Decimal
	switch action {
	case StakeIncrease:
		next = func(cur decimal.Decimal) decimal.Decimal {
			return decimal.Min(cur.Add(e.settings.StakeStep), e.settings.MaxStake)
		}
	case StakeDecrease:
		next = func(cur decimal.Decimal) decimal.Decimal {
			return decimal.Max(cur.Sub(e.settings.StakeStep), e.settings.MinStake)
		}
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown action %q", ErrInvalidStake, action)
	}
	return e.changeStake(id, next)
}

// SetStake sets an exact stake.
func (e *Engine) SetStake(id string, v decimal.Decimal) (decimal.Decimal, error) {
	v = money.Round(v)
	if !e.settings.ValidStake(v) {
		return decimal.Zero, fmt.Errorf("%w: %s not in [%s, %s] step %s", ErrInvalidStake,
			money.String(v), money.String(e.settings.MinStake), money.String(e.settings.MaxStake), money.String(e.settings.StakeStep))
	}
	return e.changeStake(id, func(decimal.Decimal) decimal.Decimal { return v })
}

func (e *Engine) changeStake(id string, next func(decimal.Decimal) decimal.Decimal) (decimal.Decimal, error) {
	s, err := e.Session(id)
	if err != nil {
		return decimal.Zero, err
	}
	if !s.gate.TryAcquire(1) {
		return decimal.Zero, ErrSpinInProgress
	}
	defer s.gate.Release(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stake = money.Round(next(s.stake))
	return s.stake, nil
}
