// Package slots evaluates the 3x3 visible grid of a three-reel slot.
package slots

import (
	"github.com/shopspring/decimal"

	"github.com/Ashenafi-pixel/jackpot-royale/gamemath"
	"github.com/Ashenafi-pixel/jackpot-royale/money"
)

const (
	Reels = 3
	Rows  = 3
)

// Line names a winning row.
type Line string

const (
	LineTop    Line = "top"
	LineMiddle Line = "middle"
	LineBottom Line = "bottom"
)

var rowLines = [Rows]Line{LineTop, LineMiddle, LineBottom}

// Grid is the frozen visible window, indexed [reel][row].
type Grid [Reels][Rows]string

// Row returns the three symbols across the reels at row.
func (g Grid) Row(row int) [Reels]string {
	var out [Reels]string
	for r := 0; r < Reels; r++ {
		out[r] = g[r][row]
	}
	return out
}

// LinePay is the payout of one matched row.
type LinePay struct {
	Line   Line            `json:"line"`
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

// Evaluation is the result of inspecting a grid for one stake.
type Evaluation struct {
	WinAmount  decimal.Decimal `json:"winAmount"`
	Lines      []Line          `json:"winningLines"`
	Pays       []LinePay       `json:"linePays,omitempty"`
	JackpotWon bool            `json:"jackpotWon"`
	Special    *SpecialPrize   `json:"special,omitempty"`
}

// Won reports whether the grid pays anything, jackpot included.
func (e Evaluation) Won() bool {
	return e.JackpotWon || e.WinAmount.IsPositive()
}

// SpecialPrize is a scatter-style award counted over all 9 cells.
type SpecialPrize struct {
	Rule   string          `json:"rule"`
	Amount decimal.Decimal `json:"amount"`
}

// Evaluate pays every row whose three symbols match at value x stake. The
// jackpot is the middle row showing three jackpot symbols; that row also pays.
func Evaluate(pt *gamemath.Paytable, grid Grid, stake decimal.Decimal) Evaluation {
	ev := Evaluation{WinAmount: decimal.Zero, Lines: []Line{}}
	for row := 0; row < Rows; row++ {
		cells := grid.Row(row)
		if cells[0] == "" || cells[0] != cells[1] || cells[1] != cells[2] {
			continue
		}
		sym, ok := pt.Symbol(cells[0])
		if !ok {
			continue
		}
		amount := money.Round(stake.Mul(decimal.NewFromFloat(sym.Value)))
		ev.WinAmount = ev.WinAmount.Add(amount)
		ev.Lines = append(ev.Lines, rowLines[row])
		ev.Pays = append(ev.Pays, LinePay{Line: rowLines[row], Symbol: sym.Name, Amount: amount})
	}
	ev.WinAmount = money.Round(ev.WinAmount)
	ev.JackpotWon = IsJackpot(pt, grid)
	return ev
}

// IsJackpot checks the middle row only. Diagonals and other rows never trigger it.
func IsJackpot(pt *gamemath.Paytable, grid Grid) bool {
	mid := grid.Row(1)
	return mid[0] == pt.JackpotSymbol && mid[1] == pt.JackpotSymbol && mid[2] == pt.JackpotSymbol
}

// Special applies the first matching special rule. It returns nil when none match.
func Special(pt *gamemath.Paytable, grid Grid, stake decimal.Decimal) *SpecialPrize {
	counts := make(map[string]int, len(pt.Symbols))
	for r := 0; r < Reels; r++ {
		for row := 0; row < Rows; row++ {
			counts[grid[r][row]]++
		}
	}
	for _, rule := range pt.Special {
		n := 0
		for _, s := range rule.Symbols {
			n += counts[s]
		}
		if n >= rule.Count {
			return &SpecialPrize{
				Rule:   rule.Name,
				Amount: money.Round(stake.Mul(decimal.NewFromFloat(rule.Multiplier))),
			}
		}
	}
	return nil
}
