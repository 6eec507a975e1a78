package session

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ashenafi-pixel/jackpot-royale/gamemath"
	"github.com/Ashenafi-pixel/jackpot-royale/games/slots"
	"github.com/Ashenafi-pixel/jackpot-royale/reel"
)

// Rules are the game rules a round is played by.
type Rules struct {
	Paytable      *gamemath.Paytable
	SpecialPrizes bool
}

// Round is a played but unsettled spin.
type Round struct {
	Stops      [slots.Reels]int
	Grid       slots.Grid
	Evaluation slots.Evaluation
	// Win is the amount to settle against the pool.
	Win decimal.Decimal
}

// NewReels draws a reel set. Strips stay fixed for the life of the set.
func NewReels(pt *gamemath.Paytable, rng gamemath.RNG) ([]*reel.Reel, error) {
	reels := make([]*reel.Reel, slots.Reels)
	for i := range reels {
		strip, err := gamemath.DrawStrip(rng, pt.Symbols, pt.ReelLength)
		if err != nil {
			return nil, err
		}
		reels[i] = reel.New(strip)
	}
	return reels, nil
}

// Evaluate scores the grid and returns the amount to settle. Special prizes
// only apply, when enabled, to a grid that pays nothing else.
func (r Rules) Evaluate(grid slots.Grid, stake decimal.Decimal) (slots.Evaluation, decimal.Decimal) {
	ev := slots.Evaluate(r.Paytable, grid, stake)
	if r.SpecialPrizes && !ev.Won() {
		if sp := slots.Special(r.Paytable, grid, stake); sp != nil {
			ev.Special = sp
			return ev, sp.Amount
		}
	}
	return ev, ev.WinAmount
}

// Play draws a uniform stop per reel and scores the grid the set comes to rest on.
// A nil view runs headless; otherwise frames are paced by interval.
func (r Rules) Play(ctx context.Context, rng gamemath.RNG, reels []*reel.Reel, stake decimal.Decimal, view reel.View, interval time.Duration) (Round, error) {
	if len(reels) != slots.Reels {
		return Round{}, fmt.Errorf("session: %d reels, want %d", len(reels), slots.Reels)
	}
	var rd Round
	for i, rl := range reels {
		rd.Stops[i] = gamemath.Intn(rng, rl.Len())
	}
	sched := reel.NewScheduler(reels...)
	if err := sched.Start(rd.Stops[:]); err != nil {
		return Round{}, err
	}
	var err error
	if view == nil {
		err = sched.Simulate(reel.FrameMs, nil)
	} else {
		err = sched.Run(ctx, interval, view)
	}
	if err != nil {
		return Round{}, err
	}
	rd.Grid = gridOf(reels)
	rd.Evaluation, rd.Win = r.Evaluate(rd.Grid, stake)
	return rd, nil
}
