// Command slotsim plays spins headless and reports the return to player.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/Ashenafi-pixel/jackpot-royale/gamemath"
	"github.com/Ashenafi-pixel/jackpot-royale/jackpot"
	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/reel"
	"github.com/Ashenafi-pixel/jackpot-royale/session"
)

type report struct {
	Spins     int
	Wagered   decimal.Decimal
	Paid      decimal.Decimal
	Hits      int
	Jackpots  int
	Specials  int
	FinalPool decimal.Decimal
}

func (r report) RTP() float64 {
	if r.Wagered.IsZero() {
		return 0
	}
	return money.Float(r.Paid.Div(r.Wagered).Mul(decimal.NewFromInt(100)))
}

func (r report) HitRate() float64 {
	if r.Spins == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Spins) * 100
}

// simulate plays n spins through the same rounds the server plays, drawing a
// fresh reel set every sessionLen spins the way each login does.
func simulate(pt *gamemath.Paytable, rng gamemath.RNG, n, sessionLen int, stake decimal.Decimal, special bool) (report, error) {
	if sessionLen <= 0 {
		sessionLen = n
	}
	rules := session.Rules{Paytable: pt, SpecialPrizes: special}
	pool := jackpot.NewPool(jackpot.DefaultSettings(), jackpot.Fresh(jackpot.DefaultSettings()))
	rep := report{Wagered: decimal.Zero, Paid: decimal.Zero}
	var reels []*reel.Reel
	for s := 0; s < n; s++ {
		if s%sessionLen == 0 {
			var err error
			if reels, err = session.NewReels(pt, rng); err != nil {
				return report{}, err
			}
		}
		rd, err := rules.Play(context.Background(), rng, reels, stake, nil, 0)
		if err != nil {
			return report{}, err
		}
		out := pool.Settle(rd.Win, rd.Evaluation.JackpotWon, stake)
		rep.Spins++
		rep.Wagered = rep.Wagered.Add(stake)
		rep.Paid = rep.Paid.Add(out.Paid)
		if out.Paid.IsPositive() {
			rep.Hits++
		}
		if rd.Evaluation.JackpotWon {
			rep.Jackpots++
		}
		if rd.Evaluation.Special != nil {
			rep.Specials++
		}
	}
	rep.FinalPool = pool.Amount()
	return rep, nil
}

func main() {
	spins := flag.Int("spins", 100000, "number of spins")
	sessionLen := flag.Int("session", 50, "spins per reel set")
	stakeStr := flag.String("stake", "1", "stake per spin")
	seed := flag.Uint64("seed", 1, "RNG seed; 0 uses crypto/rand")
	paytable := flag.String("paytable", "", "YAML paytable (default catalog when empty)")
	special := flag.Bool("special", false, "apply special prizes")
	flag.Parse()

	pt := gamemath.Default()
	if *paytable != "" {
		var err error
		if pt, err = gamemath.LoadPaytable(*paytable); err != nil {
			fmt.Fprintf(os.Stderr, "paytable: %v\n", err)
			os.Exit(1)
		}
	}
	stake, err := decimal.NewFromString(*stakeStr)
	if err != nil || !stake.IsPositive() {
		fmt.Fprintln(os.Stderr, "stake must be a positive number")
		os.Exit(1)
	}
	var rng gamemath.RNG = gamemath.SecureRNG{}
	if *seed != 0 {
		rng = gamemath.NewSeededRNG(*seed)
	}

	rep, err := simulate(pt, rng, *spins, *sessionLen, money.Round(stake), *special)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("spins      %d\n", rep.Spins)
	fmt.Printf("wagered    %s\n", money.String(rep.Wagered))
	fmt.Printf("paid       %s\n", money.String(rep.Paid))
	fmt.Printf("rtp        %.2f%%\n", rep.RTP())
	fmt.Printf("hit rate   %.2f%%\n", rep.HitRate())
	fmt.Printf("jackpots   %d\n", rep.Jackpots)
	if *special {
		fmt.Printf("specials   %d\n", rep.Specials)
	}
	fmt.Printf("final pool %s\n", money.String(rep.FinalPool))
}
