// Package reel models reel positions during a spin and the frame scheduler that drives them.
//
// Positions are pixel offsets of the strip top. Reels move in the negative
// direction only, so |position| grows while spinning and wraps every span
// (reel length x cell height).
package reel

import (
	"math"

	"github.com/Ashenafi-pixel/jackpot-royale/gamemath"
)

const (
	CellHeight  = 100.0
	VisibleRows = 3
	WrapEntries = 3

	BaseSpeed      = 50.0
	SpeedStep      = 5.0
	Deceleration   = 0.8
	CrawlThreshold = 10.0
	SnapTolerance  = 5.0
	FrameMs        = 16.0
	ExtraTurns     = 2

	crawlEase     = 0.2
	minCrawlStep  = 5.0
	minCrawlSpeed = 1.0
)

// Reel is one strip and its motion state. Render code reads it through the accessors.
type Reel struct {
	symbols  []gamemath.Symbol
	position float64
	speed    float64
	target   float64
	index    int
	stopping bool
	crawling bool
	settled  bool
}

// New returns a settled reel showing the strip from index 1 at the top.
func New(symbols []gamemath.Symbol) *Reel {
	return &Reel{
		symbols:  append([]gamemath.Symbol(nil), symbols...),
		position: -CellHeight,
		settled:  true,
	}
}

func (r *Reel) Len() int          { return len(r.symbols) }
func (r *Reel) Position() float64 { return r.position }
func (r *Reel) Speed() float64    { return r.speed }
func (r *Reel) Target() float64   { return r.target }
func (r *Reel) TargetIndex() int  { return r.index }
func (r *Reel) Stopping() bool    { return r.stopping }
func (r *Reel) Crawling() bool    { return r.crawling }
func (r *Reel) Settled() bool     { return r.settled }
func (r *Reel) Span() float64     { return r.span() }

func (r *Reel) span() float64 { return float64(len(r.symbols)) * CellHeight }

// Symbols returns a copy of the strip without wrap entries.
func (r *Reel) Symbols() []gamemath.Symbol {
	return append([]gamemath.Symbol(nil), r.symbols...)
}

// Strip returns the symbols followed by the wrap entries repeated from the head.
func (r *Reel) Strip() []gamemath.Symbol {
	n := len(r.symbols)
	out := make([]gamemath.Symbol, 0, n+WrapEntries)
	out = append(out, r.symbols...)
	for i := 0; i < WrapEntries && n > 0; i++ {
		out = append(out, r.symbols[i%n])
	}
	return out
}

// StopPosition returns the aligned position in (-span, 0] that shows index in the middle row.
func StopPosition(index, length int) float64 {
	span := float64(length) * CellHeight
	t := -float64(index-1) * CellHeight
	t = math.Round(t/CellHeight) * CellHeight
	t = math.Mod(t, span)
	if t > 0 {
		t -= span
	}
	if t == 0 {
		t = 0 // drop negative zero
	}
	return t
}

// StartSpin sets the target two or more full turns ahead and the ordinal-staggered speed.
func (r *Reel) StartSpin(targetIndex, ordinal int) {
	n := len(r.symbols)
	if n == 0 {
		return
	}
	targetIndex = ((targetIndex % n) + n) % n
	r.index = targetIndex
	r.target = StopPosition(targetIndex, n) - float64(ExtraTurns+ordinal)*r.span()
	r.speed = BaseSpeed + SpeedStep*float64(ordinal)
	r.stopping = false
	r.crawling = false
	r.settled = false
}

// RequestStop starts deceleration. The target is moved to the nearest equivalent
// stop that lies at least one braking distance ahead.
func (r *Reel) RequestStop() {
	if r.settled || r.stopping {
		return
	}
	r.stopping = true
	span := r.span()
	d := BrakingDistance(r.speed)
	r.target += math.Floor((r.position-d-r.target)/span) * span
}

// BrakingDistance is the travel from speed v until it drops under CrawlThreshold at FrameMs ticks.
func BrakingDistance(v float64) float64 {
	var d float64
	for {
		v = math.Max(0, v-Deceleration)
		if v < CrawlThreshold {
			return d
		}
		d += v
	}
}

// Tick advances the reel by dt milliseconds.
func (r *Reel) Tick(dt float64) {
	if r.settled {
		return
	}
	if dt < 0 {
		dt = 0
	}
	if !r.stopping {
		r.position -= r.speed * dt / FrameMs
		r.wrap()
		r.leadTarget()
		return
	}
	if !r.crawling {
		r.speed = math.Max(0, r.speed-Deceleration)
		if r.speed >= CrawlThreshold {
			r.position -= r.speed * dt / FrameMs
			r.wrap()
			return
		}
		r.crawling = true
	}
	r.keepTargetAhead()
	dist := r.position - r.target
	if dist < SnapTolerance {
		r.snap()
		return
	}
	step := math.Min(dist, math.Max(minCrawlStep, dist*crawlEase))
	r.position -= step
	r.speed = math.Max(minCrawlSpeed, r.speed-Deceleration)
	r.wrap()
}

func (r *Reel) snap() {
	span := r.span()
	r.position = r.align(r.target)
	r.position = r.align(math.Mod(r.position, span))
	if r.position == 0 {
		r.position = 0
	}
	r.target = r.position
	r.speed = 0
	r.stopping = false
	r.crawling = false
	r.settled = true
}

// keepTargetAhead moves an overshot target forward by whole spans.
func (r *Reel) keepTargetAhead() {
	if r.target <= r.position {
		return
	}
	span := r.span()
	r.target -= math.Ceil((r.target-r.position)/span) * span
}

// leadTarget keeps a free spinning reel's target strictly ahead by whole spans.
func (r *Reel) leadTarget() {
	if r.target < r.position {
		return
	}
	span := r.span()
	r.target -= (math.Floor((r.target-r.position)/span) + 1) * span
}

func (r *Reel) wrap() {
	span := r.span()
	if math.Abs(r.position) <= span {
		return
	}
	wrapped := math.Mod(r.position, span)
	r.target += wrapped - r.position
	r.position = wrapped
}

func (r *Reel) align(p float64) float64 {
	return math.Round(p/CellHeight) * CellHeight
}

// TopIndex is the strip index shown in the top row.
func (r *Reel) TopIndex() int {
	n := len(r.symbols)
	if n == 0 {
		return 0
	}
	return int(math.Round(math.Abs(r.position)/CellHeight)) % n
}

// Visible returns the top, middle and bottom symbols.
func (r *Reel) Visible() [VisibleRows]gamemath.Symbol {
	var out [VisibleRows]gamemath.Symbol
	n := len(r.symbols)
	if n == 0 {
		return out
	}
	top := r.TopIndex()
	for i := range out {
		out[i] = r.symbols[(top+i)%n]
	}
	return out
}

// VisibleNames is Visible reduced to symbol names.
func (r *Reel) VisibleNames() [VisibleRows]string {
	var out [VisibleRows]string
	for i, s := range r.Visible() {
		out[i] = s.Name
	}
	return out
}
