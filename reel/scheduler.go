package reel

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	StopDelayMs   = 1000.0
	StopStaggerMs = 500.0
	SettleDelayMs = 300.0
	maxSpinMs     = 30_000.0
)

var (
	ErrStalled = errors.New("reel: spin did not settle")
	ErrBusy    = errors.New("reel: scheduler already running")
)

// ReelFrame is what a view needs to draw one reel.
type ReelFrame struct {
	Position float64   `json:"position"`
	Speed    float64   `json:"speed"`
	Stopping bool      `json:"stopping"`
	Settled  bool      `json:"settled"`
	Visible  [3]string `json:"visible"`
}

// Frame is one scheduler tick.
type Frame struct {
	Elapsed float64     `json:"elapsed"`
	Reels   []ReelFrame `json:"reels"`
	Settled bool        `json:"settled"`
}

// View receives every frame. Implementations must not retain the Reels slice.
type View interface {
	Render(Frame)
}

// ViewFunc adapts a function to View.
type ViewFunc func(Frame)

func (f ViewFunc) Render(fr Frame) { f(fr) }

// Scheduler advances all reels of a spin in lockstep from a single goroutine.
type Scheduler struct {
	reels     []*Reel
	stopAt    []float64
	elapsed   float64
	settledAt float64
	running   bool
	frame     Frame
}

func NewScheduler(reels ...*Reel) *Scheduler {
	s := &Scheduler{
		reels:  reels,
		stopAt: make([]float64, len(reels)),
		frame:  Frame{Reels: make([]ReelFrame, len(reels))},
	}
	for i := range s.stopAt {
		s.stopAt[i] = StopDelayMs + StopStaggerMs*float64(i)
	}
	return s
}

func (s *Scheduler) Reels() []*Reel   { return s.reels }
func (s *Scheduler) Elapsed() float64 { return s.elapsed }
func (s *Scheduler) Running() bool    { return s.running }

// Start puts every reel into motion toward its target index.
func (s *Scheduler) Start(targets []int) error {
	if s.running {
		return ErrBusy
	}
	if len(targets) != len(s.reels) {
		return fmt.Errorf("reel: %d targets for %d reels", len(targets), len(s.reels))
	}
	for i, r := range s.reels {
		r.StartSpin(targets[i], i)
	}
	s.elapsed = 0
	s.settledAt = -1
	s.running = true
	return nil
}

// Advance moves the spin forward by dt milliseconds and reports whether it has
// finished, including the settle delay after the last reel stopped.
func (s *Scheduler) Advance(dt float64) bool {
	if !s.running {
		return true
	}
	if dt < 0 {
		dt = 0
	}
	s.elapsed += dt
	for i, r := range s.reels {
		if !r.Stopping() && !r.Settled() && s.elapsed >= s.stopAt[i] {
			r.RequestStop()
		}
		r.Tick(dt)
	}
	if s.settledAt < 0 && s.allSettled() {
		s.settledAt = s.elapsed
	}
	if s.settledAt >= 0 && s.elapsed-s.settledAt >= SettleDelayMs {
		s.running = false
		return true
	}
	return false
}

func (s *Scheduler) allSettled() bool {
	for _, r := range s.reels {
		if r.Speed() > 0 || !r.Settled() {
			return false
		}
	}
	return true
}

// Frame snapshots the current reel state.
func (s *Scheduler) Frame() Frame {
	s.frame.Elapsed = s.elapsed
	s.frame.Settled = s.settledAt >= 0
	for i, r := range s.reels {
		s.frame.Reels[i] = ReelFrame{
			Position: r.Position(),
			Speed:    r.Speed(),
			Stopping: r.Stopping(),
			Settled:  r.Settled(),
			Visible:  r.VisibleNames(),
		}
	}
	return s.frame
}

// Simulate runs the spin to completion on virtual time with fixed frames.
func (s *Scheduler) Simulate(frameMs float64, view View) error {
	if frameMs <= 0 {
		frameMs = FrameMs
	}
	for {
		done := s.Advance(frameMs)
		if view != nil {
			view.Render(s.Frame())
		}
		if done {
			return nil
		}
		if s.elapsed > maxSpinMs {
			s.running = false
			return ErrStalled
		}
	}
}

// Run drives the spin in real time. A cancelled context does not abandon the
// spin: the remainder is finished headless so the outcome is always settled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, view View) error {
	if interval <= 0 {
		interval = time.Duration(FrameMs) * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return s.Simulate(FrameMs, nil)
		case now := <-ticker.C:
			dt := float64(now.Sub(last)) / float64(time.Millisecond)
			last = now
			done := s.Advance(dt)
			if view != nil {
				view.Render(s.Frame())
			}
			if done {
				return nil
			}
			if s.elapsed > maxSpinMs {
				s.running = false
				return ErrStalled
			}
		}
	}
}
