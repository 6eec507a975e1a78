// Package persist serialises every store write through one goroutine.
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Ashenafi-pixel/jackpot-royale/events"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

var (
	ErrQueueFull = errors.New("persist: queue full")
	ErrClosed    = errors.New("persist: writer stopped")
)

type Options struct {
	QueueSize int
	Retries   int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
	// DrainTimeout bounds each queued job still pending at shutdown.
	DrainTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{QueueSize: 256, Retries: 3, Backoff: 100 * time.Millisecond, DrainTimeout: 5 * time.Second}
}

type job struct {
	name string
	run  func(ctx context.Context, st store.Store) error
	done chan error
}

type Writer struct {
	st      store.Store
	pub     events.Publisher
	log     *zap.Logger
	opts    Options
	jobs    chan job
	stopped atomic.Bool
	// latest is the newest sequenced pool written. Only the Run goroutine touches it.
	latest store.Jackpot
}

func New(st store.Store, pub events.Publisher, log *zap.Logger, opts Options) *Writer {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions().QueueSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultOptions().DrainTimeout
	}
	return &Writer{st: st, pub: pub, log: log, opts: opts, jobs: make(chan job, opts.QueueSize)}
}

// Store returns the backend behind the writer, for reads.
func (w *Writer) Store() store.Store { return w.st }

// Run executes jobs in submission order until ctx is done, then drains the queue.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.stopped.Store(true)
			w.drain()
			return nil
		case j := <-w.jobs:
			j.done <- w.exec(ctx, j)
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case j := <-w.jobs:
			ctx, cancel := context.WithTimeout(context.Background(), w.opts.DrainTimeout)
			j.done <- w.exec(ctx, j)
			cancel()
		default:
			return
		}
	}
}

func (w *Writer) exec(ctx context.Context, j job) error {
	var err error
	for attempt := 0; attempt <= w.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("persist %s: %w", j.name, err)
			case <-time.After(time.Duration(attempt) * w.opts.Backoff):
			}
		}
		if err = j.run(ctx, w.st); err == nil {
			return nil
		}
		w.log.Warn("store write failed", zap.String("job", j.name), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return fmt.Errorf("persist %s: %w", j.name, err)
}

// Submit queues fn. The returned channel yields exactly one result.
func (w *Writer) Submit(name string, fn func(ctx context.Context, st store.Store) error) <-chan error {
	done := make(chan error, 1)
	if w.stopped.Load() {
		done <- ErrClosed
		return done
	}
	select {
	case w.jobs <- job{name: name, run: fn, done: done}:
	default:
		done <- ErrQueueFull
	}
	return done
}

// Wait blocks for a result from Submit or until ctx is done.
func Wait(ctx context.Context, res <-chan error) error {
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ordered swaps a pool snapshot older than the last one written for that one,
// so interleaved settlements never roll the stored pool back.
func (w *Writer) ordered(j store.Jackpot) store.Jackpot {
	if j.Seq != 0 && j.Seq < w.latest.Seq {
		return w.latest
	}
	return j
}

func (w *Writer) wrote(j store.Jackpot) {
	if j.Seq > w.latest.Seq {
		w.latest = j
	}
}

// Settle stores a settled spin and then publishes it. A publish failure is
// logged only; the store write is what the caller waits on.
func (w *Writer) Settle(s store.Settlement) <-chan error {
	return w.Submit("settle "+s.Spin.ID, func(ctx context.Context, st store.Store) error {
		s.Jackpot = w.ordered(s.Jackpot)
		if err := store.SaveSettlement(ctx, st, s); err != nil {
			return err
		}
		w.wrote(s.Jackpot)
		if err := w.pub.PublishSpin(ctx, s.Spin); err != nil {
			w.log.Warn("spin publish failed", zap.String("spin_id", s.Spin.ID), zap.Error(err))
		}
		return nil
	})
}

// SaveJackpot queues the pool write and waits for it.
func (w *Writer) SaveJackpot(ctx context.Context, j store.Jackpot) error {
	return Wait(ctx, w.Submit("jackpot", func(ctx context.Context, st store.Store) error {
		j := w.ordered(j)
		if err := st.SaveJackpot(ctx, j); err != nil {
			return err
		}
		w.wrote(j)
		return nil
	}))
}

func (w *Writer) SaveAccount(ctx context.Context, a store.Account) error {
	return Wait(ctx, w.Submit("account "+a.Username, func(ctx context.Context, st store.Store) error {
		return st.SaveAccount(ctx, a)
	}))
}

func (w *Writer) SaveLeaderboard(ctx context.Context, l store.Leaderboard) error {
	return Wait(ctx, w.Submit("leaderboard", func(ctx context.Context, st store.Store) error {
		return st.SaveLeaderboard(ctx, l)
	}))
}
