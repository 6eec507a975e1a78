package jackpot

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

// Loader reads the stored pool.
type Loader interface {
	LoadJackpot(ctx context.Context) (store.Jackpot, error)
}

// Sink writes the pool out.
type Sink interface {
	SaveJackpot(ctx context.Context, j store.Jackpot) error
}

// RunGrowth adds amount every interval and saves the result until ctx is done.
func RunGrowth(ctx context.Context, p *Pool, interval time.Duration, amount decimal.Decimal, sink Sink, log *zap.Logger) error {
	if interval <= 0 || !amount.IsPositive() {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			j := p.Grow(amount)
			if err := sink.SaveJackpot(ctx, j); err != nil && ctx.Err() == nil {
				log.Warn("jackpot growth save failed", zap.Error(err), zap.String("amount", j.Amount.StringFixed(2)))
			}
		}
	}
}

// RefreshOnce pulls the stored pool and merges it. A missing record is
// treated as behind and gets the local pool written.
func RefreshOnce(ctx context.Context, p *Pool, src Loader, sink Sink) (Decision, error) {
	if p.Held() {
		return Skipped, nil
	}
	ext, err := src.LoadJackpot(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return PushLocal, sink.SaveJackpot(ctx, p.Snapshot())
	}
	if err != nil {
		return Kept, err
	}
	d, local := p.Reconcile(ext)
	if d == PushLocal {
		return d, sink.SaveJackpot(ctx, local)
	}
	return d, nil
}

// RunRefresh calls RefreshOnce every interval until ctx is done.
func RunRefresh(ctx context.Context, p *Pool, interval time.Duration, src Loader, sink Sink, log *zap.Logger) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			d, err := RefreshOnce(ctx, p, src, sink)
			if err != nil && ctx.Err() == nil {
				log.Warn("jackpot refresh failed", zap.Error(err))
				continue
			}
			if d == Applied || d == PushLocal {
				log.Info("jackpot refreshed", zap.Stringer("decision", d), zap.String("amount", p.Amount().StringFixed(2)))
			}
		}
	}
}
