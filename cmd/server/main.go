package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ashenafi-pixel/jackpot-royale/config"
	"github.com/Ashenafi-pixel/jackpot-royale/events"
	"github.com/Ashenafi-pixel/jackpot-royale/gamemath"
	"github.com/Ashenafi-pixel/jackpot-royale/jackpot"
	"github.com/Ashenafi-pixel/jackpot-royale/logger"
	"github.com/Ashenafi-pixel/jackpot-royale/persist"
	"github.com/Ashenafi-pixel/jackpot-royale/server"
	"github.com/Ashenafi-pixel/jackpot-royale/session"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
	"github.com/Ashenafi-pixel/jackpot-royale/store/backend"
)

func main() {
	// Load .env from cwd or the parent project.
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	lg := logger.New(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = lg.Sync() }()
	if _, err := maxprocs.Set(maxprocs.Logger(lg.Sugar().Infof)); err != nil {
		lg.Warn("maxprocs", zap.Error(err))
	}
	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	pt := gamemath.Default()
	if cfg.PaytablePath != "" {
		if pt, err = gamemath.LoadPaytable(cfg.PaytablePath); err != nil {
			return err
		}
	}

	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		pub = amqpPub
	}
	defer pub.Close()

	writer := persist.New(st, pub, lg, persist.DefaultOptions())

	jset := jackpot.Settings{
		Seed:             cfg.JackpotSeed,
		Floor:            cfg.JackpotFloor,
		Divergence:       cfg.JackpotDivergence,
		IncrementPercent: cfg.JackpotIncrementPercent,
	}
	initial, err := st.LoadJackpot(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		initial = jackpot.Fresh(jset)
	case err != nil:
		lg.Warn("jackpot load failed, starting from seed", zap.Error(err))
		initial = jackpot.Fresh(jset)
	}
	pool := jackpot.NewPool(jset, initial)

	sset := session.DefaultSettings()
	sset.StartCredits = cfg.StartCredits
	sset.MinStake = cfg.MinStake
	sset.MaxStake = cfg.MaxStake
	sset.StakeStep = cfg.StakeStep
	sset.DefaultStake = cfg.DefaultStake
	sset.SpecialPrizes = cfg.SpecialPrizes
	sset.PersistTimeout = cfg.PersistTimeout
	engine := session.NewEngine(pt, pool, writer, gamemath.SecureRNG{}, sset, lg)
	if err := engine.LoadLeaderboard(ctx); err != nil {
		lg.Warn("leaderboard load failed", zap.Error(err))
	}

	// The writer outlives the server so the last settlements drain.
	wctx, wcancel := context.WithCancel(context.Background())
	wdone := make(chan struct{})
	go func() {
		_ = writer.Run(wctx)
		close(wdone)
	}()

	srv := server.New(cfg, engine, writer, lg)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		return jackpot.RunGrowth(gctx, pool, cfg.JackpotGrowthInterval, cfg.JackpotGrowthAmount, writer, lg)
	})
	g.Go(func() error {
		return jackpot.RunRefresh(gctx, pool, cfg.JackpotRefreshInterval, st, writer, lg)
	})
	err = g.Wait()

	wcancel()
	<-wdone
	if serr := st.SaveJackpot(context.Background(), pool.Snapshot()); serr != nil {
		lg.Warn("final jackpot save failed", zap.Error(serr))
	}
	return err
}
