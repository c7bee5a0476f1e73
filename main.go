package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"nodegraph_poc/internal/storage"
	"nodegraph_poc/pkg"
	"nodegraph_poc/src"
	"nodegraph_poc/src/datastore"
	"nodegraph_poc/src/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := src.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := logger.InitLogger(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *src.Config) int {
	snap, closeSnap, err := storage.Open(ctx, cfg.Snapshot)
	if err != nil {
		logger.Error().Err(err).Str("backend", cfg.Snapshot.Backend).Msg("snapshot backend unavailable")
		return 1
	}
	defer closeSnap()

	checkSnapshots(ctx, snap)

	var opts []datastore.Option
	if snap != nil {
		opts = append(opts, datastore.WithSnapshotter(snap))
	}

	fetcher := datastore.NewHTTPFetcher(cfg.Fetch)
	defer fetcher.CloseIdleConnections()

	store := datastore.New(fetcher, opts...)
	defer store.Close()

	restored, err := store.WarmStart(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("warm start incomplete")
	}
	if restored > 0 {
		logger.Info().Int("lists", restored).Msg("restored snapshots")
	}

	changes, unsubscribe := store.Subscribe()
	defer unsubscribe()
	go func() {
		for c := range changes {
			logger.Debug().
				Str("kind", string(c.Kind)).
				Str("resource", string(c.Resource)).
				Int("count", c.Count).
				Bool("loading", c.Loading).
				Msg("store changed")
		}
	}()

	for _, r := range pkg.Resources {
		logger.Info().Str("resource", string(r)).Str("url", fetcher.URL(r)).Msg("fetching")
	}

	pending := store.Load(ctx)
	select {
	case <-pending.Done():
	case <-ctx.Done():
		logger.Warn().Msg("interrupted before all lists settled")
		return 130
	}

	failed := 0
	for _, r := range pkg.Resources {
		st := store.Status(r)
		if st.LastError != nil {
			failed++
			logger.Error().
				Err(st.LastError).
				Str("resource", string(r)).
				Int("kept", st.Count).
				Msg("fetch failed")
			continue
		}
		logger.Info().
			Str("resource", string(r)).
			Int("count", st.Count).
			Time("updated_at", st.UpdatedAt).
			Msg("loaded")
	}

	if failed == len(pkg.Resources) {
		return 1
	}
	return 0
}

// checkSnapshots reports the state of the snapshot backend before warm start
func checkSnapshots(ctx context.Context, snap datastore.Snapshotter) {
	switch sn := snap.(type) {
	case *storage.RedisSnapshotter:
		if err := sn.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis snapshot backend not healthy")
			return
		}
		for _, r := range pkg.Resources {
			ttl, err := sn.GetTTL(ctx, r)
			if err != nil {
				logger.Warn().Err(err).Str("resource", string(r)).Msg("failed to read snapshot ttl")
				continue
			}
			if ttl > 0 {
				logger.Debug().Str("resource", string(r)).Dur("ttl", ttl).Msg("snapshot available")
			}
		}
	case *storage.FileSnapshotter:
		if n, err := sn.Prune(); err != nil {
			logger.Warn().Err(err).Msg("failed to prune snapshots")
		} else if n > 0 {
			logger.Info().Int("removed", n).Msg("pruned expired snapshots")
		}
		for _, r := range pkg.Resources {
			stats, err := sn.Stats(r)
			if err != nil {
				logger.Warn().Err(err).Str("resource", string(r)).Msg("unreadable snapshot")
				continue
			}
			if stats != nil {
				logger.Debug().
					Str("resource", string(r)).
					Int("records", stats.Records).
					Time("modified_at", stats.ModifiedAt).
					Msg("snapshot available")
			}
		}
	}
}
