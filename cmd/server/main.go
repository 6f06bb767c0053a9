package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dwellers.ai/internal/config"
	"dwellers.ai/internal/logging"
	"dwellers.ai/internal/sim/catalogs"
	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tuning"
	"dwellers.ai/internal/sim/world"
	"dwellers.ai/internal/transport/observer"
)

func main() {
	configPath := flag.String("config", "", "server config file (yaml/json/toml); DWELLERS_* env overrides")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := logging.New("info", true, os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := logging.Component(logging.New(cfg.LogLevel, cfg.LogPretty, os.Stdout), "server")

	tune := tuning.Defaults()
	if cfg.TuningPath != "" {
		if tune, err = tuning.Load(cfg.TuningPath); err != nil {
			logger.Fatal().Err(err).Str("path", cfg.TuningPath).Msg("load tuning")
		}
	}
	cats, err := catalogs.Load(cfg.CatalogsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.CatalogsPath).Msg("load catalogs")
	}

	worldDir := filepath.Join(cfg.DataDir, "worlds", cfg.WorldID)
	sinks, err := openSinks(cfg, worldDir, cats, tune, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open sinks")
	}
	defer sinks.Close()

	gen := tune.WorldGen
	tiles := grid.NewTileMap(tune.ChunkSize, grid.Terrain{
		Seed:                cfg.Seed,
		SpawnClearRadius:    gen.SpawnClearRadius,
		RockClusterPermille: gen.RockClusterPermille,
		TreePermille:        gen.TreePermille,
		StonePermille:       gen.StonePermille,
		TreeObject:          gen.TreeObject,
		StoneObject:         gen.StoneObject,
	}, cats.Blocking)

	worldLog := logging.Component(logger, "world")
	w, err := world.New(world.WorldConfig{
		ID:     cfg.WorldID,
		Seed:   cfg.Seed,
		Tuning: tune,
		Tiles:  tiles,
		Chunks: tiles,
		Log:    &worldLog,
	}, cats)
	if err != nil {
		logger.Fatal().Err(err).Msg("world")
	}
	sinks.attach(w)

	// The first dwellers need ground under them before the loop starts
	// streaming around them.
	home := grid.ChunkKey{}
	tiles.LoadAround(home, tune.LoadChunksRadius)
	if _, err := w.SpawnDwellers(home, tune.DwellerNames); err != nil {
		logger.Error().Err(err).Msg("initial dwellers")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("world stopped")
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/stats", statsHandler(w, sinks))
	mux.Handle("/v1/tasks", &taskAPI{submit: w.TaskRequests(), allowRemote: cfg.AllowRemote, timeout: 2 * time.Second})

	obs := observer.NewServer(w, logging.Component(logger, "observer"))
	obs.AllowRemote = cfg.AllowRemote
	obs.Routes(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", cfg.Addr).Str("world", cfg.WorldID).Int64("seed", cfg.Seed).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("listen")
		cancel()
	}
	<-worldDone
}

func statsHandler(w *world.World, sinks *sinkSet) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := struct {
			WorldID string      `json:"world_id"`
			World   world.Stats `json:"world"`
			Index   *indexStats `json:"index,omitempty"`
		}{
			WorldID: w.ID(),
			World:   w.Stats(),
			Index:   sinks.indexStats(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}
