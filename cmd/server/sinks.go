package main

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"dwellers.ai/internal/config"
	"dwellers.ai/internal/persistence/indexdb"
	persistlog "dwellers.ai/internal/persistence/log"
	"dwellers.ai/internal/sim/catalogs"
	"dwellers.ai/internal/sim/tuning"
	"dwellers.ai/internal/sim/world"
)

type indexStats = indexdb.Stats

// sinkSet owns the optional event sinks of a world: the zstd journal and the
// SQLite read model. Neither affects the simulation.
type sinkSet struct {
	log     zerolog.Logger
	journal *persistlog.EventLog
	index   *indexdb.SQLiteIndex
}

func openSinks(cfg config.Config, worldDir string, cats *catalogs.Catalogs, tune tuning.Tuning, logger zerolog.Logger) (*sinkSet, error) {
	s := &sinkSet{log: logger}
	if cfg.Journal.Enabled {
		s.journal = persistlog.NewEventLog(worldDir)
	}
	if cfg.Index.Enabled {
		idx, err := indexdb.OpenSQLiteQueue(filepath.Join(worldDir, "index", "world.sqlite"), cfg.Index.Queue)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Warn().Err(err).Msg("index: upsert catalogs")
		}
		s.index = idx
	}
	return s, nil
}

func (s *sinkSet) attach(w *world.World) {
	if s.journal != nil {
		w.AddEventSink(s.journal)
	}
	if s.index != nil {
		w.AddEventSink(s.index)
	}
}

func (s *sinkSet) indexStats() *indexStats {
	if s == nil || s.index == nil {
		return nil
	}
	st := s.index.Stats()
	return &st
}

// Close must run after the world loop has exited.
func (s *sinkSet) Close() {
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.log.Warn().Err(err).Msg("index: close")
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.log.Warn().Err(err).Msg("journal: close")
		}
	}
}
