// Command headless runs a scenario file without a server and prints where it
// ended. With -journal it also records the run's events.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"dwellers.ai/internal/logging"
	persistlog "dwellers.ai/internal/persistence/log"
	"dwellers.ai/internal/scenario"
	"dwellers.ai/internal/sim/catalogs"
	"dwellers.ai/internal/sim/tuning"
	"dwellers.ai/internal/sim/world"
)

type options struct {
	scenarioPath string
	tuningPath   string
	catalogsPath string
	ticks        int
	journalDir   string
}

func main() {
	var opts options
	flag.StringVar(&opts.scenarioPath, "scenario", "", "scenario json")
	flag.StringVar(&opts.tuningPath, "tuning", "", "tuning yaml (default: built-in)")
	flag.StringVar(&opts.catalogsPath, "catalogs", "", "catalogs yaml (default: built-in)")
	flag.IntVar(&opts.ticks, "ticks", 0, "decision ticks to run (default: the scenario's)")
	flag.StringVar(&opts.journalDir, "journal", "", "write the event journal under this dir")
	logLevel := flag.String("log_level", "warn", "log level")
	flag.Parse()

	if opts.scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "missing -scenario")
		os.Exit(2)
	}
	logger := logging.Component(logging.New(*logLevel, true, os.Stderr), "headless")

	res, err := run(opts, &logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "headless:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report{Summary: res.summary, Steps: res.steps, Events: countKinds(res.events)})
}

type report struct {
	scenario.Summary
	Steps  int                     `json:"steps"`
	Events map[world.EventKind]int `json:"events"`
}

func countKinds(evs []world.Event) map[world.EventKind]int {
	out := map[world.EventKind]int{}
	for _, e := range evs {
		out[e.Kind]++
	}
	return out
}

type result struct {
	steps   int
	summary scenario.Summary
	events  []world.Event
}

// recorder keeps every event of a run in memory.
type recorder struct{ events []world.Event }

func (r *recorder) WriteEvent(e world.Event) error {
	r.events = append(r.events, e)
	return nil
}

func run(opts options, logger *zerolog.Logger) (_ result, err error) {
	s, err := scenario.Load(opts.scenarioPath)
	if err != nil {
		return result{}, err
	}
	tune := tuning.Defaults()
	if opts.tuningPath != "" {
		if tune, err = tuning.Load(opts.tuningPath); err != nil {
			return result{}, fmt.Errorf("load tuning: %w", err)
		}
	}
	cats, err := catalogs.Load(opts.catalogsPath)
	if err != nil {
		return result{}, fmt.Errorf("load catalogs: %w", err)
	}

	rec := &recorder{}
	sinks := []world.EventSink{rec}
	if opts.journalDir != "" {
		journal := persistlog.NewEventLog(opts.journalDir)
		defer func() {
			if cerr := journal.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close journal: %w", cerr)
			}
		}()
		sinks = append(sinks, journal)
	}
	inst, err := s.Build(cats, tune, logger, sinks...)
	if err != nil {
		return result{}, err
	}

	ticks := opts.ticks
	if ticks <= 0 {
		ticks = s.Ticks
	}
	steps := inst.Run(ticks)
	logger.Info().Int("steps", steps).Int("events", len(rec.events)).Msg("scenario finished")
	return result{steps: steps, summary: inst.Summary(), events: rec.events}, nil
}
