package world

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "dwellers.ai/internal/sim/world"

type instruments struct {
	assigned     metric.Int64Counter
	repathed     metric.Int64Counter
	abandoned    metric.Int64Counter
	completed    metric.Int64Counter
	wander       metric.Int64Counter
	pathSearches metric.Int64Counter
	pathFailures metric.Int64Counter
	chunkLoads   metric.Int64Counter
	chunkUnloads metric.Int64Counter
	spawned      metric.Int64Counter
	decideMs     metric.Float64Histogram

	population metric.Int64ObservableGauge
}

// newInstruments binds to the global provider, which is a no-op unless the
// binary installs one.
func newInstruments(w *World) (*instruments, error) {
	m := otel.Meter(instrumentationName)
	in := &instruments{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&in.assigned, "world.tasks.assigned", "Tasks claimed by an agent"},
		{&in.repathed, "world.tasks.repathed", "Assigned tasks that needed a new path"},
		{&in.abandoned, "world.tasks.abandoned", "Assignments dropped because the task became unreachable"},
		{&in.completed, "world.tasks.completed", "Tasks completed and removed"},
		{&in.wander, "world.agents.wander", "Wander steps queued"},
		{&in.pathSearches, "world.path.searches", "Path searches run"},
		{&in.pathFailures, "world.path.failures", "Path searches without a result"},
		{&in.chunkLoads, "world.chunks.load_requests", "Chunk load requests"},
		{&in.chunkUnloads, "world.chunks.unload_requests", "Chunk unload requests"},
		{&in.spawned, "world.agents.spawned", "Agents spawned"},
	}
	var err error
	for _, c := range counters {
		*c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	in.decideMs, err = m.Float64Histogram(
		"world.decide.duration",
		metric.WithDescription("Decision tick duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating decide histogram: %w", err)
	}

	in.population, err = m.Int64ObservableGauge(
		"world.population",
		metric.WithDescription("Live agents, tasks and loaded chunks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating population gauge: %w", err)
	}
	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			s := w.Stats()
			o.ObserveInt64(in.population, int64(s.Dwellers), metric.WithAttributes(attribute.String("what", "dwellers")))
			o.ObserveInt64(in.population, int64(s.Mobs), metric.WithAttributes(attribute.String("what", "mobs")))
			o.ObserveInt64(in.population, int64(s.Tasks), metric.WithAttributes(attribute.String("what", "tasks")))
			o.ObserveInt64(in.population, int64(s.LoadedChunks), metric.WithAttributes(attribute.String("what", "chunks")))
			return nil
		},
		in.population,
	)
	if err != nil {
		return nil, fmt.Errorf("registering population callback: %w", err)
	}
	return in, nil
}

func add(c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	if len(attrs) == 0 {
		c.Add(context.Background(), 1)
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// Stats is a read-only view of world counters, safe to read from any
// goroutine.
type Stats struct {
	Tick         uint64  `json:"tick"`
	Dwellers     int     `json:"dwellers"`
	Mobs         int     `json:"mobs"`
	Tasks        int     `json:"tasks"`
	Assigned     int     `json:"assigned"`
	LoadedChunks int     `json:"loaded_chunks"`
	DecideMS     float64 `json:"decide_ms"`
}

func (w *World) Stats() Stats {
	if w == nil {
		return Stats{}
	}
	v := w.stats.Load()
	if v == nil {
		return Stats{}
	}
	s, ok := v.(Stats)
	if !ok {
		return Stats{}
	}
	return s
}

func (w *World) publishStats(decideMS float64) {
	s := Stats{
		Tick:     w.tick.Load(),
		Dwellers: len(w.dwellers),
		Mobs:     len(w.mobs),
		Tasks:    w.tasks.Len(),
		DecideMS: decideMS,
	}
	for _, t := range w.tasks.All() {
		if t.Owner != "" {
			s.Assigned++
		}
	}
	if w.chunks != nil {
		s.LoadedChunks = len(w.chunks.LoadedChunks())
	}
	w.stats.Store(s)
}
