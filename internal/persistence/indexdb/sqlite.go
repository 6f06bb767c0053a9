package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"dwellers.ai/internal/sim/catalogs"
	"dwellers.ai/internal/sim/tuning"
	"dwellers.ai/internal/sim/world"
)

// SQLiteIndex is a queryable read model of the event journal: every event
// row plus one lifecycle row per task. Writes are queued and applied by a
// background goroutine so the world loop never waits on disk.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
	written atomic.Uint64
}

// req is either an event or a flush barrier.
type req struct {
	event world.Event
	flush chan struct{}
}

type Stats struct {
	QueueDepth   int    `json:"queue_depth"`
	WrittenTotal uint64 `json:"written_total"`
	DropTotal    uint64 `json:"drop_total"`
}

const defaultQueue = 65536

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return OpenSQLiteQueue(path, defaultQueue)
}

// OpenSQLiteQueue opens the index with a write queue of the given depth.
// Events arriving while the queue is full are dropped and counted.
func OpenSQLiteQueue(path string, queue int) (*SQLiteIndex, error) {
	if queue <= 0 {
		queue = defaultQueue
	}
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			agent_id TEXT,
			task_id TEXT,
			task_kind TEXT,
			x INTEGER,
			y INTEGER,
			cx INTEGER,
			cy INTEGER,
			detail TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_agent_tick ON events(agent_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			priority INTEGER NOT NULL,
			x INTEGER,
			y INTEGER,
			state TEXT NOT NULL,
			owner TEXT,
			added_tick INTEGER,
			assigned_tick INTEGER,
			done_tick INTEGER,
			assignments INTEGER NOT NULL DEFAULT 0,
			abandons INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteEvent queues e. When the writer falls behind the event is dropped;
// the journal remains the source of truth.
func (s *SQLiteIndex) WriteEvent(e world.Event) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{event: e}:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Flush blocks until every event queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{flush: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:   len(s.ch),
		WrittenTotal: s.written.Load(),
		DropTotal:    s.dropped.Load(),
	}
}

// UpsertCatalogs records the catalogs and tuning the world runs with.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, err := json.Marshal(cats.Objects); err == nil {
		rows = append(rows, kv{name: "objects", digest: cats.Digest, json: b})
	}
	if b, err := json.Marshal(cats.Mobs); err == nil {
		rows = append(rows, kv{name: "mobs", digest: cats.Digest, json: b})
	}
	if b, err := json.Marshal(tune); err == nil {
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const (
	upsertTaskAdded = `INSERT INTO tasks(task_id,kind,priority,x,y,state,added_tick)
		VALUES(?,?,?,?,?,'UNASSIGNED',?)
		ON CONFLICT(task_id) DO NOTHING`
	updateTaskAssigned  = `UPDATE tasks SET state='ASSIGNED', owner=?, assigned_tick=?, assignments=assignments+1 WHERE task_id=?`
	updateTaskAbandoned = `UPDATE tasks SET state='UNASSIGNED', owner=NULL, abandons=abandons+1 WHERE task_id=?`
	updateTaskDone      = `UPDATE tasks SET state=?, owner=NULL, done_tick=? WHERE task_id=?`
	insertEvent         = `INSERT INTO events(tick,kind,agent_id,task_id,task_kind,x,y,cx,cy,detail) VALUES(?,?,?,?,?,?,?,?,?,?)`
)

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = time.Second
	)
	begin := func() bool {
		if tx != nil {
			return true
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return false
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
		return true
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			if r.flush != nil {
				commit()
				close(r.flush)
				continue
			}
			e := r.event
			if !begin() {
				s.dropped.Add(1)
				continue
			}
			if err := applyEvent(tx, e); err != nil {
				rollback()
				s.dropped.Add(1)
				continue
			}
			s.written.Add(1)
			opCount++
			if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		case <-ticker.C:
			commit()
		}
	}
}

func applyEvent(tx *sql.Tx, e world.Event) error {
	var x, y, cx, cy any
	if e.Cell != nil {
		x, y = e.Cell.X, e.Cell.Y
	}
	if e.Chunk != nil {
		cx, cy = e.Chunk.CX, e.Chunk.CY
	}
	tick := int64(e.Tick)
	if _, err := tx.Exec(insertEvent, tick, string(e.Kind), nullable(string(e.Agent)), nullable(e.Task),
		nullable(string(e.TaskKind)), x, y, cx, cy, nullable(e.Detail)); err != nil {
		return err
	}
	if e.Task == "" {
		return nil
	}

	var err error
	switch e.Kind {
	case world.EventTaskAdded:
		_, err = tx.Exec(upsertTaskAdded, e.Task, string(e.TaskKind), e.Priority, x, y, tick)
	case world.EventTaskAssigned:
		_, err = tx.Exec(updateTaskAssigned, string(e.Agent), tick, e.Task)
	case world.EventTaskAbandoned:
		_, err = tx.Exec(updateTaskAbandoned, e.Task)
	case world.EventTaskCompleted:
		_, err = tx.Exec(updateTaskDone, "COMPLETED", tick, e.Task)
	case world.EventTaskRemoved:
		_, err = tx.Exec(updateTaskDone, "REMOVED", tick, e.Task)
	}
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
