package indexdb

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNoRow = errors.New("indexdb: no such row")

type TaskRow struct {
	TaskID       string
	Kind         string
	Priority     int
	State        string
	Owner        string
	AddedTick    uint64
	AssignedTick uint64
	DoneTick     uint64
	Assignments  int
	Abandons     int
}

func (s *SQLiteIndex) Task(ctx context.Context, id string) (TaskRow, error) {
	var (
		r                TaskRow
		owner            sql.NullString
		added, asg, done sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT task_id,kind,priority,state,owner,added_tick,assigned_tick,done_tick,assignments,abandons
		FROM tasks WHERE task_id=?`, id).
		Scan(&r.TaskID, &r.Kind, &r.Priority, &r.State, &owner, &added, &asg, &done, &r.Assignments, &r.Abandons)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskRow{}, ErrNoRow
	}
	if err != nil {
		return TaskRow{}, err
	}
	r.Owner = owner.String
	r.AddedTick = uint64(added.Int64)
	r.AssignedTick = uint64(asg.Int64)
	r.DoneTick = uint64(done.Int64)
	return r, nil
}

// TaskStates counts tasks per lifecycle state.
func (s *SQLiteIndex) TaskStates(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM tasks GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[state] = n
	}
	return out, rows.Err()
}

// EventCounts counts events per kind, optionally for one agent.
func (s *SQLiteIndex) EventCounts(ctx context.Context, agent string) (map[string]int, error) {
	q := `SELECT kind, COUNT(*) FROM events GROUP BY kind`
	args := []any{}
	if agent != "" {
		q = `SELECT kind, COUNT(*) FROM events WHERE agent_id=? GROUP BY kind`
		args = append(args, agent)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}
