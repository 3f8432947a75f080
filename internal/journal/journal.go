// Package journal keeps a libSQL history of evaluation runs so the preview
// can show what each debounced or forced evaluation produced.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/graph"
	"github.com/rendis/bonsai/pkg/schema"
)

// DefaultListLimit caps ListRuns when the caller passes no limit.
const DefaultListLimit = 50

// Run is a journaled evaluation.
type Run struct {
	ID         string                `json:"id"`
	SessionID  string                `json:"session_id"`
	Trigger    string                `json:"trigger"`
	Version    uint64                `json:"version"`
	StartedAt  time.Time             `json:"started_at"`
	DurationMS int64                 `json:"duration_ms"`
	Visited    int                   `json:"visited"`
	OK         bool                  `json:"ok"`
	Outputs    json.RawMessage       `json:"outputs,omitempty"`
	Errors     []*schema.BonsaiError `json:"errors,omitempty"`
	Graph      *graph.Graph          `json:"graph,omitempty"`
}

// Journal is a libSQL-backed run history. It satisfies editor.RunRecorder.
type Journal struct {
	db *sql.DB
}

var _ editor.RunRecorder = (*Journal)(nil)

// Open opens (creating if needed) the journal at path and applies migrations.
// A bare filesystem path is turned into a file URI.
func Open(ctx context.Context, path string) (*Journal, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, storeError("open journal", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so QueryRow is used.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRowContext(ctx, p).Scan(&result)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, storeError("migrate journal", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// RecordRun stores a finished run.
func (j *Journal) RecordRun(ctx context.Context, rec editor.RunRecord) error {
	if rec.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "run id is required")
	}
	var (
		outputs, errs any
		visited       int
		durationMS    int64
		ok            = true
	)
	if res := rec.Result; res != nil {
		var err error
		if outputs, err = marshalNullable(res.Outputs); err != nil {
			return storeError("marshal outputs", err).WithDetails(map[string]any{"run_id": rec.ID})
		}
		if errs, err = marshalNullable(res.Errors); err != nil {
			return storeError("marshal errors", err).WithDetails(map[string]any{"run_id": rec.ID})
		}
		visited = res.Visited
		durationMS = res.Duration.Milliseconds()
		ok = res.OK()
	}
	g, err := json.Marshal(rec.Graph)
	if err != nil {
		return storeError("marshal graph", err).WithDetails(map[string]any{"run_id": rec.ID})
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO runs (id, session_id, trigger, version, started_at, duration_ms, visited, ok, outputs, errors, graph)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Trigger, int64(rec.Version), timeOrNow(rec.StartedAt),
		durationMS, visited, boolToInt(ok), outputs, errs, string(g),
	)
	if err != nil {
		return storeError("insert run", err).WithDetails(map[string]any{"run_id": rec.ID})
	}
	return nil
}

// GetRun returns one run including its graph snapshot.
func (j *Journal) GetRun(ctx context.Context, id string) (*Run, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT id, session_id, trigger, version, started_at, duration_ms, visited, ok, outputs, errors, graph
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row, true)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "run %q not found", id)
	}
	if err != nil {
		return nil, storeError("get run", err)
	}
	return r, nil
}

// ListRuns returns the newest runs of a session first. Graph snapshots are
// omitted; use GetRun for them.
func (j *Journal) ListRuns(ctx context.Context, sessionID string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, trigger, version, started_at, duration_ms, visited, ok, outputs, errors, NULL
		 FROM runs WHERE session_id = ? ORDER BY started_at DESC, version DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, storeError("list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows, false)
		if err != nil {
			return nil, storeError("scan run", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list runs", err)
	}
	return runs, nil
}

// Prune deletes runs started before cutoff and reports how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, storeError("prune runs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("prune runs", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner, withGraph bool) (*Run, error) {
	var (
		r                     Run
		version               int64
		ok                    int
		outputs, errs, graphS sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.SessionID, &r.Trigger, &version, &r.StartedAt,
		&r.DurationMS, &r.Visited, &ok, &outputs, &errs, &graphS); err != nil {
		return nil, err
	}
	r.Version = uint64(version)
	r.OK = ok != 0
	r.Outputs = jsonOrNil(outputs)
	if raw := jsonOrNil(errs); raw != nil {
		if err := json.Unmarshal(raw, &r.Errors); err != nil {
			return nil, fmt.Errorf("decode errors: %w", err)
		}
	}
	if withGraph {
		if raw := jsonOrNil(graphS); raw != nil {
			var g graph.Graph
			if err := json.Unmarshal(raw, &g); err != nil {
				return nil, fmt.Errorf("decode graph: %w", err)
			}
			r.Graph = &g
		}
	}
	return &r, nil
}

func storeError(op string, err error) *schema.BonsaiError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %v", op, err).WithCause(err)
}

func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	case []*schema.BonsaiError:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
