package journal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/evaluator"
	"github.com/rendis/bonsai/internal/graph"
	"github.com/rendis/bonsai/pkg/schema"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func record(id, session string, version uint64, started time.Time, res *evaluator.Result) editor.RunRecord {
	return editor.RunRecord{
		ID:        id,
		SessionID: session,
		Trigger:   editor.TriggerDebounce,
		Version:   version,
		Graph:     graph.Seed(),
		Result:    res,
		StartedAt: started,
	}
}

func TestRecordAndGetRun(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	res := &evaluator.Result{
		Outputs:  map[string]any{"DOM": "hello world"},
		Visited:  3,
		Duration: 12 * time.Millisecond,
	}
	require.NoError(t, j.RecordRun(ctx, record("run-1", "s1", 4, started, res)))

	got, err := j.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, editor.TriggerDebounce, got.Trigger)
	assert.Equal(t, uint64(4), got.Version)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, int64(12), got.DurationMS)
	assert.Equal(t, 3, got.Visited)
	assert.True(t, got.OK)
	assert.Empty(t, got.Errors)

	var outputs map[string]any
	require.NoError(t, json.Unmarshal(got.Outputs, &outputs))
	assert.Equal(t, "hello world", outputs["DOM"])

	require.NotNil(t, got.Graph)
	assert.Len(t, got.Graph.Nodes, 3)
	assert.Len(t, got.Graph.Edges, 2)
}

func TestRecordRunWithErrors(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	res := &evaluator.Result{
		Outputs: map[string]any{},
		Errors: []*schema.BonsaiError{
			schema.NewError(schema.ErrCodeEval, "boom").
				WithNode("B").
				WithDetails(map[string]any{"kind": schema.EvalKindSyntax}),
		},
		Visited: 2,
	}
	require.NoError(t, j.RecordRun(ctx, record("run-err", "s1", 1, time.Now(), res)))

	got, err := j.GetRun(ctx, "run-err")
	require.NoError(t, err)
	assert.False(t, got.OK)
	assert.Nil(t, got.Outputs)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, schema.ErrCodeEval, got.Errors[0].Code)
	assert.Equal(t, "B", got.Errors[0].NodeID)
	assert.Equal(t, schema.EvalKindSyntax, got.Errors[0].Kind())
}

func TestRecordRunNilResult(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordRun(ctx, record("run-nil", "s1", 1, time.Time{}, nil)))
	got, err := j.GetRun(ctx, "run-nil")
	require.NoError(t, err)
	assert.True(t, got.OK)
	assert.False(t, got.StartedAt.IsZero())
}

func TestRecordRunRequiresID(t *testing.T) {
	j := newTestJournal(t)
	err := j.RecordRun(context.Background(), record("", "s1", 1, time.Now(), nil))
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestRecordRunDuplicateID(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.RecordRun(ctx, record("dup", "s1", 1, time.Now(), nil)))

	err := j.RecordRun(ctx, record("dup", "s1", 2, time.Now(), nil))
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeStore))
}

func TestGetRunNotFound(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestListRuns(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, j.RecordRun(ctx, record(id, "s1", uint64(i+1), base.Add(time.Duration(i)*time.Second), nil)))
	}
	require.NoError(t, j.RecordRun(ctx, record("other", "s2", 1, base, nil)))

	runs, err := j.ListRuns(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r1", runs[2].ID)
	assert.Nil(t, runs[0].Graph)

	limited, err := j.ListRuns(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := j.ListRuns(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPrune(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordRun(ctx, record("old", "s1", 1, base, nil)))
	require.NoError(t, j.RecordRun(ctx, record("new", "s1", 2, base.Add(time.Hour), nil)))

	n, err := j.Prune(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = j.GetRun(ctx, "old")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
	_, err = j.GetRun(ctx, "new")
	assert.NoError(t, err)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, j.RecordRun(ctx, record("kept", "s1", 1, time.Now(), nil)))
	require.NoError(t, j.Close())

	j2, err := Open(ctx, path)
	require.NoError(t, err)
	defer j2.Close()
	_, err = j2.GetRun(ctx, "kept")
	assert.NoError(t, err)
}
