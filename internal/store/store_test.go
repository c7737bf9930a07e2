package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	require.NoError(t, st.Initialize(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func testWindow() model.SweepWindow {
	return model.SweepWindow{Start: t0, End: t0.Add(10 * time.Minute), Step: time.Minute, ThresholdKm: 10}
}

func TestInitializeIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Initialize(context.Background()))
	require.NoError(t, st.Append(context.Background(), []model.ConjunctionEvent{
		model.NewConjunctionEvent(t0, "A", "B", 1),
	}))
	require.NoError(t, st.Initialize(context.Background()))
	require.NoError(t, st.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Initialize(context.Background()))

	n, err := reopened.CountEvents(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestAppendRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	in := model.NewConjunctionEvent(t0, "ISS (ZARYA)", "COSMOS 2251 DEB", 3.25)
	require.Zero(t, in.ID)
	require.NoError(t, st.Append(ctx, []model.ConjunctionEvent{in}))

	out, err := st.Events(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	assert.NotZero(t, got.ID)
	got.ID = 0
	assert.Equal(t, in, got)
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for k := 0; k < 3; k++ {
		at := t0.Add(time.Duration(k) * time.Minute)
		require.NoError(t, st.Append(ctx, []model.ConjunctionEvent{
			model.NewConjunctionEvent(at, "A", "B", 1),
			model.NewConjunctionEvent(at, "A", "C", 2),
		}))
	}
	out, err := st.Events(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, out, 6)
	for i := 1; i < len(out); i++ {
		assert.Greater(t, out[i].ID, out[i-1].ID)
		assert.False(t, out[i].Timestamp.Before(out[i-1].Timestamp))
	}
}

func TestAppendIsAllOrNothing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, []model.ConjunctionEvent{model.NewConjunctionEvent(t0, "A", "B", 1)}))

	// The negative distance violates the column check after the first
	// insert of the batch has already executed.
	bad := []model.ConjunctionEvent{
		model.NewConjunctionEvent(t0.Add(time.Minute), "A", "B", 2),
		model.NewConjunctionEvent(t0.Add(time.Minute), "A", "C", -1),
	}
	require.Error(t, st.Append(ctx, bad))

	out, err := st.Events(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, t0, out[0].Timestamp)
}

func TestAppendRejectsMalformedEvents(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	cases := map[string]model.ConjunctionEvent{
		"preassigned id":  {ID: 9, Timestamp: t0, Sat1: "A", Sat2: "B"},
		"non canonical":   {Timestamp: t0, Sat1: "B", Sat2: "A"},
		"same designator": {Timestamp: t0, Sat1: "A", Sat2: "A"},
		"nan distance":    {Timestamp: t0, Sat1: "A", Sat2: "B", DistanceKm: math.NaN()},
		"no timestamp":    {Sat1: "A", Sat2: "B"},
		"sub-second":      {Timestamp: t0.Add(500 * time.Millisecond), Sat1: "A", Sat2: "B"},
	}
	for name, ev := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, st.Append(ctx, []model.ConjunctionEvent{ev}))
		})
	}
	n, err := st.CountEvents(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommitStepAdvancesRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.BeginRun(ctx, testWindow(), 3)
	require.NoError(t, err)
	_, ok, err := st.LastCommitted(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.CommitStep(ctx, model.StepCommit{RunID: run.ID, Instant: t0}))
	require.NoError(t, st.CommitStep(ctx, model.StepCommit{
		RunID:   run.ID,
		Instant: t0.Add(time.Minute),
		Events:  []model.ConjunctionEvent{model.NewConjunctionEvent(t0.Add(time.Minute), "X", "Y", 4)},
	}))

	last, ok, err := st.LastCommitted(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, t0.Add(time.Minute), last)

	n, err := st.CountEvents(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCommitStepUnknownRunWritesNothing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.CommitStep(ctx, model.StepCommit{
		RunID:   "missing",
		Instant: t0,
		Events:  []model.ConjunctionEvent{model.NewConjunctionEvent(t0, "A", "B", 1)},
	})
	require.Error(t, err)

	n, err := st.CountEvents(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.BeginRun(ctx, testWindow(), 200)
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)

	loaded, err := st.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, testWindow(), loaded.Window)
	assert.Equal(t, 200, loaded.ObjectCount)
	assert.Equal(t, model.RunRunning, loaded.Status)
	assert.True(t, loaded.FinishedAt.IsZero())

	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunCancelled))
	loaded, err = st.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunCancelled, loaded.Status)
	assert.False(t, loaded.FinishedAt.IsZero())

	reopened, err := st.ReopenRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, reopened.Status)
	assert.True(t, reopened.FinishedAt.IsZero())

	runs, err := st.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestRunNotFound(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Run(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, st.FinishRun(ctx, "nope", model.RunFailed), ErrRunNotFound)
	_, err = st.ReopenRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestBeginRunRejectsInvalidWindow(t *testing.T) {
	st := newTestStore(t)
	w := testWindow()
	w.Step = 0
	_, err := st.BeginRun(context.Background(), w, 1)
	var cerr *model.ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestSubSecondInstantsAreRejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w := testWindow()
	w.Step = 500 * time.Millisecond
	_, err := st.BeginRun(ctx, w, 1)
	var cerr *model.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "step", cerr.Field)

	run, err := st.BeginRun(ctx, testWindow(), 1)
	require.NoError(t, err)
	assert.Error(t, st.CommitStep(ctx, model.StepCommit{RunID: run.ID, Instant: t0.Add(250 * time.Millisecond)}))

	_, ok, err := st.LastCommitted(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	n, err := st.CountEvents(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEventsFilter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.BeginRun(ctx, testWindow(), 3)
	require.NoError(t, err)
	require.NoError(t, st.Append(ctx, []model.ConjunctionEvent{model.NewConjunctionEvent(t0, "A", "B", 1)}))
	for k := 0; k < 4; k++ {
		at := t0.Add(time.Duration(k) * time.Minute)
		require.NoError(t, st.CommitStep(ctx, model.StepCommit{
			RunID:   run.ID,
			Instant: at,
			Events: []model.ConjunctionEvent{
				model.NewConjunctionEvent(at, "A", "C", 2),
				model.NewConjunctionEvent(at, "B", "D", 3),
			},
		}))
	}

	cases := []struct {
		name   string
		filter EventFilter
		want   int
	}{
		{"all", EventFilter{}, 9},
		{"run", EventFilter{RunID: run.ID}, 8},
		{"satellite either side", EventFilter{Satellite: "B"}, 5},
		{"from", EventFilter{RunID: run.ID, From: t0.Add(2 * time.Minute)}, 4},
		{"to inclusive", EventFilter{RunID: run.ID, To: t0.Add(time.Minute)}, 4},
		{"range and satellite", EventFilter{Satellite: "C", From: t0.Add(time.Minute), To: t0.Add(2 * time.Minute)}, 2},
		{"limit", EventFilter{Limit: 3}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := st.Events(ctx, tc.filter)
			require.NoError(t, err)
			assert.Len(t, out, tc.want)
		})
	}
}

func TestParseTimestampFormats(t *testing.T) {
	assert.Equal(t, t0, parseTimestamp("2025-06-01T12:00:00Z"))
	assert.Equal(t, t0, parseTimestamp("2025-06-01 12:00:00"))
	assert.True(t, parseTimestamp("yesterday").IsZero())
}
