package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func steppingClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestCreateAndGetRun(t *testing.T) {
	s := openTestStore(t)

	run, err := s.CreateRun("testdata/roads", map[string]any{"hough_threshold": 100})
	require.NoError(t, err)
	assert.Len(t, run.RunID, 36)
	assert.NotZero(t, run.StartedAt)
	assert.False(t, run.Finished())

	got, err := s.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.Source, got.Source)
	assert.Equal(t, run.StartedAt, got.StartedAt)
	assert.JSONEq(t, `{"hough_threshold":100}`, string(got.ConfigJSON))
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun("missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.FinishRun("missing"), ErrNotFound)
	require.ErrorIs(t, s.DeleteRun("missing"), ErrNotFound)
}

func TestFrameResultsAndFinish(t *testing.T) {
	s := openTestStore(t)
	run, err := s.CreateRun("dir", nil)
	require.NoError(t, err)

	recs := []*FrameRecord{
		{RunID: run.RunID, Source: "a.png", Width: 640, Height: 480, Lines: 2, Candidates: 2,
			Segments: []lanes.Segment{{X1: 100, Y1: 240, X2: 200, Y2: 96}, {X1: 540, Y1: 240, X2: 440, Y2: 96}}},
		{RunID: run.RunID, Source: "b.png", Width: 64, Height: 48, Fallback: true, Segments: lanes.FallbackSegments()},
		{RunID: run.RunID, Source: "c.png", Error: "decode: unexpected EOF"},
	}
	for _, r := range recs {
		require.NoError(t, s.AddFrameResult(r))
		assert.Positive(t, r.ID)
	}

	got, err := s.FrameResults(run.RunID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, recs[0].Segments, got[0].Segments)
	assert.True(t, got[1].Fallback)
	assert.Equal(t, lanes.FallbackSegments(), got[1].Segments)
	assert.Equal(t, "decode: unexpected EOF", got[2].Error)
	assert.Empty(t, got[2].Segments)

	require.NoError(t, s.FinishRun(run.RunID))
	fin, err := s.GetRun(run.RunID)
	require.NoError(t, err)
	assert.True(t, fin.Finished())
	assert.Equal(t, 3, fin.FrameCount)
	assert.Equal(t, 1, fin.FailedCount)
	assert.Equal(t, 1, fin.FallbackCount)
}

func TestAddFrameResult_RequiresRun(t *testing.T) {
	s := openTestStore(t)
	require.Error(t, s.AddFrameResult(&FrameRecord{Source: "x.png"}))
	require.Error(t, s.AddFrameResult(&FrameRecord{RunID: "no-such-run", Source: "x.png"}))
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	s.now = steppingClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	var ids []string
	for _, src := range []string{"one", "two", "three"} {
		r, err := s.CreateRun(src, nil)
		require.NoError(t, err)
		ids = append(ids, r.RunID)
	}

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, ids[0], runs[2].RunID)

	runs, err = s.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestDeleteRun_Cascades(t *testing.T) {
	s := openTestStore(t)
	run, err := s.CreateRun("dir", nil)
	require.NoError(t, err)
	require.NoError(t, s.AddFrameResult(&FrameRecord{RunID: run.RunID, Source: "a.png"}))

	require.NoError(t, s.DeleteRun(run.RunID))
	frames, err := s.FrameResults(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	run, err := s.CreateRun("dir", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	_, err = s.GetRun(run.RunID)
	require.NoError(t, err)
}

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"busy code", errors.New("SQLITE_BUSY"), true},
		{"other", errors.New("constraint failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isSQLiteBusy(tt.err))
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	other := errors.New("no such table")
	require.ErrorIs(t, retryOnBusy(func() error { calls++; return other }), other)
	assert.Equal(t, 1, calls)
}
