package history_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/programme-lv/cctuner/internal/history"
	"github.com/programme-lv/cctuner/internal/space"
)

func seconds(v float64) *float64 { return &v }

func TestAppendAndReadAll(t *testing.T) {
	s, err := history.Open(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)

	recs, err := s.ReadAll()
	require.NoError(t, err)
	require.Empty(t, recs)

	first := history.Record{
		RunUuid:     "a",
		Program:     "clover_leaf",
		State:       history.RunComplete,
		StartedAt:   time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2026, 10, 1, 13, 0, 0, 0, time.UTC),
		Trials:      120,
		BestSeconds: seconds(0.42),
		Flags:       []string{"-O3", "-funroll-loops"},
		Config: space.Configuration{
			space.OptLevel:   space.Int(3),
			"-funroll-loops": space.TriValue(space.On),
		},
	}
	require.NoError(t, s.Append(first))
	require.NoError(t, s.Append(history.Record{RunUuid: "b", State: history.RunFailed}))

	recs, err = s.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, first, recs[0])
	require.Equal(t, "b", recs[1].RunUuid)
	require.Nil(t, recs[1].BestSeconds)
}

func TestConcurrentAppends(t *testing.T) {
	s, err := history.Open(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(history.Record{State: history.RunComplete})
		}()
	}
	wg.Wait()

	recs, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 8)
}

func TestCorruptHistory(t *testing.T) {
	dir := t.TempDir()
	s, err := history.Open(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), []byte("plain text"), 0644))

	_, err = s.ReadAll()
	require.Error(t, err)
}

func TestHistogram(t *testing.T) {
	records := []history.Record{
		{Program: "a", State: history.RunComplete, Flags: []string{"-O3", "-funroll-loops", "-funroll-loops"}},
		{Program: "a", State: history.RunEarlyStop, Flags: []string{"-O3", "-finline"}},
		{Program: "b", State: history.RunComplete, Flags: []string{"-O2"}},
		{Program: "a", State: history.RunFailed, Flags: []string{"-O0"}},
	}

	shares := history.Histogram(records, "", 20)
	require.Equal(t, []history.FlagShare{
		{Flag: "-O3", Share: 2.0 / 3},
		{Flag: "-O2", Share: 1.0 / 3},
		{Flag: "-finline", Share: 1.0 / 3},
		{Flag: "-funroll-loops", Share: 1.0 / 3},
	}, shares)

	shares = history.Histogram(records, "a", 1)
	require.Equal(t, []history.FlagShare{{Flag: "-O3", Share: 1}}, shares)

	require.Nil(t, history.Histogram(records, "nope", 20))
}
