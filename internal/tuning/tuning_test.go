package tuning_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/programme-lv/cctuner/internal/cache"
	"github.com/programme-lv/cctuner/internal/descriptor"
	"github.com/programme-lv/cctuner/internal/harness"
	"github.com/programme-lv/cctuner/internal/history"
	"github.com/programme-lv/cctuner/internal/invoke"
	"github.com/programme-lv/cctuner/internal/space"
	"github.com/programme-lv/cctuner/internal/tuning"
)

// flagTimedToolchain writes the flags into the artifact; running it takes
// longer the fewer -f flags are switched on. fast marks a flag that makes
// the program finish almost instantly.
type flagTimedToolchain struct {
	fast string
	runs atomic.Int64
}

func (f *flagTimedToolchain) Run(ctx context.Context, cmd invoke.Command) (*invoke.RunData, error) {
	fields := strings.Fields(cmd.Shell)
	if i := slices.Index(fields, "-o"); i >= 0 {
		return &invoke.RunData{}, os.WriteFile(fields[i+1], []byte(cmd.Shell), 0755)
	}

	f.runs.Add(1)
	data, err := os.ReadFile(cmd.Shell)
	if err != nil {
		return &invoke.RunData{ExitCode: 127}, nil
	}
	flags := strings.Fields(string(data))
	if f.fast != "" && slices.Contains(flags, f.fast) {
		return &invoke.RunData{WallTime: 500 * time.Microsecond}, nil
	}
	wall := 100 * time.Millisecond
	for _, fl := range flags {
		if strings.HasPrefix(fl, "-fflag") {
			wall -= 10 * time.Millisecond
		}
	}
	return &invoke.RunData{WallTime: wall}, nil
}

func testSpace(t *testing.T) *space.Space {
	t.Helper()
	s, err := space.Build(space.BuildInput{
		Flags:  []string{"-fflagA", "-fflagB", "-fflagC"},
		Params: []string{"paramX", "big", space.CacheLineSizeParam},
		Defaults: map[string]cache.ParamDefault{
			"paramX":                 {Default: 50, Max: 100},
			"big":                    {Default: 4096},
			space.CacheLineSizeParam: {Default: 64},
		},
		Scaler: 4,
	})
	require.NoError(t, err)
	return s
}

type fixture struct {
	driver    *tuning.Driver
	harness   *harness.Harness
	store     *history.Store
	finalPath string
	stopPath  string
}

func newFixture(t *testing.T, cc invoke.Runner, mutate func(*tuning.Options)) fixture {
	t.Helper()
	return newFixtureWith(t, cc, nil, mutate)
}

func newFixtureWith(t *testing.T, cc invoke.Runner, mutateHarness func(*harness.Options),
	mutate func(*tuning.Options)) fixture {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sp := testSpace(t)

	stopPath := filepath.Join(dir, "earlystop_full.json")
	hopts := harness.Options{
		Toolchain: descriptor.Toolchain{
			CC:       "g++",
			Template: descriptor.DefaultCompileTemplate,
			Build:    descriptor.Build{Source: "main.cpp"},
		},
		WorkRoot:           filepath.Join(dir, "work"),
		EarlyStopThreshold: time.Millisecond,
		EarlyStopPath:      stopPath,
	}
	if mutateHarness != nil {
		mutateHarness(&hopts)
	}
	h := harness.New(cc, sp, hopts, harness.NewStopToken(), nil, logger)

	store, err := history.Open(filepath.Join(dir, "state"))
	require.NoError(t, err)

	opts := tuning.Options{
		RunUuid:         "run-1",
		Program:         "main",
		ToolVersion:     "g++ 12",
		Parallelism:     4,
		MaxTrials:       30,
		FinalConfigPath: filepath.Join(dir, "main_final_config.json"),
	}
	if mutate != nil {
		mutate(&opts)
	}
	d := tuning.NewDriver(h, tuning.NewRandomSearch(sp, 1), opts, nil, store, logger)
	return fixture{driver: d, harness: h, store: store, finalPath: opts.FinalConfigPath, stopPath: stopPath}
}

func TestRunKeepsBest(t *testing.T) {
	cc := &flagTimedToolchain{}
	f := newFixture(t, cc, nil)

	summary, err := f.driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 30, summary.Trials)
	require.False(t, summary.EarlyStopped)
	require.NotNil(t, summary.Best)
	require.Equal(t, harness.Complete, summary.Best.Result.State)
	require.Empty(t, f.harness.LiveWorkspaces())

	saved, err := f.harness.Space().LoadConfiguration(f.finalPath)
	require.NoError(t, err)
	require.Equal(t, summary.Best.Config, saved)

	recs, err := f.store.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, history.RunComplete, recs[0].State)
	require.Equal(t, summary.Best.Flags, recs[0].Flags)
	require.Equal(t, "run-1", recs[0].RunUuid)
}

func TestEarlyStopEndsSearch(t *testing.T) {
	cc := &flagTimedToolchain{fast: "-fflagA"}
	f := newFixture(t, cc, func(o *tuning.Options) { o.MaxTrials = 500 })

	summary, err := f.driver.Run(context.Background())
	require.NoError(t, err)
	require.True(t, summary.EarlyStopped)
	require.Less(t, summary.Trials+summary.Discarded, 500)
	require.Equal(t, harness.EarlyStop, summary.Best.Result.State)
	require.Contains(t, summary.Best.Flags, "-fflagA")
	require.FileExists(t, f.stopPath)
	require.Empty(t, f.harness.LiveWorkspaces())

	// nothing is dispatched once the token is up
	runs := cc.runs.Load()
	_, err = f.driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, runs, cc.runs.Load())

	recs, err := f.store.ReadAll()
	require.NoError(t, err)
	require.Equal(t, history.RunEarlyStop, recs[0].State)
}

func TestBaselines(t *testing.T) {
	cc := &flagTimedToolchain{}
	f := newFixture(t, cc, func(o *tuning.Options) {
		o.Baselines = true
		o.MaxTrials = 1
	})

	summary, err := f.driver.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Baselines, 4)
	for _, b := range summary.Baselines {
		require.Equal(t, harness.Complete, b.State)
		require.InDelta(t, 0.1, b.Time, 1e-9)
	}
}

func TestCanceledRunReturnsError(t *testing.T) {
	f := newFixture(t, &flagTimedToolchain{}, func(o *tuning.Options) { o.MaxTrials = 0 })
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.driver.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, f.harness.LiveWorkspaces())
}

func TestRandomSearchStaysInSpace(t *testing.T) {
	sp := testSpace(t)
	a := tuning.NewRandomSearch(sp, 99)
	b := tuning.NewRandomSearch(sp, 99)
	ctx := context.Background()

	for i := range 300 {
		cfg, err := a.Propose(ctx)
		require.NoError(t, err)
		require.NoError(t, sp.Validate(cfg))

		same, err := b.Propose(ctx)
		require.NoError(t, err)
		require.Equal(t, cfg, same)

		res := harness.Result{State: harness.Complete, Time: float64(300 - i)}
		a.Observe(cfg, res)
		b.Observe(same, res)
	}
}

// killingToolchain is a flagTimedToolchain whose KillAll makes every
// compile in progress fail the way pkill -9 would.
type killingToolchain struct {
	inner flagTimedToolchain

	mu        sync.Mutex
	compiling map[*bool]struct{}

	kills  atomic.Int64
	killed atomic.Int64
}

func (k *killingToolchain) Run(ctx context.Context, cmd invoke.Command) (*invoke.RunData, error) {
	if !slices.Contains(strings.Fields(cmd.Shell), "-o") {
		return k.inner.Run(ctx, cmd)
	}
	dead := new(bool)
	k.mu.Lock()
	k.compiling[dead] = struct{}{}
	k.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	k.mu.Lock()
	delete(k.compiling, dead)
	wasKilled := *dead
	k.mu.Unlock()
	if wasKilled {
		k.killed.Add(1)
		sig := int64(9)
		return &invoke.RunData{ExitCode: 137, ExitSignal: &sig}, nil
	}
	return k.inner.Run(ctx, cmd)
}

func (k *killingToolchain) KillAll(ctx context.Context, names ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kills.Add(1)
	for dead := range k.compiling {
		*dead = true
	}
	return nil
}

func TestForceKillAllSparesRunningTrials(t *testing.T) {
	cc := &killingToolchain{compiling: map[*bool]struct{}{}}
	f := newFixtureWith(t, cc, func(o *harness.Options) {
		o.ForceKillAll = true
	}, func(o *tuning.Options) {
		o.Parallelism = 4
		o.MaxTrials = 40
		o.Baselines = true
	})

	summary, err := f.driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 40, summary.Trials)
	require.Zero(t, cc.killed.Load())
	// before every baseline and at least before the first trial
	require.GreaterOrEqual(t, cc.kills.Load(), int64(5))
	for _, b := range summary.Baselines {
		require.Equal(t, harness.Complete, b.State)
	}
	require.Empty(t, f.harness.LiveWorkspaces())
}

func TestForceKillAllBeforeEverySequentialTrial(t *testing.T) {
	cc := &killingToolchain{compiling: map[*bool]struct{}{}}
	f := newFixtureWith(t, cc, func(o *harness.Options) {
		o.ForceKillAll = true
	}, func(o *tuning.Options) {
		o.Parallelism = 1
		o.MaxTrials = 10
	})

	summary, err := f.driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, summary.Trials)
	require.Equal(t, int64(10), cc.kills.Load())
	require.Zero(t, cc.killed.Load())
}
