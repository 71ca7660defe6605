package tally

import (
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/programme-lv/cctuner/api"
)

// Builder gathers tuning events into a summary of the run.
type Builder struct {
	mu sync.Mutex

	started  time.Time
	finished *time.Time

	program     string
	toolVersion string

	states     map[string]int
	compileMs  int64
	runMs      int64
	earlyTrial *string

	bestSeconds float64
	bestFlags   []string
	errMsg      *string
}

// Summary is a snapshot of a Builder.
type Summary struct {
	Program     string
	ToolVersion string
	Trials      int
	States      map[string]int
	CompileTime time.Duration
	RunTime     time.Duration
	Elapsed     time.Duration
	EarlyStop   *string
	BestSeconds float64
	BestFlags   []string
	Error       *string
}

func New() *Builder {
	return &Builder{
		started:     time.Now(),
		states:      make(map[string]int),
		bestSeconds: math.Inf(1),
	}
}

func (b *Builder) StartTuning(program string, toolVersion string, dimensions int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = program
	b.toolVersion = toolVersion
}

func (b *Builder) StartTrial(trialId string, flags []string) {}

func (b *Builder) FinishCompile(trialId string, data *api.RuntimeData) {
	if data == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compileMs += data.WallMillis
}

func (b *Builder) FinishRun(trialId string, data *api.RuntimeData) {
	if data == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runMs += data.WallMillis
}

func (b *Builder) FinishTrial(trialId string, state string, seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[state]++
}

func (b *Builder) EarlyStop(trialId string, seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.earlyTrial = &trialId
}

func (b *Builder) FinishTuning(bestFlags []string, bestSeconds float64, errMsg *string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.finished = &now
	b.bestFlags = slices.Clone(bestFlags)
	b.bestSeconds = bestSeconds
	b.errMsg = errMsg
}

func (b *Builder) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := time.Now()
	if b.finished != nil {
		end = *b.finished
	}
	trials := 0
	for _, n := range b.states {
		trials += n
	}
	return Summary{
		Program:     b.program,
		ToolVersion: b.toolVersion,
		Trials:      trials,
		States:      maps.Clone(b.states),
		CompileTime: time.Duration(b.compileMs) * time.Millisecond,
		RunTime:     time.Duration(b.runMs) * time.Millisecond,
		Elapsed:     end.Sub(b.started),
		EarlyStop:   b.earlyTrial,
		BestSeconds: b.bestSeconds,
		BestFlags:   slices.Clone(b.bestFlags),
		Error:       b.errMsg,
	}
}
