package harness

import (
	"math"
	"sync"
	"time"
)

type State string

const (
	Complete State = "COMPLETE"
	Timeout  State = "TIMEOUT"
	Error    State = "ERROR"
	// EarlyStop is a complete run fast enough to end the whole search.
	EarlyStop State = "EARLY_STOP"
)

// Result is what the search engine sees for one trial. Time is in seconds
// and is +Inf unless the program ran to completion.
type Result struct {
	State State
	Time  float64
}

func failed(state State) Result {
	return Result{State: state, Time: math.Inf(1)}
}

func (r Result) Finished() bool {
	return r.State == Complete || r.State == EarlyStop
}

// StopToken is raised at most once per process and tells the driver to
// stop dispatching trials.
type StopToken struct {
	once sync.Once
	done chan struct{}

	mu      sync.Mutex
	trialID string
	elapsed time.Duration
}

func NewStopToken() *StopToken {
	return &StopToken{done: make(chan struct{})}
}

// Raise records the trial that triggered the stop. Only the first call has
// an effect; it reports whether this call raised the token.
func (t *StopToken) Raise(trialID string, elapsed time.Duration) bool {
	raised := false
	t.once.Do(func() {
		t.mu.Lock()
		t.trialID = trialID
		t.elapsed = elapsed
		t.mu.Unlock()
		close(t.done)
		raised = true
	})
	return raised
}

func (t *StopToken) Raised() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *StopToken) Done() <-chan struct{} { return t.done }

// Trigger returns the trial that raised the token.
func (t *StopToken) Trigger() (string, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trialID, t.elapsed
}
