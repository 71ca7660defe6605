package gatherer

import (
	"github.com/programme-lv/cctuner/api"
)

// Multi fans every event out to each gatherer in order.
type Multi []TrialGatherer

func (m Multi) StartTuning(program string, toolVersion string, dimensions int) {
	for _, g := range m {
		g.StartTuning(program, toolVersion, dimensions)
	}
}

func (m Multi) StartTrial(trialId string, flags []string) {
	for _, g := range m {
		g.StartTrial(trialId, flags)
	}
}

func (m Multi) FinishCompile(trialId string, data *api.RuntimeData) {
	for _, g := range m {
		g.FinishCompile(trialId, data)
	}
}

func (m Multi) FinishRun(trialId string, data *api.RuntimeData) {
	for _, g := range m {
		g.FinishRun(trialId, data)
	}
}

func (m Multi) FinishTrial(trialId string, state string, seconds float64) {
	for _, g := range m {
		g.FinishTrial(trialId, state, seconds)
	}
}

func (m Multi) EarlyStop(trialId string, seconds float64) {
	for _, g := range m {
		g.EarlyStop(trialId, seconds)
	}
}

func (m Multi) FinishTuning(bestFlags []string, bestSeconds float64, errMsg *string) {
	for _, g := range m {
		g.FinishTuning(bestFlags, bestSeconds, errMsg)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) StartTuning(string, string, int) {}
func (Nop) StartTrial(string, []string) {}
func (Nop) FinishCompile(string, *api.RuntimeData) {}
func (Nop) FinishRun(string, *api.RuntimeData) {}
func (Nop) FinishTrial(string, string, float64) {}
func (Nop) EarlyStop(string, float64) {}
func (Nop) FinishTuning([]string, float64, *string) {}
