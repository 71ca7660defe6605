// Package gatherer defines the sink for tuning progress events and the
// helpers shared by its transports.
package gatherer

import (
	"github.com/programme-lv/cctuner/api"
	"github.com/programme-lv/cctuner/internal/invoke"
)

type TrialGatherer interface {
	StartTuning(program string, toolVersion string, dimensions int)

	StartTrial(trialId string, flags []string)
	FinishCompile(trialId string, data *api.RuntimeData)
	FinishRun(trialId string, data *api.RuntimeData)
	FinishTrial(trialId string, state string, seconds float64)

	EarlyStop(trialId string, seconds float64)
	FinishTuning(bestFlags []string, bestSeconds float64, errMsg *string)
}

// RuntimeData converts invoker output to its streaming form with stdout and
// stderr trimmed to fit a terminal.
func RuntimeData(data *invoke.RunData) *api.RuntimeData {
	if data == nil {
		return nil
	}
	return &api.RuntimeData{
		Stdout:     trimStrToRect(string(data.Stdout), api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth),
		Stderr:     trimStrToRect(string(data.Stderr), api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth),
		ExitCode:   data.ExitCode,
		WallMillis: data.WallTime.Milliseconds(),
		RamKiBytes: data.MaxRssKiB,
		ExitSignal: data.ExitSignal,
		TimedOut:   data.TimedOut,
		Truncated:  data.OutputTruncated,
	}
}
