package api

import (
	"math"
	"time"
)

// MsgType is a message type for streaming tuning events
type MsgType string

// Streaming message type constants
const (
	StartTuningMsg   MsgType = "tuning_start"
	StartTrialMsg    MsgType = "trial_start"
	FinishCompileMsg MsgType = "compile_finish"
	FinishRunMsg     MsgType = "run_finish"
	FinishTrialMsg   MsgType = "trial_finish"
	EarlyStopMsg     MsgType = "early_stop"
	FinishTuningMsg  MsgType = "tuning_finish"
)

// Runtime data size constraints for streaming
const (
	MaxRuntimeDataHeight = 40
	MaxRuntimeDataWidth  = 80
)

// Header is the common header for all streaming messages
type Header struct {
	RunUuid string  `json:"run_uuid"`
	MsgType MsgType `json:"msg_type"`
}

type StartTuning struct {
	Header
	Program     string `json:"program"`
	ToolVersion string `json:"tool_version"`
	Dimensions  int    `json:"dimensions"`
	StartedTime string `json:"started_time"`
}

type StartTrial struct {
	Header
	TrialId string   `json:"trial_id"`
	Flags   []string `json:"flags"`
}

type FinishCompile struct {
	Header
	TrialId     string       `json:"trial_id"`
	RuntimeData *RuntimeData `json:"runtime_data"`
}

type FinishRun struct {
	Header
	TrialId     string       `json:"trial_id"`
	RuntimeData *RuntimeData `json:"runtime_data"`
}

// FinishTrial carries the scalar result. Seconds is nil when the trial
// did not complete.
type FinishTrial struct {
	Header
	TrialId string   `json:"trial_id"`
	State   string   `json:"state"`
	Seconds *float64 `json:"seconds"`
}

type EarlyStop struct {
	Header
	TrialId string  `json:"trial_id"`
	Seconds float64 `json:"seconds"`
}

type FinishTuning struct {
	Header
	BestFlags    []string `json:"best_flags"`
	BestSeconds  *float64 `json:"best_seconds"`
	ErrorMessage *string  `json:"error_message"`
}

func NewHeader(runUuid string, msgType MsgType) Header {
	return Header{
		RunUuid: runUuid,
		MsgType: msgType,
	}
}

func NewStartTuning(runUuid, program, toolVersion string, dimensions int) StartTuning {
	return StartTuning{
		Header:      NewHeader(runUuid, StartTuningMsg),
		Program:     program,
		ToolVersion: toolVersion,
		Dimensions:  dimensions,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

func NewStartTrial(runUuid, trialId string, flags []string) StartTrial {
	return StartTrial{
		Header:  NewHeader(runUuid, StartTrialMsg),
		TrialId: trialId,
		Flags:   flags,
	}
}

func NewFinishCompile(runUuid, trialId string, runtimeData *RuntimeData) FinishCompile {
	return FinishCompile{
		Header:      NewHeader(runUuid, FinishCompileMsg),
		TrialId:     trialId,
		RuntimeData: runtimeData,
	}
}

func NewFinishRun(runUuid, trialId string, runtimeData *RuntimeData) FinishRun {
	return FinishRun{
		Header:      NewHeader(runUuid, FinishRunMsg),
		TrialId:     trialId,
		RuntimeData: runtimeData,
	}
}

func NewFinishTrial(runUuid, trialId, state string, seconds float64) FinishTrial {
	return FinishTrial{
		Header:  NewHeader(runUuid, FinishTrialMsg),
		TrialId: trialId,
		State:   state,
		Seconds: Finite(seconds),
	}
}

func NewEarlyStop(runUuid, trialId string, seconds float64) EarlyStop {
	return EarlyStop{
		Header:  NewHeader(runUuid, EarlyStopMsg),
		TrialId: trialId,
		Seconds: seconds,
	}
}

func NewFinishTuning(runUuid string, bestFlags []string, bestSeconds float64, errorMessage *string) FinishTuning {
	return FinishTuning{
		Header:       NewHeader(runUuid, FinishTuningMsg),
		BestFlags:    bestFlags,
		BestSeconds:  Finite(bestSeconds),
		ErrorMessage: errorMessage,
	}
}

// Finite returns nil for values JSON cannot carry.
func Finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
