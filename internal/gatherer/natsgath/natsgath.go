package natsgath

import (
	"encoding/json"
	"log/slog"

	"github.com/lmittmann/tint"
	"github.com/nats-io/nats.go"

	"github.com/programme-lv/cctuner/api"
)

// New creates a gatherer that publishes every event of one tuning run to
// subject.
func New(nc *nats.Conn, runUuid string, subject string, logger *slog.Logger) *natsGatherer {
	return &natsGatherer{
		nc:      nc,
		subject: subject,
		runUuid: runUuid,
		logger:  logger,
	}
}

type natsGatherer struct {
	nc      *nats.Conn
	subject string
	runUuid string
	logger  *slog.Logger
}

func (s *natsGatherer) send(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", tint.Err(err))
		return
	}

	if err := s.nc.Publish(s.subject, b); err != nil {
		s.logger.Error("failed to publish message to NATS", "subject", s.subject, tint.Err(err))
	}
}

func (s *natsGatherer) StartTuning(program string, toolVersion string, dimensions int) {
	s.send(api.NewStartTuning(s.runUuid, program, toolVersion, dimensions))
}

func (s *natsGatherer) StartTrial(trialId string, flags []string) {
	s.send(api.NewStartTrial(s.runUuid, trialId, flags))
}

func (s *natsGatherer) FinishCompile(trialId string, data *api.RuntimeData) {
	s.send(api.NewFinishCompile(s.runUuid, trialId, data))
}

func (s *natsGatherer) FinishRun(trialId string, data *api.RuntimeData) {
	s.send(api.NewFinishRun(s.runUuid, trialId, data))
}

func (s *natsGatherer) FinishTrial(trialId string, state string, seconds float64) {
	s.send(api.NewFinishTrial(s.runUuid, trialId, state, seconds))
}

func (s *natsGatherer) EarlyStop(trialId string, seconds float64) {
	s.send(api.NewEarlyStop(s.runUuid, trialId, seconds))
}

// FinishTuning flushes so the last message is not lost when the process
// exits right after.
func (s *natsGatherer) FinishTuning(bestFlags []string, bestSeconds float64, errMsg *string) {
	s.send(api.NewFinishTuning(s.runUuid, bestFlags, bestSeconds, errMsg))
	if err := s.nc.Flush(); err != nil {
		s.logger.Warn("failed to flush NATS connection", tint.Err(err))
	}
}
