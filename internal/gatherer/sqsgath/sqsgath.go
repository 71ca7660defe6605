package sqsgath

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/lmittmann/tint"

	"github.com/programme-lv/cctuner/api"
)

const sendTimeout = 10 * time.Second

// Sender is the part of the SQS client the gatherer needs.
type Sender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type sqsGatherer struct {
	client   Sender
	queueUrl string
	runUuid  string
	logger   *slog.Logger
}

// New loads the default AWS configuration for region and sends events of
// one tuning run to queueUrl.
func New(ctx context.Context, region string, runUuid string, queueUrl string, logger *slog.Logger) (*sqsGatherer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewWithClient(sqs.NewFromConfig(cfg), runUuid, queueUrl, logger), nil
}

func NewWithClient(client Sender, runUuid string, queueUrl string, logger *slog.Logger) *sqsGatherer {
	return &sqsGatherer{
		client:   client,
		queueUrl: queueUrl,
		runUuid:  runUuid,
		logger:   logger,
	}
}

func (s *sqsGatherer) send(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", tint.Err(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueUrl),
		MessageBody: aws.String(string(b)),
	})
	if err != nil {
		s.logger.Error("failed to send message", "queue", s.queueUrl, tint.Err(err))
	}
}

func (s *sqsGatherer) StartTuning(program string, toolVersion string, dimensions int) {
	s.send(api.NewStartTuning(s.runUuid, program, toolVersion, dimensions))
}

// Per-stage events are not forwarded; the queue only carries results.
func (s *sqsGatherer) StartTrial(trialId string, flags []string) {}

func (s *sqsGatherer) FinishCompile(trialId string, data *api.RuntimeData) {}

func (s *sqsGatherer) FinishRun(trialId string, data *api.RuntimeData) {}

func (s *sqsGatherer) FinishTrial(trialId string, state string, seconds float64) {
	s.send(api.NewFinishTrial(s.runUuid, trialId, state, seconds))
}

func (s *sqsGatherer) EarlyStop(trialId string, seconds float64) {
	s.send(api.NewEarlyStop(s.runUuid, trialId, seconds))
}

func (s *sqsGatherer) FinishTuning(bestFlags []string, bestSeconds float64, errMsg *string) {
	s.send(api.NewFinishTuning(s.runUuid, bestFlags, bestSeconds, errMsg))
}
