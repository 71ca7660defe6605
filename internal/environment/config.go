package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvConfig carries endpoints and credentials that do not belong in a
// config file checked into a repository.
type EnvConfig struct {
	NatsURL     string
	NatsSubject string

	SqsQueueURL string
	SqsRegion   string
}

// ReadEnvConfig loads files (".env" when none are given) into the process
// environment and reads the CCTUNER_* variables. Missing files are fine.
func ReadEnvConfig(files ...string) (*EnvConfig, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	result := &EnvConfig{
		NatsURL:     os.Getenv("CCTUNER_NATS_URL"),
		NatsSubject: os.Getenv("CCTUNER_NATS_SUBJECT"),
		SqsQueueURL: os.Getenv("CCTUNER_SQS_QUEUE_URL"),
		SqsRegion:   os.Getenv("CCTUNER_SQS_REGION"),
	}
	if result.NatsSubject == "" {
		result.NatsSubject = "cctuner.events"
	}
	if result.SqsRegion == "" {
		result.SqsRegion = "eu-central-1"
	}
	return result, nil
}
