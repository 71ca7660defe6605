package environment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadEnvConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CCTUNER_NATS_URL=nats://localhost:4222\n"), 0644))
	t.Setenv("CCTUNER_NATS_URL", "")
	os.Unsetenv("CCTUNER_NATS_URL")
	t.Setenv("CCTUNER_SQS_QUEUE_URL", "https://sqs.example/q")

	cfg, err := ReadEnvConfig(path)
	require.NoError(t, err)
	require.Equal(t, "nats://localhost:4222", cfg.NatsURL)
	require.Equal(t, "cctuner.events", cfg.NatsSubject)
	require.Equal(t, "https://sqs.example/q", cfg.SqsQueueURL)
	require.Equal(t, "eu-central-1", cfg.SqsRegion)
}

func TestMissingEnvFileIsFine(t *testing.T) {
	_, err := ReadEnvConfig(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}
