package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

func TestRunRejectsUnknownCommands(t *testing.T) {
	c := NewJobsCLI(asynq.RedisClientOpt{Addr: "127.0.0.1:0"})
	defer c.Close()

	var out bytes.Buffer
	assert.ErrorIs(t, c.Run(context.Background(), nil, &out), ErrUsage)
	assert.ErrorIs(t, c.Run(context.Background(), []string{"purge"}, &out), ErrUsage)
	assert.Empty(t, out.String())
}

func TestNilCLIReportsMissingClient(t *testing.T) {
	var c *JobsCLI
	_, err := c.InspectQueue(context.Background())
	assert.Error(t, err)
	_, err = c.ListScheduled(context.Background(), 0)
	assert.Error(t, err)
}
