package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTimer_StopLogsTheOperationName(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	timer := NewTimer("fetch-bars", log)
	duration := timer.Stop()

	assert.GreaterOrEqual(t, duration, time.Duration(0))
	assert.Contains(t, buf.String(), "fetch-bars")
}

func TestOperationTimer_LogsOnReturnedFunc(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	stop := OperationTimer("load-universe", log)
	stop()

	assert.Contains(t, buf.String(), "load-universe")
}
