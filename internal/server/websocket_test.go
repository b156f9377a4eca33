package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func TestHandleBatchStream_RejectsUnknownBatchID(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + ts.URL[len("http"):] + "/ws/batch/does-not-exist"
	_, _, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err, "streaming an unknown batch id must fail the upgrade")
}

func TestHandleBatchStream_SendsTheCurrentStatusThenCloses(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	job := &batchJob{subscribers: make(map[chan []byte]struct{})}
	job.status = batchJobStatus{Completed: 4, Total: 4, Done: true}
	s.jobs.mu.Lock()
	s.jobs.jobs["finished"] = job
	s.jobs.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + ts.URL[len("http"):] + "/ws/batch/finished"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var status batchJobStatus
	require.NoError(t, json.Unmarshal(data, &status))
	assert.True(t, status.Done)
	assert.Equal(t, 4, status.Completed)
}
