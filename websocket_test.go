package main

import (
	"net/http"
	"testing"
	"time"

	"coda/types"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readProgressMessages reads WebSocket messages until one of the wanted
// type arrives or the deadline passes
func readProgressMessages(t *testing.T, conn *websocket.Conn, wantType string, timeout time.Duration) []types.ProgressMessage {
	t.Helper()

	var messages []types.ProgressMessage
	conn.SetReadDeadline(time.Now().Add(timeout))

	for {
		var msg types.ProgressMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("did not receive a %q message: %v (got %d messages)", wantType, err, len(messages))
		}
		messages = append(messages, msg)
		if msg.Type == wantType {
			return messages
		}
	}
}

// TestWebSocketAllConversions tests live progress over the all-jobs endpoint
func TestWebSocketAllConversions(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	conn := helper.ConnectWebSocket(t, "/api/ws/conversions")
	defer conn.Close()

	// Let the hub finish registering the client before work starts
	time.Sleep(100 * time.Millisecond)

	input := helper.CreateInputFile(t, "clip.mp4")
	jobs := helper.SubmitBatch(t, []string{input})

	messages := readProgressMessages(t, conn, "complete", 5*time.Second)

	final := messages[len(messages)-1]
	assert.Equal(t, jobs[0].ID, final.JobID)
	assert.Equal(t, "complete", final.Type)
	assert.Equal(t, string(types.JobStatusCompleted), final.Status)
	assert.Equal(t, 100.0, final.Progress)

	// Every message belongs to our job and carries sane progress
	for _, msg := range messages {
		assert.Equal(t, jobs[0].ID, msg.JobID)
		assert.GreaterOrEqual(t, msg.Progress, 0.0)
		assert.LessOrEqual(t, msg.Progress, 100.0)
		assert.False(t, msg.Timestamp.IsZero())
	}
}

// TestWebSocketSingleJob tests subscribing to one job's progress
func TestWebSocketSingleJob(t *testing.T) {
	runner := newStubRunner()
	runner.block = true
	helper := newTestHelperWithRunner(t, runner)
	defer helper.Cleanup(t)

	input := helper.CreateInputFile(t, "clip.mp4")
	jobs := helper.SubmitBatch(t, []string{input})
	jobID := jobs[0].ID

	// Subscribe while the conversion hangs, then let it finish by
	// cancelling it
	conn := helper.ConnectWebSocket(t, "/api/ws/conversions/"+jobID)
	defer conn.Close()
	time.Sleep(100 * time.Millisecond)

	<-runner.started
	resp := helper.MakeRequest(t, "DELETE", "/api/conversions/"+jobID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Read until the cancellation lands (earlier status messages may arrive)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg types.ProgressMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, jobID, msg.JobID)
		if msg.Status == string(types.JobStatusCancelled) {
			break
		}
	}
}

// TestWebSocketUnknownJob tests that subscribing to a nonexistent job fails
func TestWebSocketUnknownJob(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	wsURL := "ws" + helper.Server.URL[4:] + "/api/ws/conversions/no-such-job"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
