package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coda/cmd"
	"coda/ffmpeg"
	"coda/services"
	"coda/types"
	ws "coda/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProbeOutput is what the fake tool reports for every duration probe
const stubProbeOutput = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'input.mp4':
  Duration: 00:01:40.00, start: 0.000000, bitrate: 1205 kb/s
At least one output file must be specified`

// stubRunner stands in for the external tool so tests never shell out.
// Encodes emit a few progress lines, then succeed, fail, or hang until
// killed depending on configuration.
type stubRunner struct {
	fail    bool
	block   bool
	started chan struct{}
}

func newStubRunner() *stubRunner {
	return &stubRunner{started: make(chan struct{}, 16)}
}

func (r *stubRunner) Capture(name string, args ...string) (string, error) {
	return stubProbeOutput, errors.New("exit status 1")
}

func (r *stubRunner) Start(name string, args []string, onLine func(string)) (ffmpeg.Process, error) {
	proc := &stubProcess{onLine: onLine, fail: r.fail}
	if r.block {
		proc.blocker = make(chan struct{})
	} else {
		// Successful conversions leave an output file behind
		os.WriteFile(args[len(args)-1], []byte("fake audio"), 0644)
	}

	select {
	case r.started <- struct{}{}:
	default:
	}
	return proc, nil
}

type stubProcess struct {
	onLine  func(string)
	fail    bool
	blocker chan struct{}
	killed  atomic.Bool
	once    sync.Once
}

func (p *stubProcess) Wait() error {
	p.onLine("size= 512kB time=00:00:50.00 bitrate=192k")
	p.onLine("size=1024kB time=00:01:40.00 bitrate=192k")
	if p.blocker != nil {
		<-p.blocker
	}
	if p.killed.Load() {
		return errors.New("signal: killed")
	}
	if p.fail {
		p.onLine("Conversion failed!")
		return errors.New("exit status 1")
	}
	return nil
}

func (p *stubProcess) Kill() error {
	p.killed.Store(true)
	if p.blocker != nil {
		p.once.Do(func() { close(p.blocker) })
	}
	return nil
}

// TestHelper provides utilities for testing the Coda server
type TestHelper struct {
	Server       *httptest.Server
	TestDataDir  string
	OutputDir    string
	JobQueue     services.JobQueue
	Hub          ws.Hub
	Runner       *stubRunner
	Router       *gin.Engine
	originalHome string
}

// NewTestHelper creates a new test helper with a temporary test environment
func NewTestHelper(t *testing.T) *TestHelper {
	return newTestHelperWithRunner(t, newStubRunner())
}

// newTestHelperWithRunner lets tests shape the fake tool's behavior
func newTestHelperWithRunner(t *testing.T, runner *stubRunner) *TestHelper {
	// Create temporary test directory
	testDir, err := os.MkdirTemp("", "coda-test-*")
	require.NoError(t, err)

	// Point HOME at the test directory so settings and the default output
	// location never touch the real home directory
	originalHome := os.Getenv("HOME")
	os.Setenv("HOME", testDir)

	// Setup gin in test mode
	gin.SetMode(gin.TestMode)

	hub := ws.NewHub()
	go hub.Run()

	converter := services.NewConverter(runner, "ffmpeg")
	prober := ffmpeg.NewProber(runner, "ffmpeg", "ffprobe")

	store := services.NewMemoryJobStore()
	jobQueue := services.NewJobQueue(2, converter, hub, store) // Use 2 workers for testing
	jobQueue.Start()

	fileService := services.NewFileService(prober)

	router := cmd.NewRouter(jobQueue, hub, fileService)
	server := httptest.NewServer(router)

	helper := &TestHelper{
		Server:       server,
		TestDataDir:  testDir,
		OutputDir:    filepath.Join(testDir, "converted"),
		JobQueue:     jobQueue,
		Hub:          hub,
		Runner:       runner,
		Router:       router,
		originalHome: originalHome,
	}

	require.NoError(t, os.MkdirAll(helper.OutputDir, 0755))
	return helper
}

// Cleanup cleans up test resources
func (h *TestHelper) Cleanup(t *testing.T) {
	if h.Server != nil {
		h.Server.Close()
	}

	os.Setenv("HOME", h.originalHome)

	// Remove test directory
	err := os.RemoveAll(h.TestDataDir)
	require.NoError(t, err)
}

// CreateInputFile creates a fake media file in the test data directory
func (h *TestHelper) CreateInputFile(t *testing.T, name string) string {
	path := filepath.Join(h.TestDataDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("fake media data"), 0644))
	return path
}

// MakeRequest makes an HTTP request to the test server
func (h *TestHelper) MakeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, h.Server.URL+path, reqBody)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

// GetJSON makes a GET request and unmarshals JSON response
func (h *TestHelper) GetJSON(t *testing.T, path string, target interface{}) *http.Response {
	resp := h.MakeRequest(t, "GET", path, nil)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close()

	if target != nil {
		err = json.Unmarshal(body, target)
		require.NoError(t, err)
	}

	return resp
}

// PostJSON makes a POST request with JSON body and unmarshals JSON response
func (h *TestHelper) PostJSON(t *testing.T, path string, requestBody interface{}, target interface{}) *http.Response {
	resp := h.MakeRequest(t, "POST", path, requestBody)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close()

	if target != nil {
		err = json.Unmarshal(body, target)
		require.NoError(t, err)
	}

	return resp
}

// SubmitBatch posts a conversion batch and returns the created jobs
func (h *TestHelper) SubmitBatch(t *testing.T, inputs []string) []*types.ConversionJob {
	var response struct {
		BatchID string                 `json:"batchId"`
		Jobs    []*types.ConversionJob `json:"jobs"`
	}

	resp := h.PostJSON(t, "/api/conversions", types.ConversionRequest{
		Inputs:    inputs,
		OutputDir: h.OutputDir,
	}, &response)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, response.Jobs, len(inputs))

	return response.Jobs
}

// WaitForJobStatus waits for a job to reach the wanted status or fails the test
func (h *TestHelper) WaitForJobStatus(t *testing.T, jobID string, want types.JobStatus, timeout time.Duration) *types.ConversionJob {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		var response struct {
			Job *types.ConversionJob `json:"job"`
		}

		resp := h.GetJSON(t, "/api/conversions/"+jobID, &response)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		if response.Job.Status == want {
			return response.Job
		}

		time.Sleep(50 * time.Millisecond)
	}

	t.Fatalf("Job %s did not reach status %s within timeout", jobID, want)
	return nil
}

// ConnectWebSocket connects to a WebSocket endpoint
func (h *TestHelper) ConnectWebSocket(t *testing.T, path string) *websocket.Conn {
	wsURL := "ws" + h.Server.URL[4:] + path // Replace http:// with ws://

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return conn
}

// AssertFileExists checks if a file exists in the test data directory
func (h *TestHelper) AssertFileExists(t *testing.T, relativePath string) {
	fullPath := filepath.Join(h.TestDataDir, relativePath)
	_, err := os.Stat(fullPath)
	assert.NoError(t, err, "File should exist: %s", relativePath)
}
