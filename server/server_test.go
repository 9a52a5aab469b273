package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/replayer/consts"
	"github.com/johnstarich/replayer/playback"
	"github.com/johnstarich/replayer/queue"
	"github.com/johnstarich/replayer/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testRecording = `{"title": "Log in", "steps": [{"type": "navigate", "url": "https://example.test"}]}`

type fakePlayer struct{}

func (fakePlayer) Play(ctx context.Context, rec recording.Recording) playback.Result {
	return playback.Result{Status: playback.Passed, DurationMs: 7, ScreenshotMissing: true}
}

type testServer struct {
	queue  queue.Queue
	worker *queue.Worker
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	q := queue.NewMemory()
	t.Cleanup(func() { _ = q.Close() })
	worker := queue.NewWorker(q, fakePlayer{}, nil, zap.NewNop())
	return &testServer{
		queue:  q,
		worker: worker,
		engine: New(q, worker, zap.NewNop()),
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.engine.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v), resp.Body.String())
}

func TestVersion(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, consts.Version, body["Version"])
}

func TestRunTestQueuesCopies(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodPost, "/api/run-test", `{
		"TestName": "login",
		"SuiteTitle": "smoke",
		"TestRunId": "r1",
		"parallel": "3",
		"Recording": `+testRecording+`
	}`)
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	var body struct {
		Message string
		RunIDs  []string `json:"runIds"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "Queued 3 test runs.", body.Message)
	require.Len(t, body.RunIDs, 3)
	assert.NotEqual(t, body.RunIDs[0], body.RunIDs[1])

	resp = s.do(http.MethodGet, "/api/queue-status", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var status queue.Status
	decode(t, resp, &status)
	assert.Equal(t, 3, status.QueueLength)
	assert.False(t, status.IsProcessing)
	require.Len(t, status.QueueItems, 3)
	assert.Equal(t, queue.Summary{ID: body.RunIDs[0], TestName: "login", TestRunId: "r1"}, status.QueueItems[0])

	items, err := s.queue.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Log in", items[0].Recording.Title)
	assert.Equal(t, "smoke", items[0].SuiteTitle)
}

func TestRunTestInvalid(t *testing.T) {
	for _, tc := range []struct {
		description string
		body        string
		expectErr   string
	}{
		{
			description: "not JSON",
			body:        `{`,
			expectErr:   "Invalid request",
		},
		{
			description: "no recording",
			body:        `{"TestName": "x"}`,
			expectErr:   "Recording is required",
		},
		{
			description: "malformed recording",
			body:        `{"Recording": {"steps": [{"url": "https://example.test"}]}}`,
			expectErr:   "/steps/0",
		},
		{
			description: "too many copies",
			body:        `{"parallel": 1000, "Recording": ` + testRecording + `}`,
			expectErr:   "parallel must be between 1 and 50",
		},
		{
			description: "zero copies",
			body:        `{"parallel": 0, "Recording": ` + testRecording + `}`,
			expectErr:   "parallel must be between 1 and 50",
		},
		{
			description: "parallel not a number",
			body:        `{"parallel": "many", "Recording": ` + testRecording + `}`,
			expectErr:   "parallel must be an integer",
		},
	} {
		t.Run(tc.description, func(t *testing.T) {
			s := newTestServer(t)
			resp := s.do(http.MethodPost, "/api/run-test", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			var body map[string]string
			decode(t, resp, &body)
			assert.Contains(t, body["Error"], tc.expectErr)
		})
	}
}

func TestResults(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/api/results/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = s.do(http.MethodPost, "/api/run-test", `{"TestName": "login", "Recording": `+testRecording+`}`)
	require.Equal(t, http.StatusAccepted, resp.Code)
	var queued struct {
		RunIDs []string `json:"runIds"`
	}
	decode(t, resp, &queued)
	require.Len(t, queued.RunIDs, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.worker.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp = s.do(http.MethodGet, "/api/results/"+queued.RunIDs[0], "")
		if resp.Code == http.StatusOK || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, http.StatusOK, resp.Code)
	var report map[string]interface{}
	decode(t, resp, &report)
	assert.Equal(t, "passed", report["Status"])
	assert.Equal(t, "login", report["TestName"])
	assert.Equal(t, "N/A", report["SuiteTitle"])
}

func TestGenerateGraph(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodPost, "/api/generate-graph", `{"entries": [
		{"values": {"SuiteTitle": "smoke", "TestName": "login", "Status": "passed"}},
		{"values": {"SuiteTitle": "smoke", "TestName": "logout", "Status": "failed"}}
	]}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var body map[string]interface{}
	decode(t, resp, &body)
	for _, key := range []string{"graph1_base64", "graph2_base64", "graph3_base64", "graph4_base64"} {
		assert.NotEmpty(t, body[key], key)
	}
	assert.Equal(t, map[string]interface{}{
		"total_passed": float64(1),
		"total_failed": float64(1),
		"total_tests":  float64(2),
	}, body["summary"])
}

func TestGenerateGraphInvalid(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodPost, "/api/generate-graph", `{"entries": [{"values": {"Status": "passed"}}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.do(http.MethodPost, "/api/generate-graph", `{"entries": [{"values": {"SuiteTitle": "a", "Status": "passed"}}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	var body map[string]string
	decode(t, resp, &body)
	assert.Contains(t, body["Error"], "TestName is also required")

	resp = s.do(http.MethodPost, "/api/generate-graph", `[]`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(recovery(zap.NewNop(), true))
	engine.GET("/panic", func(c *gin.Context) {
		panic("kaboom")
	})
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.JSONEq(t, `{"Error": "Internal server error: kaboom"}`, resp.Body.String())
}
