package reporter

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/johnstarich/replayer/playback"
	"github.com/johnstarich/replayer/redactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func testReport() Report {
	return Report{
		Result: playback.Result{
			Status:            playback.Failed,
			ErrorMessage:      "Step 2 (click) failed: boom",
			ErrorStack:        "stack trace",
			ScreenshotBase64:  "cG5n",
			ScreenshotMissing: false,
			DurationMs:        1234,
			RunTime:           time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		TestName:   "login",
		SuiteTitle: "smoke",
		TestRunId:  "run-1",
	}
}

func TestValuesAllowList(t *testing.T) {
	values := testReport().Values()
	assert.Len(t, values, len(allowedFields))
	assert.NotContains(t, values, "ErrorStack")
	assert.Equal(t, playback.Failed, values["Status"])
	assert.Equal(t, int64(1234), values["DurationMs"])
	assert.Equal(t, "run-1", values["TestRunId"])
}

type ticketServer struct {
	*httptest.Server
	tokenRequests *atomic.Int32
	mu            sync.Mutex
	uploads       []map[string]map[string]interface{}
	authHeaders   []string
	uploadStatus  *atomic.Int32
}

func newTicketServer(t *testing.T) *ticketServer {
	s := &ticketServer{
		tokenRequests: atomic.NewInt32(0),
		uploadStatus:  atomic.NewInt32(http.StatusNoContent),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		s.tokenRequests.Inc()
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "svc" || r.PostForm.Get("password") != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("  jwt-token\n"))
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		body, err := ioutil.ReadAll(r.Body)
		assert.NoError(t, err)
		var upload map[string]map[string]interface{}
		assert.NoError(t, json.Unmarshal(body, &upload))
		s.mu.Lock()
		s.uploads = append(s.uploads, upload)
		s.authHeaders = append(s.authHeaders, r.Header.Get("Authorization"))
		s.mu.Unlock()
		w.WriteHeader(int(s.uploadStatus.Load()))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *ticketServer) client(password string) *Client {
	return NewClient(ClientConfig{
		AuthURL:  s.URL + "/token",
		APIURL:   s.URL + "/results",
		Username: "svc",
		Password: redactor.String(password),
	})
}

func TestClientSend(t *testing.T) {
	server := newTicketServer(t)
	client := server.client("hunter2")

	require.NoError(t, client.Send(context.Background(), testReport()))
	require.NoError(t, client.Send(context.Background(), testReport()))

	assert.Equal(t, int32(1), server.tokenRequests.Load(), "Token should be cached between uploads")
	require.Len(t, server.uploads, 2)
	assert.Equal(t, []string{"AR-JWT jwt-token", "AR-JWT jwt-token"}, server.authHeaders)
	values := server.uploads[0]["values"]
	assert.Equal(t, "failed", values["Status"])
	assert.Equal(t, "smoke", values["SuiteTitle"])
	assert.Equal(t, "2024-01-02T03:04:05Z", values["RunTime"])
	assert.NotContains(t, values, "ErrorStack")
}

func TestClientBadCredentials(t *testing.T) {
	server := newTicketServer(t)
	client := server.client("wrong")

	err := client.Send(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to get token: Unauthorized")
	assert.Empty(t, server.uploads)
}

func TestClientUnauthorizedUploadDropsToken(t *testing.T) {
	server := newTicketServer(t)
	client := server.client("hunter2")
	server.uploadStatus.Store(http.StatusUnauthorized)

	err := client.Send(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to upload report")

	server.uploadStatus.Store(http.StatusOK)
	require.NoError(t, client.Send(context.Background(), testReport()))
	assert.Equal(t, int32(2), server.tokenRequests.Load())
}

func TestClientThrottleHonorsContext(t *testing.T) {
	server := newTicketServer(t)
	client := NewClient(ClientConfig{
		AuthURL:          server.URL + "/token",
		APIURL:           server.URL + "/results",
		Username:         "svc",
		Password:         redactor.String("hunter2"),
		UploadsPerSecond: 0.001,
	})
	require.NoError(t, client.Send(context.Background(), testReport()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, client.Send(ctx, testReport()))
	assert.Len(t, server.uploads, 1)
}

type fakePublisher struct {
	subject string
	data    []byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return nil
}

func TestNATSSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := &NATSSink{conn: pub, subject: DefaultSubject}
	require.NoError(t, sink.Send(context.Background(), testReport()))
	assert.Equal(t, "replayer.results", pub.subject)

	var payload map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.data, &payload))
	assert.Equal(t, "login", payload["values"]["TestName"])
	assert.NotContains(t, payload["values"], "ErrorStack")
	sink.Close()
}
