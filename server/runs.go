package server

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/johnstarich/replayer/queue"
	"github.com/johnstarich/replayer/recording"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// parallelCount accepts a JSON number or numeric string
type parallelCount int

func (p *parallelCount) UnmarshalJSON(b []byte) error {
	text := strings.Trim(string(b), `"`)
	if text == "" || text == "null" {
		*p = 1
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return errors.Errorf("parallel must be an integer: %s", string(b))
	}
	*p = parallelCount(n)
	return nil
}

type runRequest struct {
	TestName   string
	SuiteTitle string
	TestRunId  string
	Recording  json.RawMessage
	Parallel   *parallelCount `json:"parallel"`
}

func readRunRequest(c *gin.Context) (runRequest, recording.Recording, error) {
	body, err := ioutil.ReadAll(c.Request.Body)
	if err != nil {
		return runRequest{}, recording.Recording{}, err
	}
	var req runRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return runRequest{}, recording.Recording{}, errors.Wrap(err, "Invalid request")
	}
	if len(req.Recording) == 0 || string(req.Recording) == "null" {
		return runRequest{}, recording.Recording{}, errors.New("Recording is required")
	}
	rec, err := recording.Parse(req.Recording)
	return req, rec, err
}

func runTest(q queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := c.MustGet(loggerKey).(*zap.Logger)
		req, rec, err := readRunRequest(c)
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		parallel := 1
		if req.Parallel != nil {
			parallel = int(*req.Parallel)
		}
		if parallel < 1 || parallel > MaxParallel {
			abortWithClientError(c, http.StatusBadRequest, errors.Errorf("parallel must be between 1 and %d", MaxParallel))
			return
		}
		logger.Info("Received test request",
			zap.String("test", req.TestName),
			zap.String("testRunId", req.TestRunId),
			zap.Int("parallel", parallel),
		)

		now := time.Now().UTC()
		ids := make([]string, 0, parallel)
		for i := 0; i < parallel; i++ {
			run := queue.Run{
				ID:         uuid.New().String(),
				TestName:   req.TestName,
				SuiteTitle: req.SuiteTitle,
				TestRunId:  req.TestRunId,
				Recording:  rec,
				EnqueuedAt: now,
			}
			if err := q.Push(c, run); err != nil {
				abortWithClientError(c, http.StatusServiceUnavailable, err)
				return
			}
			ids = append(ids, run.ID)
		}
		c.JSON(http.StatusAccepted, map[string]interface{}{
			"message": fmt.Sprintf("Queued %d test runs.", parallel),
			"runIds":  ids,
		})
	}
}

func queueStatus(worker *queue.Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := worker.Status(c)
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func getResult(worker *queue.Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, found := worker.Result(c.Param("id"))
		if !found {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
