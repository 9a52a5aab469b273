// Package server exposes the run queue over HTTP
package server

import (
	"context"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/johnstarich/replayer/queue"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	loggerKey       = "logger"
	shutdownTimeout = 10 * time.Second
	// MaxParallel is the most copies of a run one request may enqueue
	MaxParallel = 50
)

// New returns the HTTP handler for q and worker
func New(q queue.Queue, worker *queue.Worker, logger *zap.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(logger, time.RFC3339, true),
		recovery(logger, true),
	)

	api := engine.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set(loggerKey, logger)
	})
	api.GET("/version", getVersion)
	api.POST("/run-test", runTest(q))
	api.GET("/queue-status", queueStatus(worker))
	api.GET("/results/:id", getResult(worker))
	api.POST("/generate-graph", generateGraph)
	return engine
}

// Run serves HTTP on addr and processes queued runs until ctx is canceled
func Run(ctx context.Context, addr string, q queue.Queue, worker *queue.Worker, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: New(q, worker, logger),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 2)
	go func() {
		errs <- errors.Wrap(worker.Run(ctx), "Worker stopped")
	}()
	go func() {
		logger.Info("Starting server", zap.String("addr", addr))
		err := srv.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		errs <- err
	}()

	select {
	case err := <-errs:
		if err != nil {
			_ = srv.Close()
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("Shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func abortWithClientError(c *gin.Context, status int, err error) {
	logger := c.MustGet(loggerKey).(*zap.Logger)
	logger = logger.WithOptions(zap.AddCallerSkip(1))
	if status/100 == 5 {
		logger.Error("Aborting with server error", zap.Error(err))
	} else {
		logger.Info("Aborting with client error", zap.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, map[string]string{
		"Error": err.Error(),
	})
}
