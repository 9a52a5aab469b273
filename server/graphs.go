package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/replayer/chart"
	"github.com/pkg/errors"
)

type graphRequest struct {
	Entries []struct {
		Values chart.Entry `json:"values"`
	} `json:"entries"`
}

func generateGraph(c *gin.Context) {
	var req graphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithClientError(c, http.StatusBadRequest, errors.Wrap(err, "Invalid request"))
		return
	}
	entries := make([]chart.Entry, 0, len(req.Entries))
	for _, entry := range req.Entries {
		entries = append(entries, entry.Values)
	}
	graphs, err := chart.Generate(entries)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Cause(err) == chart.ErrInvalidData {
			status = http.StatusBadRequest
		}
		abortWithClientError(c, status, err)
		return
	}
	c.JSON(http.StatusOK, graphs)
}
