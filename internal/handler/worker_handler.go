package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"siteops/internal/workerpool"
)

type WorkerHandler struct {
	pool   *workerpool.Pool
	logger *zap.Logger
}

func NewWorkerHandler(pool *workerpool.Pool, logger *zap.Logger) *WorkerHandler {
	return &WorkerHandler{pool: pool, logger: logger}
}

// ListWorkers returns the active roster with current assigned-task loads.
func (h *WorkerHandler) ListWorkers(c *gin.Context) {
	if spec := c.Query("specialization"); spec != "" {
		c.JSON(http.StatusOK, gin.H{"workers": h.pool.CandidatesFor(spec)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": h.pool.ActiveWorkers()})
}
