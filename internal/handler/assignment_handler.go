package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"siteops/internal/scheduling"
)

type AssignmentHandler struct {
	svc    *scheduling.Service
	logger *zap.Logger
}

func NewAssignmentHandler(svc *scheduling.Service, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{svc: svc, logger: logger}
}

type assignRequest struct {
	WorkerID       int64  `json:"worker_id"`
	Specialization string `json:"specialization"`
}

func (h *AssignmentHandler) Assign(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.Assign(c.Request.Context(), id, req.Specialization, req.WorkerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "assigned"})
}

type unassignRequest struct {
	WorkerID int64 `json:"worker_id"`
}

func (h *AssignmentHandler) Unassign(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req unassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.Unassign(c.Request.Context(), id, req.WorkerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unassigned"})
}

type distributeRequest struct {
	TaskIDs []int64 `json:"task_ids"`
}

// Distribute runs one auto-distribution pass over the given tasks and
// reports the outcome per task.
func (h *AssignmentHandler) Distribute(c *gin.Context) {
	var req distributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.TaskIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_ids required"})
		return
	}

	results := h.svc.AutoDistribute(c.Request.Context(), req.TaskIDs)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type createDailyTaskRequest struct {
	Date        string  `json:"date"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Notes       string  `json:"notes"`
	WorkerIDs   []int64 `json:"worker_ids"`
}

func (h *AssignmentHandler) CreateDailyTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req createDailyTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	date, okDate := parseDate(req.Date)
	if !okDate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	daily, err := h.svc.CreateDailyTask(c.Request.Context(), id, date, req.Title, req.Description, req.Notes, req.WorkerIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"daily_task": daily})
}

func dailyTaskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("dailyId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid daily task id"})
		return 0, false
	}
	return id, true
}

func (h *AssignmentHandler) AssignDaily(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	dailyID, ok := dailyTaskID(c)
	if !ok {
		return
	}

	var req unassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.AssignDaily(c.Request.Context(), id, dailyID, req.WorkerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "assigned"})
}

func (h *AssignmentHandler) UnassignDaily(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	dailyID, ok := dailyTaskID(c)
	if !ok {
		return
	}

	var req unassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.UnassignDaily(c.Request.Context(), id, dailyID, req.WorkerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unassigned"})
}

type completionRequest struct {
	Completed bool  `json:"completed"`
	By        int64 `json:"by"`
}

func (h *AssignmentHandler) SetDailyCompletion(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	dailyID, ok := dailyTaskID(c)
	if !ok {
		return
	}

	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	daily, err := h.svc.SetDailyCompletion(c.Request.Context(), id, dailyID, req.Completed, req.By)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily_task": daily})
}
