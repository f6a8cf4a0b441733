package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"siteops/internal/model"
	"siteops/internal/projectregistry"
	"siteops/internal/scheduling"
)

type TaskHandler struct {
	svc      *scheduling.Service
	projects *projectregistry.Registry
	logger   *zap.Logger
}

func NewTaskHandler(svc *scheduling.Service, projects *projectregistry.Registry, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, projects: projects, logger: logger}
}

type materialRequest struct {
	MaterialID string `json:"material_id"`
	Quantity   int    `json:"quantity"`
	Unit       string `json:"unit"`
}

type workerRequirementRequest struct {
	Specialization string `json:"specialization"`
	Count          int    `json:"count"`
}

type createTaskRequest struct {
	Title             string                     `json:"title"`
	ProjectID         int64                      `json:"project_id"`
	Description       string                     `json:"description"`
	StartDate         string                     `json:"start_date"`
	EndDate           string                     `json:"end_date"`
	Priority          string                     `json:"priority"`
	Budget            float64                    `json:"budget"`
	ManagerID         int64                      `json:"manager_id"`
	RequiredMaterials []materialRequest          `json:"required_materials"`
	RequiredWorkers   []workerRequirementRequest `json:"required_workers"`
}

func parseDate(s string) (time.Time, bool) {
	d, err := time.Parse("2006-01-02", s)
	return d, err == nil
}

func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return id, true
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	start, okStart := parseDate(req.StartDate)
	end, okEnd := parseDate(req.EndDate)
	if !okStart || !okEnd {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD"})
		return
	}

	task := &model.WeeklyTask{
		Title:       req.Title,
		ProjectID:   req.ProjectID,
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
		Priority:    model.Priority(req.Priority),
		Budget:      req.Budget,
		ManagerID:   req.ManagerID,
	}
	for _, m := range req.RequiredMaterials {
		task.RequiredMaterials = append(task.RequiredMaterials, model.MaterialRequirement{
			MaterialID: m.MaterialID,
			Quantity:   m.Quantity,
			Unit:       m.Unit,
		})
	}
	for _, w := range req.RequiredWorkers {
		task.RequiredWorkers = append(task.RequiredWorkers, model.WorkerRequirement{
			Specialization: w.Specialization,
			Count:          w.Count,
		})
	}

	id, err := h.svc.CreateTask(c.Request.Context(), task)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task": task, "id": id})
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	var status *model.TaskStatus
	if raw := c.Query("status"); raw != "" {
		s := model.TaskStatus(raw)
		status = &s
	}

	tasks, err := h.svc.ListTasks(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}

	// Site managers only see tasks of projects they belong to.
	if role, _ := c.Get("role"); role == "site_manager" {
		if userID, ok := c.Get("user_id"); ok {
			managerID, _ := userID.(int64)
			visible := tasks[:0]
			for _, t := range tasks {
				if h.projects.Visible(t.ProjectID, managerID) {
					visible = append(visible, t)
				}
			}
			tasks = visible
		}
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.svc.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *TaskHandler) changeStatus(c *gin.Context, target model.TaskStatus) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.svc.ChangeStatus(c.Request.Context(), id, target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// SubmitTask moves a draft into approval.
func (h *TaskHandler) SubmitTask(c *gin.Context) {
	h.changeStatus(c, model.StatusPending)
}

// ActivateTask approves a pending task for execution.
func (h *TaskHandler) ActivateTask(c *gin.Context) {
	h.changeStatus(c, model.StatusActive)
}

func (h *TaskHandler) CompleteTask(c *gin.Context) {
	h.changeStatus(c, model.StatusCompleted)
}

func (h *TaskHandler) CancelTask(c *gin.Context) {
	h.changeStatus(c, model.StatusCancelled)
}

type progressRequest struct {
	Progress int `json:"progress"`
}

func (h *TaskHandler) SetProgress(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	task, err := h.svc.SetProgress(c.Request.Context(), id, req.Progress)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// CheckAvailability re-evaluates material availability against current
// stock levels.
func (h *TaskHandler) CheckAvailability(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.svc.RefreshAvailability(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"materials": task.RequiredMaterials})
}
