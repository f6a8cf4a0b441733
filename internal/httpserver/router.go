package httpserver

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"siteops/internal/handler"
	"siteops/pkg/metrics"
	"siteops/pkg/mq"
	"siteops/pkg/trace"
)

type Handlers struct {
	Tasks          *handler.TaskHandler
	Assignments    *handler.AssignmentHandler
	ChangeRequests *handler.ChangeRequestHandler
	Workers        *handler.WorkerHandler
}

func NewRouter(h Handlers, jwtSecret string, logger *zap.Logger, db *pgxpool.Pool, publisher *mq.Publisher) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Trace id propagation.
	r.Use(func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName())
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName(), traceID)
		c.Next()
	})

	// Request log + duration metric.
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(status), latency)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if publisher != nil && !publisher.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(RequireAuth(jwtSecret))

	api.GET("/tasks", h.Tasks.ListTasks)
	api.GET("/tasks/:id", h.Tasks.GetTask)
	api.POST("/tasks", RequireRole(RoleContractor), h.Tasks.CreateTask)
	api.POST("/tasks/:id/submit", RequireRole(RoleContractor), h.Tasks.SubmitTask)
	api.POST("/tasks/:id/activate", h.Tasks.ActivateTask)
	api.POST("/tasks/:id/complete", h.Tasks.CompleteTask)
	api.POST("/tasks/:id/cancel", h.Tasks.CancelTask)
	api.PUT("/tasks/:id/progress", h.Tasks.SetProgress)
	api.POST("/tasks/:id/availability", h.Tasks.CheckAvailability)

	api.POST("/tasks/:id/assignments", h.Assignments.Assign)
	api.DELETE("/tasks/:id/assignments", h.Assignments.Unassign)
	api.POST("/tasks/distribute", h.Assignments.Distribute)

	api.POST("/tasks/:id/daily", RequireRole(RoleSiteManager), h.Assignments.CreateDailyTask)
	api.POST("/tasks/:id/daily/:dailyId/workers", h.Assignments.AssignDaily)
	api.DELETE("/tasks/:id/daily/:dailyId/workers", h.Assignments.UnassignDaily)
	api.PUT("/tasks/:id/daily/:dailyId/completion", h.Assignments.SetDailyCompletion)

	api.POST("/tasks/:id/change-requests", RequireRole(RoleSiteManager), h.ChangeRequests.Create)
	api.POST("/tasks/:id/change-requests/:requestId/resolve", RequireRole(RoleContractor), h.ChangeRequests.Resolve)

	api.GET("/workers", h.Workers.ListWorkers)

	return r
}
