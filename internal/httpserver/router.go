package httpserver

import (
	"context"
	"net/http"
	"time"

	"projectflow/internal/handler"
	"projectflow/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Check is one readiness probe, e.g. the store ping.
type Check func(ctx context.Context) error

type Deps struct {
	Workflow      *handler.WorkflowHandler
	Notifications *handler.NotificationHandler
	JWTSecret     string
	Idempotency   OnceGuard
	Ready         map[string]Check
	Logger        *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(RequestLogMiddleware(d.Logger))

	// Health endpoints (放在最前面)
	healthy := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	r.GET("/healthz", healthy)
	r.HEAD("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", healthy)
	r.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/readyz", readyHandler(d.Ready))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/")
	auth.Use(AuthMiddleware(d.JWTSecret))
	idem := IdempotencyMiddleware(d.Idempotency)

	w := d.Workflow
	{
		auth.GET("/dashboard", w.Dashboard)

		auth.GET("/projects", w.ListProjects)
		auth.POST("/projects", idem, w.CreateProject)
		auth.GET("/projects/:id", w.GetProject)
		auth.PUT("/projects/:id", w.UpdateProject)
		auth.DELETE("/projects/:id", w.Delete(model.KindProject))
		auth.POST("/projects/:id/status", w.ChangeStatus(model.KindProject))
		auth.GET("/projects/:id/view", w.ProjectView)
		auth.GET("/projects/:id/board", w.Board)
		auth.GET("/projects/:id/activity", w.Activity)
		auth.GET("/projects/:id/milestones", w.ListMilestones)
		auth.POST("/projects/:id/milestones", idem, w.CreateMilestone)
		auth.GET("/projects/:id/tasks", w.ListTasks)
		auth.POST("/projects/:id/tasks", idem, w.CreateTask)

		auth.GET("/milestones/:id", w.GetMilestone)
		auth.PUT("/milestones/:id", w.UpdateMilestone)
		auth.DELETE("/milestones/:id", w.Delete(model.KindMilestone))
		auth.POST("/milestones/:id/status", w.ChangeStatus(model.KindMilestone))

		auth.GET("/tasks/:id", w.GetTask)
		auth.PUT("/tasks/:id", w.UpdateTask)
		auth.DELETE("/tasks/:id", w.Delete(model.KindTask))
		auth.POST("/tasks/:id/status", w.ChangeStatus(model.KindTask))
	}

	n := d.Notifications
	{
		auth.GET("/notifications", n.List)
		auth.GET("/notifications/stream", n.Stream)
		auth.DELETE("/notifications/:id", n.Dismiss)
		auth.DELETE("/notifications", n.Clear)
	}

	return r
}

func readyHandler(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for name, check := range checks {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
