package handler

import (
	"net/http"
	"time"

	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/internal/workflow"
	"projectflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserIDKey is the gin context key the auth middleware stores the caller in.
const UserIDKey = "user_id"

type WorkflowHandler struct {
	sessions *workflow.Sessions
	activity repository.ActivityStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewWorkflowHandler serves the entity API. activity may be nil when the
// activity log is not available.
func NewWorkflowHandler(sessions *workflow.Sessions, activity repository.ActivityStore, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		sessions: sessions,
		activity: activity,
		now:      time.Now,
		logger:   logger,
	}
}

func (h *WorkflowHandler) controller(c *gin.Context) *workflow.Controller {
	return h.sessions.Controller(c.GetString(UserIDKey))
}

func (h *WorkflowHandler) log(c *gin.Context) *zap.Logger {
	return logger.WithTrace(c.Request.Context(), h.logger).With(zap.String("user_id", c.GetString(UserIDKey)))
}

// ---------- projects ----------

func (h *WorkflowHandler) ListProjects(c *gin.Context) {
	ctrl := h.controller(c)
	projects, err := ctrl.ListProjects(c.Request.Context(), ctrl.Owner(), model.ProjectQuery{
		Filter: bindFilter(c),
		Sort:   bindSort(c),
		Limit:  bindLimit(c),
	})
	if err != nil {
		h.log(c).Error("ListProjects: failed", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *WorkflowHandler) CreateProject(c *gin.Context) {
	var req projectRequest
	if err := bindJSON(c, model.KindProject, &req); err != nil {
		respondError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := h.controller(c).CreateProject(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": p})
}

func (h *WorkflowHandler) GetProject(c *gin.Context) {
	p, err := h.controller(c).GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

func (h *WorkflowHandler) UpdateProject(c *gin.Context) {
	var req projectRequest
	if err := bindJSON(c, model.KindProject, &req); err != nil {
		respondError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := h.controller(c).UpdateProject(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// ProjectView returns the project detail screen: milestones with progress,
// the filtered task list, the kanban board and deadline buckets.
func (h *WorkflowHandler) ProjectView(c *gin.Context) {
	id := c.Param("id")
	view, err := h.controller(c).ProjectView(c.Request.Context(), id, taskQuery(c, id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *WorkflowHandler) Board(c *gin.Context) {
	id := c.Param("id")
	board, err := h.controller(c).Board(c.Request.Context(), id, taskQuery(c, id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board": board, "total": board.Total()})
}

// ---------- milestones ----------

func (h *WorkflowHandler) ListMilestones(c *gin.Context) {
	milestones, err := h.controller(c).ListMilestones(c.Request.Context(), c.Param("id"), model.MilestoneQuery{
		Filter: bindFilter(c),
		Sort:   bindSort(c),
	})
	if err != nil {
		h.log(c).Error("ListMilestones: failed", zap.String("project_id", c.Param("id")), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

func (h *WorkflowHandler) CreateMilestone(c *gin.Context) {
	var req milestoneRequest
	if err := bindJSON(c, model.KindMilestone, &req); err != nil {
		respondError(c, err)
		return
	}
	req.ProjectID = c.Param("id")
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	m, err := h.controller(c).CreateMilestone(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"milestone": m})
}

func (h *WorkflowHandler) GetMilestone(c *gin.Context) {
	m, err := h.controller(c).GetMilestone(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": m})
}

func (h *WorkflowHandler) UpdateMilestone(c *gin.Context) {
	var req milestoneRequest
	if err := bindJSON(c, model.KindMilestone, &req); err != nil {
		respondError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	m, err := h.controller(c).UpdateMilestone(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": m})
}

// ---------- tasks ----------

func (h *WorkflowHandler) ListTasks(c *gin.Context) {
	tasks, err := h.controller(c).ListTasks(c.Request.Context(), taskQuery(c, c.Param("id")))
	if err != nil {
		h.log(c).Error("ListTasks: failed", zap.String("project_id", c.Param("id")), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *WorkflowHandler) CreateTask(c *gin.Context) {
	var req taskRequest
	if err := bindJSON(c, model.KindTask, &req); err != nil {
		respondError(c, err)
		return
	}
	req.ProjectID = c.Param("id")
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	t, err := h.controller(c).CreateTask(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": t})
}

func (h *WorkflowHandler) GetTask(c *gin.Context) {
	t, err := h.controller(c).GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

func (h *WorkflowHandler) UpdateTask(c *gin.Context) {
	var req taskRequest
	if err := bindJSON(c, model.KindTask, &req); err != nil {
		respondError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	t, err := h.controller(c).UpdateTask(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

// ---------- shared ----------

// ChangeStatus serves POST /<kind>s/:id/status.
func (h *WorkflowHandler) ChangeStatus(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := bindJSON(c, kind, &req); err != nil {
			respondError(c, err)
			return
		}
		rec, err := h.controller(c).ChangeStatus(c.Request.Context(), kind, c.Param("id"), req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{string(kind): rec})
	}
}

// Delete serves DELETE /<kind>s/:id. Confirmation happens client side.
func (h *WorkflowHandler) Delete(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.controller(c).Delete(c.Request.Context(), kind, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (h *WorkflowHandler) Dashboard(c *gin.Context) {
	ctrl := h.controller(c)
	d, err := ctrl.Dashboard(c.Request.Context(), ctrl.Owner(), h.now())
	if err != nil {
		h.log(c).Error("Dashboard: failed", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Activity lists the worker-recorded event log of a project, newest first.
func (h *WorkflowHandler) Activity(c *gin.Context) {
	if h.activity == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "activity log is not available", "code": "store_unavailable"})
		return
	}
	id := c.Param("id")
	if _, err := h.controller(c).GetProject(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	items, err := h.activity.ListActivity(c.Request.Context(), id, bindLimit(c))
	if err != nil {
		h.log(c).Error("Activity: failed", zap.String("project_id", id), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": items})
}
