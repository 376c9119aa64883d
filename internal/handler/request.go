package handler

import (
	"strconv"
	"strings"
	"time"

	"projectflow/internal/model"

	"github.com/gin-gonic/gin"
)

// Request bodies carry deadlines as "YYYY-MM-DD" (or RFC 3339); an empty
// or missing deadline clears it.

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Deadline    string `json:"deadline"`
	Version     int    `json:"version"`
}

func (r projectRequest) input() (model.ProjectInput, error) {
	deadline, err := parseDeadline(model.KindProject, r.Deadline)
	if err != nil {
		return model.ProjectInput{}, err
	}
	return model.ProjectInput{
		Name:        r.Name,
		Description: r.Description,
		Status:      model.ProjectStatus(r.Status),
		Deadline:    deadline,
		Version:     r.Version,
	}, nil
}

type milestoneRequest struct {
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Deadline    string `json:"deadline"`
	Version     int    `json:"version"`
}

func (r milestoneRequest) input() (model.MilestoneInput, error) {
	deadline, err := parseDeadline(model.KindMilestone, r.Deadline)
	if err != nil {
		return model.MilestoneInput{}, err
	}
	return model.MilestoneInput{
		ProjectID:   r.ProjectID,
		Name:        r.Name,
		Description: r.Description,
		Status:      model.MilestoneStatus(r.Status),
		Deadline:    deadline,
		Version:     r.Version,
	}, nil
}

type taskRequest struct {
	ProjectID   string  `json:"project_id"`
	MilestoneID *string `json:"milestone_id"`
	AssigneeID  *string `json:"assignee_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	Deadline    string  `json:"deadline"`
	Version     int     `json:"version"`
}

func (r taskRequest) input() (model.TaskInput, error) {
	deadline, err := parseDeadline(model.KindTask, r.Deadline)
	if err != nil {
		return model.TaskInput{}, err
	}
	return model.TaskInput{
		ProjectID:   r.ProjectID,
		MilestoneID: r.MilestoneID,
		AssigneeID:  r.AssigneeID,
		Title:       r.Title,
		Description: r.Description,
		Status:      model.TaskStatus(r.Status),
		Priority:    model.Priority(r.Priority),
		Deadline:    deadline,
		Version:     r.Version,
	}, nil
}

type statusRequest struct {
	Status string `json:"status"`
}

func parseDeadline(kind model.Kind, s string) (*time.Time, error) {
	t, err := model.ParseDate(s)
	if err != nil {
		return nil, model.Validation(kind, "deadline", err.Error())
	}
	return t, nil
}

// bindJSON decodes the body; a malformed body is a validation error.
func bindJSON(c *gin.Context, kind model.Kind, out any) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return model.Validation(kind, "", "malformed request body: "+err.Error())
	}
	return nil
}

func bindFilter(c *gin.Context) model.Filter {
	return model.Filter{
		Status:   strings.TrimSpace(c.Query("status")),
		Priority: strings.TrimSpace(c.Query("priority")),
		Search:   c.Query("search"),
	}
}

func bindSort(c *gin.Context) model.SortKey {
	return model.SortKey(strings.ToLower(strings.TrimSpace(c.Query("sort"))))
}

func bindLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func taskQuery(c *gin.Context, projectID string) model.TaskQuery {
	return model.TaskQuery{
		ProjectID:   projectID,
		MilestoneID: strings.TrimSpace(c.Query("milestone_id")),
		AssigneeID:  strings.TrimSpace(c.Query("assignee_id")),
		Filter:      bindFilter(c),
		Sort:        bindSort(c),
		Limit:       bindLimit(c),
	}
}
