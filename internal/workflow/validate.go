package workflow

import (
	"fmt"
	"strings"

	"projectflow/internal/model"
)

func optionalID(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// projectFields trims and checks a project form. An empty status falls back
// to keep; updates pass "" and resolve it against the stored row.
func projectFields(in model.ProjectInput, keep model.ProjectStatus) (model.ProjectInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Deadline = model.DateOnly(in.Deadline)
	if in.Name == "" {
		return in, model.Validation(model.KindProject, "name", "is required")
	}
	if in.Status == "" {
		in.Status = keep
	}
	if in.Status != "" && !in.Status.Valid() {
		return in, model.Validation(model.KindProject, "status", fmt.Sprintf("unknown status %q", in.Status))
	}
	return in, nil
}

func milestoneFields(in model.MilestoneInput, keep model.MilestoneStatus) (model.MilestoneInput, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Deadline = model.DateOnly(in.Deadline)
	if in.Name == "" {
		return in, model.Validation(model.KindMilestone, "name", "is required")
	}
	if in.Status == "" {
		in.Status = keep
	}
	if in.Status != "" && !in.Status.Valid() {
		return in, model.Validation(model.KindMilestone, "status", fmt.Sprintf("unknown status %q", in.Status))
	}
	return in, nil
}

// taskFields trims and checks a task form. Empty status and priority fall
// back to the given values.
func taskFields(in model.TaskInput, keepStatus model.TaskStatus, keepPriority model.Priority) (model.TaskInput, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.MilestoneID = optionalID(in.MilestoneID)
	in.AssigneeID = optionalID(in.AssigneeID)
	in.Deadline = model.DateOnly(in.Deadline)
	if in.Title == "" {
		return in, model.Validation(model.KindTask, "title", "is required")
	}
	if in.Status == "" {
		in.Status = keepStatus
	}
	if in.Status != "" && !in.Status.Valid() {
		return in, model.Validation(model.KindTask, "status", fmt.Sprintf("unknown status %q", in.Status))
	}
	if in.Priority == "" {
		in.Priority = keepPriority
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return in, model.Validation(model.KindTask, "priority", fmt.Sprintf("unknown priority %q", in.Priority))
	}
	return in, nil
}

func requireID(kind model.Kind, field, id string) error {
	if strings.TrimSpace(id) == "" {
		return model.Validation(kind, field, "is required")
	}
	return nil
}
