package derive

import (
	"time"

	"projectflow/internal/model"
)

type DashboardStats struct {
	TotalProjects  int `json:"total_projects"`
	ActiveProjects int `json:"active_projects"`
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	OverdueTasks   int `json:"overdue_tasks"`
}

type Dashboard struct {
	Stats          DashboardStats  `json:"stats"`
	RecentProjects []model.Project `json:"recent_projects"`
	Upcoming       []UpcomingTask  `json:"upcoming"`
}

// UpcomingTask is a dashboard task annotated with its project's name.
type UpcomingTask struct {
	model.Task
	ProjectName string `json:"project_name"`
}

type DashboardOptions struct {
	RecentLimit   int
	UpcomingLimit int
	UpcomingDays  int
}

func DefaultDashboardOptions() DashboardOptions {
	return DashboardOptions{RecentLimit: 5, UpcomingLimit: 5, UpcomingDays: DefaultUpcomingDays}
}

// BuildDashboard computes the owner's overview from all of their projects
// and tasks.
func BuildDashboard(projects []model.Project, tasks []model.Task, today time.Time, opts DashboardOptions) Dashboard {
	stats := DashboardStats{
		TotalProjects: len(projects),
		TotalTasks:    len(tasks),
		OverdueTasks:  len(Overdue(tasks, today)),
	}
	for _, p := range projects {
		if p.Status == model.ProjectActive {
			stats.ActiveProjects++
		}
	}
	for _, t := range tasks {
		if t.Status == model.TaskCompleted {
			stats.CompletedTasks++
		}
	}
	return Dashboard{
		Stats:          stats,
		RecentProjects: Limit(Sort(projects, model.SortNewest), opts.RecentLimit),
		Upcoming:       withProjectNames(Limit(Upcoming(tasks, today, opts.UpcomingDays), opts.UpcomingLimit), projects),
	}
}

func withProjectNames(tasks []model.Task, projects []model.Project) []UpcomingTask {
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	out := make([]UpcomingTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, UpcomingTask{Task: t, ProjectName: names[t.ProjectID]})
	}
	return out
}

// ProjectView is everything the project detail screen renders.
type ProjectView struct {
	Project        model.Project      `json:"project"`
	Milestones     []MilestoneSummary `json:"milestones"`
	MilestoneStats MilestoneStats     `json:"milestone_stats"`
	Tasks          []model.Task       `json:"tasks"`
	Board          Board              `json:"board"`
	Overdue        []model.Task       `json:"overdue"`
	Upcoming       []model.Task       `json:"upcoming"`
	GeneratedAt    time.Time          `json:"generated_at"`
}

// BuildProjectView derives the detail view from a fresh snapshot. milestones
// and tasks must already be scoped to the project. The task list and board
// follow q; counts, overdue and upcoming always use the whole snapshot.
func BuildProjectView(p model.Project, milestones []model.Milestone, tasks []model.Task, q model.TaskQuery, now time.Time, upcomingDays int) ProjectView {
	listed := QueryTasks(tasks, q)
	ordered := Sort(milestones, model.SortDeadline)
	return ProjectView{
		Project:        p,
		Milestones:     SummarizeMilestones(ordered, tasks),
		MilestoneStats: CountMilestones(milestones),
		Tasks:          listed,
		Board:          BuildBoard(listed),
		Overdue:        Overdue(tasks, now),
		Upcoming:       Upcoming(tasks, now, upcomingDays),
		GeneratedAt:    now,
	}
}
