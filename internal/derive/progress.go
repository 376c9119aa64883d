package derive

import "projectflow/internal/model"

var milestoneProgress = map[model.MilestoneStatus]int{
	model.MilestonePending:    0,
	model.MilestoneInProgress: 50,
	model.MilestoneCompleted:  100,
}

// Progress is a fixed mapping from milestone status to a percentage; it does
// not look at child tasks. Unknown statuses count as 0.
func Progress(status model.MilestoneStatus) int {
	return milestoneProgress[status]
}

func MilestoneProgress(m model.Milestone) int {
	return Progress(m.Status)
}

// TaskCounts maps milestone id to the number of tasks referencing it.
func TaskCounts(tasks []model.Task) map[string]int {
	counts := make(map[string]int)
	for _, t := range tasks {
		if t.MilestoneID != nil {
			counts[*t.MilestoneID]++
		}
	}
	return counts
}

type MilestoneSummary struct {
	model.Milestone
	TaskCount int `json:"task_count"`
	Progress  int `json:"progress"`
}

// SummarizeMilestones attaches the derived task count and progress to each
// milestone, preserving milestone order.
func SummarizeMilestones(milestones []model.Milestone, tasks []model.Task) []MilestoneSummary {
	counts := TaskCounts(tasks)
	out := make([]MilestoneSummary, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, MilestoneSummary{
			Milestone: m,
			TaskCount: counts[m.ID],
			Progress:  MilestoneProgress(m),
		})
	}
	return out
}

type MilestoneStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

func CountMilestones(milestones []model.Milestone) MilestoneStats {
	s := MilestoneStats{Total: len(milestones)}
	for _, m := range milestones {
		switch m.Status {
		case model.MilestonePending:
			s.Pending++
		case model.MilestoneInProgress:
			s.InProgress++
		case model.MilestoneCompleted:
			s.Completed++
		}
	}
	return s
}
