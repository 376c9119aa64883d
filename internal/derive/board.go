package derive

import "projectflow/internal/model"

type Column struct {
	Status model.TaskStatus `json:"status"`
	Title  string           `json:"title"`
	Tasks  []model.Task     `json:"tasks"`
}

// Board is the kanban grouping of a task list. Columns always holds the four
// statuses in workflow order. Tasks whose status is outside the enumeration
// land in Unknown rather than being dropped.
type Board struct {
	Columns []Column     `json:"columns"`
	Unknown []model.Task `json:"unknown,omitempty"`
}

var columnTitles = map[model.TaskStatus]string{
	model.TaskTodo:       "To Do",
	model.TaskInProgress: "In Progress",
	model.TaskReview:     "Review",
	model.TaskCompleted:  "Completed",
}

// BuildBoard partitions tasks by status, keeping input order in each column.
func BuildBoard(tasks []model.Task) Board {
	index := make(map[model.TaskStatus]int, len(model.TaskStatuses))
	b := Board{Columns: make([]Column, len(model.TaskStatuses))}
	for i, s := range model.TaskStatuses {
		index[s] = i
		b.Columns[i] = Column{Status: s, Title: columnTitles[s], Tasks: []model.Task{}}
	}
	for _, t := range tasks {
		i, ok := index[t.Status]
		if !ok {
			b.Unknown = append(b.Unknown, t)
			continue
		}
		b.Columns[i].Tasks = append(b.Columns[i].Tasks, t)
	}
	return b
}

// Column returns the tasks in the given status column.
func (b Board) Column(s model.TaskStatus) []model.Task {
	for _, c := range b.Columns {
		if c.Status == s {
			return c.Tasks
		}
	}
	return nil
}

// Total counts every task on the board, Unknown included.
func (b Board) Total() int {
	n := len(b.Unknown)
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}

// Counts returns the number of tasks per status column.
func (b Board) Counts() map[model.TaskStatus]int {
	out := make(map[model.TaskStatus]int, len(b.Columns))
	for _, c := range b.Columns {
		out[c.Status] = len(c.Tasks)
	}
	return out
}
