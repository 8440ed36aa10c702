package domain

import "time"

// Options holds per-run configuration
type Options struct {
	AutoMerge     bool `json:"auto_merge"`
	MaxSessions   int  `json:"max_sessions,omitempty"` // 0 means unlimited
	PauseOnSubmit bool `json:"pause_on_submit"`
}

// Run is one end-to-end pursuit of a goal
type Run struct {
	ID               string     `json:"run_id"`
	Goal             string     `json:"goal"`
	Criteria         string     `json:"criteria,omitempty"`
	Tasks            []Task     `json:"tasks"`
	CurrentTaskIndex int        `json:"current_task_index"`
	SessionCount     int        `json:"session_count"`
	Status           RunStatus  `json:"status"`
	Model            string     `json:"model"`
	Options          Options    `json:"options"`
	PR               *PRContext `json:"current_pr,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Task is one checklist item from the plan. Tasks are append-only;
// Done is the only mutable field.
type Task struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
}

// PRContext tracks one submission through the PR lifecycle
type PRContext struct {
	Number      int    `json:"number"`
	Stage       Stage  `json:"stage"`
	Branch      string `json:"branch,omitempty"`
	TaskIndices []int  `json:"task_indices,omitempty"`
}

// NextTask returns the first incomplete task, or nil if all are done
func (r *Run) NextTask() *Task {
	for i := range r.Tasks {
		if !r.Tasks[i].Done {
			return &r.Tasks[i]
		}
	}
	return nil
}

// AllTasksDone returns true when every task is complete
func (r *Run) AllTasksDone() bool {
	for i := range r.Tasks {
		if !r.Tasks[i].Done {
			return false
		}
	}
	return true
}

// CompleteTask marks the task at index done and advances the task index.
// The index never moves backwards.
func (r *Run) CompleteTask(index int) {
	if index < 0 || index >= len(r.Tasks) {
		return
	}
	r.Tasks[index].Done = true
	if index >= r.CurrentTaskIndex {
		r.CurrentTaskIndex = index + 1
	}
}

// AppendTask adds a new task to the end of the list and returns it
func (r *Run) AppendTask(description string) *Task {
	t := Task{Index: len(r.Tasks), Description: description}
	r.Tasks = append(r.Tasks, t)
	return &r.Tasks[len(r.Tasks)-1]
}
