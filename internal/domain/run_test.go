package domain

import "testing"

func TestRun_NextTask(t *testing.T) {
	run := &Run{Tasks: []Task{
		{Index: 0, Description: "first", Done: true},
		{Index: 1, Description: "second"},
		{Index: 2, Description: "third"},
	}}

	next := run.NextTask()
	if next == nil {
		t.Fatal("NextTask returned nil, want task 1")
	}
	if next.Index != 1 {
		t.Errorf("NextTask index = %d, want 1", next.Index)
	}
}

func TestRun_NextTask_AllDone(t *testing.T) {
	run := &Run{Tasks: []Task{
		{Index: 0, Done: true},
		{Index: 1, Done: true},
	}}

	if run.NextTask() != nil {
		t.Error("NextTask should return nil when all tasks are done")
	}
	if !run.AllTasksDone() {
		t.Error("AllTasksDone = false, want true")
	}
}

func TestRun_CompleteTask_AdvancesIndex(t *testing.T) {
	run := &Run{Tasks: []Task{{Index: 0}, {Index: 1}, {Index: 2}}}

	run.CompleteTask(0)
	if !run.Tasks[0].Done {
		t.Error("task 0 not marked done")
	}
	if run.CurrentTaskIndex != 1 {
		t.Errorf("CurrentTaskIndex = %d, want 1", run.CurrentTaskIndex)
	}

	// Index is monotonically non-decreasing
	run.CompleteTask(0)
	if run.CurrentTaskIndex != 1 {
		t.Errorf("CurrentTaskIndex = %d after re-complete, want 1", run.CurrentTaskIndex)
	}
}

func TestRun_CompleteTask_OutOfBounds(t *testing.T) {
	run := &Run{Tasks: []Task{{Index: 0}}}
	run.CompleteTask(5)
	run.CompleteTask(-1)
	if run.CurrentTaskIndex != 0 {
		t.Errorf("CurrentTaskIndex = %d, want 0", run.CurrentTaskIndex)
	}
}

func TestRun_AppendTask(t *testing.T) {
	run := &Run{Tasks: []Task{{Index: 0, Done: true}}}
	task := run.AppendTask("follow-up")

	if task.Index != 1 {
		t.Errorf("appended task index = %d, want 1", task.Index)
	}
	if run.Tasks[0].Index != 0 || !run.Tasks[0].Done {
		t.Error("existing task mutated by append")
	}
}

func TestClassification_Retryable(t *testing.T) {
	tests := []struct {
		class Classification
		want  bool
	}{
		{ClassTransientNetwork, true},
		{ClassRateLimited, true},
		{ClassUnknown, true},
		{ClassAuthFatal, false},
		{ClassContentFiltered, false},
		{ClassWorkingDirInvalid, false},
		{ClassSDKUnavailable, false},
	}

	for _, tt := range tests {
		if got := tt.class.Retryable(); got != tt.want {
			t.Errorf("%s.Retryable() = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestRunStatus_Terminal(t *testing.T) {
	for _, s := range []RunStatus{RunSuccess, RunFailed, RunStopped} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	for _, s := range []RunStatus{RunPlanning, RunWorking, RunBlocked, RunPaused} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}
