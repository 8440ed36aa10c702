package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "state"))
}

func TestManager_InitializeAndLoad(t *testing.T) {
	m := newTestManager(t)

	run, err := m.Initialize("build the thing", "tests pass", "sonnet", domain.Options{AutoMerge: true})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if run.Status != domain.RunPlanning {
		t.Errorf("status = %s, want planning", run.Status)
	}
	if run.ID == "" {
		t.Error("run ID is empty")
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Goal != "build the thing" {
		t.Errorf("goal = %q", loaded.Goal)
	}
	if loaded.ID != run.ID {
		t.Errorf("ID round-trip: %q != %q", loaded.ID, run.ID)
	}

	goal, err := m.LoadGoal()
	if err != nil || goal != "build the thing" {
		t.Errorf("LoadGoal = %q, %v", goal, err)
	}
	criteria, err := m.LoadCriteria()
	if err != nil || criteria != "tests pass" {
		t.Errorf("LoadCriteria = %q, %v", criteria, err)
	}
}

func TestManager_Load_NotFound(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Load(); err != ErrNotFound {
		t.Errorf("Load = %v, want ErrNotFound", err)
	}
}

func TestManager_SaveIsAtomic(t *testing.T) {
	m := newTestManager(t)
	run, err := m.Initialize("goal", "", "sonnet", domain.Options{})
	if err != nil {
		t.Fatal(err)
	}

	// Save repeatedly; no temp files may remain and state must always parse
	for i := 0; i < 5; i++ {
		run.SessionCount++
		if err := m.Save(run); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	entries, _ := os.ReadDir(m.Dir())
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}

	data, err := os.ReadFile(filepath.Join(m.Dir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	var parsed domain.Run
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("state.json not valid JSON: %v", err)
	}
	if parsed.SessionCount != 5 {
		t.Errorf("SessionCount = %d, want 5", parsed.SessionCount)
	}
}

func TestManager_LoadFallsBackToBackup(t *testing.T) {
	m := newTestManager(t)
	run, err := m.Initialize("goal", "", "sonnet", domain.Options{})
	if err != nil {
		t.Fatal(err)
	}
	run.SessionCount = 3
	if err := m.Save(run); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Backup(); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	// Corrupt the live state file
	if err := os.WriteFile(filepath.Join(m.Dir(), "state.json"), []byte("{garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load after corruption: %v", err)
	}
	if loaded.SessionCount != 3 {
		t.Errorf("recovered SessionCount = %d, want 3", loaded.SessionCount)
	}
}

func TestManager_SaveBacksUpPriorState(t *testing.T) {
	m := newTestManager(t)
	run, err := m.Initialize("goal", "", "sonnet", domain.Options{})
	if err != nil {
		t.Fatal(err)
	}
	run.SessionCount = 2
	if err := m.Save(run); err != nil {
		t.Fatal(err)
	}
	run.SessionCount = 3
	if err := m.Save(run); err != nil {
		t.Fatal(err)
	}

	// Corrupt the live state file; recovery must work from the backups
	// Save took on its own, without an explicit Backup call.
	if err := os.WriteFile(filepath.Join(m.Dir(), "state.json"), []byte("{garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load after corruption: %v", err)
	}
	if loaded.SessionCount != 2 {
		t.Errorf("recovered SessionCount = %d, want 2", loaded.SessionCount)
	}
}

func TestManager_ResumeIdempotent(t *testing.T) {
	m := newTestManager(t)
	run, err := m.Initialize("goal", "", "sonnet", domain.Options{})
	if err != nil {
		t.Fatal(err)
	}

	run.Tasks = []domain.Task{{Index: 0, Description: "a"}, {Index: 1, Description: "b"}}
	run.CompleteTask(0)
	run.SessionCount = 1
	run.Status = domain.RunWorking
	if err := m.Save(run); err != nil {
		t.Fatal(err)
	}

	// Simulated crash: reload and verify identical state, twice
	for i := 0; i < 2; i++ {
		loaded, err := m.Load()
		if err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
		if !loaded.Tasks[0].Done || loaded.Tasks[1].Done {
			t.Errorf("load %d: task completion not reproduced", i)
		}
		if loaded.CurrentTaskIndex != 1 {
			t.Errorf("load %d: CurrentTaskIndex = %d, want 1", i, loaded.CurrentTaskIndex)
		}
		if loaded.SessionCount != 1 {
			t.Errorf("load %d: SessionCount = %d, want 1", i, loaded.SessionCount)
		}
	}
}

func TestManager_CleanupOnSuccessKeepsLogs(t *testing.T) {
	m := newTestManager(t)
	run, err := m.Initialize("goal", "criteria", "sonnet", domain.Options{})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SavePlan([]byte("- [x] everything\n")); err != nil {
		t.Fatal(err)
	}
	if err := m.SaveProgress("done"); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendContext(1, "learned things"); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendLog(run.ID, "session 1 complete"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(m.SessionDBPath(), []byte("db"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := m.CleanupOnSuccess(run); err != nil {
		t.Fatalf("CleanupOnSuccess: %v", err)
	}

	for _, gone := range []string{"state.json", "plan.md", "progress.md", "context.md", "goal.txt", "criteria.txt"} {
		if _, err := os.Stat(filepath.Join(m.Dir(), gone)); !os.IsNotExist(err) {
			t.Errorf("%s still present after cleanup", gone)
		}
	}
	if _, err := os.Stat(m.LogPath(run.ID)); err != nil {
		t.Errorf("session log removed by cleanup: %v", err)
	}
	if _, err := os.Stat(m.SessionDBPath()); err != nil {
		t.Errorf("session database removed by cleanup: %v", err)
	}
}

func TestManager_AppendLog(t *testing.T) {
	m := newTestManager(t)
	run, _ := m.Initialize("goal", "", "sonnet", domain.Options{})

	m.AppendLog(run.ID, "first")
	m.AppendLog(run.ID, "second")

	data, err := os.ReadFile(m.LogPath(run.ID))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "first") || !strings.Contains(content, "second") {
		t.Errorf("log missing entries:\n%s", content)
	}
}

func TestManager_PRContext(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Initialize("goal", "", "sonnet", domain.Options{}); err != nil {
		t.Fatal(err)
	}

	comments := []PRComment{
		{ThreadID: "T1", Author: "alice", Path: "main.go", Line: 10, Body: "rename this"},
		{ThreadID: "T2", Author: "reviewbot[bot]", Path: "util.go", Line: 3, Body: "nit", IsBot: true},
	}
	if err := m.SavePRComments(42, comments); err != nil {
		t.Fatalf("SavePRComments: %v", err)
	}
	if err := m.SaveCIFailure(42, "unit tests", "FAIL: TestFoo"); err != nil {
		t.Fatalf("SaveCIFailure: %v", err)
	}

	prDir, _ := m.PRDir(42)
	entries, _ := os.ReadDir(filepath.Join(prDir, "comments"))
	if len(entries) != 2 {
		t.Errorf("comment files = %d, want 2", len(entries))
	}
	if _, err := os.Stat(filepath.Join(prDir, "ci", "failed_unit_tests.txt")); err != nil {
		t.Errorf("CI failure file missing: %v", err)
	}

	if err := m.ClearPRContext(42); err != nil {
		t.Fatalf("ClearPRContext: %v", err)
	}
	if _, err := os.Stat(prDir); !os.IsNotExist(err) {
		t.Error("PR dir still present after clear")
	}
}
