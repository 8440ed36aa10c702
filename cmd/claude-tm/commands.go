package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/claude-task-master/internal/agent"
	"github.com/hochfrequenz/claude-task-master/internal/config"
	"github.com/hochfrequenz/claude-task-master/internal/console"
	"github.com/hochfrequenz/claude-task-master/internal/control"
	"github.com/hochfrequenz/claude-task-master/internal/creds"
	"github.com/hochfrequenz/claude-task-master/internal/domain"
	"github.com/hochfrequenz/claude-task-master/internal/events"
	"github.com/hochfrequenz/claude-task-master/internal/github"
	"github.com/hochfrequenz/claude-task-master/internal/orchestrator"
	"github.com/hochfrequenz/claude-task-master/internal/prcycle"
	"github.com/hochfrequenz/claude-task-master/internal/retry"
	"github.com/hochfrequenz/claude-task-master/internal/schedule"
	"github.com/hochfrequenz/claude-task-master/internal/sessionlog"
	"github.com/hochfrequenz/claude-task-master/internal/state"
	"github.com/hochfrequenz/claude-task-master/tui"
	"github.com/hochfrequenz/claude-task-master/web/api"
)

var (
	startCriteria    string
	startModel       string
	startMaxSessions int
	startAutoMerge   bool
	startPauseOnPR   bool
	logsLimit        int
	servePort        int
)

func init() {
	startCmd := &cobra.Command{
		Use:   "start GOAL",
		Short: "Start a new run toward a goal",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runStart,
	}
	startCmd.Flags().StringVar(&startCriteria, "criteria", "", "success criteria checked before finishing")
	startCmd.Flags().StringVar(&startModel, "model", "", "model alias (sonnet, opus, haiku)")
	startCmd.Flags().IntVar(&startMaxSessions, "max-sessions", 0, "session budget, 0 means unlimited")
	startCmd.Flags().BoolVar(&startAutoMerge, "auto-merge", true, "merge pull requests once ready")
	startCmd.Flags().BoolVar(&startPauseOnPR, "pause-on-submit", false, "pause after each PR is opened")
	rootCmd.AddCommand(startCmd)

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume the current run",
		RunE:  runResume,
	}
	rootCmd.AddCommand(resumeCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current run",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause the run after the current session",
		RunE:  runPause,
	}
	rootCmd.AddCommand(pauseCmd)

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the run after the current session",
		RunE:  runStop,
	}
	rootCmd.AddCommand(stopCmd)

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show session history for the current run",
		RunE:  runLogs,
	}
	logsCmd.Flags().IntVar(&logsLimit, "limit", 20, "number of sessions to show")
	rootCmd.AddCommand(logsCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Launch the dashboard",
		RunE:  runWatch,
	}
	rootCmd.AddCommand(watchCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the status web server",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// buildOrchestrator wires the full engine from configuration. The
// returned cleanup closes the session log and stops the control watcher.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, *state.Manager, func(), error) {
	st := state.NewManager(cfg.General.StateDir)
	o := orchestrator.New(st, agent.NewClaudeBackend())

	o.Policy = &retry.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    cfg.Retry.BaseDelay.Std(),
		MaxDelay:     cfg.Retry.MaxDelay.Std(),
		JitterFactor: cfg.Retry.JitterFactor,
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, nil, nil, err
	}
	o.WorkDir = workDir

	log, err := sessionlog.New(st.SessionDBPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening session log: %w", err)
	}
	o.Log = log

	var sinks []events.Sink
	if cfg.Notifications.Desktop {
		sinks = append(sinks, events.NewDesktopSink(true))
	}
	if cfg.Notifications.WebhookURL != "" {
		sinks = append(sinks, events.NewWebhookSink(cfg.Notifications.WebhookURL, cfg.Notifications.WebhookSecret))
	}
	if len(sinks) > 0 {
		o.Sink = events.NewMultiSink(sinks...)
	}

	poller := prcycle.NewPoller(
		cfg.Polling.Interval.Std(),
		cfg.Polling.MaxInterval.Std(),
		cfg.Polling.StallTimeout.Std(),
	)
	o.Cycle = prcycle.New(github.NewClient(workDir), st, o, o.Sink, poller)

	if cm, err := creds.NewManager(); err == nil {
		o.Creds = cm
	} else {
		console.Warning("credential store unavailable: %v", err)
	}

	if cfg.Schedule.Cron != "" {
		window, err := schedule.Parse(cfg.Schedule.Cron, cfg.Schedule.WorkWindow.Std())
		if err != nil {
			log.Close()
			return nil, nil, nil, fmt.Errorf("invalid schedule: %w", err)
		}
		o.Gate = window
	}

	watcher, err := control.NewWatcher(cfg.General.StateDir)
	if err != nil {
		console.Warning("control watcher unavailable: %v", err)
	} else {
		watcher.Start(ctx)
		o.Interrupted = func() orchestrator.Interrupt {
			switch watcher.Pending() {
			case control.RequestStop:
				return orchestrator.InterruptStop
			case control.RequestPause:
				return orchestrator.InterruptPause
			default:
				return orchestrator.InterruptNone
			}
		}
	}

	cleanup := func() {
		if watcher != nil {
			watcher.Stop()
		}
		log.Close()
	}
	return o, st, cleanup, nil
}

// drive runs the work loop to completion and maps the outcome to an
// exit code: 0 success, 1 blocked or failed, 2 interrupted.
func drive(ctx context.Context, o *orchestrator.Orchestrator, run *domain.Run) error {
	outcome, err := o.Run(ctx, run)
	switch outcome {
	case domain.OutcomeSuccess:
		console.Success("goal achieved after %d sessions", run.SessionCount)
		return nil
	case domain.OutcomeInterrupted:
		console.Info("run %s, resume with `claude-tm resume`", run.Status)
		os.Exit(2)
		return nil
	default:
		if err != nil {
			return err
		}
		return fmt.Errorf("run blocked")
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st := state.NewManager(cfg.General.StateDir)
	if st.Exists() {
		if run, err := st.Load(); err == nil && !run.Status.Terminal() {
			return fmt.Errorf("a run is already in progress (status %s), resume or stop it first", run.Status)
		}
	}

	model := cfg.General.Model
	if startModel != "" {
		model = startModel
	}
	opts := domain.Options{
		AutoMerge:     cfg.General.AutoMerge,
		MaxSessions:   cfg.General.MaxSessions,
		PauseOnSubmit: cfg.General.PauseOnSubmit,
	}
	if cmd.Flags().Changed("auto-merge") {
		opts.AutoMerge = startAutoMerge
	}
	if cmd.Flags().Changed("max-sessions") {
		opts.MaxSessions = startMaxSessions
	}
	if cmd.Flags().Changed("pause-on-submit") {
		opts.PauseOnSubmit = startPauseOnPR
	}

	ctx, cancel := signalContext()
	defer cancel()

	o, _, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	goal := strings.Join(args, " ")
	run, err := o.State.Initialize(goal, startCriteria, model, opts)
	if err != nil {
		return err
	}

	console.Info("run %s started: %s", run.ID, goal)
	return drive(ctx, o, run)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	o, st, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := st.Load()
	if err != nil {
		return fmt.Errorf("no run to resume: %w", err)
	}
	if run.Status == domain.RunSuccess {
		console.Success("run already finished")
		return nil
	}
	// Stopped runs keep their state on disk, so they resume like paused ones.
	if run.Status.Terminal() && run.Status != domain.RunStopped {
		return fmt.Errorf("run is %s and cannot be resumed", run.Status)
	}

	// A leftover pause or stop request would immediately re-interrupt.
	if err := control.Clear(cfg.General.StateDir); err != nil {
		console.Warning("clearing control request: %v", err)
	}

	if run.Status == domain.RunPaused || run.Status == domain.RunBlocked || run.Status == domain.RunStopped {
		if len(run.Tasks) == 0 {
			run.Status = domain.RunPlanning
		} else {
			run.Status = domain.RunWorking
		}
		if err := st.Save(run); err != nil {
			return err
		}
	}

	console.Info("resuming run %s at session %d", run.ID, run.SessionCount+1)
	return drive(ctx, o, run)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st := state.NewManager(cfg.General.StateDir)
	run, err := st.Load()
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			fmt.Println("No run found. Start one with `claude-tm start`.")
			return nil
		}
		return err
	}

	done := 0
	for _, t := range run.Tasks {
		if t.Done {
			done++
		}
	}

	fmt.Printf("Run:      %s\n", run.ID)
	fmt.Printf("Goal:     %s\n", run.Goal)
	fmt.Printf("Status:   %s\n", run.Status)
	fmt.Printf("Tasks:    %d/%d complete\n", done, len(run.Tasks))
	if run.Options.MaxSessions > 0 {
		fmt.Printf("Sessions: %d/%d\n", run.SessionCount, run.Options.MaxSessions)
	} else {
		fmt.Printf("Sessions: %d\n", run.SessionCount)
	}
	if run.PR != nil {
		fmt.Printf("PR:       #%d on %s (%s)\n", run.PR.Number, run.PR.Branch, run.PR.Stage)
	}

	if len(run.Tasks) > 0 {
		fmt.Println()
		next := run.NextTask()
		for _, t := range run.Tasks {
			marker := "○"
			if t.Done {
				marker = "✓"
			} else if next != nil && t.Index == next.Index {
				marker = "→"
			}
			fmt.Printf("  %s %s\n", marker, t.Description)
		}
	}

	return nil
}

func runPause(cmd *cobra.Command, args []string) error {
	return writeControl(control.RequestPause, "pause")
}

func runStop(cmd *cobra.Command, args []string) error {
	return writeControl(control.RequestStop, "stop")
}

func writeControl(req control.Request, verb string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st := state.NewManager(cfg.General.StateDir)
	if !st.Exists() {
		return fmt.Errorf("no run to %s", verb)
	}

	if err := control.Write(cfg.General.StateDir, req); err != nil {
		return err
	}
	console.Info("%s requested, takes effect after the current session", verb)
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := sessionlog.New(state.NewManager(cfg.General.StateDir).SessionDBPath())
	if err != nil {
		return err
	}
	defer log.Close()

	records, err := log.ListRecent(logsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No sessions recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tPHASE\tOUTCOME\tATTEMPTS\tDURATION\tSTARTED\tERROR")
	for _, rec := range records {
		errText := rec.Error
		if len(errText) > 60 {
			errText = errText[:57] + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			rec.Session, rec.Phase, rec.Outcome, rec.Attempts,
			rec.Duration.Round(time.Second),
			rec.StartedAt.Format("2006-01-02 15:04"),
			errText)
	}
	return w.Flush()
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st := state.NewManager(cfg.General.StateDir)

	var sessions tui.SessionSource
	log, err := sessionlog.New(st.SessionDBPath())
	if err == nil {
		defer log.Close()
		sessions = log
	}

	model := tui.NewModel(st, sessions)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st := state.NewManager(cfg.General.StateDir)

	var sessions api.SessionSource
	log, err := sessionlog.New(st.SessionDBPath())
	if err == nil {
		defer log.Close()
		sessions = log
	}

	port := servePort
	if port == 0 {
		port = cfg.Web.Port
	}
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, port)

	ctx, cancel := signalContext()
	defer cancel()

	server := api.NewServer(st, sessions, addr)
	console.Info("status server listening on http://%s", addr)
	return server.Start(ctx)
}
