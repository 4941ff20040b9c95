package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduledAction names a maintenance job a task can run.
type ScheduledAction string

const (
	ActionSessionReap    ScheduledAction = "session_reap"
	ActionAuditRetention ScheduledAction = "audit_retention"
)

// DefaultTaskTimeout bounds a single run of a maintenance job.
const DefaultTaskTimeout = 5 * time.Minute

// ScheduledTask binds an action to a schedule. Schedule is a cron
// expression ("*/5 * * * *", "@daily") or a Go duration ("30m").
type ScheduledTask struct {
	Name     string
	Schedule string
	Action   ScheduledAction
	OneShot  bool
}

// TaskStatus reports how a task has fared since the scheduler was built.
type TaskStatus struct {
	Name      string
	Action    ScheduledAction
	Runs      int
	Failures  int
	LastRun   time.Time
	LastError string
}

type taskState struct {
	id     cron.EntryID
	status TaskStatus
}

// Scheduler runs the router's maintenance jobs (session expiry, audit
// retention) in the background. A job still running when its next tick
// arrives is skipped rather than stacked.
type Scheduler struct {
	cron        *cron.Cron
	actions     map[ScheduledAction]func(ctx context.Context) error
	tasks       map[string]*taskState
	taskTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger.With("component", "scheduler")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			// Recover sits inside the skip guard so a panic still releases it.
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		actions:     make(map[ScheduledAction]func(ctx context.Context) error),
		tasks:       make(map[string]*taskState),
		taskTimeout: DefaultTaskTimeout,
		logger:      logger,
	}
}

// RegisterAction installs the job run for action.
func (s *Scheduler) RegisterAction(action ScheduledAction, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[action] = fn
}

// AddTask schedules task. Names are unique and the action must be registered.
func (s *Scheduler) AddTask(task ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.Name]; exists {
		return fmt.Errorf("scheduler: task %q already exists", task.Name)
	}
	fn, ok := s.actions[task.Action]
	if !ok {
		return fmt.Errorf("scheduler: unknown action %q for task %q", task.Action, task.Name)
	}
	schedule, err := ParseSchedule(task.Schedule)
	if err != nil {
		return fmt.Errorf("scheduler: task %q: %w", task.Name, err)
	}

	st := &taskState{status: TaskStatus{Name: task.Name, Action: task.Action}}
	st.id = s.cron.Schedule(schedule, cron.FuncJob(func() { s.run(task, st, fn) }))
	s.tasks[task.Name] = st

	s.logger.Info("task scheduled", "task", task.Name, "schedule", task.Schedule, "action", string(task.Action))
	return nil
}

func (s *Scheduler) run(task ScheduledTask, st *taskState, fn func(context.Context) error) {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(parent, s.taskTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	st.status.Runs++
	st.status.LastRun = start
	st.status.LastError = ""
	if err != nil {
		st.status.Failures++
		st.status.LastError = err.Error()
	}
	if task.OneShot {
		delete(s.tasks, task.Name)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("maintenance task failed", "task", task.Name, "error", err, "duration", elapsed)
	} else {
		s.logger.Debug("maintenance task done", "task", task.Name, "duration", elapsed)
	}
	if task.OneShot {
		s.cron.Remove(st.id)
	}
}

// NextRun returns when task fires next, or nil for an unknown task or a
// scheduler that has not started.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.Lock()
	st, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	entry := s.cron.Entry(st.id)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}

// Status returns a snapshot of every scheduled task, sorted by name.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, st := range s.tasks {
		out = append(out, st.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start runs the scheduler until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.running = true
	return nil
}

// Stop cancels in-flight jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	// Jobs take s.mu when they finish.
	<-s.cron.Stop().Done()
	return nil
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule accepts a cron expression or a positive duration.
func ParseSchedule(spec string) (cron.Schedule, error) {
	if spec == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	if sched, err := scheduleParser.Parse(spec); err == nil {
		return sched, nil
	}
	d, err := time.ParseDuration(spec)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", spec)
	}
	if d <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", spec)
	}
	return every(d), nil
}

// every fires at a fixed interval; cron.Every rounds to whole seconds.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

// cronLogger routes robfig/cron's internal logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
