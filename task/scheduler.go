package task

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Worker is the body of a background task. It should poll sig.Wait(ctx) at
// its loop boundaries and return when that reports false.
type Worker func(ctx context.Context, sig *Signal)

type task struct {
	name   string
	runID  uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
	signal *Signal
}

func (t *task) alive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

type ctxKey struct{}

type ctxValue struct {
	scheduler *Scheduler
	name      string
	runID     uuid.UUID
}

// FromContext returns the task name and run ID carried by a worker context.
func FromContext(ctx context.Context) (name string, runID uuid.UUID, ok bool) {
	v, ok := ctx.Value(ctxKey{}).(ctxValue)
	if !ok {
		return "", uuid.Nil, false
	}
	return v.name, v.runID, true
}

// Scheduler tracks named tasks. All methods are safe for concurrent use.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*task
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[string]*task)}
}

// Start spawns worker under name. If a task with that name is alive it logs
// a warning and returns ErrAlreadyRunning.
func (s *Scheduler) Start(name string, worker Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[name]; ok && t.alive() {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.Start",
			"task":     name,
			"run_id":   t.runID.String(),
		}).Warn("Task already running")
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}

	t := &task{
		name:   name,
		runID:  uuid.New(),
		done:   make(chan struct{}),
		signal: newSignal(),
	}

	ctx := context.WithValue(context.Background(), ctxKey{}, ctxValue{scheduler: s, name: name, runID: t.runID})
	ctx, t.cancel = context.WithCancel(ctx)
	s.tasks[name] = t

	go s.run(ctx, t, worker)

	logrus.WithFields(logrus.Fields{
		"function": "Scheduler.Start",
		"task":     name,
		"run_id":   t.runID.String(),
	}).Info("Task started")
	return nil
}

func (s *Scheduler) run(ctx context.Context, t *task, worker Worker) {
	defer close(t.done)
	defer s.reap(t)
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Scheduler.run",
				"task":     t.name,
				"run_id":   t.runID.String(),
				"panic":    r,
			}).Error("Task panicked")
		}
	}()

	worker(ctx, t.signal)
}

// reap removes t from the table if it is still the registered run.
func (s *Scheduler) reap(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.cancel()
	if s.tasks[t.name] == t {
		delete(s.tasks, t.name)
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.reap",
			"task":     t.name,
			"run_id":   t.runID.String(),
		}).Debug("Task exited")
	}
}

// Stop cancels the named task and waits for its worker to return.
func (s *Scheduler) Stop(name string) error {
	return s.StopContext(context.Background(), name)
}

// StopContext is Stop called on behalf of ctx. When ctx is the context of
// the named task's own worker the call is a no-op and returns ErrSelfStop,
// since joining would deadlock.
func (s *Scheduler) StopContext(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()

	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.Stop",
			"task":     name,
		}).Error("No such task")
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	if v, ok := ctx.Value(ctxKey{}).(ctxValue); ok && v.scheduler == s && v.runID == t.runID {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.Stop",
			"task":     name,
		}).Warn("Task attempted to stop itself")
		return ErrSelfStop
	}

	t.cancel()
	<-t.done

	logrus.WithFields(logrus.Fields{
		"function": "Scheduler.Stop",
		"task":     name,
		"run_id":   t.runID.String(),
	}).Info("Task stopped")
	return nil
}

// StopAll stops every task.
func (s *Scheduler) StopAll() {
	for _, name := range s.ListActive() {
		if err := s.Stop(name); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Scheduler.StopAll",
				"task":     name,
				"error":    err.Error(),
			}).Debug("Task already gone")
		}
	}
}

// Pause closes the named task's gate. Pausing a paused task is a no-op.
func (s *Scheduler) Pause(name string) error {
	t, err := s.lookup("Scheduler.Pause", name)
	if err != nil {
		return err
	}
	if t.signal.pause() {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.Pause",
			"task":     name,
		}).Info("Task paused")
	}
	return nil
}

// Resume reopens the named task's gate.
func (s *Scheduler) Resume(name string) error {
	t, err := s.lookup("Scheduler.Resume", name)
	if err != nil {
		return err
	}
	if t.signal.resume() {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.Resume",
			"task":     name,
		}).Info("Task resumed")
	}
	return nil
}

func (s *Scheduler) lookup(function, name string) (*task, error) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()

	if !ok || !t.alive() {
		logrus.WithFields(logrus.Fields{
			"function": function,
			"task":     name,
		}).Error("No such task")
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return t, nil
}

// IsRunning reports whether the named task is alive.
func (s *Scheduler) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	return ok && t.alive()
}

// IsPaused reports whether the named task is alive and paused.
func (s *Scheduler) IsPaused(name string) bool {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	return ok && t.alive() && t.signal.Paused()
}

// ListActive returns the names of alive tasks in sorted order.
func (s *Scheduler) ListActive() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name, t := range s.tasks {
		if t.alive() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
