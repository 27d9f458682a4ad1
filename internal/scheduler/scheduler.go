// Package scheduler runs one owned repeating job per background concern.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// JobState is the current state of a job.
type JobState int

const (
	JobIdle JobState = iota
	JobRunning
	JobError
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobError:
		return "error"
	default:
		return "idle"
	}
}

// JobStatus holds the run state of a single job.
type JobStatus struct {
	Name     string
	Interval time.Duration
	State    JobState
	LastRun  time.Time
	NextRun  time.Time
	Error    error
}

// ResultMsg is a tea.Msg sent when a job run completes.
type ResultMsg struct {
	Job   string
	Error error
}

// Func is the work of a job. It should return when ctx ends.
type Func func(ctx context.Context) error

// Clock tells the scheduler what time it is.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// jobTimeout is the maximum time allowed for a single job run.
const jobTimeout = 30 * time.Second

// tickInterval is how often the background loop checks for due jobs.
const tickInterval = time.Second

type job struct {
	name     string
	interval time.Duration
	fn       Func
}

// Scheduler owns a set of jobs, each run at most once per interval. Jobs
// are due immediately after registration. RunDue drives them explicitly;
// Start drives them from a real ticker.
type Scheduler struct {
	clock     Clock
	jobs      []*job
	statuses  map[string]*JobStatus
	resultCh  chan ResultMsg
	triggerCh chan string
	stopCh    chan struct{}
	runMu     sync.Mutex
	mu        sync.Mutex
	running   bool
}

// New creates a scheduler reading time from clock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock
	}
	return &Scheduler{
		clock:     clock,
		statuses:  make(map[string]*JobStatus),
		resultCh:  make(chan ResultMsg, 16),
		triggerCh: make(chan string, 16),
		stopCh:    make(chan struct{}),
	}
}

// Register adds a job. Registering a name twice replaces the earlier job.
func (s *Scheduler) Register(name string, interval time.Duration, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, j := range s.jobs {
		if j.name == name {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			break
		}
	}
	s.jobs = append(s.jobs, &job{name: name, interval: interval, fn: fn})
	s.statuses[name] = &JobStatus{
		Name:     name,
		Interval: interval,
		State:    JobIdle,
	}
}

// RunDue runs, in registration order, every job whose next run is at or
// before now, and returns their names.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) []string {
	s.mu.Lock()
	var due []*job
	for _, j := range s.jobs {
		if st := s.statuses[j.name]; !st.NextRun.After(now) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	ran := make([]string, 0, len(due))
	for _, j := range due {
		if ctx.Err() != nil {
			break
		}
		s.runJob(ctx, j)
		ran = append(ran, j.name)
	}
	return ran
}

// RunNow runs the named job immediately, whether or not it is due.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	j := s.find(name)
	if j == nil {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.runJob(ctx, j)
}

func (s *Scheduler) find(name string) *job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.name == name {
			return j
		}
	}
	return nil
}

// Start returns a tea.Cmd that starts the background loop and waits for
// the first job result.
func (s *Scheduler) Start() tea.Cmd {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go s.loop()

	return s.WaitForResult()
}

// Stop halts the background loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopCh)
	s.running = false
}

// Trigger asks the background loop to run the named job now.
func (s *Scheduler) Trigger(name string) {
	select {
	case s.triggerCh <- name:
	default:
		// Channel full; skip to avoid blocking
	}
}

// Statuses returns the status of every job, sorted by name.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	// Everything is due at start.
	s.RunDue(ctx, s.clock.Now())

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunDue(ctx, s.clock.Now())
		case name := <-s.triggerCh:
			if err := s.RunNow(ctx, name); err != nil {
				log.Printf("scheduler: %v", err)
			}
		}
	}
}

// runJob runs one job bounded by jobTimeout, records its status and sends
// a ResultMsg. Runs are serialised.
func (s *Scheduler) runJob(ctx context.Context, j *job) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.setStatus(j.name, JobRunning, nil, time.Time{})

	runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	started := s.clock.Now()
	err := j.fn(runCtx)
	if err != nil {
		log.Printf("scheduler: job %s failed: %v", j.name, err)
		s.setStatus(j.name, JobError, err, started)
	} else {
		s.setStatus(j.name, JobIdle, nil, started)
	}

	s.sendResult(ResultMsg{Job: j.name, Error: err})
	return err
}

func (s *Scheduler) setStatus(name string, state JobState, err error, started time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[name]
	if !ok {
		return
	}
	st.State = state
	if state == JobRunning {
		return
	}
	st.Error = err
	st.LastRun = started
	st.NextRun = started.Add(st.Interval)
}

// sendResult sends a ResultMsg on the result channel without blocking.
func (s *Scheduler) sendResult(msg ResultMsg) {
	select {
	case s.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the scheduler
	}
}

// WaitForResult returns a tea.Cmd that waits for the next job result. Call
// it again after handling a ResultMsg to keep listening.
func (s *Scheduler) WaitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-s.resultCh
		if !ok {
			return nil
		}
		return result
	}
}
