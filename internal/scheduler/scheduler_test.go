package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRunDueHonoursIntervals(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	s := New(clock)
	ctx := context.Background()

	var fast, slow int
	s.Register("fast", time.Minute, func(context.Context) error { fast++; return nil })
	s.Register("slow", 5*time.Minute, func(context.Context) error { slow++; return nil })

	if ran := s.RunDue(ctx, clock.Now()); len(ran) != 2 {
		t.Fatalf("expected both jobs due at start, ran %v", ran)
	}
	if ran := s.RunDue(ctx, clock.Now()); len(ran) != 0 {
		t.Fatalf("nothing should be due again immediately, ran %v", ran)
	}

	for i := 0; i < 5; i++ {
		clock.Advance(time.Minute)
		s.RunDue(ctx, clock.Now())
	}
	if fast != 6 || slow != 2 {
		t.Fatalf("fast ran %d times, slow %d; want 6 and 2", fast, slow)
	}
}

func TestStatusTracksErrors(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	s := New(clock)
	boom := errors.New("backend unreachable")
	fail := true
	s.Register("health", 30*time.Second, func(context.Context) error {
		if fail {
			return boom
		}
		return nil
	})

	s.RunDue(context.Background(), clock.Now())
	st := s.Statuses()[0]
	if st.State != JobError || !errors.Is(st.Error, boom) {
		t.Fatalf("status after failure = %+v", st)
	}
	if !st.NextRun.Equal(clock.Now().Add(30 * time.Second)) {
		t.Fatalf("next run = %v", st.NextRun)
	}

	fail = false
	if err := s.RunNow(context.Background(), "health"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	st = s.Statuses()[0]
	if st.State != JobIdle || st.Error != nil || !st.LastRun.Equal(clock.Now()) {
		t.Fatalf("status after recovery = %+v", st)
	}

	if err := s.RunNow(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for unknown job")
	}
}

func TestStartRunsImmediatelyAndReports(t *testing.T) {
	s := New(nil)
	ran := make(chan struct{}, 4)
	s.Register("reminders", time.Hour, func(context.Context) error {
		ran <- struct{}{}
		return nil
	})

	cmd := s.Start()
	defer s.Stop()
	if cmd == nil {
		t.Fatalf("Start returned nil command")
	}
	if s.Start() != nil {
		t.Fatalf("second Start should be a no-op")
	}

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("job did not run on start")
	}
	msg, ok := cmd().(ResultMsg)
	if !ok || msg.Job != "reminders" || msg.Error != nil {
		t.Fatalf("unexpected result message %#v", msg)
	}

	s.Trigger("reminders")
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("triggered job did not run")
	}
}
