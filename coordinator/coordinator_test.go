package coordinator_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/chrono/coordinator"
	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/ext"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/job"
	"github.com/xraph/chrono/progress"
	"github.com/xraph/chrono/retry"
	"github.com/xraph/chrono/schedule"
)

// fakeExecStore records appended and updated execution records.
type fakeExecStore struct {
	mu        sync.Mutex
	appended  []*execution.Record
	updated   []*execution.Record
	appendErr error
}

func (f *fakeExecStore) AppendExecution(_ context.Context, rec *execution.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	cp := *rec
	f.appended = append(f.appended, &cp)
	return nil
}

func (f *fakeExecStore) UpdateExecution(_ context.Context, rec *execution.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.updated = append(f.updated, &cp)
	return nil
}

func (f *fakeExecStore) GetExecution(context.Context, id.ExecutionID) (*execution.Record, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeExecStore) ListExecutions(context.Context, id.ScheduleID, int) ([]*execution.Record, error) {
	return nil, nil
}

func (f *fakeExecStore) lastUpdate() *execution.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updated) == 0 {
		return nil
	}
	return f.updated[len(f.updated)-1]
}

// hookSpy counts lifecycle hook invocations.
type hookSpy struct {
	mu        sync.Mutex
	started   int
	retrying  int
	completed int
	failed    int
}

func (h *hookSpy) Name() string { return "spy" }

func (h *hookSpy) OnExecutionStarted(context.Context, *execution.Record) error {
	h.mu.Lock()
	h.started++
	h.mu.Unlock()
	return nil
}

func (h *hookSpy) OnExecutionRetrying(context.Context, *execution.Record, int, time.Duration) error {
	h.mu.Lock()
	h.retrying++
	h.mu.Unlock()
	return nil
}

func (h *hookSpy) OnExecutionCompleted(context.Context, *execution.Record, time.Duration) error {
	h.mu.Lock()
	h.completed++
	h.mu.Unlock()
	return nil
}

func (h *hookSpy) OnExecutionFailed(context.Context, *execution.Record, error) error {
	h.mu.Lock()
	h.failed++
	h.mu.Unlock()
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fastPolicy keeps retry sleeps negligible for tests.
func fastPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Factor:      2,
	}
}

func testDef() *schedule.Definition {
	return &schedule.Definition{
		ID:         id.NewScheduleID(),
		Name:       "test",
		Expression: "* * * * *",
		Enabled:    true,
	}
}

func TestExecute_Success(t *testing.T) {
	store := &fakeExecStore{}
	tracker := progress.NewTracker(nil)
	spy := &hookSpy{}
	reg := ext.NewRegistry(quietLogger())
	reg.Register(spy)

	runner := job.RunnerFunc(func(context.Context, []byte) error { return nil })
	c := coordinator.New(runner, store, tracker, reg, quietLogger())

	def := testDef()
	rec, err := c.Execute(context.Background(), def, execution.TriggerTimer)
	if err != nil {
		t.Fatalf("Execute returned %v, want nil", err)
	}

	if rec.Status != execution.StatusSucceeded {
		t.Errorf("status = %q, want %q", rec.Status, execution.StatusSucceeded)
	}
	if rec.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", rec.Attempts)
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if rec.ScheduleID != def.ID {
		t.Errorf("schedule ID = %v, want %v", rec.ScheduleID, def.ID)
	}

	if len(store.appended) != 1 {
		t.Fatalf("appended %d records, want 1", len(store.appended))
	}
	if store.appended[0].Status != execution.StatusRunning {
		t.Errorf("appended status = %q, want %q", store.appended[0].Status, execution.StatusRunning)
	}
	last := store.lastUpdate()
	if last == nil || last.Status != execution.StatusSucceeded {
		t.Errorf("terminal update = %+v, want succeeded", last)
	}

	state := tracker.Get(rec.OperationID)
	if state == nil || state.Stage != progress.StageCompleted {
		t.Errorf("progress stage = %+v, want completed", state)
	}
	if spy.started != 1 || spy.completed != 1 {
		t.Errorf("hooks: started=%d completed=%d, want 1/1", spy.started, spy.completed)
	}
}

func TestExecute_TransientErrorsThenSuccess(t *testing.T) {
	store := &fakeExecStore{}
	tracker := progress.NewTracker(nil)
	spy := &hookSpy{}
	reg := ext.NewRegistry(quietLogger())
	reg.Register(spy)

	var calls int32
	runner := job.RunnerFunc(func(context.Context, []byte) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	c := coordinator.New(runner, store, tracker, reg, quietLogger(),
		coordinator.WithPolicy(fastPolicy(5)))

	rec, err := c.Execute(context.Background(), testDef(), execution.TriggerTimer)
	if err != nil {
		t.Fatalf("Execute returned %v, want nil", err)
	}
	if rec.Status != execution.StatusSucceeded {
		t.Errorf("status = %q, want succeeded", rec.Status)
	}
	if rec.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", rec.Attempts)
	}
	if spy.retrying != 2 {
		t.Errorf("retrying hooks = %d, want 2", spy.retrying)
	}
}

func TestExecute_FatalErrorFailsImmediately(t *testing.T) {
	store := &fakeExecStore{}
	tracker := progress.NewTracker(nil)
	spy := &hookSpy{}
	reg := ext.NewRegistry(quietLogger())
	reg.Register(spy)

	fatal := errors.New("permission denied")
	runner := job.RunnerFunc(func(context.Context, []byte) error { return fatal })
	c := coordinator.New(runner, store, tracker, reg, quietLogger(),
		coordinator.WithPolicy(fastPolicy(5)))

	rec, err := c.Execute(context.Background(), testDef(), execution.TriggerManual)
	if !errors.Is(err, fatal) {
		t.Fatalf("Execute returned %v, want %v", err, fatal)
	}
	if rec.Status != execution.StatusFailed {
		t.Errorf("status = %q, want failed", rec.Status)
	}
	if rec.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", rec.Attempts)
	}
	if rec.LastError != "permission denied" {
		t.Errorf("LastError = %q", rec.LastError)
	}
	if rec.Trigger != execution.TriggerManual {
		t.Errorf("trigger = %q, want manual", rec.Trigger)
	}

	state := tracker.Get(rec.OperationID)
	if state == nil || state.Stage != progress.StageFailed {
		t.Errorf("progress stage = %+v, want failed", state)
	}
	if spy.failed != 1 || spy.completed != 0 {
		t.Errorf("hooks: failed=%d completed=%d, want 1/0", spy.failed, spy.completed)
	}
}

func TestExecute_ExhaustedRetriesReturnLastError(t *testing.T) {
	store := &fakeExecStore{}
	runner := job.RunnerFunc(func(context.Context, []byte) error {
		return errors.New("upstream timeout")
	})
	c := coordinator.New(runner, store, progress.NewTracker(nil),
		ext.NewRegistry(quietLogger()), quietLogger(),
		coordinator.WithPolicy(fastPolicy(3)))

	rec, err := c.Execute(context.Background(), testDef(), execution.TriggerTimer)
	if err == nil || err.Error() != "upstream timeout" {
		t.Fatalf("Execute returned %v, want last error unwrapped", err)
	}
	if rec.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", rec.Attempts)
	}
	if rec.Status != execution.StatusFailed {
		t.Errorf("status = %q, want failed", rec.Status)
	}
}

func TestExecute_PanicIsRecovered(t *testing.T) {
	store := &fakeExecStore{}
	runner := job.RunnerFunc(func(context.Context, []byte) error {
		panic("boom")
	})
	c := coordinator.New(runner, store, progress.NewTracker(nil),
		ext.NewRegistry(quietLogger()), quietLogger())

	rec, err := c.Execute(context.Background(), testDef(), execution.TriggerTimer)
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("Execute returned %v, want panic error", err)
	}
	if rec.Status != execution.StatusFailed {
		t.Errorf("status = %q, want failed", rec.Status)
	}
}

func TestExecute_AppendFailureAbortsRun(t *testing.T) {
	store := &fakeExecStore{appendErr: errors.New("disk full")}
	var calls int32
	runner := job.RunnerFunc(func(context.Context, []byte) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	c := coordinator.New(runner, store, progress.NewTracker(nil),
		ext.NewRegistry(quietLogger()), quietLogger())

	rec, err := c.Execute(context.Background(), testDef(), execution.TriggerTimer)
	if err == nil {
		t.Fatal("Execute returned nil error, want append failure")
	}
	if rec != nil {
		t.Errorf("record = %+v, want nil", rec)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("runner invoked %d times, want 0", calls)
	}
}

func TestExecute_SerializesPerSchedule(t *testing.T) {
	store := &fakeExecStore{}
	var inFlight, maxInFlight int32
	runner := job.RunnerFunc(func(context.Context, []byte) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})
	c := coordinator.New(runner, store, progress.NewTracker(nil),
		ext.NewRegistry(quietLogger()), quietLogger(),
		coordinator.WithConcurrency(8))

	def := testDef()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Execute(context.Background(), def, execution.TriggerTimer); err != nil {
				t.Errorf("Execute: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("max concurrent executions for one schedule = %d, want 1", got)
	}
	if len(store.appended) != 4 {
		t.Errorf("appended %d records, want 4", len(store.appended))
	}
}

func TestExecute_GlobalConcurrencyCap(t *testing.T) {
	store := &fakeExecStore{}
	var inFlight, maxInFlight int32
	runner := job.RunnerFunc(func(context.Context, []byte) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})
	c := coordinator.New(runner, store, progress.NewTracker(nil),
		ext.NewRegistry(quietLogger()), quietLogger(),
		coordinator.WithConcurrency(2))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Execute(context.Background(), testDef(), execution.TriggerTimer); err != nil {
				t.Errorf("Execute: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got > 2 {
		t.Errorf("max concurrent executions = %d, want <= 2", got)
	}
}

func TestNew_NilCollaborators(t *testing.T) {
	store := &fakeExecStore{}
	runner := job.RunnerFunc(func(context.Context, []byte) error { return nil })
	c := coordinator.New(runner, store, nil, nil, quietLogger())

	rec, err := c.Execute(context.Background(), testDef(), execution.TriggerManual)
	if err != nil {
		t.Fatalf("Execute returned %v, want nil", err)
	}
	if rec.Status != execution.StatusSucceeded {
		t.Errorf("status = %q, want succeeded", rec.Status)
	}
}

func TestExecute_SlowScheduleDoesNotStarveOthers(t *testing.T) {
	store := &fakeExecStore{}
	release := make(chan struct{})
	runner := job.RunnerFunc(func(_ context.Context, payload []byte) error {
		if string(payload) == "slow" {
			<-release
		}
		return nil
	})
	c := coordinator.New(runner, store, progress.NewTracker(nil),
		ext.NewRegistry(quietLogger()), quietLogger(),
		coordinator.WithConcurrency(2))

	slow := testDef()
	slow.Payload = []byte("slow")

	// Stack three firings of the slow schedule: one runs, two wait on its
	// lock. The waiters must not hold semaphore slots.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Execute(context.Background(), slow, execution.TriggerTimer)
		}()
	}
	deadline := time.After(time.Second)
	for c.RunningExecutions() != 1 {
		select {
		case <-deadline:
			t.Fatal("slow execution never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	// Let the stacked firings park on the schedule lock.
	time.Sleep(20 * time.Millisecond)

	// An independent schedule must still find a free slot.
	done := make(chan struct{})
	go func() {
		if _, err := c.Execute(context.Background(), testDef(), execution.TriggerTimer); err != nil {
			t.Errorf("Execute: %v", err)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("independent schedule starved by a slow schedule's stacked firings")
	}

	close(release)
	wg.Wait()
}

func TestExecute_CancelledWhileQueued(t *testing.T) {
	store := &fakeExecStore{}
	release := make(chan struct{})
	runner := job.RunnerFunc(func(context.Context, []byte) error {
		<-release
		return nil
	})
	c := coordinator.New(runner, store, progress.NewTracker(nil),
		ext.NewRegistry(quietLogger()), quietLogger(),
		coordinator.WithConcurrency(1))

	// Occupy the only slot.
	started := make(chan struct{})
	go func() {
		close(started)
		c.Execute(context.Background(), testDef(), execution.TriggerTimer)
	}()
	<-started
	// Wait until the first execution is holding its lock.
	deadline := time.After(time.Second)
	for c.RunningExecutions() == 0 {
		select {
		case <-deadline:
			t.Fatal("first execution never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Execute(ctx, testDef(), execution.TriggerTimer)
		errCh <- err
	}()
	// Let the second firing park on the semaphore, then cancel it.
	for c.QueueLength() == 0 {
		select {
		case <-deadline:
			t.Fatal("second execution never queued")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()

	err := <-errCh
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute returned %v, want context.Canceled", err)
	}
	if len(store.appended) != 0 {
		t.Errorf("cancelled firing appended %d records, want 0", len(store.appended))
	}

	close(release)
}

func TestCounts(t *testing.T) {
	store := &fakeExecStore{}
	release := make(chan struct{})
	runner := job.RunnerFunc(func(context.Context, []byte) error {
		<-release
		return nil
	})
	c := coordinator.New(runner, store, progress.NewTracker(nil),
		ext.NewRegistry(quietLogger()), quietLogger(),
		coordinator.WithConcurrency(1))

	if c.RunningExecutions() != 0 || c.QueueLength() != 0 {
		t.Fatalf("fresh coordinator: running=%d queued=%d, want 0/0",
			c.RunningExecutions(), c.QueueLength())
	}
	if _, ok := c.QueuedSince(); ok {
		t.Error("QueuedSince reported a time for an empty queue")
	}

	done := make(chan struct{})
	go func() {
		c.Execute(context.Background(), testDef(), execution.TriggerTimer)
		close(done)
	}()

	deadline := time.After(time.Second)
	for c.RunningExecutions() != 1 {
		select {
		case <-deadline:
			t.Fatal("running count never reached 1")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	queued := make(chan struct{})
	go func() {
		close(queued)
		c.Execute(context.Background(), testDef(), execution.TriggerTimer)
	}()
	<-queued
	for c.QueueLength() != 1 {
		select {
		case <-deadline:
			t.Fatal("queue length never reached 1")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if _, ok := c.QueuedSince(); !ok {
		t.Error("QueuedSince reported empty for a non-empty queue")
	}

	close(release)
	<-done
}
