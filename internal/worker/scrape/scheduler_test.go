package scrape

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/shinkan/internal/pipeline"
)

type mockRunner struct {
	mu      sync.Mutex
	calls   int
	summary pipeline.RunSummary
	err     error
}

func (m *mockRunner) Run(_ context.Context) (pipeline.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.summary, m.err
}

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRepairer struct {
	mu    sync.Mutex
	calls int
}

func (m *mockRepairer) Run(_ context.Context) (pipeline.RepairSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return pipeline.RepairSummary{}, nil
}

func (m *mockRepairer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockJob struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockJob) Run(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *mockJob) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestNewScheduler_DefaultsInterval は0以下のintervalにデフォルト値が適用されることを検証する。
func TestNewScheduler_DefaultsInterval(t *testing.T) {
	s := NewScheduler(&mockRunner{}, &mockRepairer{}, testLogger(), 0, 10*time.Minute)
	if s.interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", s.interval)
	}
	if s.repairInterval != 24*time.Hour {
		t.Errorf("repairInterval = %v, want 24h", s.repairInterval)
	}
}

// TestStart_RunsImmediatelyOnStartup は起動直後に1回スクレイプが実行されることを検証する。
func TestStart_RunsImmediatelyOnStartup(t *testing.T) {
	runner := &mockRunner{}
	s := NewScheduler(runner, &mockRepairer{}, testLogger(), time.Hour, 10*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	// 起動直後の実行を待つ
	deadline := time.After(2 * time.Second)
	for runner.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not run on startup")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}

	if runner.callCount() != 1 {
		t.Errorf("run calls = %d, want 1", runner.callCount())
	}
}

// TestStart_TickerTriggersRepeatedRuns はティッカーにより繰り返し実行されることを検証する。
func TestStart_TickerTriggersRepeatedRuns(t *testing.T) {
	runner := &mockRunner{}
	s := NewScheduler(runner, &mockRepairer{}, testLogger(), 20*time.Millisecond, 10*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runner.callCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected >=3 runs, got %d", runner.callCount())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

// TestStart_RunnerErrorDoesNotStopScheduler は実行エラーでスケジューラが止まらないことを検証する。
func TestStart_RunnerErrorDoesNotStopScheduler(t *testing.T) {
	runner := &mockRunner{err: errors.New("source down")}
	s := NewScheduler(runner, &mockRepairer{}, testLogger(), 20*time.Millisecond, 10*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runner.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected >=2 runs despite errors, got %d", runner.callCount())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

// TestRunMaintenance_RunsRepairAndJobs は修復パスと付随ジョブが実行されることを検証する。
func TestRunMaintenance_RunsRepairAndJobs(t *testing.T) {
	repairer := &mockRepairer{}
	job := &mockJob{}
	s := NewScheduler(&mockRunner{}, repairer, testLogger(), time.Hour, 10*time.Minute)
	s.AddMaintenanceJob(job)

	s.runMaintenance(context.Background())

	if repairer.callCount() != 1 {
		t.Errorf("repair calls = %d, want 1", repairer.callCount())
	}
	if job.callCount() != 1 {
		t.Errorf("job calls = %d, want 1", job.callCount())
	}
}

// TestRunMaintenance_JobErrorDoesNotStopOthers はジョブの失敗が他のジョブを妨げないことを検証する。
func TestRunMaintenance_JobErrorDoesNotStopOthers(t *testing.T) {
	failing := &mockJob{err: errors.New("delete failed")}
	healthy := &mockJob{}
	s := NewScheduler(&mockRunner{}, &mockRepairer{}, testLogger(), time.Hour, 10*time.Minute)
	s.AddMaintenanceJob(failing)
	s.AddMaintenanceJob(healthy)

	s.runMaintenance(context.Background())

	if healthy.callCount() != 1 {
		t.Errorf("healthy job calls = %d, want 1", healthy.callCount())
	}
}
