package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRetriever struct {
	statuses []RunStatus
	err      error
	calls    int
}

func (r *fakeRetriever) RetrieveRun(ctx context.Context, threadId, runId string) (ThreadRun, error) {
	r.calls++
	if r.err != nil {
		return ThreadRun{}, r.err
	}
	status := r.statuses[min(r.calls-1, len(r.statuses)-1)]
	run := ThreadRun{Id: runId, ThreadId: threadId, Status: status}
	if status == RunStatusFailed {
		run.LastError = &RunError{Code: "server_error", Message: "something broke"}
	}
	return run, nil
}

func newTestPoller(retriever RunRetriever, timeout, interval time.Duration) (*RunPoller, *fakeClock) {
	poller := NewRunPoller(retriever, timeout, interval)
	clock := newFakeClock()
	clock.install(poller)
	return poller, clock
}

func TestWaitForRunCompletion(t *testing.T) {
	retriever := &fakeRetriever{
		statuses: []RunStatus{RunStatusQueued, RunStatusInProgress, RunStatusCompleted},
	}
	poller, clock := newTestPoller(retriever, 60*time.Second, time.Second)

	run, err := poller.WaitForRunCompletion(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatal(err)
	}

	if run.Status != RunStatusCompleted {
		t.Errorf("got: %s, want: %s", run.Status, RunStatusCompleted)
	}
	if retriever.calls != 3 {
		t.Errorf("got: %d polls, want: %d", retriever.calls, 3)
	}
	if clock.elapsed() != 2*time.Second {
		t.Errorf("got: %s elapsed, want: %s", clock.elapsed(), 2*time.Second)
	}
}

// TestWaitForRunCompletionTerminalFailure checks that a failed run is
// reported at the first observation without waiting out the timeout.
func TestWaitForRunCompletionTerminalFailure(t *testing.T) {
	tests := []struct {
		name   string
		status RunStatus
	}{
		{name: "failed", status: RunStatusFailed},
		{name: "cancelled", status: RunStatusCancelled},
		{name: "expired", status: RunStatusExpired},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			retriever := &fakeRetriever{statuses: []RunStatus{test.status}}
			poller, clock := newTestPoller(retriever, 60*time.Second, time.Second)

			_, err := poller.WaitForRunCompletion(context.Background(), "thread_1", "run_1")

			var statusErr RunStatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected RunStatusError, got %+v", err)
			}
			if statusErr.Status != test.status {
				t.Errorf("got: %s, want: %s", statusErr.Status, test.status)
			}
			if retriever.calls != 1 {
				t.Errorf("got: %d polls, want: %d", retriever.calls, 1)
			}
			if clock.elapsed() != 0 {
				t.Errorf("expected no sleep, slept %s", clock.elapsed())
			}
		})
	}
}

// TestWaitForRunCompletionKeepsPollingNonTerminal checks that statuses
// outside the terminal set are polled past.
func TestWaitForRunCompletionKeepsPollingNonTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status RunStatus
	}{
		{name: "incomplete", status: RunStatusIncomplete},
		{name: "requires action", status: RunStatusRequiresAction},
		{name: "cancelling", status: RunStatusCancelling},
		{name: "unknown", status: RunStatus("paused")},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			retriever := &fakeRetriever{statuses: []RunStatus{test.status, RunStatusCompleted}}
			poller, clock := newTestPoller(retriever, 60*time.Second, time.Second)

			run, err := poller.WaitForRunCompletion(context.Background(), "thread_1", "run_1")
			if err != nil {
				t.Fatal(err)
			}
			if run.Status != RunStatusCompleted {
				t.Errorf("got: %s, want: %s", run.Status, RunStatusCompleted)
			}
			if retriever.calls != 2 {
				t.Errorf("got: %d polls, want: %d", retriever.calls, 2)
			}
			if clock.elapsed() != time.Second {
				t.Errorf("got: %s elapsed, want: %s", clock.elapsed(), time.Second)
			}
		})
	}
}

func TestWaitForRunCompletionLastError(t *testing.T) {
	retriever := &fakeRetriever{statuses: []RunStatus{RunStatusInProgress, RunStatusFailed}}
	poller, _ := newTestPoller(retriever, 60*time.Second, time.Second)

	_, err := poller.WaitForRunCompletion(context.Background(), "thread_1", "run_1")

	var statusErr RunStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected RunStatusError, got %+v", err)
	}
	if statusErr.LastError == nil || statusErr.LastError.Code != "server_error" {
		t.Errorf("expected last error to be carried, got %+v", statusErr.LastError)
	}
}

// TestWaitForRunCompletionTimeout checks that a run that never settles is
// given up on once the timeout has elapsed, but no later than one interval
// after it.
func TestWaitForRunCompletionTimeout(t *testing.T) {
	tests := []struct {
		name      string
		timeout   time.Duration
		interval  time.Duration
		wantPolls int
	}{
		{name: "interval divides timeout", timeout: 5 * time.Second, interval: time.Second, wantPolls: 5},
		{name: "interval does not divide timeout", timeout: 2500 * time.Millisecond, interval: time.Second, wantPolls: 3},
		{name: "interval longer than timeout", timeout: time.Second, interval: 3 * time.Second, wantPolls: 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			retriever := &fakeRetriever{statuses: []RunStatus{RunStatusInProgress}}
			poller, clock := newTestPoller(retriever, test.timeout, test.interval)

			run, err := poller.WaitForRunCompletion(context.Background(), "thread_1", "run_1")

			var timeoutErr RunTimeoutError
			if !errors.As(err, &timeoutErr) {
				t.Fatalf("expected RunTimeoutError, got %+v", err)
			}
			if timeoutErr.LastStatus != RunStatusInProgress || run.Status != RunStatusInProgress {
				t.Errorf("got: %s, want: %s", timeoutErr.LastStatus, RunStatusInProgress)
			}
			if retriever.calls != test.wantPolls {
				t.Errorf("got: %d polls, want: %d", retriever.calls, test.wantPolls)
			}
			if elapsed := clock.elapsed(); elapsed < test.timeout || elapsed > test.timeout+test.interval {
				t.Errorf("elapsed %s outside [%s, %s]", elapsed, test.timeout, test.timeout+test.interval)
			}
		})
	}
}

func TestWaitForRunCompletionFetchError(t *testing.T) {
	fetchErr := errors.New("connection refused")
	retriever := &fakeRetriever{err: fetchErr}
	poller, clock := newTestPoller(retriever, 60*time.Second, time.Second)

	_, err := poller.WaitForRunCompletion(context.Background(), "thread_1", "run_1")
	if !errors.Is(err, fetchErr) {
		t.Fatalf("got: %v, want: %v", err, fetchErr)
	}
	if retriever.calls != 1 || clock.elapsed() != 0 {
		t.Errorf("expected a single poll without sleeping, got %d polls and %s", retriever.calls, clock.elapsed())
	}
}

func TestWaitForRunCompletionContextCancelled(t *testing.T) {
	retriever := &fakeRetriever{statuses: []RunStatus{RunStatusQueued}}
	poller := NewRunPoller(retriever, time.Minute, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := poller.WaitForRunCompletion(ctx, "thread_1", "run_1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got: %v, want: %v", err, context.Canceled)
	}
}
