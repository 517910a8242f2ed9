package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultRunTimeout   = 60 * time.Second
	DefaultPollInterval = time.Second
)

type RunRetriever interface {
	RetrieveRun(ctx context.Context, threadId, runId string) (ThreadRun, error)
}

// RunPoller waits for runs to reach a terminal state by polling at a fixed
// interval until a wall-clock timeout. It never cancels runs itself.
type RunPoller struct {
	client   RunRetriever
	Timeout  time.Duration
	Interval time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRunPoller(client RunRetriever, timeout, interval time.Duration) *RunPoller {
	return &RunPoller{
		client:   client,
		Timeout:  timeout,
		Interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitForRunCompletion polls the run until it completes, fails or the
// poller's timeout elapses. A nil error means the run completed.
//
// Parameters:
//   - threadId: The ID of the thread the run belongs to.
//   - runId: The ID of the thread run to wait for.
//
// Returns:
//   - ThreadRun: The last observed state of the run.
//   - error: The retrieval error, a RunStatusError for failed, cancelled or
//     expired runs, or a RunTimeoutError when the timeout elapsed first.
func (p *RunPoller) WaitForRunCompletion(ctx context.Context, threadId, runId string) (ThreadRun, error) {
	var run ThreadRun
	start := p.now()

	for p.now().Sub(start) < p.Timeout {
		var err error
		run, err = p.client.RetrieveRun(ctx, threadId, runId)
		if err != nil {
			log.Debug(fmt.Sprintf("failed to retrieve run status for %s: %+v", runId, err))
			return run, err
		}

		switch {
		case run.Status == RunStatusCompleted:
			return run, nil
		case run.Status.Terminal():
			log.Warn(fmt.Sprintf("run %s ended with status: %s", runId, run.Status))
			if run.LastError != nil {
				log.Warn(fmt.Sprintf("run %s error: %s: %s", runId, run.LastError.Code, run.LastError.Message))
			}
			return run, RunStatusError{
				RunId:     runId,
				Status:    run.Status,
				LastError: run.LastError,
			}
		}

		log.Debug(fmt.Sprintf("run %s status is %s", runId, run.Status))
		if err := p.sleep(ctx, p.Interval); err != nil {
			return run, err
		}
	}

	log.Warn(fmt.Sprintf("run %s timed out after %s", runId, p.Timeout))
	return run, RunTimeoutError{
		RunId:      runId,
		LastStatus: run.Status,
		Timeout:    p.Timeout,
	}
}
