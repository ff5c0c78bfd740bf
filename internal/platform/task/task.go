// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package task provides a detached background task primitive.

Drift checks and stale-while-revalidate refreshes are scheduled from inside
request handlers but must outlive the request: the runner hands each task a
fresh deadline-bound context that is not derived from the request context,
so client disconnects never cancel cache maintenance.

Failures inside tasks are logged and swallowed. A panicking task never takes
the process down.
*/
package task

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Runner schedules named, detached background tasks.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a Runner whose tasks each get a context bounded by timeout.
func NewRunner(logger *slog.Logger, timeout time.Duration) *Runner {
	return &Runner{
		logger:  logger,
		timeout: timeout,
	}
}

// Go schedules fn on its own goroutine with a detached, deadline-bound context.
// After Shutdown has been called, new tasks are dropped and logged.
func (runner *Runner) Go(name string, fn func(ctx context.Context)) {
	runner.mu.Lock()
	if runner.closed {
		runner.mu.Unlock()
		runner.logger.Warn("task_dropped_after_shutdown", slog.String("task", name))
		return
	}
	runner.wg.Add(1)
	runner.mu.Unlock()

	go func() {
		defer runner.wg.Done()
		defer func() {
			if recovered := recover(); recovered != nil {
				stackTrace := make([]byte, 2048)
				length := runtime.Stack(stackTrace, false)
				runner.logger.Error("task_panic_recovered",
					slog.String("task", name),
					slog.Any("error", recovered),
					slog.String("stack", string(stackTrace[:length])),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), runner.timeout)
		defer cancel()

		fn(ctx)
	}()
}

// Detach returns a deadline-bound context with the runner's timeout that is
// not derived from any request context. It is for synchronous work whose
// result is shared across requests, where the initiating request's
// cancellation must not fail the others.
func (runner *Runner) Detach() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), runner.timeout)
}

// Shutdown stops accepting new tasks and waits up to timeout for in-flight
// tasks to finish. It returns false if the wait deadline expired first.
func (runner *Runner) Shutdown(timeout time.Duration) bool {
	runner.mu.Lock()
	runner.closed = true
	runner.mu.Unlock()

	done := make(chan struct{})
	go func() {
		runner.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		runner.logger.Warn("task_drain_timed_out", slog.Duration("timeout", timeout))
		return false
	}
}

// Wait blocks until all currently scheduled tasks have finished.
// It exists for deterministic tests; production code uses Shutdown.
func (runner *Runner) Wait() {
	runner.wg.Wait()
}
