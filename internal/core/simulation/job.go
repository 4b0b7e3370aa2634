// Package simulation drives bounded, cancellable progress signals on a fixed
// cadence.
package simulation

import (
	"context"
	"time"
)

const MaxProgress = 100

// Schedule describes how a progress signal advances.
type Schedule struct {
	Step     int
	Interval time.Duration
}

// Next advances progress by one step, clamped to MaxProgress.
func (s Schedule) Next(progress int) int {
	next := progress + s.Step
	if next > MaxProgress {
		return MaxProgress
	}
	return next
}

// Sequence lists every value a run of this schedule emits, in order.
func (s Schedule) Sequence() []int {
	if s.Step <= 0 {
		return nil
	}
	var out []int
	for p := 0; p < MaxProgress; {
		p = s.Next(p)
		out = append(out, p)
	}
	return out
}

// TickFunc receives each progress value. Returning false stops the job.
type TickFunc func(progress int) bool

// DoneFunc runs once after the terminal tick, still inside the job.
type DoneFunc func(ctx context.Context)

// Job is one running progress signal.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the job. The job stops when ctx is cancelled, when Cancel is
// called, or after onDone returns.
func Start(parent context.Context, schedule Schedule, onTick TickFunc, onDone DoneFunc) *Job {
	ctx, cancel := context.WithCancel(parent)
	job := &Job{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(job.done)
		defer cancel()

		if schedule.Step <= 0 {
			return
		}
		ticker := time.NewTicker(normalizeInterval(schedule.Interval))
		defer ticker.Stop()

		progress := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				return
			}

			progress = schedule.Next(progress)
			if !onTick(progress) {
				return
			}
			if progress >= MaxProgress {
				if onDone != nil {
					onDone(ctx)
				}
				return
			}
		}
	}()

	return job
}

// Cancel stops the job without waiting for it.
func (j *Job) Cancel() {
	if j == nil {
		return
	}
	j.cancel()
}

// Wait blocks until the job goroutine has exited.
func (j *Job) Wait() {
	if j == nil {
		return
	}
	<-j.done
}

// Done is closed once the job goroutine has exited.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func normalizeInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Millisecond
	}
	return d
}
