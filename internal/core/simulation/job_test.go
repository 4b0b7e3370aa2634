package simulation

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSequenceExtractionSchedule(t *testing.T) {
	got := Schedule{Step: 10}.Sequence()
	want := []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected sequence: %v", got)
	}
}

func TestSequenceAnalysisScheduleClampsLastStep(t *testing.T) {
	got := Schedule{Step: 12}.Sequence()
	want := []int{12, 24, 36, 48, 60, 72, 84, 96, 100}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected sequence: %v", got)
	}
}

func TestJobEmitsIncreasingProgressThenDone(t *testing.T) {
	var (
		mu     sync.Mutex
		ticks  []int
		doneAt int
	)
	job := Start(context.Background(), Schedule{Step: 12, Interval: time.Millisecond}, func(p int) bool {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, p)
		return true
	}, func(context.Context) {
		mu.Lock()
		defer mu.Unlock()
		doneAt = len(ticks)
	})
	job.Wait()

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(ticks, Schedule{Step: 12}.Sequence()) {
		t.Fatalf("unexpected ticks: %v", ticks)
	}
	if doneAt != len(ticks) {
		t.Fatalf("done must follow the last tick, ran after %d of %d", doneAt, len(ticks))
	}
}

func TestJobCancelStopsTicks(t *testing.T) {
	var (
		mu    sync.Mutex
		ticks int
	)
	first := make(chan struct{})
	done := false
	job := Start(context.Background(), Schedule{Step: 1, Interval: time.Millisecond}, func(int) bool {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		if ticks == 1 {
			close(first)
		}
		return true
	}, func(context.Context) {
		mu.Lock()
		defer mu.Unlock()
		done = true
	})

	<-first
	job.Cancel()
	job.Wait()

	mu.Lock()
	seen := ticks
	mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if ticks != seen {
		t.Fatalf("ticks delivered after cancel: %d -> %d", seen, ticks)
	}
	if done {
		t.Fatalf("done callback must not run after cancel")
	}
}

func TestJobStopsWhenTickRefuses(t *testing.T) {
	calls := 0
	job := Start(context.Background(), Schedule{Step: 10, Interval: time.Millisecond}, func(int) bool {
		calls++
		return false
	}, func(context.Context) {
		t.Errorf("done must not run when a tick refuses")
	})
	job.Wait()

	if calls != 1 {
		t.Fatalf("expected a single tick, got %d", calls)
	}
}
