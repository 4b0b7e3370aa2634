package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/simulation"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, clock *fakeClock, opts SessionOptions) *SessionRegistry {
	t.Helper()
	schedule := simulation.Schedule{Step: 50, Interval: time.Millisecond}
	r := NewSessionRegistry(WorkflowDeps{
		Extraction: NewExtractionSimulator(&extractorFake{snapshot: domain.DefaultExtractionResult}, schedule, time.Second),
		Analysis:   NewAnalysisEngine(&classifierFake{result: healthyResult()}, schedule, time.Second),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:        clock.Now,
	}, opts)
	t.Cleanup(r.CloseAll)
	return r
}

func TestRegistryCreateGetClose(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newTestRegistry(t, clock, SessionOptions{})

	session, err := r.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.ID() == "" {
		t.Fatalf("expected session id")
	}
	if session.View().Stage != domain.StageUpload {
		t.Fatalf("new session must start in upload")
	}

	got, err := r.Get(session.ID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID() != session.ID() {
		t.Fatalf("unexpected session %s", got.ID())
	}

	if err := r.Close(session.ID()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := r.Get(session.ID()); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := r.Close(session.ID()); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on double close, got %v", err)
	}
	if err := session.Upload(context.Background(), reportPDF()); !domain.IsKind(err, domain.ErrSessionClosed) {
		t.Fatalf("closed session must refuse uploads, got %v", err)
	}
}

func TestRegistrySessionsAreIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	r := newTestRegistry(t, clock, SessionOptions{})

	a, err := r.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	b, err := r.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := a.Upload(context.Background(), reportPDF()); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if b.View().Stage != domain.StageUpload || b.View().Document != nil {
		t.Fatalf("upload leaked into another session: %+v", b.View())
	}
}

func TestRegistryEnforcesLimit(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	r := newTestRegistry(t, clock, SessionOptions{MaxSessions: 2})

	for i := 0; i < 2; i++ {
		if _, err := r.Create(context.Background()); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if _, err := r.Create(context.Background()); !domain.IsKind(err, domain.ErrSessionLimit) {
		t.Fatalf("expected ErrSessionLimit, got %v", err)
	}
}

func TestRegistryLimitReclaimsIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	r := newTestRegistry(t, clock, SessionOptions{MaxSessions: 1, IdleTimeout: time.Minute})

	first, err := r.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	clock.Advance(2 * time.Minute)

	if _, err := r.Create(context.Background()); err != nil {
		t.Fatalf("expected idle session to be reclaimed, got %v", err)
	}
	if _, err := r.Get(first.ID()); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected first session expired, got %v", err)
	}
}

func TestRegistrySweepKeepsActiveSessions(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	r := newTestRegistry(t, clock, SessionOptions{IdleTimeout: time.Minute})

	idle, _ := r.Create(context.Background())
	active, _ := r.Create(context.Background())

	clock.Advance(45 * time.Second)
	if _, err := r.Get(active.ID()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	clock.Advance(30 * time.Second)

	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	if _, err := r.Get(idle.ID()); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected idle session expired, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected one live session, got %d", r.Len())
	}
}

func TestRegistryRunStopsWithContext(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	r := newTestRegistry(t, clock, SessionOptions{IdleTimeout: time.Minute})
	if _, err := r.Create(context.Background()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, time.Millisecond)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for r.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if r.Len() != 0 {
		t.Fatalf("janitor did not expire idle session")
	}
}

func TestRegistryClosePublishesClosedEvent(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	rec := &eventRecorder{}
	schedule := simulation.Schedule{Step: 50, Interval: time.Millisecond}
	r := NewSessionRegistry(WorkflowDeps{
		Extraction: NewExtractionSimulator(&extractorFake{snapshot: domain.DefaultExtractionResult}, schedule, time.Second),
		Analysis:   NewAnalysisEngine(&classifierFake{result: healthyResult()}, schedule, time.Second),
		Publisher:  rec,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:        clock.Now,
	}, SessionOptions{IdleTimeout: time.Minute})
	t.Cleanup(r.CloseAll)

	a, _ := r.Create(context.Background())
	b, _ := r.Create(context.Background())
	if err := r.Close(a.ID()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	clock.Advance(time.Hour)
	r.Sweep()

	var closed []string
	for _, e := range rec.all() {
		if e.Type == domain.EventClosed {
			closed = append(closed, e.SessionID)
		}
	}
	if len(closed) != 2 || closed[0] != a.ID() || closed[1] != b.ID() {
		t.Fatalf("unexpected closed events: %v", closed)
	}
}
