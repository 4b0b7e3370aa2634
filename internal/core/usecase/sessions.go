package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/ports"
)

type SessionOptions struct {
	MaxSessions int
	IdleTimeout time.Duration
}

type sessionEntry struct {
	controller *WorkflowController
	lastSeen   time.Time
}

// SessionRegistry keeps one WorkflowController per UI session.
type SessionRegistry struct {
	deps WorkflowDeps
	opts SessionOptions
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionRegistry(deps WorkflowDeps, opts SessionOptions) *SessionRegistry {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &SessionRegistry{
		deps:     deps,
		opts:     opts,
		now:      now,
		sessions: make(map[string]*sessionEntry),
	}
}

func (r *SessionRegistry) Create(ctx context.Context) (ports.WorkflowSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.opts.MaxSessions > 0 && len(r.sessions) >= r.opts.MaxSessions {
		r.mu.Unlock()
		r.Sweep()
		r.mu.Lock()
	}
	if r.opts.MaxSessions > 0 && len(r.sessions) >= r.opts.MaxSessions {
		r.mu.Unlock()
		return nil, domain.WrapError(domain.ErrSessionLimit, "create session", fmt.Errorf("max=%d", r.opts.MaxSessions))
	}

	id := uuid.NewString()
	controller := NewWorkflowController(id, r.deps)
	r.sessions[id] = &sessionEntry{controller: controller, lastSeen: r.now()}
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger().Info("workflow_session_created", "session_id", id, "sessions", count)
	return controller, nil
}

func (r *SessionRegistry) Get(id string) (ports.WorkflowSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", id))
	}
	entry.lastSeen = r.now()
	return entry.controller, nil
}

func (r *SessionRegistry) Close(id string) error {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "close session", fmt.Errorf("id=%s", id))
	}
	r.closeController(entry.controller)
	return nil
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than IdleTimeout.
func (r *SessionRegistry) Sweep() int {
	if r.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.opts.IdleTimeout)

	r.mu.Lock()
	var expired []*WorkflowController
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry.controller)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, controller := range expired {
		r.closeController(controller)
	}
	if len(expired) > 0 {
		r.logger().Info("workflow_sessions_expired", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for id, entry := range r.sessions {
		entries = append(entries, entry)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, entry := range entries {
		r.closeController(entry.controller)
	}
}

// closeController ends the session. Observers learn about it from the
// controller's closed event, which queues behind everything it published.
func (r *SessionRegistry) closeController(controller *WorkflowController) {
	controller.Close()
}

func (r *SessionRegistry) logger() *slog.Logger {
	if r.deps.Logger != nil {
		return r.deps.Logger
	}
	return slog.Default()
}
