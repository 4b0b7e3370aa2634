package observer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

const DefaultToastHistory = 10

type Toast struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     string    `json:"variant"`
	At          time.Time `json:"at"`
}

const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Toaster keeps the most recent notifications of each session.
type Toaster struct {
	logger *slog.Logger
	limit  int

	mu     sync.RWMutex
	toasts map[string][]Toast
}

func NewToaster(limit int, logger *slog.Logger) *Toaster {
	if limit <= 0 {
		limit = DefaultToastHistory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Toaster{logger: logger, limit: limit, toasts: make(map[string][]Toast)}
}

func (t *Toaster) HandleEvent(_ context.Context, event domain.Event) error {
	if event.Type == domain.EventClosed {
		t.Forget(event.SessionID)
		return nil
	}
	toast, ok := toastFor(event)
	if !ok {
		return nil
	}
	toast.At = event.At

	t.mu.Lock()
	list := append(t.toasts[event.SessionID], toast)
	if len(list) > t.limit {
		list = list[len(list)-t.limit:]
	}
	t.toasts[event.SessionID] = list
	t.mu.Unlock()

	t.logger.Info("toast_shown", "session_id", event.SessionID, "title", toast.Title, "variant", toast.Variant)
	return nil
}

// Recent returns the session's notifications, oldest first.
func (t *Toaster) Recent(sessionID string) []Toast {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Toast, len(t.toasts[sessionID]))
	copy(out, t.toasts[sessionID])
	return out
}

func (t *Toaster) Forget(sessionID string) {
	t.mu.Lock()
	delete(t.toasts, sessionID)
	t.mu.Unlock()
}

func toastFor(event domain.Event) (Toast, bool) {
	switch event.Type {
	case domain.EventCompleted:
		switch event.Stage {
		case domain.StageExtracting:
			return Toast{Title: "Metrics Extracted", Description: "Review the values, then run the analysis.", Variant: VariantDefault}, true
		case domain.StageAnalyzing:
			if event.Result == nil {
				return Toast{}, false
			}
			return Toast{
				Title:       event.Result.Status,
				Description: fmt.Sprintf("%d%% Confidence", event.Result.Confidence),
				Variant:     VariantDefault,
			}, true
		}
	case domain.EventFailed:
		title := "Something Went Wrong"
		switch event.Stage {
		case domain.StageExtracting:
			title = "Extraction Failed"
		case domain.StageAnalyzing:
			title = "Analysis Failed"
		}
		return Toast{Title: title, Description: event.Message, Variant: VariantDestructive}, true
	case domain.EventExported:
		return Toast{
			Title:       "Export Started",
			Description: fmt.Sprintf("Your health report is being prepared as %s.", strings.ToUpper(string(event.Format))),
			Variant:     VariantDefault,
		}, true
	}
	return Toast{}, false
}
