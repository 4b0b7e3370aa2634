// Package observer holds the UI-facing subscribers of workflow events.
package observer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

type Mood string

const (
	MoodIdle      Mood = "idle"
	MoodWave      Mood = "wave"
	MoodBlink     Mood = "blink"
	MoodConcerned Mood = "concerned"
	MoodDance     Mood = "dance"
)

const (
	MessageGreeting   = "Hi! Upload your health report and I'll walk you through it. 🐧"
	MessageExtracting = "Let me analyze your health report... 📑 This might take a moment!"
	MessageReview     = "Here's what I found in your report 📑 — tweak values then click Run Analysis."
	MessageHealthy    = "Woohoo 🎉 — everything looks good! Keep up the good work."
	MessageAttention  = "Some of your readings need attention. Please talk to a healthcare professional. 🩺"
	MessageFailed     = "Hmm, something went wrong there. Let's try that again."
	MessageReset      = "Ready for another analysis! Upload your health report when you're ready. 📄"
)

type MascotState struct {
	Mood      Mood      `json:"mood"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Mascot tracks the companion character's mood per session.
type Mascot struct {
	logger *slog.Logger

	mu     sync.RWMutex
	states map[string]MascotState
}

func NewMascot(logger *slog.Logger) *Mascot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mascot{logger: logger, states: make(map[string]MascotState)}
}

func (m *Mascot) HandleEvent(_ context.Context, event domain.Event) error {
	if event.Type == domain.EventClosed {
		m.Forget(event.SessionID)
		return nil
	}
	mood, message, ok := reactTo(event)
	if !ok {
		return nil
	}

	state := MascotState{Mood: mood, Message: message, UpdatedAt: event.At}
	m.mu.Lock()
	m.states[event.SessionID] = state
	m.mu.Unlock()

	m.logger.Info("mascot_changed", "session_id", event.SessionID, "mood", mood, "message", message)
	return nil
}

// State returns the current mascot state. Unknown sessions get the idle
// greeting.
func (m *Mascot) State(sessionID string) MascotState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state, ok := m.states[sessionID]; ok {
		return state
	}
	return MascotState{Mood: MoodIdle, Message: MessageGreeting}
}

func (m *Mascot) Forget(sessionID string) {
	m.mu.Lock()
	delete(m.states, sessionID)
	m.mu.Unlock()
}

func reactTo(event domain.Event) (Mood, string, bool) {
	switch event.Type {
	case domain.EventStageChanged:
		switch {
		case event.Stage == domain.StageExtracting:
			return MoodBlink, MessageExtracting, true
		case event.Stage == domain.StageReview && event.From == domain.StageExtracting:
			return MoodWave, MessageReview, true
		case event.Stage == domain.StageUpload && event.Message == "reset":
			return MoodWave, MessageReset, true
		}
	case domain.EventCompleted:
		if event.Stage == domain.StageAnalyzing && event.Result != nil {
			if event.Result.DiseaseDetected() {
				return MoodConcerned, MessageAttention, true
			}
			return MoodDance, MessageHealthy, true
		}
	case domain.EventFailed:
		return MoodConcerned, MessageFailed, true
	}
	return "", "", false
}
