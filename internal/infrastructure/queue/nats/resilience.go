package nats

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/resilience"
)

const operationPublish = resilience.OperationRelayPublish

// Connection-level failures; the client reconnects on its own.
var transientNATSErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
}

// Problems with the event itself. Retrying cannot help and they say nothing
// about broker health.
var rejectedNATSErrors = []error{
	nats.ErrMaxPayload,
	nats.ErrBadSubject,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) || matchesAny(err, transientNATSErrors) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if matchesAny(err, rejectedNATSErrors) {
		return resilience.ErrorClassification{}
	}
	return resilience.ClassifyDomainError(err)
}

// publishError maps a failed publish onto the domain error kinds the event
// bus and HTTP layer understand.
func publishError(subject string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if matchesAny(err, rejectedNATSErrors) {
		return domain.WrapError(domain.ErrInvalidInput, operationPublish, fmt.Errorf("subject=%s: %w", subject, err))
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operationPublish, fmt.Errorf("subject=%s: %w", subject, err))
	}
	return err
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
