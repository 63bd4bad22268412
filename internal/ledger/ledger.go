// Package ledger exposes the credit ledger as a single atomic mutation
// entrypoint plus read-only queries, layered over the storage backend
// with validation, logging, and metrics.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AgentCommons/agentcommons-identity-go/internal/model"
	"github.com/AgentCommons/agentcommons-identity-go/internal/storage"
)

// ErrUnknownEventType indicates a credit event with an unrecognized type.
var ErrUnknownEventType = errors.New("unknown credit event type")

var validEventTypes = map[model.CreditEventType]struct{}{
	model.CreditEventGrant:      {},
	model.CreditEventDeduction:  {},
	model.CreditEventRefund:     {},
	model.CreditEventAdjustment: {},
}

// Service applies credit events against the backing store. Atomicity is
// the store's contract; this layer validates inputs and records outcomes.
type Service struct {
	store  storage.LedgerStore
	logger *slog.Logger
}

// New creates a ledger Service. A nil logger falls back to slog.Default.
func New(store storage.LedgerStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// RecordCreditEvent applies amount to the agent's balance as one
// indivisible operation and returns the appended ledger row. The balance
// clamps at zero; the row keeps the raw signed delta.
func (s *Service) RecordCreditEvent(ctx context.Context, did string, eventType model.CreditEventType, amount int64, reason, relatedURL string) (model.CreditLedgerEntry, error) {
	if _, ok := validEventTypes[eventType]; !ok {
		return model.CreditLedgerEntry{}, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	if reason == "" {
		return model.CreditLedgerEntry{}, errors.New("reason is required")
	}

	entry, err := s.store.RecordCreditEvent(ctx, did, eventType, amount, reason, relatedURL)
	if err != nil {
		creditEventCount.WithLabelValues(string(eventType), "failure").Inc()
		return model.CreditLedgerEntry{}, err
	}

	creditEventCount.WithLabelValues(string(eventType), "success").Inc()
	s.logger.Info("credit event recorded",
		"did", did,
		"type", eventType,
		"amount", amount,
		"balanceAfter", entry.BalanceAfter,
	)
	return entry, nil
}

// GetCredits returns the agent's current balance.
func (s *Service) GetCredits(ctx context.Context, did string) (int64, error) {
	return s.store.GetCredits(ctx, did)
}

// GetCreditHistory returns up to limit ledger rows, most recent first.
func (s *Service) GetCreditHistory(ctx context.Context, did string, limit int) ([]model.CreditLedgerEntry, error) {
	return s.store.GetCreditHistory(ctx, did, limit)
}
