// Package storage provides interfaces and implementations for persistent
// storage of agent records, the replay cache, and the credit ledger.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/AgentCommons/agentcommons-identity-go/internal/model"
)

// Standard error values used across storage implementations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAgentNotFound indicates a ledger operation referenced an
	// unregistered agent DID.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrDuplicateSignature indicates the signature hash already exists in
	// the replay cache; the verification pipeline reports this as replay.
	ErrDuplicateSignature = errors.New("duplicate signature")
	// ErrConflict indicates the record already exists.
	ErrConflict = errors.New("conflict")
)

// AgentStore persists registered agent identities and their denormalized
// credit balance.
type AgentStore interface {
	// CreateAgent registers a new agent. Returns ErrConflict when the DID
	// is already registered.
	CreateAgent(ctx context.Context, agent model.Agent) error
	// GetAgent retrieves an agent by DID. Returns ErrAgentNotFound when
	// the DID is not registered.
	GetAgent(ctx context.Context, did string) (model.Agent, error)
}

// ReplayStore is a content-addressed record of previously accepted
// signatures. Insert-if-absent on the signature hash must be atomic; the
// primary-key uniqueness check is the replay defense, the sweep is only
// storage reclamation.
type ReplayStore interface {
	// InsertSignature records a signature hash. Returns
	// ErrDuplicateSignature when the hash was already recorded.
	InsertSignature(ctx context.Context, entry model.ReplayEntry) error
	// SweepExpired deletes entries inserted before the cutoff and reports
	// how many were removed.
	SweepExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// LedgerStore applies balance-changing events. RecordCreditEvent is a
// single atomic unit per agent: the balance read-modify-write and the
// ledger append either both happen or neither does, and concurrent events
// against the same agent are serialized. Events against different agents
// do not block each other.
type LedgerStore interface {
	// RecordCreditEvent applies amount to the agent's balance, clamped at
	// zero, and appends a ledger row carrying the raw delta and the
	// post-event balance. Returns ErrAgentNotFound for unknown DIDs.
	RecordCreditEvent(ctx context.Context, did string, eventType model.CreditEventType, amount int64, reason, relatedURL string) (model.CreditLedgerEntry, error)
	// GetCredits returns the agent's current balance.
	GetCredits(ctx context.Context, did string) (int64, error)
	// GetCreditHistory returns up to limit ledger rows for the agent, most
	// recent first. A non-positive limit means no limit. Returns
	// ErrAgentNotFound when the DID is not registered; a registered agent
	// with no events yields an empty history.
	GetCreditHistory(ctx context.Context, did string, limit int) ([]model.CreditLedgerEntry, error)
}

// Store aggregates all persistence capabilities required by the service.
type Store interface {
	AgentStore
	ReplayStore
	LedgerStore
}
