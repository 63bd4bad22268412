package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AgentCommons/agentcommons-identity-go/internal/model"
)

// memory is an in-process implementation of Store. Useful for tests,
// demos, or as a default ephemeral backend. Agent balances are serialized
// per DID so concurrent credit events against different agents do not
// block each other.
type memory struct {
	mu      sync.RWMutex
	agents  map[string]model.Agent
	ledger  map[string][]model.CreditLedgerEntry
	replays map[string]model.ReplayEntry

	lockMu     sync.Mutex
	agentLocks map[string]*sync.Mutex

	clock func() time.Time
}

// NewMemory returns a concurrency-safe in-memory implementation of Store.
func NewMemory() Store {
	return &memory{
		agents:     make(map[string]model.Agent),
		ledger:     make(map[string][]model.CreditLedgerEntry),
		replays:    make(map[string]model.ReplayEntry),
		agentLocks: make(map[string]*sync.Mutex),
		clock:      time.Now,
	}
}

// agentLock returns the per-DID mutex, creating it on first use.
func (m *memory) agentLock(did string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.agentLocks[did]
	if !ok {
		l = &sync.Mutex{}
		m.agentLocks[did] = l
	}
	return l
}

// CreateAgent registers a new agent keyed by DID.
func (m *memory) CreateAgent(ctx context.Context, agent model.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.agents[agent.DID]; exists {
		return ErrConflict
	}
	if agent.Status == "" {
		agent.Status = model.AgentStatusActive
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = m.clock().UTC()
	}
	m.agents[agent.DID] = agent
	return nil
}

// GetAgent retrieves an agent by DID.
func (m *memory) GetAgent(ctx context.Context, did string) (model.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[did]
	if !ok {
		return model.Agent{}, ErrAgentNotFound
	}
	return agent, nil
}

// InsertSignature records a signature hash, failing on duplicates. The
// check and insert happen under one lock so the uniqueness guarantee
// matches the database unique constraint.
func (m *memory) InsertSignature(ctx context.Context, entry model.ReplayEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.replays[entry.SignatureHash]; exists {
		return ErrDuplicateSignature
	}
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = m.clock().UTC()
	}
	m.replays[entry.SignatureHash] = entry
	return nil
}

// SweepExpired removes replay entries inserted before the cutoff.
func (m *memory) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for hash, entry := range m.replays {
		if entry.InsertedAt.Before(cutoff) {
			delete(m.replays, hash)
			removed++
		}
	}
	return removed, nil
}

// RecordCreditEvent applies a balance change and appends a ledger row as
// one unit. The per-agent lock serializes concurrent events for the same
// DID without blocking events for other agents.
func (m *memory) RecordCreditEvent(ctx context.Context, did string, eventType model.CreditEventType, amount int64, reason, relatedURL string) (model.CreditLedgerEntry, error) {
	lock := m.agentLock(did)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	agent, ok := m.agents[did]
	m.mu.RUnlock()
	if !ok {
		return model.CreditLedgerEntry{}, ErrAgentNotFound
	}

	newBalance := agent.Credits + amount
	if newBalance < 0 {
		newBalance = 0
	}
	agent.Credits = newBalance

	entry := model.CreditLedgerEntry{
		ID:           uuid.NewString(),
		AgentDID:     did,
		Type:         eventType,
		Amount:       amount,
		BalanceAfter: newBalance,
		Reason:       reason,
		RelatedURL:   relatedURL,
		CreatedAt:    m.clock().UTC(),
	}

	// Balance update and ledger append land under one write lock so a
	// reader never observes one without the other.
	m.mu.Lock()
	m.agents[did] = agent
	m.ledger[did] = append(m.ledger[did], entry)
	m.mu.Unlock()
	return entry, nil
}

// GetCredits returns the agent's current balance.
func (m *memory) GetCredits(ctx context.Context, did string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[did]
	if !ok {
		return 0, ErrAgentNotFound
	}
	return agent.Credits, nil
}

// GetCreditHistory returns up to limit ledger rows, most recent first.
func (m *memory) GetCreditHistory(ctx context.Context, did string, limit int) ([]model.CreditLedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.agents[did]; !ok {
		return nil, ErrAgentNotFound
	}
	rows := m.ledger[did]
	out := make([]model.CreditLedgerEntry, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, rows[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
