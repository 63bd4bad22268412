package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/AgentCommons/agentcommons-identity-go/internal/model"
)

// postgres implements Store using PostgreSQL. The replay cache leans on
// the primary-key constraint of replay_cache for atomic insert-if-absent,
// and credit events run inside a transaction that row-locks the agent.
type postgres struct {
	db *sql.DB
}

// NewPostgres creates a Store backed by PostgreSQL with connection
// pooling. Tests the connection before returning.
func NewPostgres(dsn string) (Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &postgres{db: db}, nil
}

// DB returns the underlying *sql.DB connection pool, used by migrations
// and readiness checks.
func (p *postgres) DB() *sql.DB {
	return p.db
}

// CreateAgent registers a new agent row. Returns ErrConflict when the DID
// is already registered.
func (p *postgres) CreateAgent(ctx context.Context, agent model.Agent) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if agent.Status == "" {
		agent.Status = model.AgentStatusActive
	}
	createdAt := agent.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const q = `INSERT INTO agents (did, credits, status, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (did) DO NOTHING`
	res, err := p.db.ExecContext(ctx, q, agent.DID, agent.Credits, string(agent.Status), createdAt)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

// GetAgent retrieves an agent row by DID.
func (p *postgres) GetAgent(ctx context.Context, did string) (model.Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	const q = `SELECT did, credits, status, created_at FROM agents WHERE did = $1`
	var agent model.Agent
	var status string
	err := p.db.QueryRowContext(ctx, q, did).Scan(&agent.DID, &agent.Credits, &status, &agent.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Agent{}, ErrAgentNotFound
		}
		return model.Agent{}, fmt.Errorf("query agent: %w", err)
	}
	agent.Status = model.AgentStatus(status)
	return agent, nil
}

// InsertSignature records a signature hash. ON CONFLICT DO NOTHING keeps
// the check and the insert one statement: a zero row count means the hash
// was already present, which the caller reports as replay.
func (p *postgres) InsertSignature(ctx context.Context, entry model.ReplayEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	insertedAt := entry.InsertedAt
	if insertedAt.IsZero() {
		insertedAt = time.Now().UTC()
	}

	const q = `INSERT INTO replay_cache (signature_hash, agent_did, signed_at_ms, inserted_at) VALUES ($1, $2, $3, $4) ON CONFLICT (signature_hash) DO NOTHING`
	res, err := p.db.ExecContext(ctx, q, entry.SignatureHash, entry.AgentDID, entry.Timestamp, insertedAt)
	if err != nil {
		return fmt.Errorf("insert replay entry: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrDuplicateSignature
	}
	return nil
}

// SweepExpired deletes replay entries inserted before the cutoff.
func (p *postgres) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	const q = `DELETE FROM replay_cache WHERE inserted_at < $1`
	res, err := p.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep replay cache: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

// RecordCreditEvent applies a balance change and appends a ledger row in
// one transaction. SELECT ... FOR UPDATE holds a row lock on the agent for
// the duration of the read-modify-write-then-append, so concurrent events
// against the same agent serialize while other agents proceed. A failure
// anywhere rolls the whole event back.
func (p *postgres) RecordCreditEvent(ctx context.Context, did string, eventType model.CreditEventType, amount int64, reason, relatedURL string) (model.CreditLedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.CreditLedgerEntry{}, fmt.Errorf("begin credit event: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT credits FROM agents WHERE did = $1 FOR UPDATE`, did).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CreditLedgerEntry{}, ErrAgentNotFound
		}
		return model.CreditLedgerEntry{}, fmt.Errorf("lock agent row: %w", err)
	}

	newBalance := balance + amount
	if newBalance < 0 {
		newBalance = 0
	}

	if _, err := tx.ExecContext(ctx, `UPDATE agents SET credits = $1 WHERE did = $2`, newBalance, did); err != nil {
		return model.CreditLedgerEntry{}, fmt.Errorf("update balance: %w", err)
	}

	entry := model.CreditLedgerEntry{
		ID:           uuid.NewString(),
		AgentDID:     did,
		Type:         eventType,
		Amount:       amount,
		BalanceAfter: newBalance,
		Reason:       reason,
		RelatedURL:   relatedURL,
		CreatedAt:    time.Now().UTC(),
	}
	const insertLedger = `INSERT INTO credit_ledger (id, agent_did, type, amount, balance_after, reason, related_url, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, insertLedger, entry.ID, entry.AgentDID, string(entry.Type), entry.Amount, entry.BalanceAfter, entry.Reason, nullable(entry.RelatedURL), entry.CreatedAt); err != nil {
		return model.CreditLedgerEntry{}, fmt.Errorf("append ledger row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.CreditLedgerEntry{}, fmt.Errorf("commit credit event: %w", err)
	}
	return entry, nil
}

// GetCredits returns the agent's current balance.
func (p *postgres) GetCredits(ctx context.Context, did string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var balance int64
	err := p.db.QueryRowContext(ctx, `SELECT credits FROM agents WHERE did = $1`, did).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAgentNotFound
		}
		return 0, fmt.Errorf("query credits: %w", err)
	}
	return balance, nil
}

// GetCreditHistory returns up to limit ledger rows, most recent first.
// An unregistered DID is ErrAgentNotFound, matching the memory backend.
func (p *postgres) GetCreditHistory(ctx context.Context, did string, limit int) ([]model.CreditLedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM agents WHERE did = $1)`, did).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check agent: %w", err)
	}
	if !exists {
		return nil, ErrAgentNotFound
	}

	q := `SELECT id, agent_did, type, amount, balance_after, reason, related_url, created_at FROM credit_ledger WHERE agent_did = $1 ORDER BY created_at DESC, id DESC`
	args := []any{did}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query credit history: %w", err)
	}
	defer rows.Close()

	var entries []model.CreditLedgerEntry
	for rows.Next() {
		var entry model.CreditLedgerEntry
		var eventType string
		var relatedURL sql.NullString
		if err := rows.Scan(&entry.ID, &entry.AgentDID, &eventType, &entry.Amount, &entry.BalanceAfter, &entry.Reason, &relatedURL, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entry.Type = model.CreditEventType(eventType)
		entry.RelatedURL = relatedURL.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
