package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// MigratePostgres applies schema migrations for the agent identity
// service. Uses IF NOT EXISTS clauses so migrations stay idempotent.
//
// Tables:
//   - agents: registered identities with their denormalized credit balance
//   - credit_ledger: append-only balance-changing events
//   - replay_cache: previously accepted signature hashes
func MigratePostgres(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
            did TEXT PRIMARY KEY,
            credits BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
            status TEXT NOT NULL DEFAULT 'active',
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS credit_ledger (
            id UUID PRIMARY KEY,
            agent_did TEXT NOT NULL REFERENCES agents (did),
            type TEXT NOT NULL,
            amount BIGINT NOT NULL,
            balance_after BIGINT NOT NULL CHECK (balance_after >= 0),
            reason TEXT NOT NULL,
            related_url TEXT,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_credit_ledger_agent_did ON credit_ledger (agent_did, created_at DESC)`,
		// The primary key on signature_hash is the replay defense; the
		// inserted_at index only serves the periodic sweep.
		`CREATE TABLE IF NOT EXISTS replay_cache (
            signature_hash TEXT PRIMARY KEY,
            agent_did TEXT NOT NULL,
            signed_at_ms BIGINT NOT NULL,
            inserted_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_replay_cache_inserted_at ON replay_cache (inserted_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
