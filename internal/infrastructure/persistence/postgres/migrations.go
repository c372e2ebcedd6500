// Package postgres implements the PostgreSQL persistence layer for the
// Owlet sync backend.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ACCOUNTS AND PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create accounts and progress tables
-- Version: 001
-- Totals only. The client is the source of truth for the full profile;
-- the server keeps the counters needed to restore a player on a new device.

CREATE TABLE IF NOT EXISTS accounts (
    id VARCHAR(100) PRIMARY KEY,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    last_seen_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_accounts_last_seen ON accounts(last_seen_at);

CREATE TABLE IF NOT EXISTS progress (
    account_id VARCHAR(100) PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
    coins INTEGER NOT NULL DEFAULT 0,
    streak INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_coins CHECK (coins >= 0),
    CONSTRAINT valid_streak CHECK (streak >= 0)
);

CREATE INDEX IF NOT EXISTS idx_progress_updated ON progress(updated_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS progress;
DROP TABLE IF EXISTS accounts;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE MERGED GUESTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create merged_guests table
-- Version: 002
-- A guest id may be merged into exactly one account, exactly once.
-- The primary key makes replayed merges harmless: the second attempt
-- hits a unique violation and the server returns current totals untouched.

CREATE TABLE IF NOT EXISTS merged_guests (
    guest_id VARCHAR(100) PRIMARY KEY,
    account_id VARCHAR(100) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    coins_merged INTEGER NOT NULL DEFAULT 0,
    streak_merged INTEGER NOT NULL DEFAULT 0,
    merged_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_merged_guests_account ON merged_guests(account_id);
CREATE INDEX IF NOT EXISTS idx_merged_guests_merged_at ON merged_guests(merged_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS merged_guests;
`
