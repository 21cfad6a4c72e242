// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
//
// The DDL sticks to the subset both sqlite and postgres accept: no NOW()
// defaults (timestamps are always passed from Go) and no JSON column types.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Rounds (one voting contest, possibly spanning multiple stages)
CREATE TABLE IF NOT EXISTS round (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    team TEXT NOT NULL,
    year INTEGER NOT NULL,
    expected_voters INTEGER NOT NULL DEFAULT 0,
    is_open BOOLEAN NOT NULL DEFAULT FALSE,
    is_paused BOOLEAN NOT NULL DEFAULT FALSE,
    is_closed BOOLEAN NOT NULL DEFAULT FALSE,
    current_stage INTEGER NOT NULL DEFAULT 1,
    stage_ballot_limit INTEGER NOT NULL DEFAULT 3,
    target_winner_count INTEGER NOT NULL DEFAULT 1,
    selected_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    closed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_round_is_open ON round(is_open);

-- Candidates
CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    round_id TEXT NOT NULL REFERENCES round(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    surname TEXT NOT NULL,
    location TEXT,
    group_name TEXT,
    age INTEGER,
    description TEXT,
    image_url TEXT,
    order_index INTEGER NOT NULL,
    is_eliminated BOOLEAN NOT NULL DEFAULT FALSE,
    is_selected BOOLEAN NOT NULL DEFAULT FALSE,
    eliminated_at_stage INTEGER,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidate_round_id ON candidate(round_id);

-- Ballots: one per (round, device, stage). The UNIQUE constraint is the
-- authoritative duplicate check; handler-level checks are advisory.
CREATE TABLE IF NOT EXISTS ballot (
    id TEXT PRIMARY KEY,
    round_id TEXT NOT NULL REFERENCES round(id) ON DELETE CASCADE,
    device_hash TEXT NOT NULL,
    stage INTEGER NOT NULL,
    submitted_at TIMESTAMP NOT NULL,
    ip_hash TEXT,
    user_agent TEXT,
    UNIQUE (round_id, device_hash, stage)
);

CREATE INDEX IF NOT EXISTS idx_ballot_round_stage ON ballot(round_id, stage);

-- Votes: one row per chosen candidate, immutable audit trail
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    ballot_id TEXT NOT NULL REFERENCES ballot(id) ON DELETE CASCADE,
    round_id TEXT NOT NULL REFERENCES round(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL REFERENCES candidate(id) ON DELETE CASCADE,
    stage INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vote_round_stage ON vote(round_id, stage);
CREATE INDEX IF NOT EXISTS idx_vote_candidate_id ON vote(candidate_id);

-- Frozen stage tallies with admin-controlled visibility
CREATE TABLE IF NOT EXISTS round_result (
    round_id TEXT NOT NULL REFERENCES round(id) ON DELETE CASCADE,
    stage INTEGER NOT NULL,
    candidate_id TEXT NOT NULL REFERENCES candidate(id) ON DELETE CASCADE,
    vote_count INTEGER NOT NULL DEFAULT 0,
    is_visible BOOLEAN NOT NULL DEFAULT FALSE,
    computed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (round_id, stage, candidate_id)
);
`
