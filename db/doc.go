// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connection and schema creation.

# Opening a Connection

Open picks the driver from the configured database type:

	conn, err := db.Open(cfg)

Supported types are "postgres" (lib/pq) and "sqlite" (modernc.org/sqlite,
pure Go, no cgo). Sqlite connections are limited to one open connection and
get foreign_keys and busy_timeout pragmas applied.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The DDL avoids engine-specific features so the same statements run on both
backends; timestamps are always supplied by the application.

# Tables

The schema includes:

  - round: Contest metadata, lifecycle flags, and stage state
  - candidate: Candidates per round with elimination/selection flags
  - ballot: One ballot per device per stage
  - vote: Individual candidate choices, immutable audit trail
  - round_result: Frozen per-stage tallies with visibility flag

# Relationships

	round 1──* candidate
	round 1──* ballot
	ballot 1──* vote
	round 1──* round_result

All foreign keys use ON DELETE CASCADE.

# Indexes

Performance indexes on:

  - round.is_open
  - candidate.round_id
  - ballot.(round_id, device_hash, stage) (unique)
  - ballot.(round_id, stage)
  - vote.(round_id, stage)
  - vote.candidate_id
*/
package db
