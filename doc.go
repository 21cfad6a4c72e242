// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Ronda API server.

Ronda runs multi-round elimination votes for community events: an admin
curates a candidate list, opens the round, and voters pick up to three
candidates per stage from their own devices. After each stage the weakest
candidates are eliminated and the ballot limit tightens until the winners
remain.

# Starting the Server

The server requires environment variables, a .env file, or CLI flags:

	DATABASE_URL=file:ronda.db ADMIN_KEY_SALT=... DEVICE_HASH_SALT=... go run main.go

Or with flags:

	go run main.go -p 3318 -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): Connection string (postgres) or file path (sqlite)
  - ADMIN_KEY_SALT (--admin-salt): Secret for admin key HMAC
  - DEVICE_HASH_SALT (--device-salt): Secret for device identity hashing

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): "sqlite" (default) or "postgres"
  - BASE_URL (--base-url): Public base URL for the ballot page

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (rounds, voting, results)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types and rejection codes
  - auth: Admin keys, device identity, ID generation
  - notify: Change broadcaster for the long-poll endpoint
  - db: Connection handling and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
