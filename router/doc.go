// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Ronda API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg, changes)

# Endpoints

Health:

	GET /health

Round management (admin, requires X-Admin-Key):

	POST   /rounds                              - Create round
	GET    /rounds/{id}/admin                   - Full round state
	POST   /rounds/{id}/candidates              - Add candidate
	DELETE /rounds/{id}/candidates/{cid}        - Remove candidate
	POST   /rounds/{id}/candidates/{cid}/select - Mark winner
	POST   /rounds/{id}/activate                - Open for voting
	POST   /rounds/{id}/pause                   - Pause voting
	POST   /rounds/{id}/resume                  - Resume voting
	POST   /rounds/{id}/finalize                - Freeze tally, eliminate, advance stage
	POST   /rounds/{id}/reveal                  - Publish a stage's tally
	POST   /rounds/{id}/hide                    - Unpublish a stage's tally
	POST   /rounds/{id}/close                   - Close permanently

Voting (public, operates on the single open round):

	GET  /voting/round             - Open round info
	GET  /voting/round/candidates  - Surviving candidates
	POST /voting/round/ballots     - Submit ballot

Results (public):

	GET /voting/round/results      - Revealed tallies (?stage=N)
	GET /voting/round/ballot-count - Turnout for the current stage
	GET /voting/round/changes      - Long-poll for state changes (?since=V)

The changes endpoint is deliberately not wrapped in request logging: a hanging
long-poll per client would flood the log with 25-second "requests".

# Handler Initialization

The router creates handler instances with dependency injection:

	roundHandler := handlers.NewRoundHandler(db, cfg, changes)
	votingHandler := handlers.NewVotingHandler(db, cfg, changes)
	resultsHandler := handlers.NewResultsHandler(db, cfg, changes)

All handlers share the database connection, configuration, and the change
broadcaster.
*/
package router
