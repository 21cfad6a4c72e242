// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Ronda API.

# Handler Types

Each handler is a struct with database, config, and change-signal
dependencies:

  - RoundHandler: Round lifecycle and candidate administration
  - VotingHandler: Open-round lookup and ballot submission
  - ResultsHandler: Published tallies, turnout, and the long-poll endpoint

Handlers are created via constructor functions:

	roundHandler := handlers.NewRoundHandler(db, cfg, changes)

# Round Lifecycle

Rounds progress draft → open → closed; closing is terminal. Pausing is an
orthogonal flag on an open round.

	POST /rounds                          → CreateRound (returns admin_key)
	POST /rounds/{id}/candidates          → AddCandidate
	DELETE /rounds/{id}/candidates/{cid}  → RemoveCandidate
	POST /rounds/{id}/activate            → ActivateRound (deactivates any other open round)
	POST /rounds/{id}/pause|resume        → PauseRound / ResumeRound
	POST /rounds/{id}/finalize            → FinalizeStage
	POST /rounds/{id}/reveal|hide         → RevealResults / HideResults
	POST /rounds/{id}/candidates/{cid}/select → SelectCandidate
	POST /rounds/{id}/close               → CloseRound
	GET  /rounds/{id}/admin               → GetRoundAdmin

Admin operations require the X-Admin-Key header.

# Voting Flow

Voters only ever see "the" round; there is at most one open at a time:

	GET  /voting/round             → GetOpenRound
	GET  /voting/round/candidates  → GetCandidates
	POST /voting/round/ballots     → SubmitBallot
	GET  /voting/round/results     → GetResults (revealed stages only)
	GET  /voting/round/ballot-count → GetBallotCount
	GET  /voting/round/changes     → Changes (long-poll)

No voter accounts: the server derives a per-round device identity from the
signals in the ballot body, and the ballot table's unique constraint enforces
one ballot per device per stage. Rejections carry a machine-readable code
(models.Code*).

# Elimination Policy

Stage finalization is implemented in elimination.go:

	eliminated := decideEliminations(tally, targetRemaining)
	limit := nextBallotLimit(targetRemaining)

Candidates with zero votes are always cut; if more candidates survive that cut
than there are open winner slots, anyone polling at or below half of the
leader is also cut. The ballot limit tightens to 2 and then 1 as the winner
slots fill.
*/
package handlers
