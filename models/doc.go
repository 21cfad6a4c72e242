// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateRoundRequest: title, description, team, year, expected_voters, target_winner_count
  - AddCandidateRequest: name, surname, optional display fields
  - SubmitBallotRequest: stage, candidate_ids, device signals
  - DeviceSignals: fingerprint inputs hashed into a device identifier

# Response Types

Types for JSON responses:

  - CreateRoundResponse: round_id, admin_key
  - AddCandidateResponse: candidate_id
  - SubmitBallotResponse: ballot_id, vote_ids, stage
  - FinalizeStageResponse: stage, eliminated, next_stage, next_ballot_limit
  - BallotCountResponse: turnout for the current stage
  - StageResultsResponse: per-candidate vote counts for one stage
  - ErrorResponse: error, code, message

# Domain Types

Internal data structures:

  - Round: contest metadata, lifecycle flags, and stage state
  - Candidate: contestant with elimination/selection flags
  - Ballot: one device's submission for a (round, stage)
  - Vote: one (ballot, candidate) line; immutable audit row
  - RoundResult: cached tally row with admin-controlled visibility

# Constants

Status values:

	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"

Rejection codes (ErrorResponse.Code):

	CodeNoOpenRound         = "no_open_round"
	CodeRoundClosed         = "round_closed"
	CodeRoundPaused         = "round_paused"
	CodeStageMismatch       = "stage_mismatch"
	CodeBallotLimitExceeded = "ballot_limit_exceeded"
	CodeInvalidCandidate    = "invalid_candidate"
	CodeDuplicateSelection  = "duplicate_selection"
	CodeAlreadyVoted        = "already_voted"
	CodeInvalidTransition   = "invalid_transition"
*/
package models
