// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/ronda-server/auth"
	"github.com/danielhkuo/ronda-server/cliparse"
	"github.com/danielhkuo/ronda-server/middleware"
	"github.com/danielhkuo/ronda-server/models"
	"github.com/danielhkuo/ronda-server/notify"
)

type VotingHandler struct {
	db      *sql.DB
	cfg     cliparse.Config
	changes *notify.Broadcaster
}

func NewVotingHandler(db *sql.DB, cfg cliparse.Config, changes *notify.Broadcaster) *VotingHandler {
	return &VotingHandler{db: db, cfg: cfg, changes: changes}
}

// GetOpenRound handles GET /voting/round
// Returns the single currently open round, without admin-only fields.
func (h *VotingHandler) GetOpenRound(w http.ResponseWriter, r *http.Request) {
	round, err := queryOpenRound(h.db)
	if err == sql.ErrNoRows {
		middleware.CodedErrorResponse(w, http.StatusNotFound, models.CodeNoOpenRound, "No voting round is open")
		return
	}
	if err != nil {
		slog.Error("failed to query open round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PublicRound{
		ID:               round.ID,
		Title:            round.Title,
		Description:      round.Description,
		IsPaused:         round.IsPaused,
		CurrentStage:     round.CurrentStage,
		StageBallotLimit: round.StageBallotLimit,
	})
}

// GetCandidates handles GET /voting/round/candidates
// Returns the surviving candidates of the open round in display order.
func (h *VotingHandler) GetCandidates(w http.ResponseWriter, r *http.Request) {
	round, err := queryOpenRound(h.db)
	if err == sql.ErrNoRows {
		middleware.CodedErrorResponse(w, http.StatusNotFound, models.CodeNoOpenRound, "No voting round is open")
		return
	}
	if err != nil {
		slog.Error("failed to query open round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	candidates, err := queryCandidates(h.db, round.ID, true)
	if err != nil {
		slog.Error("failed to query candidates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, candidates)
}

// SubmitBallot handles POST /voting/round/ballots
// One ballot per device per stage. The device identity is derived server-side
// from the submitted signals; the unique constraint on
// (round_id, device_hash, stage) is the final word on duplicates.
func (h *VotingHandler) SubmitBallot(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Reject duplicate selections before touching the database
	seen := make(map[string]bool, len(req.CandidateIDs))
	for _, candidateID := range req.CandidateIDs {
		if candidateID == "" {
			middleware.CodedErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCandidate, "candidate_ids cannot contain empty values")
			return
		}
		if seen[candidateID] {
			middleware.CodedErrorResponse(w, http.StatusBadRequest, models.CodeDuplicateSelection, "Ballot selects the same candidate twice")
			return
		}
		seen[candidateID] = true
	}

	round, err := queryOpenRound(h.db)
	if err == sql.ErrNoRows {
		middleware.CodedErrorResponse(w, http.StatusNotFound, models.CodeNoOpenRound, "No voting round is open")
		return
	}
	if err != nil {
		slog.Error("failed to query open round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	clientIP := middleware.GetClientIP(r)
	deviceHash := auth.DeriveDeviceID(round.ID, req.Device, clientIP, h.cfg.DeviceHashSalt)
	ipHash := auth.HashIP(clientIP, h.cfg.DeviceHashSalt)
	userAgent := r.UserAgent()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	// Touching the round row serializes ballots against stage finalization:
	// after this update commits or rolls back, the round state read below is
	// the state the ballot is judged against.
	if _, err := tx.Exec("UPDATE round SET updated_at = $1 WHERE id = $2", time.Now(), round.ID); err != nil {
		slog.Error("failed to lock round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var isOpen, isPaused, isClosed bool
	var currentStage, ballotLimit int
	err = tx.QueryRow(`
		SELECT is_open, is_paused, is_closed, current_stage, stage_ballot_limit
		FROM round WHERE id = $1
	`, round.ID).Scan(&isOpen, &isPaused, &isClosed, &currentStage, &ballotLimit)
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if isClosed {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeRoundClosed, "Voting has closed")
		return
	}
	if !isOpen {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeNoOpenRound, "Round is no longer open")
		return
	}
	if isPaused {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeRoundPaused, "Voting is paused")
		return
	}
	if req.Stage != currentStage {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeStageMismatch, "Ballot is for a different stage")
		return
	}
	if len(req.CandidateIDs) == 0 || len(req.CandidateIDs) > ballotLimit {
		middleware.CodedErrorResponse(w, http.StatusBadRequest, models.CodeBallotLimitExceeded, "Ballot must select between 1 and "+strconv.Itoa(ballotLimit)+" candidates")
		return
	}

	// Every selection must still be in the running: eliminated candidates and
	// confirmed winners are off the ballot.
	rows, err := tx.Query(`
		SELECT id FROM candidate WHERE round_id = $1 AND is_eliminated = FALSE AND is_selected = FALSE
	`, round.ID)
	if err != nil {
		slog.Error("failed to query candidates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	valid := make(map[string]bool)
	for rows.Next() {
		var candidateID string
		if err := rows.Scan(&candidateID); err != nil {
			rows.Close()
			slog.Error("failed to scan candidate", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		valid[candidateID] = true
	}
	rows.Close()

	for _, candidateID := range req.CandidateIDs {
		if !valid[candidateID] {
			middleware.CodedErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCandidate, "Invalid candidate: "+candidateID)
			return
		}
	}

	ballotID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate ballot ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
		return
	}

	submittedAt := time.Now()
	_, err = tx.Exec(`
		INSERT INTO ballot (id, round_id, device_hash, stage, submitted_at, ip_hash, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ballotID, round.ID, deviceHash, currentStage, submittedAt, ipHash, userAgent)

	if err != nil {
		if isUniqueViolation(err) {
			middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeAlreadyVoted, "This device already voted at this stage")
			return
		}
		slog.Error("failed to insert ballot", "error", err, "round_id", round.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
		return
	}

	voteIDs := make([]string, 0, len(req.CandidateIDs))
	for _, candidateID := range req.CandidateIDs {
		voteID := uuid.NewString()
		_, err = tx.Exec(`
			INSERT INTO vote (id, ballot_id, round_id, candidate_id, stage, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, voteID, ballotID, round.ID, candidateID, currentStage, submittedAt)
		if err != nil {
			slog.Error("failed to insert vote", "error", err, "candidate_id", candidateID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save votes")
			return
		}
		voteIDs = append(voteIDs, voteID)
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
		return
	}

	slog.Info("ballot submitted", "round_id", round.ID, "ballot_id", ballotID, "stage", currentStage, "selections", len(voteIDs))
	h.changes.Notify()

	middleware.JSONResponse(w, http.StatusCreated, models.SubmitBallotResponse{
		BallotID: ballotID,
		VoteIDs:  voteIDs,
		Stage:    currentStage,
	})
}

// queryOpenRound returns the single open round, or sql.ErrNoRows.
func queryOpenRound(db *sql.DB) (models.Round, error) {
	var round models.Round
	err := db.QueryRow(`
		SELECT id, title, description, team, year, expected_voters,
		       is_open, is_paused, is_closed, current_stage, stage_ballot_limit,
		       target_winner_count, selected_count, created_at, updated_at, closed_at
		FROM round
		WHERE is_open = TRUE AND is_closed = FALSE
		LIMIT 1
	`).Scan(
		&round.ID, &round.Title, &round.Description, &round.Team, &round.Year,
		&round.ExpectedVoters, &round.IsOpen, &round.IsPaused, &round.IsClosed,
		&round.CurrentStage, &round.StageBallotLimit, &round.TargetWinnerCount,
		&round.SelectedCount, &round.CreatedAt, &round.UpdatedAt, &round.ClosedAt,
	)
	return round, err
}

// queryCandidates returns a round's candidates in display order. With
// onlyActive, eliminated candidates and confirmed winners are filtered out,
// leaving exactly the votable set.
func queryCandidates(db *sql.DB, roundID string, onlyActive bool) ([]models.Candidate, error) {
	query := `
		SELECT id, round_id, name, surname, location, group_name, age,
		       description, image_url, order_index, is_eliminated, is_selected,
		       eliminated_at_stage, created_at, updated_at
		FROM candidate
		WHERE round_id = $1`
	if onlyActive {
		query += " AND is_eliminated = FALSE AND is_selected = FALSE"
	}
	query += " ORDER BY order_index"

	rows, err := db.Query(query, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.RoundID, &c.Name, &c.Surname, &c.Location,
			&c.GroupName, &c.Age, &c.Description, &c.ImageURL, &c.OrderIndex,
			&c.IsEliminated, &c.IsSelected, &c.EliminatedAtStage,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// isUniqueViolation matches the unique-constraint error text of both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value violates unique constraint") // postgres
}
