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

	"github.com/danielhkuo/ronda-server/auth"
	"github.com/danielhkuo/ronda-server/cliparse"
	"github.com/danielhkuo/ronda-server/middleware"
	"github.com/danielhkuo/ronda-server/models"
	"github.com/danielhkuo/ronda-server/notify"
)

type RoundHandler struct {
	db      *sql.DB
	cfg     cliparse.Config
	changes *notify.Broadcaster
}

func NewRoundHandler(db *sql.DB, cfg cliparse.Config, changes *notify.Broadcaster) *RoundHandler {
	return &RoundHandler{db: db, cfg: cfg, changes: changes}
}

// CreateRound handles POST /rounds
func (h *RoundHandler) CreateRound(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoundRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Team == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "team is required")
		return
	}
	if req.Year == 0 {
		req.Year = time.Now().Year()
	}
	if req.TargetWinnerCount <= 0 {
		req.TargetWinnerCount = 1
	}
	if req.ExpectedVoters < 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "expected_voters cannot be negative")
		return
	}

	// Generate round ID
	roundID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate round ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create round")
		return
	}

	// Generate admin key
	adminKey := auth.GenerateAdminKey(roundID, h.cfg.AdminKeySalt)

	now := time.Now()
	_, err = h.db.Exec(`
		INSERT INTO round (id, title, description, team, year, expected_voters,
		                   is_open, is_paused, is_closed, current_stage,
		                   stage_ballot_limit, target_winner_count, selected_count,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, FALSE, FALSE, 1, 3, $7, 0, $8, $9)
	`, roundID, req.Title, req.Description, req.Team, req.Year, req.ExpectedVoters,
		req.TargetWinnerCount, now, now)

	if err != nil {
		slog.Error("failed to insert round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create round")
		return
	}

	slog.Info("round created", "round_id", roundID, "team", req.Team, "year", req.Year)

	resp := models.CreateRoundResponse{
		RoundID:  roundID,
		AdminKey: adminKey,
	}
	if h.cfg.BaseURL != "" {
		resp.BallotURL = strings.TrimRight(h.cfg.BaseURL, "/") + "/voting/round"
	}
	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// AddCandidate handles POST /rounds/:id/candidates
func (h *RoundHandler) AddCandidate(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("id")
	if roundID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "round_id is required")
		return
	}

	// Validate admin key
	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(roundID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	var req models.AddCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Surname == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "surname is required")
		return
	}

	// Check round exists and is not closed
	var isClosed bool
	err := h.db.QueryRow("SELECT is_closed FROM round WHERE id = $1", roundID).Scan(&isClosed)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Round not found")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if isClosed {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeRoundClosed, "Cannot add candidates to a closed round")
		return
	}

	candidateID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate candidate ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create candidate")
		return
	}

	now := time.Now()
	_, err = h.db.Exec(`
		INSERT INTO candidate (id, round_id, name, surname, location, group_name,
		                       age, description, image_url, order_index,
		                       is_eliminated, is_selected, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
		        (SELECT COALESCE(MAX(c.order_index), -1) + 1 FROM candidate c WHERE c.round_id = $10),
		        FALSE, FALSE, $11, $12)
	`, candidateID, roundID, req.Name, req.Surname,
		nullString(req.Location), nullString(req.GroupName), req.Age,
		nullString(req.Description), nullString(req.ImageURL),
		roundID, now, now)

	if err != nil {
		slog.Error("failed to insert candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create candidate")
		return
	}

	slog.Info("candidate added", "round_id", roundID, "candidate_id", candidateID)

	middleware.JSONResponse(w, http.StatusCreated, models.AddCandidateResponse{
		CandidateID: candidateID,
	})
}

// RemoveCandidate handles DELETE /rounds/:id/candidates/:cid
// Hard-deletes when no votes reference the candidate; otherwise eliminates the
// candidate at the current stage so the audit trail stays intact.
func (h *RoundHandler) RemoveCandidate(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("id")
	candidateID := r.PathValue("cid")
	if roundID == "" || candidateID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "round_id and candidate_id are required")
		return
	}

	// Validate admin key
	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(roundID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	var currentStage int
	err := h.db.QueryRow("SELECT current_stage FROM round WHERE id = $1", roundID).Scan(&currentStage)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Round not found")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Candidate must belong to this round
	var exists bool
	err = h.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM candidate WHERE id = $1 AND round_id = $2)
	`, candidateID, roundID).Scan(&exists)
	if err != nil {
		slog.Error("failed to query candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !exists {
		middleware.ErrorResponse(w, http.StatusNotFound, "Candidate not found")
		return
	}

	var voteCount int
	err = h.db.QueryRow("SELECT COUNT(*) FROM vote WHERE candidate_id = $1", candidateID).Scan(&voteCount)
	if err != nil {
		slog.Error("failed to count votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	softRemoved := voteCount > 0
	if softRemoved {
		_, err = h.db.Exec(`
			UPDATE candidate
			SET is_eliminated = TRUE, eliminated_at_stage = $1, updated_at = $2
			WHERE id = $3
		`, currentStage, time.Now(), candidateID)
	} else {
		_, err = h.db.Exec("DELETE FROM candidate WHERE id = $1", candidateID)
	}

	if err != nil {
		slog.Error("failed to remove candidate", "error", err, "candidate_id", candidateID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to remove candidate")
		return
	}

	slog.Info("candidate removed", "round_id", roundID, "candidate_id", candidateID, "soft", softRemoved)
	h.changes.Notify()

	middleware.JSONResponse(w, http.StatusOK, models.RemoveCandidateResponse{
		CandidateID: candidateID,
		SoftRemoved: softRemoved,
	})
}

// SelectCandidate handles POST /rounds/:id/candidates/:cid/select
// Marks a surviving candidate as a winner and bumps the round's selected count.
func (h *RoundHandler) SelectCandidate(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("id")
	candidateID := r.PathValue("cid")
	if roundID == "" || candidateID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "round_id and candidate_id are required")
		return
	}

	// Validate admin key
	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(roundID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	// Touching the round row first serializes concurrent selections
	res, err := tx.Exec("UPDATE round SET updated_at = $1 WHERE id = $2", time.Now(), roundID)
	if err != nil {
		slog.Error("failed to lock round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Round not found")
		return
	}

	var targetWinnerCount, selectedCount int
	err = tx.QueryRow(`
		SELECT target_winner_count, selected_count FROM round WHERE id = $1
	`, roundID).Scan(&targetWinnerCount, &selectedCount)
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if selectedCount >= targetWinnerCount {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeInvalidTransition, "All winner slots are already filled")
		return
	}

	var isEliminated, isSelected bool
	err = tx.QueryRow(`
		SELECT is_eliminated, is_selected FROM candidate WHERE id = $1 AND round_id = $2
	`, candidateID, roundID).Scan(&isEliminated, &isSelected)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Candidate not found")
		return
	}
	if err != nil {
		slog.Error("failed to query candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if isEliminated {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeInvalidCandidate, "Cannot select an eliminated candidate")
		return
	}
	if isSelected {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeInvalidTransition, "Candidate is already selected")
		return
	}

	now := time.Now()
	_, err = tx.Exec(`
		UPDATE candidate SET is_selected = TRUE, updated_at = $1 WHERE id = $2
	`, now, candidateID)
	if err != nil {
		slog.Error("failed to select candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to select candidate")
		return
	}

	_, err = tx.Exec(`
		UPDATE round SET selected_count = selected_count + 1, updated_at = $1 WHERE id = $2
	`, now, roundID)
	if err != nil {
		slog.Error("failed to update selected count", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to select candidate")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to select candidate")
		return
	}

	slog.Info("candidate selected", "round_id", roundID, "candidate_id", candidateID)
	h.changes.Notify()

	middleware.JSONResponse(w, http.StatusOK, models.SelectCandidateResponse{
		CandidateID:   candidateID,
		SelectedCount: selectedCount + 1,
	})
}

// ActivateRound handles POST /rounds/:id/activate
// Opens the round for voting. At most one round is open at a time, so any
// previously open round is deactivated in the same transaction.
func (h *RoundHandler) ActivateRound(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("id")
	if roundID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "round_id is required")
		return
	}

	// Validate admin key
	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(roundID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	var isClosed bool
	err := h.db.QueryRow("SELECT is_closed FROM round WHERE id = $1", roundID).Scan(&isClosed)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Round not found")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if isClosed {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeInvalidTransition, "Cannot activate a closed round")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.Exec(`
		UPDATE round SET is_open = FALSE, updated_at = $1 WHERE is_open = TRUE AND id <> $2
	`, now, roundID)
	if err != nil {
		slog.Error("failed to deactivate other rounds", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to activate round")
		return
	}

	res, err := tx.Exec(`
		UPDATE round SET is_open = TRUE, is_paused = FALSE, updated_at = $1
		WHERE id = $2 AND is_closed = FALSE
	`, now, roundID)
	if err != nil {
		slog.Error("failed to activate round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to activate round")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeInvalidTransition, "Cannot activate a closed round")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to activate round")
		return
	}

	slog.Info("round activated", "round_id", roundID)
	h.changes.Notify()

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"round_id": roundID, "status": models.StatusOpen})
}

// PauseRound handles POST /rounds/:id/pause
func (h *RoundHandler) PauseRound(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// ResumeRound handles POST /rounds/:id/resume
func (h *RoundHandler) ResumeRound(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *RoundHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	roundID := r.PathValue("id")
	if roundID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "round_id is required")
		return
	}

	// Validate admin key
	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(roundID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	var isOpen, isClosed bool
	err := h.db.QueryRow("SELECT is_open, is_closed FROM round WHERE id = $1", roundID).Scan(&isOpen, &isClosed)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Round not found")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !isOpen || isClosed {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeInvalidTransition, "Round is not open")
		return
	}

	_, err = h.db.Exec(`
		UPDATE round SET is_paused = $1, updated_at = $2 WHERE id = $3
	`, paused, time.Now(), roundID)
	if err != nil {
		slog.Error("failed to update pause state", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update round")
		return
	}

	slog.Info("round pause state changed", "round_id", roundID, "paused", paused)
	h.changes.Notify()

	middleware.JSONResponse(w, http.StatusOK, map[string]interface{}{"round_id": roundID, "is_paused": paused})
}

// CloseRound handles POST /rounds/:id/close
// Closing is terminal: a closed round never reopens.
func (h *RoundHandler) CloseRound(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("id")
	if roundID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "round_id is required")
		return
	}

	// Validate admin key
	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(roundID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	closedAt := time.Now()
	res, err := h.db.Exec(`
		UPDATE round SET is_open = FALSE, is_paused = FALSE, is_closed = TRUE,
		                 closed_at = $1, updated_at = $2
		WHERE id = $3 AND is_closed = FALSE
	`, closedAt, closedAt, roundID)
	if err != nil {
		slog.Error("failed to close round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close round")
		return
	}

	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish missing from already closed
		var exists bool
		if qerr := h.db.QueryRow("SELECT EXISTS(SELECT 1 FROM round WHERE id = $1)", roundID).Scan(&exists); qerr != nil {
			slog.Error("failed to query round", "error", qerr)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if !exists {
			middleware.ErrorResponse(w, http.StatusNotFound, "Round not found")
			return
		}
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeInvalidTransition, "Round is already closed")
		return
	}

	slog.Info("round closed", "round_id", roundID)
	h.changes.Notify()

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"round_id": roundID, "status": models.StatusClosed})
}

// FinalizeStage handles POST /rounds/:id/finalize
// Freezes the current stage's tally, applies eliminations, and advances the
// round to the next stage with a recalculated ballot limit.
func (h *RoundHandler) FinalizeStage(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("id")
	if roundID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "round_id is required")
		return
	}

	// Validate admin key
	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(roundID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	// Touching the round row first blocks concurrent ballot submissions until
	// this transaction commits, so the frozen tally cannot miss a vote.
	res, err := tx.Exec("UPDATE round SET updated_at = $1 WHERE id = $2", time.Now(), roundID)
	if err != nil {
		slog.Error("failed to lock round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Round not found")
		return
	}

	var isOpen, isClosed bool
	var stage, targetWinnerCount, selectedCount int
	err = tx.QueryRow(`
		SELECT is_open, is_closed, current_stage, target_winner_count, selected_count
		FROM round WHERE id = $1
	`, roundID).Scan(&isOpen, &isClosed, &stage, &targetWinnerCount, &selectedCount)
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if isClosed {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeInvalidTransition, "Round is closed")
		return
	}
	if !isOpen {
		middleware.CodedErrorResponse(w, http.StatusConflict, models.CodeInvalidTransition, "Round is not open")
		return
	}

	// Zero-filled tally over every candidate still in the running
	rows, err := tx.Query(`
		SELECT c.id, COUNT(v.id)
		FROM candidate c
		LEFT JOIN vote v ON v.candidate_id = c.id AND v.round_id = c.round_id AND v.stage = $1
		WHERE c.round_id = $2 AND c.is_eliminated = FALSE AND c.is_selected = FALSE
		GROUP BY c.id
	`, stage, roundID)
	if err != nil {
		slog.Error("failed to tally votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	tally := stageTally{}
	for rows.Next() {
		var candidateID string
		var count int
		if err := rows.Scan(&candidateID, &count); err != nil {
			rows.Close()
			slog.Error("failed to scan tally row", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		tally[candidateID] = count
	}
	rows.Close()

	// Freeze the tally; results stay hidden until the admin reveals them
	computedAt := time.Now()
	for candidateID, count := range tally {
		_, err = tx.Exec(`
			INSERT INTO round_result (round_id, stage, candidate_id, vote_count, is_visible, computed_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)
		`, roundID, stage, candidateID, count, computedAt)
		if err != nil {
			slog.Error("failed to insert result", "error", err, "candidate_id", candidateID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save results")
			return
		}
	}

	eliminated := decideEliminations(tally, targetWinnerCount-selectedCount)
	for _, candidateID := range eliminated {
		_, err = tx.Exec(`
			UPDATE candidate
			SET is_eliminated = TRUE, eliminated_at_stage = $1, updated_at = $2
			WHERE id = $3
		`, stage, computedAt, candidateID)
		if err != nil {
			slog.Error("failed to eliminate candidate", "error", err, "candidate_id", candidateID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to apply eliminations")
			return
		}
	}

	remaining := len(tally) - len(eliminated)
	nextLimit := nextBallotLimit(targetWinnerCount - selectedCount)

	_, err = tx.Exec(`
		UPDATE round SET current_stage = $1, stage_ballot_limit = $2, updated_at = $3
		WHERE id = $4
	`, stage+1, nextLimit, computedAt, roundID)
	if err != nil {
		slog.Error("failed to advance stage", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to advance stage")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to finalize stage")
		return
	}

	slog.Info("stage finalized",
		"round_id", roundID,
		"stage", stage,
		"eliminated", len(eliminated),
		"remaining", remaining,
		"next_ballot_limit", nextLimit,
	)
	h.changes.Notify()

	if eliminated == nil {
		eliminated = []string{}
	}
	middleware.JSONResponse(w, http.StatusOK, models.FinalizeStageResponse{
		Stage:           stage,
		Eliminated:      eliminated,
		NextStage:       stage + 1,
		NextBallotLimit: nextLimit,
	})
}

// RevealResults handles POST /rounds/:id/reveal
func (h *RoundHandler) RevealResults(w http.ResponseWriter, r *http.Request) {
	h.setResultsVisibility(w, r, true)
}

// HideResults handles POST /rounds/:id/hide
func (h *RoundHandler) HideResults(w http.ResponseWriter, r *http.Request) {
	h.setResultsVisibility(w, r, false)
}

// setResultsVisibility toggles the visibility of one stage's frozen tally.
// Defaults to the most recently finalized stage; ?stage=N overrides.
func (h *RoundHandler) setResultsVisibility(w http.ResponseWriter, r *http.Request, visible bool) {
	roundID := r.PathValue("id")
	if roundID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "round_id is required")
		return
	}

	// Validate admin key
	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(roundID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	var currentStage int
	err := h.db.QueryRow("SELECT current_stage FROM round WHERE id = $1", roundID).Scan(&currentStage)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Round not found")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	stage := currentStage - 1
	if stageParam := r.URL.Query().Get("stage"); stageParam != "" {
		stage, err = strconv.Atoi(stageParam)
		if err != nil || stage < 1 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "stage must be a positive integer")
			return
		}
	}
	if stage < 1 {
		middleware.ErrorResponse(w, http.StatusNotFound, "No finalized stage yet")
		return
	}

	res, err := h.db.Exec(`
		UPDATE round_result SET is_visible = $1 WHERE round_id = $2 AND stage = $3
	`, visible, roundID, stage)
	if err != nil {
		slog.Error("failed to update result visibility", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update results")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "No results for this stage")
		return
	}

	slog.Info("result visibility changed", "round_id", roundID, "stage", stage, "visible", visible)
	h.changes.Notify()

	middleware.JSONResponse(w, http.StatusOK, models.ResultsVisibilityResponse{
		RoundID: roundID,
		Stage:   stage,
		Visible: visible,
	})
}

// GetRoundAdmin handles GET /rounds/:id/admin
// Returns the full round, all candidates (including eliminated), and every
// frozen tally regardless of visibility.
func (h *RoundHandler) GetRoundAdmin(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("id")
	if roundID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "round_id is required")
		return
	}

	// Validate admin key
	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(roundID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	var round models.Round
	err := h.db.QueryRow(`
		SELECT id, title, description, team, year, expected_voters,
		       is_open, is_paused, is_closed, current_stage, stage_ballot_limit,
		       target_winner_count, selected_count, created_at, updated_at, closed_at
		FROM round WHERE id = $1
	`, roundID).Scan(
		&round.ID, &round.Title, &round.Description, &round.Team, &round.Year,
		&round.ExpectedVoters, &round.IsOpen, &round.IsPaused, &round.IsClosed,
		&round.CurrentStage, &round.StageBallotLimit, &round.TargetWinnerCount,
		&round.SelectedCount, &round.CreatedAt, &round.UpdatedAt, &round.ClosedAt,
	)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Round not found")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	candidates, err := queryCandidates(h.db, roundID, false)
	if err != nil {
		slog.Error("failed to query candidates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.Query(`
		SELECT round_id, stage, candidate_id, vote_count, is_visible, computed_at
		FROM round_result
		WHERE round_id = $1
		ORDER BY stage, vote_count DESC
	`, roundID)
	if err != nil {
		slog.Error("failed to query results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	results := []models.RoundResult{}
	for rows.Next() {
		var result models.RoundResult
		if err := rows.Scan(&result.RoundID, &result.Stage, &result.CandidateID,
			&result.VoteCount, &result.IsVisible, &result.ComputedAt); err != nil {
			slog.Error("failed to scan result", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		results = append(results, result)
	}

	middleware.JSONResponse(w, http.StatusOK, models.RoundAdminView{
		Round:      round,
		Candidates: candidates,
		Results:    results,
	})
}

// nullString maps "" to NULL for optional text columns.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
