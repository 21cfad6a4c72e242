// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/ronda-server/cliparse"
	"github.com/danielhkuo/ronda-server/middleware"
	"github.com/danielhkuo/ronda-server/models"
	"github.com/danielhkuo/ronda-server/notify"
)

// longPollTimeout bounds how long a changes request may hang before answering
// with the current version. Kept under common proxy idle timeouts.
const longPollTimeout = 25 * time.Second

type ResultsHandler struct {
	db      *sql.DB
	cfg     cliparse.Config
	changes *notify.Broadcaster
}

func NewResultsHandler(db *sql.DB, cfg cliparse.Config, changes *notify.Broadcaster) *ResultsHandler {
	return &ResultsHandler{db: db, cfg: cfg, changes: changes}
}

// GetResults handles GET /voting/round/results?stage=N
// Only returns tallies the admin has revealed. Defaults to the most recently
// finalized stage.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
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

	stage := round.CurrentStage - 1
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

	rows, err := h.db.Query(`
		SELECT candidate_id, vote_count
		FROM round_result
		WHERE round_id = $1 AND stage = $2 AND is_visible = TRUE
		ORDER BY vote_count DESC, candidate_id
	`, round.ID, stage)
	if err != nil {
		slog.Error("failed to query results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	results := []models.StageResultRow{}
	for rows.Next() {
		var row models.StageResultRow
		if err := rows.Scan(&row.CandidateID, &row.VoteCount); err != nil {
			slog.Error("failed to scan result", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		results = append(results, row)
	}

	if len(results) == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Results are not published for this stage")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.StageResultsResponse{
		RoundID: round.ID,
		Stage:   stage,
		Results: results,
	})
}

// GetBallotCount handles GET /voting/round/ballot-count
// Turnout for the current stage, visible while voting is in progress.
func (h *ResultsHandler) GetBallotCount(w http.ResponseWriter, r *http.Request) {
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

	var count int
	err = h.db.QueryRow(`
		SELECT COUNT(*) FROM ballot WHERE round_id = $1 AND stage = $2
	`, round.ID, round.CurrentStage).Scan(&count)
	if err != nil {
		slog.Error("failed to count ballots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	label := humanize.Comma(int64(count)) + " ballots"
	if round.ExpectedVoters > 0 {
		label = humanize.Comma(int64(count)) + " of " + humanize.Comma(int64(round.ExpectedVoters)) + " ballots"
	}

	middleware.JSONResponse(w, http.StatusOK, models.BallotCountResponse{
		RoundID:        round.ID,
		Stage:          round.CurrentStage,
		BallotCount:    count,
		ExpectedVoters: round.ExpectedVoters,
		Label:          label,
	})
}

// Changes handles GET /voting/round/changes?since=V
// Long-polls until the round state changes past the client's last-seen
// version, or the poll window expires. Either way the client gets a version
// to hand back next time.
func (h *ResultsHandler) Changes(w http.ResponseWriter, r *http.Request) {
	var since int64
	if sinceParam := r.URL.Query().Get("since"); sinceParam != "" {
		parsed, err := strconv.ParseInt(sinceParam, 10, 64)
		if err != nil || parsed < 0 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), longPollTimeout)
	defer cancel()

	version, _ := h.changes.Wait(ctx, since)

	middleware.JSONResponse(w, http.StatusOK, models.RoundChangedResponse{
		Version: version,
	})
}
