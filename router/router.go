// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/ronda-server/cliparse"
	"github.com/danielhkuo/ronda-server/handlers"
	"github.com/danielhkuo/ronda-server/middleware"
	"github.com/danielhkuo/ronda-server/notify"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, changes *notify.Broadcaster) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	roundHandler := handlers.NewRoundHandler(db, cfg, changes)
	votingHandler := handlers.NewVotingHandler(db, cfg, changes)
	resultsHandler := handlers.NewResultsHandler(db, cfg, changes)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Round management (admin operations)
	mux.HandleFunc("POST /rounds", middleware.WithLogging(roundHandler.CreateRound))
	mux.HandleFunc("GET /rounds/{id}/admin", middleware.WithLogging(roundHandler.GetRoundAdmin))
	mux.HandleFunc("POST /rounds/{id}/candidates", middleware.WithLogging(roundHandler.AddCandidate))
	mux.HandleFunc("DELETE /rounds/{id}/candidates/{cid}", middleware.WithLogging(roundHandler.RemoveCandidate))
	mux.HandleFunc("POST /rounds/{id}/candidates/{cid}/select", middleware.WithLogging(roundHandler.SelectCandidate))
	mux.HandleFunc("POST /rounds/{id}/activate", middleware.WithLogging(roundHandler.ActivateRound))
	mux.HandleFunc("POST /rounds/{id}/pause", middleware.WithLogging(roundHandler.PauseRound))
	mux.HandleFunc("POST /rounds/{id}/resume", middleware.WithLogging(roundHandler.ResumeRound))
	mux.HandleFunc("POST /rounds/{id}/finalize", middleware.WithLogging(roundHandler.FinalizeStage))
	mux.HandleFunc("POST /rounds/{id}/reveal", middleware.WithLogging(roundHandler.RevealResults))
	mux.HandleFunc("POST /rounds/{id}/hide", middleware.WithLogging(roundHandler.HideResults))
	mux.HandleFunc("POST /rounds/{id}/close", middleware.WithLogging(roundHandler.CloseRound))

	// Voting operations (public, single open round)
	mux.HandleFunc("GET /voting/round", middleware.WithLogging(votingHandler.GetOpenRound))
	mux.HandleFunc("GET /voting/round/candidates", middleware.WithLogging(votingHandler.GetCandidates))
	mux.HandleFunc("POST /voting/round/ballots", middleware.WithLogging(votingHandler.SubmitBallot))

	// Results and live updates (public)
	mux.HandleFunc("GET /voting/round/results", middleware.WithLogging(resultsHandler.GetResults))
	mux.HandleFunc("GET /voting/round/ballot-count", middleware.WithLogging(resultsHandler.GetBallotCount))
	mux.HandleFunc("GET /voting/round/changes", resultsHandler.Changes)

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ronda API v1"))
	})

	return mux
}
