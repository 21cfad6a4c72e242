// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/danielhkuo/ronda-server/models"
	"github.com/danielhkuo/ronda-server/notify"
	"github.com/danielhkuo/ronda-server/testutil"
)

func TestGetResults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	changes := notify.New()
	resultsHandler := NewResultsHandler(db, cfg, changes)
	roundHandler := NewRoundHandler(db, cfg, changes)

	roundID, adminKey := testutil.CreateTestRound(t, db, cfg, models.StatusOpen)
	headers := map[string]string{"X-Admin-Key": adminKey}

	x := testutil.AddTestCandidate(t, db, roundID, "Xena")
	y := testutil.AddTestCandidate(t, db, roundID, "Yolanda")
	testutil.SubmitTestBallot(t, db, roundID, "device-1", 1, []string{x})
	testutil.SubmitTestBallot(t, db, roundID, "device-2", 1, []string{x, y})

	finalize := testutil.MakeRequest("POST", "/rounds/"+roundID+"/finalize", nil, headers)
	finalize.SetPathValue("id", roundID)
	w := httptest.NewRecorder()
	roundHandler.FinalizeStage(w, finalize)
	testutil.AssertStatus(t, w, http.StatusOK)

	t.Run("hidden results are not served", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/voting/round/results?stage=1", nil, nil)
		w := httptest.NewRecorder()
		resultsHandler.GetResults(w, req)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("revealed results are served in descending order", func(t *testing.T) {
		reveal := testutil.MakeRequest("POST", "/rounds/"+roundID+"/reveal?stage=1", nil, headers)
		reveal.SetPathValue("id", roundID)
		w := httptest.NewRecorder()
		roundHandler.RevealResults(w, reveal)
		testutil.AssertStatus(t, w, http.StatusOK)

		req := testutil.MakeRequest("GET", "/voting/round/results?stage=1", nil, nil)
		w = httptest.NewRecorder()
		resultsHandler.GetResults(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.StageResultsResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Stage != 1 || len(resp.Results) != 2 {
			t.Fatalf("Unexpected results: %+v", resp)
		}
		if resp.Results[0].CandidateID != x || resp.Results[0].VoteCount != 2 {
			t.Errorf("Expected leader %s with 2 votes first, got %+v", x, resp.Results[0])
		}
		if resp.Results[1].VoteCount != 1 {
			t.Errorf("Expected runner-up with 1 vote, got %+v", resp.Results[1])
		}
	})

	t.Run("default stage is the last finalized", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/voting/round/results", nil, nil)
		w := httptest.NewRecorder()
		resultsHandler.GetResults(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.StageResultsResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Stage != 1 {
			t.Errorf("Expected default stage 1, got %d", resp.Stage)
		}
	})

	t.Run("bad stage parameter", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/voting/round/results?stage=zero", nil, nil)
		w := httptest.NewRecorder()
		resultsHandler.GetResults(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}

func TestGetBallotCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewResultsHandler(db, cfg, notify.New())
	roundID, _ := testutil.CreateTestRound(t, db, cfg, models.StatusOpen)

	x := testutil.AddTestCandidate(t, db, roundID, "Xena")
	testutil.SubmitTestBallot(t, db, roundID, "device-1", 1, []string{x})
	testutil.SubmitTestBallot(t, db, roundID, "device-2", 1, []string{x})
	// A ballot from a previous stage does not count toward the current one
	testutil.SubmitTestBallot(t, db, roundID, "device-3", 0, []string{x})

	req := testutil.MakeRequest("GET", "/voting/round/ballot-count", nil, nil)
	w := httptest.NewRecorder()
	handler.GetBallotCount(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.BallotCountResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.BallotCount != 2 {
		t.Errorf("Expected 2 ballots for the current stage, got %d", resp.BallotCount)
	}
	if resp.ExpectedVoters != 10 {
		t.Errorf("Expected 10 expected voters, got %d", resp.ExpectedVoters)
	}
	if resp.Label != "2 of 10 ballots" {
		t.Errorf("Unexpected label: %q", resp.Label)
	}
}

func TestChanges(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	changes := notify.New()
	handler := NewResultsHandler(db, cfg, changes)

	t.Run("returns immediately when behind", func(t *testing.T) {
		changes.Notify()

		req := testutil.MakeRequest("GET", "/voting/round/changes?since=0", nil, nil)
		w := httptest.NewRecorder()
		handler.Changes(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.RoundChangedResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Version < 1 {
			t.Errorf("Expected version >= 1, got %d", resp.Version)
		}
	})

	t.Run("wakes when a change arrives", func(t *testing.T) {
		since := changes.Version()

		done := make(chan models.RoundChangedResponse, 1)
		go func() {
			req := testutil.MakeRequest("GET", "/voting/round/changes?since="+strconv.FormatInt(since, 10), nil, nil)
			w := httptest.NewRecorder()
			handler.Changes(w, req)

			var resp models.RoundChangedResponse
			testutil.AssertJSON(t, w, &resp)
			done <- resp
		}()

		time.Sleep(20 * time.Millisecond)
		changes.Notify()

		select {
		case resp := <-done:
			if resp.Version != since+1 {
				t.Errorf("Expected version %d, got %d", since+1, resp.Version)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Long-poll did not wake after a change")
		}
	})

	t.Run("rejects negative since", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/voting/round/changes?since=-1", nil, nil)
		w := httptest.NewRecorder()
		handler.Changes(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}
