package models

import "time"

// Round status constants
const (
	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Rejection codes returned in ErrorResponse.Code. Each maps to exactly one
// user-facing message on the client, so they must stay distinct and stable.
const (
	CodeNoOpenRound         = "no_open_round"
	CodeRoundClosed         = "round_closed"
	CodeRoundPaused         = "round_paused"
	CodeStageMismatch       = "stage_mismatch"
	CodeBallotLimitExceeded = "ballot_limit_exceeded"
	CodeInvalidCandidate    = "invalid_candidate"
	CodeDuplicateSelection  = "duplicate_selection"
	CodeAlreadyVoted        = "already_voted"
	CodeInvalidTransition   = "invalid_transition"
)

// Request types

type CreateRoundRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Team              string `json:"team"`
	Year              int    `json:"year"`
	ExpectedVoters    int    `json:"expected_voters"`
	TargetWinnerCount int    `json:"target_winner_count"`
}

type AddCandidateRequest struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Location    string `json:"location,omitempty"`
	GroupName   string `json:"group_name,omitempty"`
	Age         *int   `json:"age,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// DeviceSignals are the client-observable characteristics the server hashes
// into a per-round device identifier. They are a pseudonym, not a credential:
// the ballot table's unique constraint is the actual duplicate check.
type DeviceSignals struct {
	UserAgent        string `json:"user_agent"`
	Language         string `json:"language"`
	Platform         string `json:"platform"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
}

type SubmitBallotRequest struct {
	Stage        int           `json:"stage"`
	CandidateIDs []string      `json:"candidate_ids"`
	Device       DeviceSignals `json:"device"`
}

// Response types

type CreateRoundResponse struct {
	RoundID   string `json:"round_id"`
	AdminKey  string `json:"admin_key"`
	BallotURL string `json:"ballot_url,omitempty"`
}

type AddCandidateResponse struct {
	CandidateID string `json:"candidate_id"`
}

type RemoveCandidateResponse struct {
	CandidateID string `json:"candidate_id"`
	SoftRemoved bool   `json:"soft_removed"`
}

type SelectCandidateResponse struct {
	CandidateID   string `json:"candidate_id"`
	SelectedCount int    `json:"selected_count"`
}

type SubmitBallotResponse struct {
	BallotID string   `json:"ballot_id"`
	VoteIDs  []string `json:"vote_ids"`
	Stage    int      `json:"stage"`
}

type FinalizeStageResponse struct {
	Stage           int      `json:"stage"`
	Eliminated      []string `json:"eliminated"`
	NextStage       int      `json:"next_stage"`
	NextBallotLimit int      `json:"next_ballot_limit"`
}

type BallotCountResponse struct {
	RoundID        string `json:"round_id"`
	Stage          int    `json:"stage"`
	BallotCount    int    `json:"ballot_count"`
	ExpectedVoters int    `json:"expected_voters"`
	Label          string `json:"label"`
}

type RoundChangedResponse struct {
	Version int64 `json:"version"`
}

type ResultsVisibilityResponse struct {
	RoundID string `json:"round_id"`
	Stage   int    `json:"stage"`
	Visible bool   `json:"visible"`
}

// Domain types

type Round struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Team              string     `json:"team"`
	Year              int        `json:"year"`
	ExpectedVoters    int        `json:"expected_voters"`
	IsOpen            bool       `json:"is_open"`
	IsPaused          bool       `json:"is_paused"`
	IsClosed          bool       `json:"is_closed"`
	CurrentStage      int        `json:"current_stage"`
	StageBallotLimit  int        `json:"stage_ballot_limit"`
	TargetWinnerCount int        `json:"target_winner_count"`
	SelectedCount     int        `json:"selected_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
}

// Status reports the lifecycle state as a single label. The paused flag is
// orthogonal and not part of the state machine.
func (r Round) Status() string {
	switch {
	case r.IsClosed:
		return StatusClosed
	case r.IsOpen:
		return StatusOpen
	default:
		return StatusDraft
	}
}

type Candidate struct {
	ID                string    `json:"id"`
	RoundID           string    `json:"round_id"`
	Name              string    `json:"name"`
	Surname           string    `json:"surname"`
	Location          *string   `json:"location,omitempty"`
	GroupName         *string   `json:"group_name,omitempty"`
	Age               *int      `json:"age,omitempty"`
	Description       *string   `json:"description,omitempty"`
	ImageURL          *string   `json:"image_url,omitempty"`
	OrderIndex        int       `json:"order_index"`
	IsEliminated      bool      `json:"is_eliminated"`
	IsSelected        bool      `json:"is_selected"`
	EliminatedAtStage *int      `json:"eliminated_at_stage,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Ballot struct {
	ID          string    `json:"id"`
	RoundID     string    `json:"round_id"`
	Stage       int       `json:"stage"`
	DeviceHash  string    `json:"-"` // Never expose in JSON
	SubmittedAt time.Time `json:"submitted_at"`
	IPHash      *string   `json:"-"` // Never expose in JSON
	UserAgent   *string   `json:"-"` // Never expose in JSON
}

type Vote struct {
	ID          string    `json:"id"`
	BallotID    string    `json:"ballot_id"`
	RoundID     string    `json:"round_id"`
	CandidateID string    `json:"candidate_id"`
	Stage       int       `json:"stage"`
	CreatedAt   time.Time `json:"created_at"`
}

type RoundResult struct {
	RoundID     string    `json:"round_id"`
	Stage       int       `json:"stage"`
	CandidateID string    `json:"candidate_id"`
	VoteCount   int       `json:"vote_count"`
	IsVisible   bool      `json:"is_visible"`
	ComputedAt  time.Time `json:"computed_at"`
}

type RoundAdminView struct {
	Round      Round         `json:"round"`
	Candidates []Candidate   `json:"candidates"`
	Results    []RoundResult `json:"results"`
}

type PublicRound struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	IsPaused         bool   `json:"is_paused"`
	CurrentStage     int    `json:"current_stage"`
	StageBallotLimit int    `json:"stage_ballot_limit"`
}

type StageResultRow struct {
	CandidateID string `json:"candidate_id"`
	VoteCount   int    `json:"vote_count"`
}

type StageResultsResponse struct {
	RoundID string           `json:"round_id"`
	Stage   int              `json:"stage"`
	Results []StageResultRow `json:"results"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
