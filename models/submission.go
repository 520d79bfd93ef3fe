package models

// ScoreSubmission is the device payload for POST /score. Field names are
// camelCase because that is what the deployed station firmware sends.
// Score is a pointer so "missing" and "0" are distinguishable.
type ScoreSubmission struct {
	TeamCode string `json:"teamCode"`
	Station  int    `json:"station"`
	Score    *int   `json:"score"`
	IsFail   bool   `json:"isFail"`
}

// ScoreResponse is the success shape devices parse.
type ScoreResponse struct {
	Success  bool   `json:"success"`
	Score    int    `json:"score"`          // capped score actually stored
	Raw      int    `json:"raw"`            // what the device sent
	Attempts int    `json:"attempts"`       // attempt count after this submission
	Station  int    `json:"station"`
	Fail     bool   `json:"fail,omitempty"` // true for acknowledged fail submissions
}

// RegisterTeamRequest creates a team; the server generates the team code.
type RegisterTeamRequest struct {
	TeamName string   `json:"team_name"`
	Members  []string `json:"members"`
}

// RoundControlRequest carries the optional time limit for start operations.
type RoundControlRequest struct {
	Limit int `json:"limit"` // seconds; 0 = default
}

// AdminScoresRequest is the operator score-edit payload. Nil fields are left
// untouched.
type AdminScoresRequest struct {
	Station1Score    *int `json:"station1_score"`
	Station2Score    *int `json:"station2_score"`
	Station3Score    *int `json:"station3_score"`
	Station4Score    *int `json:"station4_score"`
	Station1Attempts *int `json:"station1_attempts"`
	Station2Attempts *int `json:"station2_attempts"`
	Station3Attempts *int `json:"station3_attempts"`
	Station4Attempts *int `json:"station4_attempts"`
}

// ResetRequest clears one station when Station is set, or the whole team.
type ResetRequest struct {
	Station *int `json:"station"`
}
