package models

import (
	"fmt"
	"time"
)

// Team is one registered workshop team. Station scores and attempt counters
// live in fixed columns (the workshop format is exactly four stations), and
// each station carries its own completion flag so the first-win lock can be a
// single guarded UPDATE instead of a read-modify-write.
type Team struct {
	ID       string `json:"id" gorm:"primaryKey"`
	TeamCode string `json:"team_code" gorm:"uniqueIndex;size:8;not null"` // e.g. "T-9KQ2M" — what devices submit
	TeamName string `json:"team_name" gorm:"not null"`
	Members  string `json:"members"` // newline-separated, as entered at registration

	Station1Score int `json:"station1_score" gorm:"default:0"` // 0 = not scored
	Station2Score int `json:"station2_score" gorm:"default:0"`
	Station3Score int `json:"station3_score" gorm:"default:0"`
	Station4Score int `json:"station4_score" gorm:"default:0"`

	Station1Attempts int `json:"station1_attempts" gorm:"default:0"`
	Station2Attempts int `json:"station2_attempts" gorm:"default:0"`
	Station3Attempts int `json:"station3_attempts" gorm:"default:0"`
	Station4Attempts int `json:"station4_attempts" gorm:"default:0"`

	Station1Complete bool `json:"-" gorm:"default:false"`
	Station2Complete bool `json:"-" gorm:"default:false"`
	Station3Complete bool `json:"-" gorm:"default:false"`
	Station4Complete bool `json:"-" gorm:"default:false"`

	TotalScore int `json:"total_score" gorm:"default:0;index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated for responses (not stored in DB)
	CompletedStations []int `json:"completed_stations" gorm:"-"`
}

// Column names, built the same way the station fields are named. Station
// numbers are validated (1..4) before these are ever interpolated into SQL.

func StationScoreColumn(n int) string    { return fmt.Sprintf("station%d_score", n) }
func StationAttemptsColumn(n int) string { return fmt.Sprintf("station%d_attempts", n) }
func StationCompleteColumn(n int) string { return fmt.Sprintf("station%d_complete", n) }

// TotalScoreExpr recomputes the total from the four station columns in SQL,
// so totals are always derived, never drifted.
const TotalScoreExpr = "station1_score + station2_score + station3_score + station4_score"

func (t *Team) StationScore(n int) int {
	switch n {
	case 1:
		return t.Station1Score
	case 2:
		return t.Station2Score
	case 3:
		return t.Station3Score
	case 4:
		return t.Station4Score
	}
	return 0
}

func (t *Team) StationAttempts(n int) int {
	switch n {
	case 1:
		return t.Station1Attempts
	case 2:
		return t.Station2Attempts
	case 3:
		return t.Station3Attempts
	case 4:
		return t.Station4Attempts
	}
	return 0
}

func (t *Team) StationDone(n int) bool {
	switch n {
	case 1:
		return t.Station1Complete
	case 2:
		return t.Station2Complete
	case 3:
		return t.Station3Complete
	case 4:
		return t.Station4Complete
	}
	return false
}

// SumStationScores is the derived total a reader should always observe in
// TotalScore.
func (t *Team) SumStationScores() int {
	return t.Station1Score + t.Station2Score + t.Station3Score + t.Station4Score
}

// Decorate fills the calculated response fields.
func (t *Team) Decorate() *Team {
	t.CompletedStations = t.CompletedStations[:0]
	for n := 1; n <= 4; n++ {
		if t.StationDone(n) {
			t.CompletedStations = append(t.CompletedStations, n)
		}
	}
	return t
}
