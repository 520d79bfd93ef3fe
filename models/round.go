package models

import (
	"time"

	"workshop-scoring-system/scoring"
)

// DefaultWorkshopID keys the single round-state row. One workshop runs at a
// time; the row is created at setup and mutated by every round-control action.
const DefaultWorkshopID = "feb2026"

// RoundState is the global round document. The top-level fields are the
// single-station authority (and the legacy compatibility view while all-mode
// is engaged); the per-station rows are the authority when AllActive.
type RoundState struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	WorkshopStarted bool       `json:"workshop_started" gorm:"default:false"`
	AllActive       bool       `json:"all_active" gorm:"default:false"`
	RoundActive     bool       `json:"round_active" gorm:"default:false"`
	ActiveStation   *int       `json:"active_station"`
	RoundTimeLimit  int        `json:"round_time_limit" gorm:"default:300"` // seconds
	RoundStartedAt  *time.Time `json:"round_started_at"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	Stations []StationRound `json:"stations,omitempty" gorm:"foreignKey:RoundStateID"`
}

// StationRound is one station's independently-timed round, authoritative only
// in all-stations mode.
type StationRound struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	RoundStateID   string     `json:"round_state_id" gorm:"not null;index;uniqueIndex:idx_round_station"`
	StationNum     int        `json:"station_num" gorm:"not null;uniqueIndex:idx_round_station"`
	RoundActive    bool       `json:"round_active" gorm:"default:false"`
	RoundTimeLimit int        `json:"round_time_limit" gorm:"default:300"`
	RoundStartedAt *time.Time `json:"round_started_at"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// Snapshot converts the persisted document into the pure form the state
// machine and validator operate on.
func (rs *RoundState) Snapshot() scoring.Snapshot {
	snap := scoring.Snapshot{
		AllActive: rs.AllActive,
		Single: scoring.StationState{
			Active:    rs.RoundActive,
			TimeLimit: rs.RoundTimeLimit,
			StartedAt: rs.RoundStartedAt,
		},
		ActiveStation: rs.ActiveStation,
		Stations:      make(map[int]scoring.StationState, scoring.NumStations),
	}
	for i := range rs.Stations {
		st := rs.Stations[i]
		snap.Stations[st.StationNum] = scoring.StationState{
			Active:    st.RoundActive,
			TimeLimit: st.RoundTimeLimit,
			StartedAt: st.RoundStartedAt,
		}
	}
	return snap
}
