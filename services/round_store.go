package services

import (
	"fmt"
	"time"

	"workshop-scoring-system/models"
	"workshop-scoring-system/scoring"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoundStore is the only path to the round document. Round-control writes and
// validator reads both go through here, so the read-fresh-per-submission
// contract holds by construction: Fresh is a new SELECT every call, and there
// is no cached copy to go stale.
type RoundStore struct {
	DB *gorm.DB
}

func NewRoundStore(db *gorm.DB) *RoundStore {
	return &RoundStore{DB: db}
}

// EnsureSeeded creates the round-state row and its four station sub-records
// if this is a fresh database. Idempotent; called once at boot.
func (s *RoundStore) EnsureSeeded() error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		rs := models.RoundState{ID: models.DefaultWorkshopID, RoundTimeLimit: scoring.DefaultTimeLimit}
		if err := tx.FirstOrCreate(&rs, models.RoundState{ID: models.DefaultWorkshopID}).Error; err != nil {
			return fmt.Errorf("seed round state: %w", err)
		}
		for n := 1; n <= scoring.NumStations; n++ {
			st := models.StationRound{
				ID:             uuid.NewString(),
				RoundStateID:   rs.ID,
				StationNum:     n,
				RoundTimeLimit: scoring.DefaultTimeLimit,
			}
			err := tx.Where(models.StationRound{RoundStateID: rs.ID, StationNum: n}).
				FirstOrCreate(&st).Error
			if err != nil {
				return fmt.Errorf("seed station %d: %w", n, err)
			}
		}
		return nil
	})
}

// Fresh reads the whole round document. Every admission decision starts here;
// never reuse the result across submissions.
func (s *RoundStore) Fresh() (*models.RoundState, error) {
	var rs models.RoundState
	err := s.DB.Preload("Stations", func(db *gorm.DB) *gorm.DB {
		return db.Order("station_num ASC")
	}).First(&rs, "id = ?", models.DefaultWorkshopID).Error
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

// ApplyAll persists an all-stations patch: the legacy global fields plus all
// four station sub-records, in one transaction.
func (s *RoundStore) ApplyAll(p scoring.AllPatch, markStarted bool) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		global := map[string]interface{}{
			"all_active":       p.AllActive,
			"round_active":     p.Legacy.Active,
			"active_station":   p.ActiveStation,
			"round_time_limit": p.Legacy.TimeLimit,
			"round_started_at": startedAtValue(p.Legacy.StartedAt),
		}
		if markStarted {
			global["workshop_started"] = true
		}
		err := tx.Model(&models.RoundState{}).
			Where("id = ?", models.DefaultWorkshopID).
			Updates(global).Error
		if err != nil {
			return err
		}
		for n := 1; n <= scoring.NumStations; n++ {
			if err := updateStation(tx, n, p.Stations[n]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplySingle persists a single-station patch: the global authority fields,
// explicitly dropping out of all-mode, and a mirror of the active station's
// sub-record so all-mode readers stay coherent.
func (s *RoundStore) ApplySingle(p scoring.SinglePatch, markStarted bool) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		global := map[string]interface{}{
			"all_active":       false,
			"round_active":     p.Legacy.Active,
			"active_station":   p.ActiveStation,
			"round_time_limit": p.Legacy.TimeLimit,
			"round_started_at": startedAtValue(p.Legacy.StartedAt),
		}
		if markStarted {
			global["workshop_started"] = true
		}
		err := tx.Model(&models.RoundState{}).
			Where("id = ?", models.DefaultWorkshopID).
			Updates(global).Error
		if err != nil {
			return err
		}
		if p.Station != 0 {
			return updateStation(tx, p.Station, p.Legacy)
		}
		return nil
	})
}

// UpdateStation persists one station's round record (all-mode per-station
// control).
func (s *RoundStore) UpdateStation(n int, st scoring.StationState) error {
	return updateStation(s.DB, n, st)
}

func updateStation(tx *gorm.DB, n int, st scoring.StationState) error {
	return tx.Model(&models.StationRound{}).
		Where("round_state_id = ? AND station_num = ?", models.DefaultWorkshopID, n).
		Updates(map[string]interface{}{
			"round_active":     st.Active,
			"round_time_limit": st.TimeLimit,
			"round_started_at": startedAtValue(st.StartedAt),
		}).Error
}

// startedAtValue keeps a typed nil out of the update map so GORM writes NULL.
func startedAtValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
