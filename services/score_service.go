package services

import (
	"errors"
	"log"

	"workshop-scoring-system/models"
	"workshop-scoring-system/scoring"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// ScoreService handles device score submissions: admission check against a
// fresh round snapshot, then the idempotent, attempt-penalized aggregation
// into the team row.
type ScoreService struct {
	DB     *gorm.DB
	Rounds *RoundStore
	Clock  clockwork.Clock

	// CountFailedAttempts makes fail submissions consume an attempt tier.
	// Off by default: historically a failed run was free, and station
	// operators tuned the penalty table around that.
	CountFailedAttempts bool
}

func NewScoreService(db *gorm.DB, rounds *RoundStore, clock clockwork.Clock) *ScoreService {
	return &ScoreService{DB: db, Rounds: rounds, Clock: clock}
}

// SubmitScore is POST /score. Devices retry freely: a duplicate winning
// submission is acknowledged with the stored score, never re-applied.
func (s *ScoreService) SubmitScore(c *fiber.Ctx) error {
	var req models.ScoreSubmission
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	// Input errors reject before any reads.
	if req.TeamCode == "" || req.Station == 0 || (!req.IsFail && req.Score == nil) {
		return c.Status(400).JSON(fiber.Map{"error": "Missing fields"})
	}
	if !scoring.ValidStation(req.Station) {
		return c.Status(400).JSON(fiber.Map{"error": "station must be 1-4"})
	}
	if !req.IsFail && !scoring.ValidRawScore(*req.Score) {
		return c.Status(400).JSON(fiber.Map{"error": "score must be 0-1000"})
	}

	// Admission: one fresh read of the round document, decided once at
	// request time. Expiry is computed here, not waited on from a timer.
	rs, err := s.Rounds.Fresh()
	if err != nil {
		log.Printf("[Score] round state read failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "Server error"})
	}
	if rej := scoring.Admit(rs.Snapshot(), req.Station, s.Clock.Now()); rej != nil {
		return c.Status(403).JSON(fiber.Map{
			"error":  rej.Message(),
			"reason": rej.Reason,
		})
	}

	var team models.Team
	err = s.DB.Where("team_code = ?", req.TeamCode).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[Score] team not found: %s", req.TeamCode)
		return c.Status(404).JSON(fiber.Map{"error": "Team not found"})
	}
	if err != nil {
		log.Printf("[Score] team lookup failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "Server error"})
	}

	if req.IsFail {
		return s.acknowledgeFail(c, &team, req.Station)
	}
	return s.applyScore(c, &team, req.Station, *req.Score)
}

// acknowledgeFail records a failed run. It never touches scores; whether it
// consumes an attempt tier is a policy switch.
func (s *ScoreService) acknowledgeFail(c *fiber.Ctx, team *models.Team, station int) error {
	attempts := team.StationAttempts(station)
	if s.CountFailedAttempts {
		if err := s.incrementAttempts(team.ID, station); err != nil {
			log.Printf("[Score] fail attempt increment failed: %v", err)
			return c.Status(500).JSON(fiber.Map{"error": "Server error"})
		}
		attempts++
	}
	log.Printf("💥 [Score] fail recorded: team=%s station=%d attempts=%d", team.TeamCode, station, attempts)
	return c.JSON(models.ScoreResponse{
		Success:  true,
		Fail:     true,
		Station:  station,
		Attempts: attempts,
	})
}

// applyScore runs the aggregation protocol: unconditional attempt increment,
// first-win lock, penalty cap from the pre-increment attempt count.
//
// The lock is a guarded UPDATE keyed on the station's completion flag, so two
// near-simultaneous winning submissions cannot both land — the loser sees
// zero rows affected and is answered like any other duplicate. The total is
// recomputed from the four station columns inside the same statement, never
// delta-only, so it cannot drift from their sum.
func (s *ScoreService) applyScore(c *fiber.Ctx, team *models.Team, station, raw int) error {
	attemptsBefore := team.StationAttempts(station)

	// The increment is deliberately unconditional (even for a station that
	// turns out to be completed): the counter only feeds penalty-tier
	// lookup, and repeating it on a retry is safe.
	if err := s.incrementAttempts(team.ID, station); err != nil {
		log.Printf("[Score] attempt increment failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "Server error"})
	}

	if team.StationDone(station) {
		log.Printf("[Score] station already completed: team=%s station=%d", team.TeamCode, station)
		return c.JSON(fiber.Map{
			"message": "Already submitted",
			"score":   team.StationScore(station),
			"station": station,
		})
	}

	capped := scoring.Cap(attemptsBefore, raw)
	scoreCol := models.StationScoreColumn(station)
	doneCol := models.StationCompleteColumn(station)

	res := s.DB.Model(&models.Team{}).
		Where("id = ? AND "+doneCol+" = ?", team.ID, false).
		Updates(map[string]interface{}{
			scoreCol:      capped,
			doneCol:       true,
			"total_score": gorm.Expr(models.TotalScoreExpr+" - "+scoreCol+" + ?", capped),
		})
	if res.Error != nil {
		log.Printf("[Score] score write failed: %v", res.Error)
		return c.Status(500).JSON(fiber.Map{"error": "Server error"})
	}
	if res.RowsAffected == 0 {
		// Lost the race to another winning submission; answer with what won.
		var current models.Team
		if err := s.DB.First(&current, "id = ?", team.ID).Error; err != nil {
			log.Printf("[Score] duplicate re-read failed: %v", err)
			return c.Status(500).JSON(fiber.Map{"error": "Server error"})
		}
		return c.JSON(fiber.Map{
			"message": "Already submitted",
			"score":   current.StationScore(station),
			"station": station,
		})
	}

	log.Printf("✅ [Score] saved: team=%s station=%d raw=%d capped=%d attempts=%d",
		team.TeamCode, station, raw, capped, attemptsBefore+1)
	return c.JSON(models.ScoreResponse{
		Success:  true,
		Score:    capped,
		Raw:      raw,
		Attempts: attemptsBefore + 1,
		Station:  station,
	})
}

func (s *ScoreService) incrementAttempts(teamID string, station int) error {
	col := models.StationAttemptsColumn(station)
	return s.DB.Model(&models.Team{}).
		Where("id = ?", teamID).
		UpdateColumn(col, gorm.Expr(col+" + 1")).Error
}
