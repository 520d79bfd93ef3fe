package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"

	"workshop-scoring-system/models"
	"workshop-scoring-system/scoring"
	"workshop-scoring-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// codeCharset drops easily-confused characters (0/O, 1/I) because team codes
// are typed into station keypads by hand.
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 5

// TeamService owns team registration, the standings read model, and the
// operator edit/reset paths. Operator writes recompute totals from the four
// station columns in a single UPDATE, the same discipline the aggregator
// uses, so the two writer classes can't leave a drifted total behind.
type TeamService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewTeamService(db *gorm.DB, clock clockwork.Clock) *TeamService {
	return &TeamService{DB: db, Clock: clock}
}

// ── Registration ─────────────────────────────────────────────────────────────

func generateTeamCode() string {
	var b strings.Builder
	b.WriteString("T-")
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeCharset[rand.Intn(len(codeCharset))])
	}
	return b.String()
}

// RegisterTeam creates a team with a fresh unique code. All score fields
// start at zero; only the aggregator and the admin paths mutate them after
// this.
func (s *TeamService) RegisterTeam(c *fiber.Ctx) error {
	var req models.RegisterTeamRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	req.TeamName = strings.TrimSpace(req.TeamName)
	if req.TeamName == "" {
		return c.Status(400).JSON(fiber.Map{"error": "team_name is required"})
	}

	// Retry a handful of times on code collisions; the space is large enough
	// that more than one retry is already unusual.
	var code string
	for attempt := 0; attempt < 10; attempt++ {
		candidate := generateTeamCode()
		var count int64
		if err := s.DB.Model(&models.Team{}).Where("team_code = ?", candidate).Count(&count).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to check team code"})
		}
		if count == 0 {
			code = candidate
			break
		}
	}
	if code == "" {
		return c.Status(500).JSON(fiber.Map{"error": "could not allocate a team code"})
	}

	team := models.Team{
		ID:       uuid.NewString(),
		TeamCode: code,
		TeamName: req.TeamName,
		Members:  strings.Join(req.Members, "\n"),
	}
	if err := s.DB.Create(&team).Error; err != nil {
		log.Printf("[Teams] create failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create team"})
	}
	log.Printf("🎫 [Teams] registered %q as %s", team.TeamName, team.TeamCode)
	return c.Status(201).JSON(team.Decorate())
}

// ── Read model ───────────────────────────────────────────────────────────────

// GetTeams returns the standings: all teams, highest total first.
func (s *TeamService) GetTeams(c *fiber.Ctx) error {
	var teams []models.Team
	if err := s.DB.Order("total_score DESC, team_name ASC").Find(&teams).Error; err != nil {
		log.Printf("[Teams] list failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch teams"})
	}
	for i := range teams {
		teams[i].Decorate()
	}
	return c.JSON(teams)
}

func (s *TeamService) GetTeamByCode(c *fiber.Ctx) error {
	var team models.Team
	err := s.DB.Where("team_code = ?", c.Params("code")).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "Team not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch team"})
	}
	return c.JSON(team.Decorate())
}

// ── Operator edit path ───────────────────────────────────────────────────────

// UpdateTeamScores is the out-of-band admin override: set station scores and
// attempt counters directly. Scores are clamped to 0-1000, a station is
// complete iff its score is positive, and the total is recomputed from the
// station columns inside the same UPDATE.
func (s *TeamService) UpdateTeamScores(c *fiber.Ctx) error {
	var req models.AdminScoresRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	teamID := c.Params("id")

	updates := map[string]interface{}{}
	totalTerms := make([]string, 0, scoring.NumStations)
	totalArgs := make([]interface{}, 0, scoring.NumStations)

	scores := []*int{req.Station1Score, req.Station2Score, req.Station3Score, req.Station4Score}
	attempts := []*int{req.Station1Attempts, req.Station2Attempts, req.Station3Attempts, req.Station4Attempts}
	for n := 1; n <= scoring.NumStations; n++ {
		if sc := scores[n-1]; sc != nil {
			v := clamp(*sc, 0, scoring.MaxRawScore)
			updates[models.StationScoreColumn(n)] = v
			updates[models.StationCompleteColumn(n)] = v > 0
			totalTerms = append(totalTerms, "?")
			totalArgs = append(totalArgs, v)
		} else {
			totalTerms = append(totalTerms, models.StationScoreColumn(n))
		}
		if at := attempts[n-1]; at != nil {
			updates[models.StationAttemptsColumn(n)] = max(*at, 0)
		}
	}
	if len(updates) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "nothing to update"})
	}
	// Total = recompute over new values for edited stations, current columns
	// for the rest — one atomic statement, same as the device write path.
	updates["total_score"] = gorm.Expr(strings.Join(totalTerms, " + "), totalArgs...)

	res := s.DB.Model(&models.Team{}).Where("id = ?", teamID).Updates(updates)
	if res.Error != nil {
		log.Printf("[Teams] admin edit failed: %v", res.Error)
		return c.Status(500).JSON(fiber.Map{"error": "failed to update scores"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "Team not found"})
	}

	var team models.Team
	if err := s.DB.First(&team, "id = ?", teamID).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch team"})
	}
	log.Printf("✏️ [Teams] admin edit: team=%s total=%d", team.TeamCode, team.TotalScore)
	return c.JSON(team.Decorate())
}

// ResetTeam clears a single station (score, attempts, completion) when a
// station is given, or the whole team otherwise.
func (s *TeamService) ResetTeam(c *fiber.Ctx) error {
	var req models.ResetRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	teamID := c.Params("id")

	var updates map[string]interface{}
	if req.Station != nil {
		n := *req.Station
		if !scoring.ValidStation(n) {
			return c.Status(400).JSON(fiber.Map{"error": "station must be 1-4"})
		}
		updates = map[string]interface{}{
			models.StationScoreColumn(n):    0,
			models.StationAttemptsColumn(n): 0,
			models.StationCompleteColumn(n): false,
			// SET sees the pre-update row, so subtracting the old station
			// score yields the new sum.
			"total_score": gorm.Expr(models.TotalScoreExpr + " - " + models.StationScoreColumn(n)),
		}
	} else {
		updates = fullResetValues(true)
	}

	res := s.DB.Model(&models.Team{}).Where("id = ?", teamID).Updates(updates)
	if res.Error != nil {
		log.Printf("[Teams] reset failed: %v", res.Error)
		return c.Status(500).JSON(fiber.Map{"error": "reset failed"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "Team not found"})
	}
	log.Printf("🧹 [Teams] reset team=%s station=%v", teamID, req.Station)
	return c.JSON(fiber.Map{"success": true})
}

// ResetAllScores zeroes every team's scores and completions before a rerun.
// Attempt counters survive on purpose: penalty history carries across a
// rescored round.
func (s *TeamService) ResetAllScores(c *fiber.Ctx) error {
	res := s.DB.Model(&models.Team{}).Where("1 = 1").Updates(fullResetValues(false))
	if res.Error != nil {
		log.Printf("[Teams] reset-all failed: %v", res.Error)
		return c.Status(500).JSON(fiber.Map{"error": "reset failed"})
	}
	log.Printf("🧹 [Teams] all scores reset (%d teams)", res.RowsAffected)
	return c.JSON(fiber.Map{"success": true, "teams": res.RowsAffected})
}

func fullResetValues(includeAttempts bool) map[string]interface{} {
	updates := map[string]interface{}{"total_score": 0}
	for n := 1; n <= scoring.NumStations; n++ {
		updates[models.StationScoreColumn(n)] = 0
		updates[models.StationCompleteColumn(n)] = false
		if includeAttempts {
			updates[models.StationAttemptsColumn(n)] = 0
		}
	}
	return updates
}

// ── Standings export ─────────────────────────────────────────────────────────

// ExportStandings renders the current standings as CSV and uploads it to R2,
// returning the public URL.
func (s *TeamService) ExportStandings(c *fiber.Ctx) error {
	if !utils.R2Ready() {
		return c.Status(503).JSON(fiber.Map{"error": "export storage not configured"})
	}

	var teams []models.Team
	if err := s.DB.Order("total_score DESC, team_name ASC").Find(&teams).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch teams"})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{
		"rank", "team_code", "team_name",
		"station1", "station2", "station3", "station4",
		"attempts1", "attempts2", "attempts3", "attempts4",
		"total",
	})
	for i, t := range teams {
		_ = w.Write([]string{
			strconv.Itoa(i + 1), t.TeamCode, t.TeamName,
			strconv.Itoa(t.Station1Score), strconv.Itoa(t.Station2Score),
			strconv.Itoa(t.Station3Score), strconv.Itoa(t.Station4Score),
			strconv.Itoa(t.Station1Attempts), strconv.Itoa(t.Station2Attempts),
			strconv.Itoa(t.Station3Attempts), strconv.Itoa(t.Station4Attempts),
			strconv.Itoa(t.TotalScore),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to render CSV"})
	}

	key := fmt.Sprintf("exports/%s-standings-%s.csv",
		slug.Make(models.DefaultWorkshopID),
		s.Clock.Now().UTC().Format("20060102-150405"))
	url, err := utils.UploadBytesToR2(buf.Bytes(), key, "text/csv")
	if err != nil {
		log.Printf("[Teams] export upload failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to upload export"})
	}
	log.Printf("📤 [Teams] standings exported: %s", url)
	return c.JSON(fiber.Map{"success": true, "url": url, "teams": len(teams)})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
