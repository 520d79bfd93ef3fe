package services

import (
	"log"
	"strconv"

	"workshop-scoring-system/models"
	"workshop-scoring-system/scoring"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
)

// RoundService exposes the operator round-control surface. Every handler
// translates directly into one state-machine transition and persists the
// resulting patch through the RoundStore.
type RoundService struct {
	Store *RoundStore
	Clock clockwork.Clock
}

func NewRoundService(store *RoundStore, clock clockwork.Clock) *RoundService {
	return &RoundService{Store: store, Clock: clock}
}

// ── All-stations mode ────────────────────────────────────────────────────────

// StartAll engages all-stations mode: every station gets the same limit and
// start instant, and the legacy single-mode fields are force-written for
// readers of the old admission path.
func (s *RoundService) StartAll(c *fiber.Ctx) error {
	limit := parseLimit(c)
	p := scoring.StartAll(s.Clock.Now(), limit)
	if err := s.Store.ApplyAll(p, true); err != nil {
		log.Printf("[Rounds] start all failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to start rounds"})
	}
	log.Printf("🟢 [Rounds] ALL stations started, limit=%ds", p.Legacy.TimeLimit)
	return s.state(c)
}

func (s *RoundService) PauseAll(c *fiber.Ctx) error {
	rs, err := s.Store.Fresh()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load round state"})
	}
	if err := s.Store.ApplyAll(scoring.PauseAll(rs.Snapshot()), false); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to pause rounds"})
	}
	log.Println("⏸ [Rounds] ALL stations paused")
	return s.state(c)
}

func (s *RoundService) ResumeAll(c *fiber.Ctx) error {
	rs, err := s.Store.Fresh()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load round state"})
	}
	if err := s.Store.ApplyAll(scoring.ResumeAll(rs.Snapshot(), s.Clock.Now()), false); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to resume rounds"})
	}
	log.Println("▶️ [Rounds] ALL stations resumed")
	return s.state(c)
}

func (s *RoundService) StopAll(c *fiber.Ctx) error {
	rs, err := s.Store.Fresh()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load round state"})
	}
	if err := s.Store.ApplyAll(scoring.StopAll(rs.Snapshot()), false); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to stop rounds"})
	}
	log.Println("🔴 [Rounds] ALL stations stopped")
	return s.state(c)
}

// ── Single-station mode ──────────────────────────────────────────────────────

// StartStation starts a single-station round. This explicitly selects single
// mode: the global fields become the admission authority and all-mode is
// disengaged.
func (s *RoundService) StartStation(c *fiber.Ctx) error {
	n, ok := stationParam(c)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "station must be 1-4"})
	}
	limit := parseLimit(c)
	p := scoring.StartSingle(s.Clock.Now(), n, limit)
	if err := s.Store.ApplySingle(p, true); err != nil {
		log.Printf("[Rounds] start station %d failed: %v", n, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to start round"})
	}
	log.Printf("🟢 [Rounds] station %d started, limit=%ds", n, p.Legacy.TimeLimit)
	return s.state(c)
}

func (s *RoundService) PauseStation(c *fiber.Ctx) error {
	return s.stationTransition(c, "pause")
}

func (s *RoundService) ResumeStation(c *fiber.Ctx) error {
	return s.stationTransition(c, "resume")
}

func (s *RoundService) StopStation(c *fiber.Ctx) error {
	return s.stationTransition(c, "stop")
}

// stationTransition applies pause/resume/stop to whichever authority owns the
// station right now: the station's own record in all-mode, the global fields
// in single mode.
func (s *RoundService) stationTransition(c *fiber.Ctx, op string) error {
	n, ok := stationParam(c)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "station must be 1-4"})
	}
	rs, err := s.Store.Fresh()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load round state"})
	}
	snap := rs.Snapshot()
	now := s.Clock.Now()

	if snap.Mode() == scoring.ModeAll {
		st := snap.Stations[n]
		switch op {
		case "pause":
			st = scoring.Pause(st)
		case "resume":
			st = scoring.Resume(st, now)
		case "stop":
			st = scoring.Stop(st)
		}
		if err := s.Store.UpdateStation(n, st); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to update station round"})
		}
		log.Printf("[Rounds] station %d %s (all-mode)", n, op)
		return s.state(c)
	}

	if snap.ActiveStation == nil || *snap.ActiveStation != n {
		return c.Status(409).JSON(fiber.Map{"error": "station is not the active round"})
	}
	var p scoring.SinglePatch
	switch op {
	case "pause":
		p = scoring.PauseSingle(snap)
	case "resume":
		p = scoring.ResumeSingle(snap, now)
	case "stop":
		p = scoring.StopSingle(snap)
	}
	if err := s.Store.ApplySingle(p, false); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to update round"})
	}
	log.Printf("[Rounds] station %d %s", n, op)
	return s.state(c)
}

// ── State read model ─────────────────────────────────────────────────────────

// GetState returns the round document plus derived phase/remaining values so
// dashboards don't redo clock math.
func (s *RoundService) GetState(c *fiber.Ctx) error {
	return s.state(c)
}

func (s *RoundService) state(c *fiber.Ctx) error {
	payload, err := s.statePayload()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load round state"})
	}
	return c.JSON(payload)
}

// statePayload builds the state document; shared by the JSON endpoint and the
// SSE stream.
func (s *RoundService) statePayload() (fiber.Map, error) {
	rs, err := s.Store.Fresh()
	if err != nil {
		return nil, err
	}
	snap := rs.Snapshot()
	now := s.Clock.Now()

	stations := make([]fiber.Map, 0, scoring.NumStations)
	for n := 1; n <= scoring.NumStations; n++ {
		st := snap.Stations[n]
		stations = append(stations, fiber.Map{
			"station_num":      n,
			"round_active":     st.Active,
			"round_time_limit": st.TimeLimit,
			"round_started_at": st.StartedAt,
			"phase":            st.Phase(),
			"remaining":        st.Remaining(now),
			"expired":          st.Expired(now),
		})
	}
	return fiber.Map{
		"id":               rs.ID,
		"workshop_started": rs.WorkshopStarted,
		"mode":             snap.Mode(),
		"all_active":       rs.AllActive,
		"round_active":     rs.RoundActive,
		"active_station":   rs.ActiveStation,
		"round_time_limit": rs.RoundTimeLimit,
		"round_started_at": rs.RoundStartedAt,
		"phase":            snap.Single.Phase(),
		"remaining":        snap.Single.Remaining(now),
		"expired":          snap.Single.Expired(now),
		"stations":         stations,
	}, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func stationParam(c *fiber.Ctx) (int, bool) {
	n, err := strconv.Atoi(c.Params("station"))
	if err != nil || !scoring.ValidStation(n) {
		return 0, false
	}
	return n, true
}

func parseLimit(c *fiber.Ctx) int {
	var req models.RoundControlRequest
	if err := c.BodyParser(&req); err == nil && req.Limit > 0 {
		return req.Limit
	}
	return scoring.DefaultTimeLimit
}
