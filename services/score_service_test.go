package services_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"workshop-scoring-system/handlers"
	"workshop-scoring-system/models"
	"workshop-scoring-system/scoring"
	"workshop-scoring-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type scoreFixture struct {
	app   *fiber.App
	db    *gorm.DB
	store *services.RoundStore
	clock *clockwork.FakeClock
	svc   *services.ScoreService
}

func newScoreFixture(t *testing.T) *scoreFixture {
	db := setupTestDB(t)
	store := seedRoundStore(t, db)
	clock := testClock()
	svc := services.NewScoreService(db, store, clock)
	app := fiber.New()
	handlers.SetupScoreRoutes(app, svc)
	return &scoreFixture{app: app, db: db, store: store, clock: clock, svc: svc}
}

func (f *scoreFixture) startStation(t *testing.T, station, limit int) {
	t.Helper()
	require.NoError(t, f.store.ApplySingle(scoring.StartSingle(f.clock.Now(), station, limit), true))
}

func (f *scoreFixture) startAll(t *testing.T, limit int) {
	t.Helper()
	require.NoError(t, f.store.ApplyAll(scoring.StartAll(f.clock.Now(), limit), true))
}

func submission(code string, station int, score int, isFail bool) map[string]interface{} {
	body := map[string]interface{}{"teamCode": code, "station": station, "isFail": isFail}
	if !isFail {
		body["score"] = score
	}
	return body
}

// Round starts for station 2 with limit 180s; ten seconds in, the first
// submission wins at full value and locks the station. A retried higher
// score is answered with the stored value, untouched.
func TestSubmitScoreFirstWinFlow(t *testing.T) {
	f := newScoreFixture(t)
	f.startStation(t, 2, 180)
	team := createTeam(t, f.db, "T-ABCDE", "Shield Crew")
	f.clock.Advance(10 * time.Second)

	resp, body := doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 2, 950, false), "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(950), body["score"])
	assert.Equal(t, float64(950), body["raw"])
	assert.Equal(t, float64(1), body["attempts"])

	got := reloadTeam(t, f.db, team.ID)
	assert.Equal(t, 950, got.Station2Score)
	assert.Equal(t, 950, got.TotalScore)
	assert.Equal(t, 1, got.Station2Attempts)
	assert.True(t, got.Station2Complete)
	assert.Equal(t, []int{2}, got.Decorate().CompletedStations)

	// Retry with a better score: idempotent acknowledgment, nothing moves.
	resp, body = doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 2, 999, false), "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Already submitted", body["message"])
	assert.Equal(t, float64(950), body["score"])

	got = reloadTeam(t, f.db, team.ID)
	assert.Equal(t, 950, got.Station2Score)
	assert.Equal(t, 950, got.TotalScore)
	assert.True(t, got.Station2Complete)
	// The attempt counter still ticked — it feeds penalty lookup only.
	assert.Equal(t, 2, got.Station2Attempts)
}

// A fail submission is acknowledged but costs nothing: no score, and by
// default no attempt either, so the next real try still gets the full cap.
func TestSubmitFailIsFreeByDefault(t *testing.T) {
	f := newScoreFixture(t)
	f.startStation(t, 2, 180)
	team := createTeam(t, f.db, "T-ABCDE", "Shield Crew")

	resp, body := doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 2, 0, true), "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["fail"])
	assert.Equal(t, float64(0), body["attempts"])

	got := reloadTeam(t, f.db, team.ID)
	assert.Equal(t, 0, got.Station2Attempts)
	assert.Equal(t, 0, got.Station2Score)
	assert.Equal(t, 0, got.TotalScore)

	// The real attempt after the fail is still a first attempt.
	resp, body = doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 2, 950, false), "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(950), body["score"])
}

func TestSubmitFailCountsWhenPolicyEnabled(t *testing.T) {
	f := newScoreFixture(t)
	f.svc.CountFailedAttempts = true
	f.startStation(t, 1, 180)
	team := createTeam(t, f.db, "T-ABCDE", "Shield Crew")

	resp, body := doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 1, 0, true), "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(1), body["attempts"])
	assert.Equal(t, 1, reloadTeam(t, f.db, team.ID).Station1Attempts)

	// The fail consumed the free tier: the next score is capped at 800.
	resp, body = doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 1, 950, false), "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(800), body["score"])
	assert.Equal(t, float64(950), body["raw"])
}

func TestSubmitPenaltyTierFromPriorAttempts(t *testing.T) {
	f := newScoreFixture(t)
	f.startStation(t, 3, 180)
	team := createTeam(t, f.db, "T-ABCDE", "Shield Crew")
	require.NoError(t, f.db.Model(team).UpdateColumn("station3_attempts", 2).Error)

	resp, body := doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 3, 950, false), "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(600), body["score"])
	assert.Equal(t, float64(3), body["attempts"])

	got := reloadTeam(t, f.db, team.ID)
	assert.Equal(t, 600, got.Station3Score)
	assert.Equal(t, 600, got.TotalScore)
}

// Nothing ever wrote roundActive=false; expiry is computed from the clock at
// admission time.
func TestSubmitRejectedAfterExpiry(t *testing.T) {
	f := newScoreFixture(t)
	f.startStation(t, 2, 180)
	createTeam(t, f.db, "T-ABCDE", "Shield Crew")

	f.clock.Advance(180 * time.Second)
	resp, _ := doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 2, 500, false), "")
	assert.Equal(t, 200, resp.StatusCode, "elapsed == limit is still in")

	f.clock.Advance(1 * time.Second)
	resp, body := doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 2, 500, false), "")
	require.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, string(scoring.ReasonRoundExpired), body["reason"])
}

func TestSubmitAdmissionRejections(t *testing.T) {
	f := newScoreFixture(t)
	createTeam(t, f.db, "T-ABCDE", "Shield Crew")

	resp, body := doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 1, 500, false), "")
	require.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, string(scoring.ReasonRoundNotActive), body["reason"])

	f.startStation(t, 2, 180)
	resp, body = doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 3, 500, false), "")
	require.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, string(scoring.ReasonWrongStation), body["reason"])

	// No partial writes happened on any rejection.
	var count int64
	require.NoError(t, f.db.Model(&models.Team{}).Where("total_score > 0 OR station2_attempts > 0").Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitAllModeAdmission(t *testing.T) {
	f := newScoreFixture(t)
	f.startAll(t, 300)
	createTeam(t, f.db, "T-ABCDE", "Shield Crew")

	// Every station accepts, independent of legacy single-mode fields.
	for station := 1; station <= 4; station++ {
		resp, _ := doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", station, 100*station, false), "")
		assert.Equal(t, 200, resp.StatusCode, "station %d", station)
	}

	// Stop one station: only it starts rejecting.
	require.NoError(t, f.store.UpdateStation(2, scoring.StationState{}))
	resp, body := doJSON(t, f.app, "POST", "/score", submission("T-ABCDE", 2, 500, false), "")
	require.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, string(scoring.ReasonStationNotActive), body["reason"])
}

func TestSubmitTeamNotFound(t *testing.T) {
	f := newScoreFixture(t)
	f.startStation(t, 1, 180)

	resp, body := doJSON(t, f.app, "POST", "/score", submission("T-ZZZZZ", 1, 500, false), "")
	require.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "Team not found", body["error"])
}

func TestSubmitInputValidation(t *testing.T) {
	f := newScoreFixture(t)
	f.startStation(t, 1, 180)
	createTeam(t, f.db, "T-ABCDE", "Shield Crew")

	cases := []map[string]interface{}{
		{"station": 1, "score": 500},                                 // no teamCode
		{"teamCode": "T-ABCDE", "score": 500},                        // no station
		{"teamCode": "T-ABCDE", "station": 1},                        // no score, not a fail
		{"teamCode": "T-ABCDE", "station": 7, "score": 500},          // bad station
		{"teamCode": "T-ABCDE", "station": 1, "score": 1001},         // out of range
		{"teamCode": "T-ABCDE", "station": 1, "score": -5},           // out of range
	}
	for i, body := range cases {
		resp, _ := doJSON(t, f.app, "POST", "/score", body, "")
		assert.Equal(t, 400, resp.StatusCode, "case %d", i)
	}
}

// Many devices retry the same winning submission at once; exactly one lands,
// the rest are answered as duplicates, and the total equals the station score.
func TestConcurrentWinningSubmissions(t *testing.T) {
	f := newScoreFixture(t)
	f.startAll(t, 300)
	team := createTeam(t, f.db, "T-ABCDE", "Shield Crew")

	const n = 8
	var wins atomic.Int32
	var dups atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(raw int) {
			defer wg.Done()
			payload, _ := json.Marshal(submission("T-ABCDE", 1, raw, false))
			req := httptest.NewRequest("POST", "/score", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			resp, err := f.app.Test(req, -1)
			if err != nil {
				t.Errorf("request failed: %v", err)
				return
			}
			if resp.StatusCode != 200 {
				t.Errorf("unexpected status %d", resp.StatusCode)
				return
			}
			raw2, _ := io.ReadAll(resp.Body)
			var body map[string]interface{}
			if err := json.Unmarshal(raw2, &body); err != nil {
				t.Errorf("bad body %s: %v", raw2, err)
				return
			}
			if body["success"] == true {
				wins.Add(1)
			} else if body["message"] == "Already submitted" {
				dups.Add(1)
			}
		}(500 + i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one submission wins the lock")
	assert.Equal(t, int32(n-1), dups.Load())

	got := reloadTeam(t, f.db, team.ID)
	assert.True(t, got.Station1Complete)
	assert.Equal(t, got.Station1Score, got.TotalScore)
	assert.Equal(t, n, got.Station1Attempts, "every non-fail submission ticks the counter")
}

func TestScorePreflightCORS(t *testing.T) {
	f := newScoreFixture(t)
	req := httptest.NewRequest("OPTIONS", "/score", nil)
	req.Header.Set("Origin", "http://station-7.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}
