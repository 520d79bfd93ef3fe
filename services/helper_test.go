package services_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"workshop-scoring-system/models"
	"workshop-scoring-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testOperatorToken = "test-operator-token"

// setupTestDB opens a per-test in-memory SQLite database. The pool is capped
// at one connection so concurrent test requests serialize at the pool instead
// of tripping SQLite table locks; statement interleaving between goroutines
// is still arbitrary, which is what the race tests need.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Team{}, &models.RoundState{}, &models.StationRound{}))
	return db
}

// testClock starts at a fixed instant so timestamps in assertions are stable.
func testClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC))
}

func seedRoundStore(t *testing.T, db *gorm.DB) *services.RoundStore {
	t.Helper()
	store := services.NewRoundStore(db)
	require.NoError(t, store.EnsureSeeded())
	return store
}

func createTeam(t *testing.T, db *gorm.DB, code, name string) *models.Team {
	t.Helper()
	team := &models.Team{ID: uuid.NewString(), TeamCode: code, TeamName: name}
	require.NoError(t, db.Create(team).Error)
	return team
}

func reloadTeam(t *testing.T, db *gorm.DB, id string) *models.Team {
	t.Helper()
	var team models.Team
	require.NoError(t, db.First(&team, "id = ?", id).Error)
	return &team
}

// doJSON fires a JSON request at the app and decodes the JSON response.
func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, token string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

// doRawGet fetches a path that returns a JSON array.
func doRawGet(t *testing.T, app *fiber.App, path string) []map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	return decoded
}
