package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/newsradar/backend/internal/matching"
)

type fakeRunner struct {
	stats *matching.RunStats
	err   error
}

func (f *fakeRunner) Run(_ context.Context) (*matching.RunStats, error) {
	return f.stats, f.err
}

func (f *fakeRunner) MatchProfile(_ context.Context, _ uuid.UUID) (*matching.RunStats, error) {
	return f.stats, f.err
}

func newMatchingTestApp(runner MatchingRunner) *fiber.App {
	app := fiber.New()
	h := NewMatchingHandler(runner)
	app.Post("/matching/run", h.TriggerRun)
	app.Post("/profiles/:id/matching", h.MatchProfile)
	return app
}

func TestTriggerRun_ReturnsStats(t *testing.T) {
	stats := &matching.RunStats{
		RunID:             uuid.New(),
		ProfilesProcessed: 12,
		MatchesInserted:   40,
	}
	app := newMatchingTestApp(&fakeRunner{stats: stats})

	req := httptest.NewRequest("POST", "/matching/run", nil)
	resp, err := app.Test(req)

	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var got matching.RunStats
	json.Unmarshal(body, &got)
	assert.Equal(t, 12, got.ProfilesProcessed)
	assert.Equal(t, 40, got.MatchesInserted)
}

func TestTriggerRun_Error(t *testing.T) {
	app := newMatchingTestApp(&fakeRunner{err: errors.New("db gone")})

	req := httptest.NewRequest("POST", "/matching/run", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestMatchProfile_UnknownProfileIs404(t *testing.T) {
	app := newMatchingTestApp(&fakeRunner{err: matching.ErrProfileNotFound})

	req := httptest.NewRequest("POST", "/profiles/"+uuid.NewString()+"/matching", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMatchProfile_InvalidID(t *testing.T) {
	app := newMatchingTestApp(&fakeRunner{})

	req := httptest.NewRequest("POST", "/profiles/nope/matching", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMatchProfile_ReturnsStats(t *testing.T) {
	stats := &matching.RunStats{RunID: uuid.New(), ProfilesProcessed: 1}
	app := newMatchingTestApp(&fakeRunner{stats: stats})

	req := httptest.NewRequest("POST", "/profiles/"+uuid.NewString()+"/matching", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
