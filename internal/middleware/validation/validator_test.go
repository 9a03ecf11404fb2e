package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{Logger: zap.NewNop()}))
	app.Get("/api/v1/profiles/:id/matches", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	app.Post("/api/v1/articles", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusCreated)
	})
	return app
}

func TestRejectsSuspiciousSearchTerm(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("GET", "/api/v1/profiles/x/matches?search_term=%3Cscript%3Ealert(1)%3C/script%3E", nil)
	resp, _ := app.Test(req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/v1/profiles/x/matches?search_term=solar+grid", nil)
	resp, _ = app.Test(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRejectsOverlongSearchTerm(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("GET", "/api/v1/profiles/x/matches?search_term="+strings.Repeat("a", 600), nil)
	resp, _ := app.Test(req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRejectsUnsupportedContentType(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("POST", "/api/v1/articles", strings.NewReader("<xml/>"))
	req.Header.Set("Content-Type", "text/xml")
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestRejectsBadArticleURL(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("POST", "/api/v1/articles",
		strings.NewReader(`{"url": "ftp://example.com/a", "html": "<p>x</p>"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAcceptsValidArticle(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("POST", "/api/v1/articles",
		strings.NewReader(`{"url": "https://example.com/a", "html": "<p>x</p>"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
