package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkodi/whatsapp-redirect/internal/balancer"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/middleware"
	"github.com/darkodi/whatsapp-redirect/internal/model"
	"github.com/darkodi/whatsapp-redirect/internal/repository"
	"github.com/darkodi/whatsapp-redirect/internal/service"
)

const testToken = "s3cret"

type testServer struct {
	mux     http.Handler
	links   *repository.LinkRepository
	numbers *repository.NumberRepository
	logs    *repository.RedirectLogRepository
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := repository.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	links := repository.NewLinkRepository(db)
	numbers := repository.NewNumberRepository(db)
	logs := repository.NewRedirectLogRepository(db)
	log := logger.Nop()

	redirectSvc := service.NewRedirectService(links, numbers, logs,
		balancer.New(logs, balancer.DefaultConfig()),
		service.RedirectConfig{CountryCode: "55", DefaultMessage: "Olá", WriteTimeout: time.Second},
		log,
	)
	statsSvc := service.NewStatsService(repository.NewStatsRepository(db), log)

	mux := SetupRoutes(
		NewRedirectHandler(redirectSvc, nil, log),
		NewHealthHandler(map[string]Pinger{"database": db}, log),
		NewStatsHandler(statsSvc, testToken, log),
	)
	// httptest requests come from 192.0.2.1
	resolver, err := middleware.NewIPResolver([]string{"192.0.2.0/24"})
	require.NoError(t, err)

	return &testServer{mux: resolver.Middleware()(mux), links: links, numbers: numbers, logs: logs}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seed(t *testing.T, owner int64, linkName, phone string) *model.CustomLink {
	t.Helper()
	ctx := context.Background()
	link := &model.CustomLink{OwnerID: owner, Name: linkName, Message: "Oi, vim do site", IsActive: true}
	require.NoError(t, s.links.Create(ctx, link))
	if phone != "" {
		require.NoError(t, s.numbers.Create(ctx, &model.PhoneNumber{OwnerID: owner, Phone: phone, IsActive: true}))
	}
	return link
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestRedirect(t *testing.T) {
	srv := setupTestServer(t)
	link := srv.seed(t, 3, "promo", "41999887766")

	req := httptest.NewRequest(http.MethodGet, "/promo", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.20")
	req.Header.Set("User-Agent", "test-agent")
	rec := srv.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://wa.me/5541999887766?text=Oi%2C%20vim%20do%20site", rec.Header().Get("Location"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rows, err := srv.logs.CountByLink(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	entry, err := srv.logs.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.20", entry.IP)
	assert.Equal(t, "test-agent", entry.UserAgent)
}

func TestRedirectWithOwnerPrefix(t *testing.T) {
	srv := setupTestServer(t)
	srv.seed(t, 1, "promo", "5541900000001")
	srv.seed(t, 2, "promo", "5541900000002")

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/2/promo", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "5541900000002")

	// unscoped lookup falls to the oldest link
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/promo", nil))
	assert.Contains(t, rec.Header().Get("Location"), "5541900000001")
}

func TestRedirectErrors(t *testing.T) {
	srv := setupTestServer(t)
	srv.seed(t, 4, "empty", "")

	inactive := &model.CustomLink{OwnerID: 4, Name: "old", IsActive: false}
	require.NoError(t, srv.links.Create(context.Background(), inactive))

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown link", "/nope", http.StatusNotFound, "LINK_NOT_FOUND"},
		{"inactive link", "/old", http.StatusNotFound, "LINK_NOT_FOUND"},
		{"no numbers", "/empty", http.StatusNotFound, "NO_NUMBERS_AVAILABLE"},
		{"reserved name", "/favicon.ico", http.StatusNotFound, "LINK_NOT_FOUND"},
		{"bad characters", "/promo.v2", http.StatusBadRequest, "INVALID_LINK_NAME"},
		{"bad prefix", "/abc/promo", http.StatusBadRequest, "INVALID_PARAMETER"},
		{"wrong owner", "/9/empty", http.StatusNotFound, "LINK_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

type failingRedirector struct{}

func (failingRedirector) HandleRedirect(context.Context, model.RedirectRequest) (*model.RedirectResult, error) {
	return nil, errors.New("connection refused")
}

func TestRedirectInternalError(t *testing.T) {
	h := NewRedirectHandler(failingRedirector{}, nil, logger.Nop())
	mux := SetupRoutes(h, NewHealthHandler(nil, logger.Nop()), nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/promo", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestHealth(t *testing.T) {
	srv := setupTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","checks":{"database":"ok"}}`, rec.Body.String())

	down := NewHealthHandler(map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
	}, logger.Nop())
	rec = httptest.NewRecorder()
	down.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", errorCode(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestOwnerStats(t *testing.T) {
	srv := setupTestServer(t)
	srv.seed(t, 5, "promo", "5541999887766")
	for range 3 {
		srv.do(httptest.NewRequest(http.MethodGet, "/promo", nil))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/owners/5/stats?limit=5", nil)
	req.Header.Set(AdminTokenHeader, testToken)
	rec := srv.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats model.OwnerStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(5), stats.OwnerID)
	assert.Equal(t, int64(3), stats.TotalRedirects)
	assert.Equal(t, int64(1), stats.ActiveNumbers)
	require.Len(t, stats.Links, 1)
	assert.Equal(t, int64(3), stats.Links[0].Clicks)
	assert.Len(t, stats.Recent, 3)
}

func TestOwnerStatsRejectsRequests(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"missing token", "/api/owners/1/stats", "", http.StatusUnauthorized},
		{"wrong token", "/api/owners/1/stats", "guess", http.StatusUnauthorized},
		{"bad owner", "/api/owners/x/stats", testToken, http.StatusBadRequest},
		{"bad limit", "/api/owners/1/stats?limit=-1", testToken, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set(AdminTokenHeader, tt.token)
			}
			assert.Equal(t, tt.status, srv.do(req).Code)
		})
	}
}

func TestStatsRouteNotMountedWithoutHandler(t *testing.T) {
	mux := SetupRoutes(NewRedirectHandler(failingRedirector{}, nil, logger.Nop()), NewHealthHandler(nil, logger.Nop()), nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/owners/1/stats", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestUnknownRoutes(t *testing.T) {
	srv := setupTestServer(t)

	for _, path := range []string{"/", "/1/promo/extra"} {
		rec := srv.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "NOT_FOUND", errorCode(t, rec), path)
	}
}
