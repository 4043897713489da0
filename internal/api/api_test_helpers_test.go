package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/api/middleware"
	"github.com/phrazzld/storefront-api/internal/config"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/identity"
	"github.com/phrazzld/storefront-api/internal/mocks"
	"github.com/phrazzld/storefront-api/internal/service"
	"github.com/phrazzld/storefront-api/internal/service/auth"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

// testServer wires the real services over in-memory stores behind the router.
type testServer struct {
	t       *testing.T
	handler http.Handler
	db      *mocks.MemoryDB
	creds   *mocks.MockCredentialStore
	jwt     auth.JWTService
}

type serverOption func(*serverSetup)

type serverSetup struct {
	authConfig config.AuthConfig
	limiter    bool
}

func withLoginLimit(perMinute, burst int) serverOption {
	return func(s *serverSetup) {
		s.authConfig.LoginRatePerMinute = perMinute
		s.authConfig.LoginBurst = burst
		s.limiter = true
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	setup := serverSetup{authConfig: config.AuthConfig{
		JWTSecret:                   testSecret,
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 1440,
		BCryptCost:                  4,
		MaxFailedLogins:             3,
		LockoutMinutes:              15,
		LoginRatePerMinute:          60,
		LoginBurst:                  100,
	}}
	for _, opt := range opts {
		opt(&setup)
	}
	log := testLogger()

	jwtService, err := auth.NewJWTService(setup.authConfig)
	require.NoError(t, err)

	db := mocks.NewMemoryDB()
	creds := mocks.NewMockCredentialStore()
	gateway, err := identity.NewService(creds, &mocks.MockPasswordHasher{}, jwtService, setup.authConfig, log)
	require.NoError(t, err)

	engine, err := service.NewPricingEngine(db.Games(), db.Promotions(), log)
	require.NoError(t, err)
	coordinator, err := service.NewCoordinator(db.Users(), db, gateway, nil, log)
	require.NoError(t, err)
	games, err := service.NewGameService(engine, db.Games(), db, log)
	require.NoError(t, err)
	promotions, err := service.NewPromotionService(engine, db.Promotions(), db, nil, log)
	require.NoError(t, err)
	users, err := service.NewUserService(engine, db.Users(), db.Library(), db.Games(), db.Promotions(), db, log)
	require.NoError(t, err)

	deps := RouterDeps{
		Auth:       NewAuthHandler(gateway, coordinator, log),
		Users:      NewUserHandler(users, coordinator, log),
		Games:      NewGameHandler(games, log),
		Promotions: NewPromotionHandler(promotions),
		JWTService: jwtService,
		Logger:     log,
	}
	if setup.limiter {
		deps.LoginLimiter = middleware.NewRateLimiter(setup.authConfig.LoginRatePerMinute, setup.authConfig.LoginBurst)
	}

	return &testServer{
		t:       t,
		handler: NewRouter(deps),
		db:      db,
		creds:   creds,
		jwt:     jwtService,
	}
}

// token mints an access token for email with roles.
func (s *testServer) token(email string, roles ...string) string {
	s.t.Helper()
	tok, err := s.jwt.GenerateToken(context.Background(), auth.Identity{
		CredentialID: uuid.New(),
		Email:        email,
		Roles:        roles,
	})
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) adminToken() string {
	return s.token("admin@example.com", domain.RoleUser, domain.RoleAdministrator)
}

func (s *testServer) userToken(email string) string {
	return s.token(email, domain.RoleUser)
}

// do sends a request with an optional JSON body and bearer token.
func (s *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	return decodeBody[map[string]any](t, rec)
}

func (s *testServer) seedGame(name, base string) *domain.Game {
	s.t.Helper()
	g, err := domain.NewGame(domain.GameDetails{Name: name, Price: decimal.RequireFromString(base)})
	require.NoError(s.t, err)
	s.db.SeedGame(g)
	return g
}

// seedPromotion adds a promotion whose window runs fromDays..toDays around today.
func (s *testServer) seedPromotion(g *domain.Game, price string, fromDays, toDays int) *domain.Promotion {
	s.t.Helper()
	p, err := domain.NewPromotion(g.ID, decimal.RequireFromString(price), dayOffset(fromDays), dayOffset(toDays))
	require.NoError(s.t, err)
	s.db.SeedPromotion(p)
	return p
}

func (s *testServer) seedProfile(name, email string) *domain.UserProfile {
	s.t.Helper()
	p, err := domain.NewUserProfile(name, email)
	require.NoError(s.t, err)
	s.db.SeedProfile(p)
	return p
}

func dayOffset(days int) time.Time {
	return time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, days)
}

func dateString(days int) string {
	return dayOffset(days).Format("2006-01-02")
}
