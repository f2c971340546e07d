package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

const testSecret = "test-secret"

func newTestConfig() JWTConfig {
	return JWTConfig{
		Secret:    testSecret,
		Issuer:    "carservice",
		Logger:    zap.NewNop(),
		SkipPaths: []string{"/health"},
	}
}

func serve(t *testing.T, config JWTConfig, path, authHeader string) (*httptest.ResponseRecorder, *model.Actor) {
	t.Helper()
	e := echo.New()
	var seen *model.Actor
	handler := JWTMiddleware(config)(func(c echo.Context) error {
		if actor, err := ActorFromContext(c); err == nil {
			seen = &actor
		}
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec, seen
}

func TestJWTMiddleware_DealerToken(t *testing.T) {
	token, err := IssueToken(testSecret, "carservice", model.Actor{Type: model.ActorDealer, ID: "user-1", DealerID: 42}, time.Hour)
	require.NoError(t, err)

	rec, actor := serve(t, newTestConfig(), "/api/v1/dealers/42/balance", "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, actor)
	assert.Equal(t, model.ActorDealer, actor.Type)
	assert.Equal(t, "user-1", actor.ID)
	assert.Equal(t, int64(42), actor.DealerID)
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	valid := func(actor model.Actor) string {
		token, err := IssueToken(testSecret, "carservice", actor, time.Hour)
		require.NoError(t, err)
		return "Bearer " + token
	}
	expired, err := IssueToken(testSecret, "carservice", model.Actor{Type: model.ActorAdmin, ID: "a"}, -time.Minute)
	require.NoError(t, err)
	otherIssuer, err := IssueToken(testSecret, "elsewhere", model.Actor{Type: model.ActorAdmin, ID: "a"}, time.Hour)
	require.NoError(t, err)
	wrongKey, err := IssueToken("other-secret", "carservice", model.Actor{Type: model.ActorAdmin, ID: "a"}, time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a", Issuer: "carservice"},
		Role:             "admin",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Token abc"},
		{"garbage", "Bearer abc.def.ghi"},
		{"expired", "Bearer " + expired},
		{"wrong issuer", "Bearer " + otherIssuer},
		{"wrong key", "Bearer " + wrongKey},
		{"no expiry", "Bearer " + noExpiry},
		{"dealer without dealer id", valid(model.Actor{Type: model.ActorDealer, ID: "d"})},
		{"system role", valid(model.Actor{Type: model.ActorSystem, ID: "cron"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, actor := serve(t, newTestConfig(), "/api/v1/bookings", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, actor)
			assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")
		})
	}
}

func TestJWTMiddleware_SkipPaths(t *testing.T) {
	rec, actor := serve(t, newTestConfig(), "/health", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, actor)
}

func TestActorFromContext_Unauthenticated(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, err := ActorFromContext(c)
	assert.Error(t, err)
}
