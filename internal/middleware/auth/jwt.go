package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	apperrors "github.com/wekeepgrowing/carservice-backend/pkg/errors"
)

type contextKey string

const actorContextKey contextKey = "authenticated_actor"

// Claims is the access token payload. Role is customer, dealer or admin; dealer
// tokens also carry the dealer profile id.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	DealerID int64  `json:"dealer_id,omitempty"`
}

// JWTConfig holds the configuration for JWT middleware
type JWTConfig struct {
	Secret    string
	Issuer    string
	Logger    *zap.Logger
	SkipPaths []string // Paths to skip JWT validation
}

// JWTMiddleware validates HS256 bearer tokens and stores the caller as a model.Actor.
func JWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, skipPath := range config.SkipPaths {
				if strings.HasPrefix(path, skipPath) {
					return next(c)
				}
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				config.Logger.Warn("Missing authorization header",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return unauthorized(c, "Authorization header required")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				config.Logger.Warn("Invalid authorization header format", zap.String("path", path))
				return unauthorized(c, "Invalid authorization header format. Expected: Bearer <token>")
			}

			claims := &Claims{}
			if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(config.Secret), nil
			}); err != nil {
				config.Logger.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", path))
				return unauthorized(c, "Invalid or expired token")
			}

			actor, err := claims.Actor()
			if err != nil {
				config.Logger.Warn("Invalid JWT claims",
					zap.Error(err),
					zap.String("path", path))
				return unauthorized(c, "Invalid token claims")
			}

			ctx := context.WithValue(c.Request().Context(), actorContextKey, actor)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("actor_id", actor.ID)

			config.Logger.Debug("Actor authenticated",
				zap.String("actor", actor.String()),
				zap.String("path", path))

			return next(c)
		}
	}
}

// Actor converts the claims into the caller identity.
func (c *Claims) Actor() (model.Actor, error) {
	if c.Subject == "" {
		return model.Actor{}, fmt.Errorf("missing subject")
	}
	actor := model.Actor{Type: model.ActorType(c.Role), ID: c.Subject}
	switch actor.Type {
	case model.ActorCustomer, model.ActorAdmin:
	case model.ActorDealer:
		if c.DealerID <= 0 {
			return model.Actor{}, fmt.Errorf("dealer token without dealer_id")
		}
		actor.DealerID = c.DealerID
	default:
		return model.Actor{}, fmt.Errorf("unsupported role %q", c.Role)
	}
	return actor, nil
}

// IssueToken signs an access token for actor. Used by local tooling and tests.
func IssueToken(secret, issuer string, actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:     string(actor.Type),
		DealerID: actor.DealerID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ActorFromContext extracts the authenticated actor from the request context
func ActorFromContext(c echo.Context) (model.Actor, error) {
	actor, ok := c.Request().Context().Value(actorContextKey).(model.Actor)
	if !ok {
		return model.Actor{}, apperrors.NewAppError(apperrors.ErrUnauthenticated, "authentication required", nil)
	}
	return actor, nil
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, apperrors.ErrorBody{
		Error: msg,
		Code:  apperrors.ErrUnauthenticated,
	})
}
