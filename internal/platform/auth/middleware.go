package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

// DevUserHeader selects the acting user when ENV=development.
const DevUserHeader = "X-Dev-User"

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey switches validation to HS256; tests only.
	SigningKey []byte
	Logger     zerolog.Logger
}

// JWTMiddleware validates bearer tokens from the identity provider and puts
// the subject and roles on the request context. Without JWKSURL the key set is
// located through OIDC discovery on Issuer.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	var keys *JWKSCache
	if len(cfg.SigningKey) == 0 {
		url := cfg.JWKSURL
		if url == "" && cfg.Issuer != "" {
			doc, err := Discover(context.Background(), cfg.Issuer)
			if err != nil {
				cfg.Logger.Error().Err(err).Str("issuer", cfg.Issuer).Msg("OIDC discovery failed")
			} else {
				url = doc.JWKSURI
			}
		}
		keys = NewJWKSCache(url, defaultJWKSTTL)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			scheme, tokenStr, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenStr) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			var keyFunc jwt.Keyfunc
			if keys != nil {
				keyFunc = keys.KeyFunc(c.Request().Context())
			} else {
				keyFunc = func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
			}

			token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, opts...)
			if err != nil || !token.Valid || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), claims.Subject, claims.Roles...)))
			return next(c)
		}
	}
}

// DevAuthMiddleware trusts the X-Dev-User header, defaulting to "dev-user".
// Every dev user has the admin role.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := strings.TrimSpace(c.Request().Header.Get(DevUserHeader))
			if user == "" {
				user = "dev-user"
			}
			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), user, "admin")))
			return next(c)
		}
	}
}

// RequireAuth rejects requests that reach it without an actor.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if UserIDFromContext(c.Request().Context()) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// WithActor returns ctx carrying the acting user.
func WithActor(ctx context.Context, userID string, roles ...string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRolesKey, roles)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}
