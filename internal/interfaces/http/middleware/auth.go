package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apptreasury "github.com/tresoria/backend/internal/application/treasury"
	"github.com/tresoria/backend/internal/infrastructure/auth"
	"github.com/tresoria/backend/internal/infrastructure/logger"
	"github.com/tresoria/backend/internal/interfaces/http/dto"
)

// Auth context keys
const (
	ClaimsKey  = "auth_claims"
	SessionKey = "auth_session"

	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

// AuthConfig holds configuration for the authentication middleware
type AuthConfig struct {
	JWTService *auth.JWTService
	// SkipPaths are exact paths served without authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// DefaultAuthConfig returns the default authentication configuration
func DefaultAuthConfig(jwtService *auth.JWTService, log *zap.Logger) AuthConfig {
	return AuthConfig{
		JWTService: jwtService,
		SkipPaths:  []string{"/health", "/ready"},
		Logger:     log,
	}
}

// Auth validates the bearer token and installs the session the treasury
// operations run under. The session is rebuilt on every request; nothing
// about the caller is cached between requests.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}

		header := c.GetHeader(authHeaderKey)
		if !strings.HasPrefix(header, bearerPrefix) {
			abortUnauthorized(c, "MISSING_TOKEN", "Authentication required")
			return
		}
		token := strings.TrimPrefix(header, bearerPrefix)
		if token == "" {
			abortUnauthorized(c, "MISSING_TOKEN", "Authentication required")
			return
		}

		claims, err := cfg.JWTService.ValidateToken(token)
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("token validation failed",
					zap.String("path", path),
					zap.Error(err))
			}
			code, message := authErrorCode(err)
			abortUnauthorized(c, code, message)
			return
		}

		companyID, err := claims.GetCompanyUUID()
		if err != nil {
			abortUnauthorized(c, "INVALID_TOKEN", "Token carries a malformed company reference")
			return
		}
		userID, err := claims.GetUserUUID()
		if err != nil {
			abortUnauthorized(c, "INVALID_TOKEN", "Token carries a malformed user reference")
			return
		}

		session := apptreasury.Session{
			UserID:       userID,
			Username:     claims.Username,
			CompanyID:    companyID,
			Capabilities: claims.Capabilities(),
		}
		c.Set(ClaimsKey, claims)
		c.Set(SessionKey, session)

		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithUserID(ctx, log, claims.UserID)
		ctx, _ = logger.WithCompanyID(ctx, log, claims.CompanyID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetSession returns the session installed by the Auth middleware. The
// second return is false on unauthenticated routes.
func GetSession(c *gin.Context) (apptreasury.Session, bool) {
	value, exists := c.Get(SessionKey)
	if !exists {
		return apptreasury.Session{}, false
	}
	session, ok := value.(apptreasury.Session)
	return session, ok
}

// GetClaims returns the raw token claims, if authenticated
func GetClaims(c *gin.Context) *auth.Claims {
	if value, exists := c.Get(ClaimsKey); exists {
		if claims, ok := value.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

func authErrorCode(err error) (string, string) {
	switch err {
	case auth.ErrExpiredToken:
		return "SESSION_EXPIRED", "Session is no longer valid"
	case auth.ErrTokenNotYetValid:
		return "TOKEN_NOT_YET_VALID", "Token is not yet valid"
	default:
		return "INVALID_TOKEN", "Invalid token"
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
