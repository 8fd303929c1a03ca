package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	apperrors "github.com/Baby-jesuset/FBGENERALHW-sj/internal/errors"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/util"
	"github.com/gin-gonic/gin"
)

// Context keys for user information
const (
	UserIDKey      = "user_id"
	UserEmailKey   = "user_email"
	UserRoleKey    = "user_role"
	AccessTokenKey = "access_token"
)

// RevocationChecker is satisfied by the Redis token blacklist.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type AuthMiddleware struct {
	jwtSecret string
	revoked   RevocationChecker
}

// NewAuthMiddleware builds the middleware. revoked may be nil when Redis is
// not available; logged-out tokens then stay valid until they expire.
func NewAuthMiddleware(jwtSecret string, revoked RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		revoked:   revoked,
	}
}

// Authenticate requires a valid access token, from the Authorization header
// or the token query parameter (websocket clients cannot set headers).
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		var token string
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				log.Warn("Invalid authorization header format", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				apperrors.AbortWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Malformed authorization header")
				return
			}
			token = parts[1]
		} else {
			token = c.Query("token")
			if token == "" {
				log.Warn("Missing authorization header", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				apperrors.AbortWithError(c, http.StatusUnauthorized, apperrors.AuthUnauthorized, "Please sign in")
				return
			}
		}

		claims, err := util.ValidateToken(token, m.jwtSecret)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			if err == util.ErrExpiredToken {
				apperrors.AbortWithError(c, http.StatusUnauthorized, apperrors.AuthTokenExpired, "Your session has expired")
			} else {
				apperrors.AbortWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid authentication token")
			}
			return
		}
		if claims.TokenType != util.TokenTypeAccess {
			apperrors.AbortWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Refresh tokens cannot be used here")
			return
		}

		if m.revoked != nil {
			revoked, err := m.revoked.IsRevoked(c.Request.Context(), token)
			if err != nil {
				// fail open: an unreachable blacklist must not lock everyone out
				log.Warn("Token revocation check failed", map[string]interface{}{
					"error": err.Error(),
				})
			} else if revoked {
				apperrors.AbortWithError(c, http.StatusUnauthorized, apperrors.AuthTokenRevoked, "This session has been signed out")
				return
			}
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(UserRoleKey, model.UserRole(claims.Role))
		c.Set(AccessTokenKey, token)

		log.Debug("User authenticated successfully", map[string]interface{}{
			"user_id": claims.UserID,
			"role":    claims.Role,
		})

		c.Next()
	}
}

// RequireRole must run after Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		role, exists := GetUserRole(c)
		userID, _ := GetUserID(c)
		if exists {
			for _, r := range roles {
				if role == r {
					c.Next()
					return
				}
			}
		}

		log.Warn("Insufficient permissions", map[string]interface{}{
			"user_id":        userID,
			"user_role":      role,
			"required_roles": roles,
			"path":           c.Request.URL.Path,
		})
		apperrors.AbortWithError(c, http.StatusForbidden, apperrors.AuthzAdminOnly, "You do not have access to this resource")
	}
}

func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

func GetUserRole(c *gin.Context) (model.UserRole, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	r, ok := role.(model.UserRole)
	return r, ok
}

// GetAccessToken returns the raw bearer token of the current request.
func GetAccessToken(c *gin.Context) string {
	return c.GetString(AccessTokenKey)
}
