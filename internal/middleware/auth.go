package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wastemon/api/internal/models"
	"wastemon/api/internal/repository"
	"wastemon/api/internal/security"
)

// Context keys set by Authenticate for downstream handlers.
const (
	CtxUserID   = "user_id"
	CtxUsername = "username"
	CtxFullName = "full_name"
	CtxRoleName = "role_name"
	CtxToken    = "session_token"
)

type SessionAccess interface {
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	Renew(ctx context.Context, sessionID int, inactivity time.Duration) error
	Deactivate(ctx context.Context, sessionID int) error
}

// Authenticate gates protected routes on two checks: the JWT must verify and
// the session row behind it must still be live. Passing both slides the
// inactivity window forward. Change tokens are turned away; their holder must
// finish the password change first.
func Authenticate(sessions SessionAccess, secret string, inactivity time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return authenticate(sessions, secret, inactivity, log, false)
}

// AuthenticateChange is the gate for the password-change endpoints: the same
// token and session checks, but a change token is allowed through so its
// holder can actually complete the rotation it was issued for.
func AuthenticateChange(sessions SessionAccess, secret string, inactivity time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return authenticate(sessions, secret, inactivity, log, true)
}

func authenticate(sessions SessionAccess, secret string, inactivity time.Duration, log zerolog.Logger, allowChange bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortJSON(c, http.StatusUnauthorized, "token de autenticación requerido", "")
			return
		}

		claims, err := security.ParseSessionToken(token, secret)
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				abortJSON(c, http.StatusUnauthorized, "la sesión ha expirado", "expirada")
				return
			}
			abortJSON(c, http.StatusUnauthorized, "token de autenticación inválido", "")
			return
		}

		// A change token only serves the password-change endpoints.
		if claims.ChangeKind != "" && !allowChange {
			abortJSON(c, http.StatusForbidden, "debe completar el cambio de contraseña", "cambio_pendiente")
			return
		}

		session, err := sessions.GetByToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				abortJSON(c, http.StatusUnauthorized, "la sesión no existe", "")
				return
			}
			log.Error().Err(err).Msg("session lookup failed")
			abortJSON(c, http.StatusInternalServerError, "error interno del servidor", "")
			return
		}

		if !session.Active {
			abortJSON(c, http.StatusUnauthorized, "la sesión fue cerrada", "")
			return
		}

		if session.ExpiresAt.Before(time.Now()) {
			if err := sessions.Deactivate(c.Request.Context(), session.ID); err != nil {
				log.Warn().Err(err).Int("session_id", session.ID).Msg("expired session not tombstoned")
			}
			abortJSON(c, http.StatusUnauthorized, "la sesión ha expirado", "expirada")
			return
		}

		if err := sessions.Renew(c.Request.Context(), session.ID, inactivity); err != nil {
			log.Warn().Err(err).Int("session_id", session.ID).Msg("session not renewed")
		}

		// The session row is authoritative for identity; the claims carry
		// the display fields.
		c.Set(CtxUserID, session.UserID)
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxFullName, claims.FullName)
		c.Set(CtxRoleName, claims.RoleName)
		c.Set(CtxToken, token)

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortJSON(c *gin.Context, status int, message, typ string) {
	body := gin.H{"message": message}
	if typ != "" {
		body["type"] = typ
	}
	c.AbortWithStatusJSON(status, body)
}
