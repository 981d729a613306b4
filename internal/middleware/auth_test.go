package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastemon/api/internal/models"
	"wastemon/api/internal/repository"
	"wastemon/api/internal/security"
)

type fakeSessions struct {
	session     *models.Session
	renewed     bool
	deactivated bool
}

func (f *fakeSessions) GetByToken(_ context.Context, token string) (*models.Session, error) {
	if f.session == nil || f.session.Token != token {
		return nil, repository.ErrSessionNotFound
	}
	return f.session, nil
}

func (f *fakeSessions) Renew(_ context.Context, _ int, _ time.Duration) error {
	f.renewed = true
	return nil
}

func (f *fakeSessions) Deactivate(_ context.Context, _ int) error {
	f.deactivated = true
	return nil
}

const testSecret = "test-secret"

func gateRouter(sessions *fakeSessions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected",
		Authenticate(sessions, testSecret, 30*time.Minute, zerolog.Nop()),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt(CtxUserID)})
		})
	return router
}

func issueToken(t *testing.T, changeKind string) string {
	t.Helper()
	token, err := security.GenerateSessionToken(testSecret, security.SessionClaims{
		UserID:     7,
		Username:   "jperez",
		RoleName:   "operador",
		ChangeKind: changeKind,
	}, time.Minute)
	require.NoError(t, err)
	return token
}

func liveSession(token string) *models.Session {
	return &models.Session{
		ID:        1,
		UserID:    7,
		Token:     token,
		StartedAt: time.Now().Add(-time.Minute),
		ExpiresAt: time.Now().Add(30 * time.Minute),
		Active:    true,
	}
}

func doRequest(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGatePassesLiveSessionAndRenews(t *testing.T) {
	token := issueToken(t, "")
	sessions := &fakeSessions{session: liveSession(token)}

	w := doRequest(gateRouter(sessions), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sessions.renewed)
	assert.Contains(t, w.Body.String(), `"user_id":7`)
}

func TestGateRejectsMissingHeader(t *testing.T) {
	w := doRequest(gateRouter(&fakeSessions{}), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateRejectsGarbageToken(t *testing.T) {
	w := doRequest(gateRouter(&fakeSessions{}), "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateRejectsUnknownSession(t *testing.T) {
	token := issueToken(t, "")
	w := doRequest(gateRouter(&fakeSessions{}), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateRejectsTombstonedSession(t *testing.T) {
	token := issueToken(t, "")
	session := liveSession(token)
	session.Active = false
	sessions := &fakeSessions{session: session}

	w := doRequest(gateRouter(sessions), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, sessions.renewed)
}

func TestGateTombstonesLapsedSession(t *testing.T) {
	token := issueToken(t, "")
	session := liveSession(token)
	session.ExpiresAt = time.Now().Add(-time.Second)
	sessions := &fakeSessions{session: session}

	w := doRequest(gateRouter(sessions), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, sessions.deactivated)
	assert.Contains(t, w.Body.String(), "expirada")
}

func TestGateRejectsChangeToken(t *testing.T) {
	token := issueToken(t, security.ChangeKindForced)
	sessions := &fakeSessions{session: liveSession(token)}

	w := doRequest(gateRouter(sessions), "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "cambio_pendiente")
}

func changeGateRouter(sessions *fakeSessions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected",
		AuthenticateChange(sessions, testSecret, 30*time.Minute, zerolog.Nop()),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"username": c.GetString(CtxUsername)})
		})
	return router
}

func TestChangeGateAcceptsChangeToken(t *testing.T) {
	token := issueToken(t, security.ChangeKindForced)
	sessions := &fakeSessions{session: liveSession(token)}

	w := doRequest(changeGateRouter(sessions), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"jperez"`)
}

func TestChangeGateStillRequiresToken(t *testing.T) {
	w := doRequest(changeGateRouter(&fakeSessions{}), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangeGateStillRequiresLiveSession(t *testing.T) {
	token := issueToken(t, security.ChangeKindForced)

	w := doRequest(changeGateRouter(&fakeSessions{}), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
