package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wastemon/api/internal/middleware"
	"wastemon/api/internal/models"
)

type loginRequest struct {
	Username string `json:"usuario" binding:"required"`
	Password string `json:"contrasena" binding:"required"`
}

type userResponse struct {
	ID       int    `json:"id"`
	Username string `json:"usuario"`
	FullName string `json:"nombre"`
	RoleID   int    `json:"rol_id"`
	RoleName string `json:"rol"`
}

type loginResponse struct {
	Token          string       `json:"token"`
	RequiresChange bool         `json:"requiere_cambio_password"`
	ChangeKind     string       `json:"tipo_cambio,omitempty"`
	User           userResponse `json:"usuario"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "usuario y contraseña requeridos")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:          result.Token,
		RequiresChange: result.RequiresChange,
		ChangeKind:     result.ChangeKind,
		User:           toUserResponse(result.User),
	})
}

// Logout works off the raw bearer token, not the session gate: an expired or
// half-broken token should still be able to close its own session.
func (h HandlerSet) Logout(c *gin.Context) {
	token := bearerFromHeader(c.GetHeader("Authorization"))
	if token == "" {
		badRequest(c, "token de autenticación requerido")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "sesión cerrada"})
}

type forcedChangeRequest struct {
	NewPassword string `json:"nueva" binding:"required,min=8"`
}

// ChangePasswordForced runs behind the change gate; the account being rotated
// is whoever the bearer change token was issued to, never a body field.
func (h HandlerSet) ChangePasswordForced(c *gin.Context) {
	var req forcedChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "nueva contraseña (mínimo 8 caracteres) requerida")
		return
	}

	token, err := h.authService.ChangePasswordForced(c.Request.Context(),
		c.GetString(middleware.CtxUsername), req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "contraseña actualizada", "token": token})
}

type reconfirmRequest struct {
	CurrentPassword string `json:"actual" binding:"required"`
	NewPassword     string `json:"nueva" binding:"required,min=8"`
}

func (h HandlerSet) ReconfirmPassword(c *gin.Context) {
	var req reconfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "contraseña actual y nueva (mínimo 8 caracteres) requeridas")
		return
	}

	token, err := h.authService.ReconfirmPassword(c.Request.Context(),
		c.GetString(middleware.CtxUsername), req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "contraseña actualizada", "token": token})
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		RoleID:   u.RoleID,
		RoleName: u.RoleName,
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
