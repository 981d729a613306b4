package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRoles restricts a route to the named roles. Must run after
// Authenticate.
func RequireRoles(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		role := c.GetString(CtxRoleName)
		if role == "" {
			abortJSON(c, http.StatusUnauthorized, "token de autenticación requerido", "")
			return
		}

		if _, ok := roleSet[role]; !ok {
			abortJSON(c, http.StatusForbidden, "no tiene permisos para esta operación", "")
			return
		}

		c.Next()
	}
}
