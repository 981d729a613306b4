package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Auth("nope"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{Conflict("dup"), http.StatusConflict},
		{New(KindInternal, "boom"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err))
	}
}

func TestStatusWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", Conflict("dup"))
	assert.Equal(t, http.StatusConflict, Status(err))
}

func TestPublicHidesInternals(t *testing.T) {
	msg, typ := Public(Wrap(KindInternal, "query failed", errors.New("pq: column")))
	assert.Equal(t, "error interno del servidor", msg)
	assert.Empty(t, typ)
}

func TestPublicExposesClassified(t *testing.T) {
	msg, typ := Public(Typed(KindForbidden, "usuario bloqueado", "locked"))
	assert.Equal(t, "usuario bloqueado", msg)
	assert.Equal(t, "locked", typ)
}

func TestIsKind(t *testing.T) {
	assert.True(t, IsKind(Validation("x"), KindValidation))
	assert.False(t, IsKind(Validation("x"), KindConflict))
	assert.False(t, IsKind(errors.New("plain"), KindInternal))
}
