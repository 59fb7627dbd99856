package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesWrappedCode(t *testing.T) {
	err := NotFound("session", "abc")
	assert.True(t, Is(err, CodeNotFound))
	assert.False(t, Is(err, CodeConflict))
	assert.False(t, Is(errors.New("plain"), CodeNotFound))
}

func TestWrap_PreservesCodeOfUnderlyingAppError(t *testing.T) {
	inner := Conflict("already running")
	wrapped := Wrap(inner, "start run")

	assert.Equal(t, CodeConflict, wrapped.Code)
	assert.True(t, Is(wrapped, CodeConflict))
	assert.ErrorIs(t, wrapped, inner)
}

func TestWrap_ClassifiesPlainErrorAsInternal(t *testing.T) {
	wrapped := Wrap(errors.New("boom"), "do thing")
	assert.Equal(t, CodeInternalError, wrapped.Code)
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "whatever"))
}

func TestHTTPStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatusOf(NotFound("run", "1")))
	assert.Equal(t, http.StatusConflict, HTTPStatusOf(Conflict("nope")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatusOf(ExternalService("s3", errors.New("timeout"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusOf(errors.New("unclassified")))
}

func TestDatabase_WrapsUnderlyingError(t *testing.T) {
	cause := errors.New("connection refused")
	err := Database("create session", cause)
	assert.Equal(t, CodeDatabaseError, err.Code)
	assert.ErrorIs(t, err, cause)
}
