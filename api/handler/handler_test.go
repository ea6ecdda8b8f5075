package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/use-agent/fetchgate/models"
)

func TestMapErrorToStatus(t *testing.T) {
	cases := map[string]int{
		models.ErrCodeEngineFailure:     http.StatusBadGateway,
		models.ErrCodeValidation:        http.StatusUnprocessableEntity,
		models.ErrCodeMissingCredential: http.StatusUnauthorized,
		models.ErrCodeInvalidCredential: http.StatusForbidden,
		models.ErrCodeRateLimited:       http.StatusTooManyRequests,
		models.ErrCodeInternal:          http.StatusInternalServerError,
		"SOMETHING_ELSE":                http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, mapErrorToStatus(models.NewGatewayError(code, "m", nil)), code)
	}
}

func TestRespondError_EngineFailureCarriesMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	respondError(c, models.EngineFailure(errors.New("net::ERR_CONNECTION_REFUSED")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"detail":"net::ERR_CONNECTION_REFUSED"}`, rec.Body.String())
}

func TestRespondError_PlainErrorIsInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	respondError(c, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"boom"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	Health()(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
