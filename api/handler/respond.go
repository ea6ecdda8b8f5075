package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchgate/models"
)

// respondError writes err as {"detail": message} with the status its code
// maps to. Errors without a code are reported as internal errors.
func respondError(c *gin.Context, err error) {
	var gwErr *models.GatewayError
	if !errors.As(err, &gwErr) {
		gwErr = models.NewGatewayError(models.ErrCodeInternal, err.Error(), err)
	}
	c.AbortWithStatusJSON(mapErrorToStatus(gwErr), models.ErrorResponse{
		Detail: gwErr.Message,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.GatewayError) int {
	switch e.Code {
	case models.ErrCodeEngineFailure:
		return http.StatusBadGateway // 502
	case models.ErrCodeValidation:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeMissingCredential:
		return http.StatusUnauthorized // 401
	case models.ErrCodeInvalidCredential:
		return http.StatusForbidden // 403
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}
