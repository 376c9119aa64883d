package handler

import (
	"errors"
	"net/http"

	"projectflow/internal/model"

	"github.com/gin-gonic/gin"
)

// StatusFor maps a workflow error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrStore):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	switch StatusFor(err) {
	case http.StatusBadRequest:
		return "validation_failed"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "concurrent_modification"
	case http.StatusServiceUnavailable:
		return "store_unavailable"
	case http.StatusBadGateway:
		return "store_error"
	}
	return "internal_error"
}

func respondError(c *gin.Context, err error) {
	c.JSON(StatusFor(err), gin.H{"error": err.Error(), "code": errorCode(err)})
}
