package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/errs"
)

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindUnauthenticated:
		return http.StatusUnauthorized
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidTransition, errs.KindConflict:
		return http.StatusConflict
	case errs.KindUploadStage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) (int, gin.H) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return status, gin.H{"error": msg, "kind": string(kind)}
}

func writeError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		logging.Error(c.Request.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
	}
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	writeError(c, err)
	c.Abort()
}

// bindJSON decodes the body and reports a validation error on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, errs.WithKind(errs.Wrap(err, "decode request body"), errs.KindValidation))
		return false
	}
	return true
}
