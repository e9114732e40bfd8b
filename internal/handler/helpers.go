package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tooldir/internal/middleware"
	"github.com/xxxsen/tooldir/internal/pkg/errcode"
	appErr "github.com/xxxsen/tooldir/internal/pkg/errors"
	"github.com/xxxsen/tooldir/internal/pkg/response"
	"github.com/xxxsen/tooldir/internal/service"
	"github.com/xxxsen/tooldir/internal/verify"
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func invalidRequest(c *gin.Context) {
	response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	if te, ok := verify.IsThrottled(err); ok {
		logger.Info("request throttled")
		response.Throttled(c, errcode.ErrTooMany, te.RetryAfterSeconds(), te.Error())
		return
	}
	switch {
	case errors.Is(err, verify.ErrCodeRejected):
		logger.Info("verification code rejected")
		response.Error(c, http.StatusBadRequest, errcode.ErrCodeRejected, verify.ErrCodeRejected.Error())
	case validationError(err) != nil:
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, validationError(err).Error())
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, http.StatusForbidden, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, http.StatusConflict, errcode.ErrConflict, "email or username already in use")
	case errors.Is(err, service.ErrDeliveryFailed):
		logger.Error("verification mail not delivered")
		response.Error(c, http.StatusBadGateway, errcode.ErrDeliveryFailed, service.ErrDeliveryFailed.Error())
	case errors.Is(err, verify.ErrStoreUnavailable):
		logger.Error("verification store unavailable")
		response.Error(c, http.StatusServiceUnavailable, errcode.ErrUnavailable, "service temporarily unavailable")
	default:
		logger.Error("request failed")
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}

var validationErrors = []error{
	verify.ErrInvalidEmail,
	verify.ErrInvalidCode,
	verify.ErrInvalidPurpose,
	service.ErrUnknownTemplate,
}

// validationError returns the sentinel behind err so wrapped details never
// reach the response.
func validationError(err error) error {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}
