package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi/proxyutil"
	"go.uber.org/zap"

	"github.com/xxxsen/polymath/internal/pkg/errcode"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

// Success wraps data in the standard envelope.
func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Document writes v as the whole body. Query responses are library
// documents that clients load directly.
func Document(c *gin.Context, v interface{}) {
	c.JSON(http.StatusOK, v)
}

// Error writes {"error": message}; clients detect failures by that key.
func Error(c *gin.Context, status int, code int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

type mapping struct {
	target error
	status int
	code   int
}

var mappings = []mapping{
	{appErr.ErrInvalidRequest, http.StatusBadRequest, errcode.ErrInvalid},
	{appErr.ErrSchema, http.StatusBadRequest, errcode.ErrSchema},
	{appErr.ErrUnauthorized, http.StatusUnauthorized, errcode.ErrUnauthorized},
	{appErr.ErrNotFound, http.StatusNotFound, errcode.ErrNotFound},
	{appErr.ErrTooMany, http.StatusTooManyRequests, errcode.ErrTooMany},
	{appErr.ErrUnavailable, http.StatusServiceUnavailable, errcode.ErrAIUnavailable},
	{appErr.ErrConfig, http.StatusInternalServerError, errcode.ErrConfig},
	{appErr.ErrMerge, http.StatusInternalServerError, errcode.ErrInternal},
	{appErr.ErrInternal, http.StatusInternalServerError, errcode.ErrInternal},
}

// Status returns the HTTP status and error code for err.
func Status(err error) (int, int) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, errcode.ErrAIUnavailable
	}
	return http.StatusInternalServerError, errcode.ErrUnknown
}

func FromError(c *gin.Context, err error) {
	status, code := Status(err)
	logger := logutil.GetLogger(c.Request.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	Error(c, status, code, err.Error())
}
