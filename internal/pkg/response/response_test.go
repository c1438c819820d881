package response

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/polymath/internal/pkg/errcode"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   int
	}{
		{fmt.Errorf("%w: count", appErr.ErrInvalidRequest), http.StatusBadRequest, errcode.ErrInvalid},
		{fmt.Errorf("wrapped: %w", appErr.ErrSchema), http.StatusBadRequest, errcode.ErrSchema},
		{appErr.ErrConfig, http.StatusInternalServerError, errcode.ErrConfig},
		{appErr.ErrTooMany, http.StatusTooManyRequests, errcode.ErrTooMany},
		{appErr.ErrUnavailable, http.StatusServiceUnavailable, errcode.ErrAIUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, errcode.ErrAIUnavailable},
		{fmt.Errorf("plain"), http.StatusInternalServerError, errcode.ErrUnknown},
	}
	for _, tt := range tests {
		status, code := Status(tt.err)
		require.Equal(t, tt.status, status, tt.err.Error())
		require.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestFromErrorWritesErrorKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
	FromError(c, fmt.Errorf("%w: count must be greater than 0", appErr.ErrInvalidRequest))
	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "invalid request: count must be greater than 0", body["error"])
}
