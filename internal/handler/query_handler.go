package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/polymath/internal/middleware"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
	"github.com/xxxsen/polymath/internal/pkg/response"
	"github.com/xxxsen/polymath/internal/query"
	"github.com/xxxsen/polymath/internal/service"
)

const maxFormMemory = 8 << 20

type QueryHandler struct {
	libraries service.LibraryGetter
	engine    *query.Engine
}

func NewQueryHandler(libraries service.LibraryGetter, engine *query.Engine) *QueryHandler {
	return &QueryHandler{libraries: libraries, engine: engine}
}

// Query answers with a library document. The body may be JSON or form
// encoded; access_token falls back to the bearer header.
func (h *QueryHandler) Query(c *gin.Context) {
	raw, err := bindRawRequest(c)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if raw.AccessToken == "" {
		raw.AccessToken = middleware.BearerToken(c)
	}
	req, err := raw.Normalize()
	if err != nil {
		response.FromError(c, err)
		return
	}
	res, err := h.engine.Query(c.Request.Context(), h.libraries.Current(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	logutil.GetLogger(c.Request.Context()).Info("query served",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("sort", string(req.Sort)),
		zap.Int("chunks", res.Len()),
	)
	response.Document(c, res.Serializable(false))
}

func bindRawRequest(c *gin.Context) (*query.RawRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	switch mediaType {
	case "application/json", "":
		var raw query.RawRequest
		dec := json.NewDecoder(c.Request.Body)
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: empty request body", appErr.ErrInvalidRequest)
			}
			return nil, fmt.Errorf("%w: decode request: %v", appErr.ErrInvalidRequest, err)
		}
		return &raw, nil
	case "multipart/form-data":
		if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("%w: parse form: %v", appErr.ErrInvalidRequest, err)
		}
		return query.RawRequestFromValues(c.Request.PostForm)
	default:
		if err := c.Request.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: parse form: %v", appErr.ErrInvalidRequest, err)
		}
		return query.RawRequestFromValues(c.Request.PostForm)
	}
}
