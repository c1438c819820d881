package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/polymath/internal/middleware"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
	"github.com/xxxsen/polymath/internal/pkg/response"
	"github.com/xxxsen/polymath/internal/service"
)

type AskHandler struct {
	ask *service.AskService
}

func NewAskHandler(ask *service.AskService) *AskHandler {
	return &AskHandler{ask: ask}
}

type askRequest struct {
	Question     string `json:"question"`
	ContextQuery string `json:"context_query"`
	AccessToken  string `json:"access_token"`
	Random       bool   `json:"random"`
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, fmt.Errorf("%w: %v", appErr.ErrInvalidRequest, err))
		return
	}
	token := req.AccessToken
	if token == "" {
		token = middleware.BearerToken(c)
	}
	res, err := h.ask.Ask(c.Request.Context(), service.AskRequest{
		Question:     req.Question,
		ContextQuery: req.ContextQuery,
		AccessToken:  token,
		Random:       req.Random,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, res)
}
