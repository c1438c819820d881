package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/polymath/internal/pkg/response"
	"github.com/xxxsen/polymath/internal/service"
)

type HealthHandler struct {
	libraries service.LibraryGetter
}

func NewHealthHandler(libraries service.LibraryGetter) *HealthHandler {
	return &HealthHandler{libraries: libraries}
}

func (h *HealthHandler) Health(c *gin.Context) {
	lib := h.libraries.Current()
	response.Success(c, gin.H{
		"chunks":          lib.Len(),
		"embedding_model": lib.EmbeddingModel(),
	})
}
