package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Query  *QueryHandler
	Ask    *AskHandler
	Health *HealthHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/query", deps.Query.Query)
	if deps.Health != nil {
		api.GET("/health", deps.Health.Health)
	}
	if deps.Ask != nil {
		api.POST("/ask", deps.Ask.Ask)
	}
}
