package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerToken returns the token from an "Authorization: Bearer" header, or
// an empty string.
func BearerToken(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}
