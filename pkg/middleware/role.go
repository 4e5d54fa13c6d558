package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/access"
)

// RequireAdmin 仅放行管理员身份，用于调度器等运维端点。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := access.FromContext(c.Request.Context())
		if !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: admin only"})
			return
		}

		c.Next()
	}
}
