// Package api 将版本化的 HTTP 路由组装到 gin 引擎上.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/router"
)

// RegisterGroup 注册 /api/v1 下的全部业务路由.
func RegisterGroup(e *gin.Engine) *gin.Engine {
	router.RegisterAll(e.Group("/api/v1"))

	return e
}
