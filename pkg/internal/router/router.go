// Package router 管理路由配置，将路径绑定到 pkg/internal/handle 的处理器.
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAll 注册全部业务路由到传入的 API 路由组.
func RegisterAll(g *gin.RouterGroup) {
	RegisterCollectionsRoutes(g)
	RegisterJobsRoutes(g)
	RegisterStatsRoutes(g)
	RegisterHealthCheckRoute(g)
	RegisterSchedulerRoutes(g)
}
