package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/handle"
)

// RegisterJobsRoutes 注册作业输出导入相关路由.
func RegisterJobsRoutes(g *gin.RouterGroup) {
	jobs := g.Group("/jobs")
	{
		jobs.POST("/:id/import", handle.ImportJobOutputs)
		jobs.POST("/resolve-param", handle.ResolveParam)
	}
}
