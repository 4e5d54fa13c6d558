package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/handle"
)

// RegisterCollectionsRoutes 注册资产集合相关路由.
func RegisterCollectionsRoutes(g *gin.RouterGroup) {
	collections := g.Group("/collections")
	{
		collections.POST("", handle.CreateCollection)
		collections.GET("", handle.ListCollections)

		single := collections.Group("/:id")
		{
			single.GET("", handle.GetCollection)
			single.PATCH("", handle.UpdateCollection)
			single.DELETE("", handle.DeleteCollection)

			// 条目管理
			single.GET("/items", handle.ListItems)
			single.DELETE("/items/:itemId", handle.DeleteItem)
			single.DELETE("/items/:itemId/error", handle.ClearItemError)

			// 导入入口：multipart 上传与 S3 批量拉取
			single.POST("/items", handle.UploadItems)
			single.POST("/import/s3", handle.ImportFromS3)
		}
	}
}
