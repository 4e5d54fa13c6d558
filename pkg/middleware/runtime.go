package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/context"
	"github.com/yeisme/assetvault/pkg/internal/data"
	"github.com/yeisme/assetvault/pkg/internal/pipeline"
)

// PipelineMiddleware 将转换流水线注入到 request context 中.
func PipelineMiddleware(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithPipeline(c.Request.Context(), p)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RegistryMiddleware 将导入处理器注册表注入到 request context 中.
func RegistryMiddleware(r *data.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithRegistry(c.Request.Context(), r)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
