// Package handle 提供 HTTP 请求处理器的实现.
package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/errs"
)

// writeError 把服务层错误分类映射到 HTTP 状态码.
func writeError(c *gin.Context, err error) {
	var (
		client    *errs.ClientError
		notFound  *errs.NotFoundError
		conflict  *errs.ConflictError
		forbidden *errs.ForbiddenError
	)

	switch {
	case errors.As(err, &client):
		c.JSON(http.StatusBadRequest, gin.H{"error": client.Message})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Message})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": forbidden.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
