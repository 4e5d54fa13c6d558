package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/service"
)

// Stats 返回调用方可见范围内的集合统计.
func Stats(c *gin.Context) {
	svc := service.NewStatsService(c.Request.Context())

	summary, err := svc.Summary(c.Request.Context())
	if err != nil {
		writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, summary)
}
