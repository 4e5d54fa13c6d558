package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/service"
	"github.com/yeisme/assetvault/pkg/internal/types"
)

// ImportJobOutputs 把作业的全部未绑定输出导入为集合.
func ImportJobOutputs(c *gin.Context) {
	svc := service.NewJobService(c.Request.Context())

	resp, err := svc.ImportJobOutputs(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, resp)
}

// ResolveParam 把作业输入参数值解析为容器内路径.
func ResolveParam(c *gin.Context) {
	var req types.ResolveParamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	svc := service.NewJobService(c.Request.Context())

	resp, err := svc.ResolveParam(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, resp)
}
