package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/service"
	"github.com/yeisme/assetvault/pkg/internal/types"
)

// ImportFromS3 把 S3 bucket/prefix 下的图像批量导入空集合.
func ImportFromS3(c *gin.Context) {
	var req types.S3ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	svc := service.NewS3ImportService(c.Request.Context())

	resp, err := svc.ImportImages(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)

		return
	}

	c.JSON(http.StatusAccepted, resp)
}
