package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/service"
	"github.com/yeisme/assetvault/pkg/log"
)

// MaxUploadSize 单次 multipart 请求体上限.
const MaxUploadSize = 2 << 30 // 2GB

// UploadItems 接收 multipart 表单中的 files 字段并写入集合.
func UploadItems(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files in request"})

		return
	}

	svc := service.NewUploadService(c.Request.Context())

	resp, err := svc.Upload(c.Request.Context(), c.Param("id"), files)
	if err != nil {
		writeError(c, err)

		return
	}

	log.Logger().Info().
		Str("collection", c.Param("id")).
		Int("files", len(files)).
		Msg("upload accepted")

	c.JSON(http.StatusCreated, resp)
}
