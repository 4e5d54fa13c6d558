package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/service"
	"github.com/yeisme/assetvault/pkg/internal/types"
	"github.com/yeisme/assetvault/pkg/log"
)

// CreateCollection 创建一个新的资产集合.
func CreateCollection(c *gin.Context) {
	var req types.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	svc := service.NewCollectionService(c.Request.Context())

	coll, err := svc.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)

		return
	}

	log.Logger().Info().
		Str("collection", coll.ID).
		Str("kind", string(coll.Kind)).
		Str("name", coll.Name).
		Msg("collection created")

	c.JSON(http.StatusCreated, coll)
}

// ListCollections 分页列出调用方可见的集合.
func ListCollections(c *gin.Context) {
	var q types.ListCollectionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	svc := service.NewCollectionService(c.Request.Context())

	resp, err := svc.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetCollection 按 ID 获取集合.
func GetCollection(c *gin.Context) {
	svc := service.NewCollectionService(c.Request.Context())

	coll, err := svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, coll)
}

// UpdateCollection 部分更新集合，生命周期规则由服务层校验.
func UpdateCollection(c *gin.Context) {
	var req types.UpdateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	svc := service.NewCollectionService(c.Request.Context())

	coll, err := svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, coll)
}

// DeleteCollection 删除集合及其全部条目与文件.
func DeleteCollection(c *gin.Context) {
	svc := service.NewCollectionService(c.Request.Context())

	if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// ListItems 列出集合内的条目.
func ListItems(c *gin.Context) {
	svc := service.NewCollectionService(c.Request.Context())

	resp, err := svc.Items(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, resp)
}

// ClearItemError 清除条目的导入错误标记，解除对集合锁定的阻塞.
func ClearItemError(c *gin.Context) {
	svc := service.NewCollectionService(c.Request.Context())

	item, err := svc.ClearItemError(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, item)
}

// DeleteItem 删除集合中的单个条目.
func DeleteItem(c *gin.Context) {
	svc := service.NewCollectionService(c.Request.Context())

	if err := svc.DeleteItem(c.Request.Context(), c.Param("id"), c.Param("itemId")); err != nil {
		writeError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}
