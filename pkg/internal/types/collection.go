// Package types 定义 API 层的请求与响应结构.
package types

import "github.com/yeisme/assetvault/pkg/internal/model"

// CreateCollectionRequest 创建集合请求.
type CreateCollectionRequest struct {
	Kind string `json:"kind" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// UpdateCollectionRequest 更新集合请求. 指针字段区分"未提交"与"清零"，
// 未提交的字段保持库内当前值.
type UpdateCollectionRequest struct {
	Name           *string `json:"name,omitempty"`
	Locked         *bool   `json:"locked,omitempty"`
	PubliclyShared *bool   `json:"publiclyShared,omitempty"`
	Type           *string `json:"type,omitempty"`
	Description    *string `json:"description,omitempty"`
	Metadata       *string `json:"metadata,omitempty"`
}

// ListCollectionsQuery 分页列表查询参数. Name 为名称子串过滤，
// 与访问过滤谓词 AND 组合.
type ListCollectionsQuery struct {
	Kind     string `form:"kind"`
	Name     string `form:"name"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}

// ListCollectionsResponse 分页列表响应.
type ListCollectionsResponse struct {
	Collections []model.Collection `json:"collections"`
	Total       int64              `json:"total"`
	Page        int                `json:"page"`
	PageSize    int                `json:"pageSize"`
}

// ListItemsResponse 集合条目列表响应.
type ListItemsResponse struct {
	Items []model.Item `json:"items"`
	Total int64        `json:"total"`
}
