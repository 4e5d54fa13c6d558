package types

import "github.com/yeisme/assetvault/pkg/internal/model"

// ImportJobOutputsResponse 作业输出导入结果：每个输出槽绑定到的资产.
type ImportJobOutputsResponse struct {
	JobID   string            `json:"jobId"`
	Outputs []model.JobOutput `json:"outputs"`
}

// ResolveParamRequest 把作业输入引用解析为容器内路径.
type ResolveParamRequest struct {
	Kind  string `json:"kind"  binding:"required"`
	Value string `json:"value" binding:"required"`
}

// ResolveParamResponse 解析结果.
type ResolveParamResponse struct {
	Path string `json:"path"`
}
