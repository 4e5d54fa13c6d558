// Package model 定义资产集合、条目与作业的数据库模型.
package model

import (
	"time"
)

// Kind 资产种类，决定导入处理器与 blob 根目录.
type Kind string

const (
	KindImagesCollection Kind = "images-collection"
	KindGenericData      Kind = "generic-data"
	KindPyramid          Kind = "pyramid"
	KindTensorflowModel  Kind = "tensorflow-model"
)

// Kinds 返回全部已知资产种类.
func Kinds() []Kind {
	return []Kind{KindImagesCollection, KindGenericData, KindPyramid, KindTensorflowModel}
}

// Collection 资产集合记录. 一条记录对应一个命名的、有归属的文件容器，
// 由上传或作业输出产生. locked / publicly_shared 单调，约束由 guard 包在
// 每次变更的事务内强制执行：
//   - locked 一旦为 true 不可回退
//   - publicly_shared 一旦为 true 不可回退，且要求 locked = true
//   - owner / creation_date / source_job 创建后不可变
//   - (kind, name) 在未删除记录中唯一
type Collection struct {
	ID   string `gorm:"primaryKey;size:26"                        json:"id"`
	Kind Kind   `gorm:"size:32;index:idx_kind_name,unique;index"  json:"kind"`
	Name string `gorm:"size:255;index:idx_kind_name,unique;index" json:"name"`
	// Owner 身份字符串，来自认证代理注入的请求头
	Owner        string    `gorm:"size:255;index" json:"owner"`
	CreationDate time.Time `json:"creationDate"`
	// SourceJob 产生本集合的作业 ID，上传场景为空
	SourceJob      string `gorm:"size:26;index" json:"sourceJob,omitempty"`
	Locked         bool   `json:"locked"`
	PubliclyShared bool   `gorm:"index" json:"publiclyShared"`

	// 可选描述字段，来自 data-info.json sidecar（generic-data 种类）
	Type        string `gorm:"size:255" json:"type,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Metadata    string `gorm:"type:text" json:"metadata,omitempty"`

	// 聚合计数器，只读，由流水线在每次条目终态迁移后重算
	ItemCount      int64 `json:"itemCount"`
	ImportingCount int64 `json:"importingCount"`
	ErrorCount     int64 `json:"errorCount"`
	TotalSize      int64 `json:"totalSize"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName 指定表名.
func (Collection) TableName() string { return "collections" }

// NewCollection 创建集合记录骨架，ID 由存储层生成.
func NewCollection(kind Kind, name string) *Collection {
	return &Collection{
		ID:   NewID(),
		Kind: kind,
		Name: name,
	}
}

// NewJobCollection 从作业输出创建集合记录，命名规则 <jobName>-<outputName>，
// owner 默认继承作业 owner.
func NewJobCollection(kind Kind, job *Job, outputName string) *Collection {
	c := NewCollection(kind, job.Name+"-"+outputName)
	c.Owner = job.Owner
	c.SourceJob = job.ID
	c.PubliclyShared = false

	return c
}
