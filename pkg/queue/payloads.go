package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// CollectionRef 标识一条资产集合记录.
type CollectionRef struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
}

// CollectionCreatedPayload 集合记录创建.
type CollectionCreatedPayload struct {
	Collection CollectionRef `json:"collection"`
	// SourceJob 产生集合的作业 ID，上传场景为空.
	SourceJob string `json:"source_job,omitempty"`
	// ItemCount 创建时随目录一起登记的条目数（作业导入场景）.
	ItemCount int `json:"item_count,omitempty"`
}

// CollectionLockedPayload 集合被锁定.
type CollectionLockedPayload struct {
	Collection CollectionRef `json:"collection"`
}

// CollectionSharedPayload 集合转为公开共享.
type CollectionSharedPayload struct {
	Collection CollectionRef `json:"collection"`
}

// CollectionDeletedPayload 集合及其条目被删除.
type CollectionDeletedPayload struct {
	Collection CollectionRef `json:"collection"`
	ItemCount  int64         `json:"item_count,omitempty"`
}

// ItemConvertedPayload 条目转换成功.
type ItemConvertedPayload struct {
	ItemID       string `json:"item_id"`
	CollectionID string `json:"collection_id"`
	FileName     string `json:"file_name"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// ItemConvertFailedPayload 条目转换失败，错误文案已写入条目.
type ItemConvertFailedPayload struct {
	ItemID       string `json:"item_id"`
	CollectionID string `json:"collection_id"`
	FileName     string `json:"file_name"`
	Error        string `json:"error,omitempty"`
}

// JobOutputBoundPayload 作业输出槽绑定到新资产.
type JobOutputBoundPayload struct {
	JobID      string        `json:"job_id"`
	OutputName string        `json:"output_name"`
	Collection CollectionRef `json:"collection"`
}
