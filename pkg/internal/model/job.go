package model

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// JobStatus 作业状态（作业的编排与执行在系统外部完成，这里只引用）.
type JobStatus string

const (
	JobStatusCreated   JobStatus = "created"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job 作业记录，仅保存导入侧关心的字段：声明的输出槽及其最终绑定的资产 ID.
// 输出槽以 JSON 文本存储，与 DB 方言无关.
type Job struct {
	ID          string    `gorm:"primaryKey;size:26" json:"id"`
	Name        string    `gorm:"size:255;index"     json:"name"`
	Owner       string    `gorm:"size:255;index"     json:"owner"`
	Status      JobStatus `gorm:"size:32;index"      json:"status"`
	OutputsJSON string    `gorm:"type:text"          json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName 指定表名.
func (Job) TableName() string { return "jobs" }

// JobOutput 一个声明的输出槽. AssetID 在导入处理器搬迁成功后才绑定.
type JobOutput struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	AssetID string `json:"assetId,omitempty"`
}

// Outputs 反序列化输出槽列表.
func (j *Job) Outputs() ([]JobOutput, error) {
	if j.OutputsJSON == "" {
		return nil, nil
	}

	var outs []JobOutput
	if err := sonic.Unmarshal([]byte(j.OutputsJSON), &outs); err != nil {
		return nil, fmt.Errorf("unmarshal job outputs: %w", err)
	}

	return outs, nil
}

// SetOutputs 序列化输出槽列表.
func (j *Job) SetOutputs(outs []JobOutput) error {
	b, err := sonic.Marshal(outs)
	if err != nil {
		return fmt.Errorf("marshal job outputs: %w", err)
	}

	j.OutputsJSON = string(b)

	return nil
}

// BindOutput 将输出槽绑定到资产 ID，未知槽名返回错误.
func (j *Job) BindOutput(outputName, assetID string) error {
	outs, err := j.Outputs()
	if err != nil {
		return err
	}

	for i := range outs {
		if outs[i].Name == outputName {
			outs[i].AssetID = assetID
			return j.SetOutputs(outs)
		}
	}

	return fmt.Errorf("job %s has no output named %q", j.ID, outputName)
}

// Output 按名称查找输出槽.
func (j *Job) Output(outputName string) (JobOutput, error) {
	outs, err := j.Outputs()
	if err != nil {
		return JobOutput{}, err
	}

	for _, o := range outs {
		if o.Name == outputName {
			return o, nil
		}
	}

	return JobOutput{}, fmt.Errorf("job %s has no output named %q", j.ID, outputName)
}
