package model

import "time"

// Item 集合内单个文件条目. 创建时 importing = true，由转换流水线恰好一次
// 迁移到终态：成功则替换 file_name / file_size 并清除 importing，
// 失败则写入 import_error. 终态后不再变更，仅随集合级联删除.
type Item struct {
	ID           string `gorm:"primaryKey;size:26"  json:"id"`
	CollectionID string `gorm:"size:26;index"       json:"collectionId"`
	FileName     string `gorm:"size:512"            json:"fileName"`
	// OriginalFileName 上传/作业输出时的原始文件名，用于定位暂存输入
	OriginalFileName string `gorm:"size:512"  json:"originalFileName"`
	FileSize         int64  `json:"fileSize"`
	Importing        bool   `gorm:"index"     json:"importing"`
	ImportError      string `gorm:"type:text" json:"importError,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName 指定表名.
func (Item) TableName() string { return "items" }

// NewPendingItem 创建待转换条目.
func NewPendingItem(collectionID, fileName string) *Item {
	return &Item{
		ID:               NewID(),
		CollectionID:     collectionID,
		FileName:         fileName,
		OriginalFileName: fileName,
		Importing:        true,
	}
}

// NewImportedItem 创建无需转换、随目录搬迁直接落地的条目.
func NewImportedItem(collectionID, fileName string, size int64) *Item {
	return &Item{
		ID:               NewID(),
		CollectionID:     collectionID,
		FileName:         fileName,
		OriginalFileName: fileName,
		FileSize:         size,
		Importing:        false,
	}
}
