package types

// S3ImportRequest 从 S3 兼容存储批量导入图像到既有空集合.
type S3ImportRequest struct {
	Bucket string `json:"bucket" binding:"required"`
	Prefix string `json:"prefix"`
}

// S3ImportResponse 批量导入结果.
type S3ImportResponse struct {
	CollectionID string `json:"collectionId"`
	Queued       int    `json:"queued"`
}
