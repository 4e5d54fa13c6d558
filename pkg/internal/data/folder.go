package data

import (
	"context"

	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/internal/model"
	fsc "github.com/yeisme/assetvault/pkg/internal/storage/fs"
	mqc "github.com/yeisme/assetvault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// FolderHandler 目录型资产的导入处理器：作业输出目录整体搬迁进永久存储，
// 文件不经转换直接登记为已落地条目. generic-data 种类额外解析
// data-info.json 描述文件.
type FolderHandler struct {
	baseHandler

	kind        model.Kind
	withSidecar bool
}

// NewGenericDataHandler 通用数据集处理器.
func NewGenericDataHandler(db *gorm.DB, blobs *fsc.Store, mq *mqc.Client) *FolderHandler {
	return &FolderHandler{
		baseHandler: baseHandler{db: db, blobs: blobs, mq: mq},
		kind:        model.KindGenericData,
		withSidecar: true,
	}
}

// NewPyramidHandler 金字塔数据处理器.
func NewPyramidHandler(db *gorm.DB, blobs *fsc.Store, mq *mqc.Client) *FolderHandler {
	return &FolderHandler{
		baseHandler: baseHandler{db: db, blobs: blobs, mq: mq},
		kind:        model.KindPyramid,
	}
}

// NewTensorflowModelHandler 模型数据处理器.
func NewTensorflowModelHandler(db *gorm.DB, blobs *fsc.Store, mq *mqc.Client) *FolderHandler {
	return &FolderHandler{
		baseHandler: baseHandler{db: db, blobs: blobs, mq: mq},
		kind:        model.KindTensorflowModel,
	}
}

// Kind 实现 Handler.
func (h *FolderHandler) Kind() model.Kind { return h.kind }

// ImportData 实现 Handler.
func (h *FolderHandler) ImportData(ctx context.Context, job *model.Job, outputName string) (*model.Collection, error) {
	c := model.NewJobCollection(h.kind, job, outputName)
	if err := h.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}

	staging := h.blobs.JobStagingDir(job.ID, outputName)
	dest := h.blobs.CollectionDir(h.kind, c.ID)

	if err := h.relocate(ctx, c, staging, dest); err != nil {
		return nil, err
	}

	count, err := h.registerImportedItems(ctx, c, dest)
	if err != nil {
		return nil, err
	}

	if err := h.bindOutput(ctx, job, outputName, c); err != nil {
		return nil, err
	}

	if h.withSidecar {
		h.applySidecar(ctx, c, dest)
	}

	h.publishCreated(c, count)

	nlog.Logger().Info().
		Str("collection", c.ID).
		Str("kind", string(h.kind)).
		Str("job", job.ID).
		Int("files", count).
		Msg("collection imported")

	return c, nil
}

// ExportDataAsParam 实现 Handler.
func (h *FolderHandler) ExportDataAsParam(value string) string {
	return h.exportPath(h.kind, value)
}
