package data

import (
	"context"

	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/pipeline"
	fsc "github.com/yeisme/assetvault/pkg/internal/storage/fs"
	mqc "github.com/yeisme/assetvault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// Enqueuer 把待转换条目交给转换流水线. 由 pipeline.Pipeline 实现，
// 接口化避免处理器反向依赖流水线的装配.
type Enqueuer interface {
	Enqueue(itemIDs ...string)
}

// ImagesHandler 图像集合导入处理器. 与其他种类不同，图像文件搬迁到集合
// 暂存目录后先登记为 importing 条目，再交给转换流水线逐个转为 OME-TIFF，
// 只有转换完成的条目才出现在永久 images 目录里.
type ImagesHandler struct {
	baseHandler

	enqueuer Enqueuer
}

// NewImagesHandler 构造图像集合处理器.
func NewImagesHandler(db *gorm.DB, blobs *fsc.Store, mq *mqc.Client, enqueuer Enqueuer) *ImagesHandler {
	return &ImagesHandler{
		baseHandler: baseHandler{db: db, blobs: blobs, mq: mq},
		enqueuer:    enqueuer,
	}
}

// Kind 实现 Handler.
func (h *ImagesHandler) Kind() model.Kind { return model.KindImagesCollection }

// ImportData 实现 Handler.
func (h *ImagesHandler) ImportData(ctx context.Context, job *model.Job, outputName string) (*model.Collection, error) {
	c := model.NewJobCollection(model.KindImagesCollection, job, outputName)
	if err := h.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}

	staging := h.blobs.JobStagingDir(job.ID, outputName)
	dest := h.blobs.TempCollectionDir(model.KindImagesCollection, c.ID)

	if err := h.relocate(ctx, c, staging, dest); err != nil {
		return nil, err
	}

	itemIDs, err := h.registerPendingItems(ctx, c, dest)
	if err != nil {
		return nil, err
	}

	if err := h.bindOutput(ctx, job, outputName, c); err != nil {
		return nil, err
	}

	h.publishCreated(c, len(itemIDs))
	h.enqueuer.Enqueue(itemIDs...)

	nlog.Logger().Info().
		Str("collection", c.ID).
		Str("job", job.ID).
		Int("images", len(itemIDs)).
		Msg("images collection imported, conversion queued")

	return c, nil
}

// ExportDataAsParam 实现 Handler.
func (h *ImagesHandler) ExportDataAsParam(value string) string {
	return h.exportPath(model.KindImagesCollection, value)
}

// registerPendingItems 把暂存目录下的原始图像登记为 importing 条目.
func (h *ImagesHandler) registerPendingItems(ctx context.Context, c *model.Collection, dir string) ([]string, error) {
	names, err := h.blobs.ListRegularFiles(dir)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			item := model.NewPendingItem(c.ID, name)
			if err := tx.Create(item).Error; err != nil {
				return err
			}

			ids = append(ids, item.ID)
		}

		return pipeline.RecomputeAggregates(tx, c.ID)
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}
