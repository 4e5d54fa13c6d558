package data

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/pipeline"
	fsc "github.com/yeisme/assetvault/pkg/internal/storage/fs"
	mqc "github.com/yeisme/assetvault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/assetvault/pkg/log"
	"github.com/yeisme/assetvault/pkg/queue"
)

// sidecarFileName 可选的描述文件，随作业输出一起出现在暂存目录里.
const sidecarFileName = "data-info.json"

// baseHandler 各种类处理器共享的导入机制：建记录、搬迁、登记条目、
// 绑定输出槽、发事件.
type baseHandler struct {
	db    *gorm.DB
	blobs *fsc.Store
	mq    *mqc.Client
}

// relocate 把作业暂存目录搬迁到 dst. 失败时删除刚建的记录（补偿动作），
// 让失败的导入不留半成品.
func (b *baseHandler) relocate(ctx context.Context, c *model.Collection, src, dst string) error {
	if err := b.blobs.MoveIntoPlace(src, dst); err != nil {
		if delErr := b.db.WithContext(ctx).Delete(c).Error; delErr != nil {
			nlog.Logger().Error().Err(delErr).
				Str("collection", c.ID).
				Msg("compensating record delete failed")
		}

		return err
	}

	return nil
}

// registerImportedItems 把目录下的普通文件登记为已落地条目并重算聚合.
func (b *baseHandler) registerImportedItems(ctx context.Context, c *model.Collection, dir string) (int, error) {
	names, err := b.blobs.ListRegularFiles(dir)
	if err != nil {
		return 0, err
	}

	registered := 0

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			if name == sidecarFileName {
				continue
			}

			size, err := b.blobs.FileSize(filepath.Join(dir, name))
			if err != nil {
				return err
			}

			if err := tx.Create(model.NewImportedItem(c.ID, name, size)).Error; err != nil {
				return err
			}

			registered++
		}

		return pipeline.RecomputeAggregates(tx, c.ID)
	})
	if err != nil {
		return 0, err
	}

	return registered, nil
}

// bindOutput 把作业输出槽绑定到新资产并落库. 只在搬迁成功后调用.
func (b *baseHandler) bindOutput(ctx context.Context, job *model.Job, outputName string, c *model.Collection) error {
	if err := job.BindOutput(outputName, c.ID); err != nil {
		return err
	}

	if err := b.db.WithContext(ctx).Save(job).Error; err != nil {
		return err
	}

	if b.mq != nil {
		err := queue.PublishJobOutputBound(b.mq.Publisher(), queue.JobOutputBoundPayload{
			JobID:      job.ID,
			OutputName: outputName,
			Collection: collectionRef(c),
		}, queue.WithProducer("assetvault"))
		if err != nil {
			nlog.Logger().Warn().Err(err).Str("job", job.ID).Msg("publish job output bound event")
		}
	}

	return nil
}

// publishCreated 发布集合创建事件. 作业导入产生的集合走 imported 开关，
// MQ 未启用或开关关闭时为空操作.
func (b *baseHandler) publishCreated(c *model.Collection, itemCount int) {
	if b.mq == nil || !configs.GetConfig().Events.Collection.Imported {
		return
	}

	err := queue.PublishCollectionCreated(b.mq.Publisher(), queue.CollectionCreatedPayload{
		Collection: collectionRef(c),
		SourceJob:  c.SourceJob,
		ItemCount:  itemCount,
	}, queue.WithProducer("assetvault"))
	if err != nil {
		nlog.Logger().Warn().Err(err).Str("collection", c.ID).Msg("publish collection created event")
	}
}

// sidecar data-info.json 的可选描述字段.
type sidecar struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Metadata    string `json:"metadata"`
}

// applySidecar 在落地目录查找 data-info.json 并把描述字段附到记录上.
// 文件缺失或格式错误都不致命，导入照常成功.
func (b *baseHandler) applySidecar(ctx context.Context, c *model.Collection, dir string) {
	raw, err := os.ReadFile(filepath.Join(dir, sidecarFileName))
	if err != nil {
		return
	}

	var sc sidecar
	if err := sonic.Unmarshal(raw, &sc); err != nil {
		nlog.Logger().Warn().Err(err).
			Str("collection", c.ID).
			Msg("malformed data-info.json, descriptor fields left empty")

		return
	}

	c.Type = sc.Type
	c.Description = sc.Description
	c.Metadata = sc.Metadata

	if err := b.db.WithContext(ctx).Save(c).Error; err != nil {
		nlog.Logger().Warn().Err(err).Str("collection", c.ID).Msg("persist descriptor fields")
	}
}

func collectionRef(c *model.Collection) queue.CollectionRef {
	return queue.CollectionRef{
		ID:    c.ID,
		Kind:  string(c.Kind),
		Name:  c.Name,
		Owner: c.Owner,
	}
}

// exportPath 解析资产引用为容器内路径. 引用指向另一个作业输出时
// 返回其暂存目录路径.
func (b *baseHandler) exportPath(kind model.Kind, value string) string {
	var p string

	if jobID, outputName, ok := ParseJobOutputRef(value); ok {
		p = b.blobs.JobStagingDir(jobID, outputName)
	} else {
		p = b.blobs.CollectionDir(kind, value)
	}

	return b.blobs.RewriteForContainer(p)
}
