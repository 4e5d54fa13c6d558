package service

import (
	"context"
	"errors"
	"path/filepath"
	"slices"

	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/access"
	"github.com/yeisme/assetvault/pkg/internal/errs"
	"github.com/yeisme/assetvault/pkg/internal/guard"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/pipeline"
	"github.com/yeisme/assetvault/pkg/internal/types"
	nlog "github.com/yeisme/assetvault/pkg/log"
	"github.com/yeisme/assetvault/pkg/queue"
)

const maxPageSize = 200

// CollectionService 集合的增删改查与条目管理.
type CollectionService struct{ *AssetService }

// NewCollectionService 构造集合服务.
func NewCollectionService(c context.Context) *CollectionService {
	return &CollectionService{NewAssetService(c)}
}

// Create 创建集合. owner 与 creationDate 由创建门填充.
func (s *CollectionService) Create(ctx context.Context, req types.CreateCollectionRequest) (*model.Collection, error) {
	kind, err := parseKind(req.Kind)
	if err != nil {
		return nil, err
	}

	p := access.FromContext(ctx)
	c := model.NewCollection(kind, req.Name)

	err = s.dbClient.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guard.BeforeCreate(tx, c, p); err != nil {
			return err
		}

		return tx.Create(c).Error
	})
	if err != nil {
		return nil, err
	}

	if s.mqClient != nil && configs.GetConfig().Events.Collection.Created {
		if err := queue.PublishCollectionCreated(s.mqClient.Publisher(), queue.CollectionCreatedPayload{
			Collection: queue.CollectionRef{ID: c.ID, Kind: string(c.Kind), Name: c.Name, Owner: c.Owner},
		}, queue.WithProducer("assetvault")); err != nil {
			nlog.Logger().Warn().Err(err).Str("collection", c.ID).Msg("publish collection created event")
		}
	}

	return c, nil
}

// List 分页列表. 访问过滤谓词与 kind / 名称子串过滤 AND 组合.
func (s *CollectionService) List(ctx context.Context, q types.ListCollectionsQuery) (types.ListCollectionsResponse, error) {
	p := access.FromContext(ctx)

	if q.Page < 1 {
		q.Page = 1
	}

	if q.PageSize < 1 || q.PageSize > maxPageSize {
		q.PageSize = 20
	}

	dbx := s.dbClient.GetDB().WithContext(ctx).
		Model(&model.Collection{}).
		Scopes(access.Scope(p))

	if q.Kind != "" {
		kind, err := parseKind(q.Kind)
		if err != nil {
			return types.ListCollectionsResponse{}, err
		}

		dbx = dbx.Where("kind = ?", kind)
	}

	if q.Name != "" {
		// LIKE 的大小写语义随方言变化（postgres 区分大小写），统一 LOWER
		dbx = dbx.Where("LOWER(name) LIKE LOWER(?)", "%"+q.Name+"%")
	}

	var total int64
	if err := dbx.Count(&total).Error; err != nil {
		return types.ListCollectionsResponse{}, err
	}

	var collections []model.Collection

	err := dbx.Order("creation_date DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&collections).Error
	if err != nil {
		return types.ListCollectionsResponse{}, err
	}

	return types.ListCollectionsResponse{
		Collections: collections,
		Total:       total,
		Page:        q.Page,
		PageSize:    q.PageSize,
	}, nil
}

// Get 按 ID 读取. 记录不存在返回 NotFound；存在但对调用方不可见返回
// Forbidden，不伪装成 NotFound.
func (s *CollectionService) Get(ctx context.Context, id string) (*model.Collection, error) {
	p := access.FromContext(ctx)

	var c model.Collection

	err := s.dbClient.GetDB().WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("collection", id)
	}

	if err != nil {
		return nil, err
	}

	if !p.CanRead(&c) {
		return nil, errs.Forbiddenf("collection %s is not accessible", id)
	}

	return &c, nil
}

// Update 更新集合. 差异校验由更新门在同一事务内完成.
func (s *CollectionService) Update(ctx context.Context, id string, req types.UpdateCollectionRequest) (*model.Collection, error) {
	p := access.FromContext(ctx)

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	applyUpdate(&updated, req)

	lockedNow := !current.Locked && updated.Locked
	sharedNow := !current.PubliclyShared && updated.PubliclyShared

	err = s.dbClient.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guard.BeforeSave(tx, &updated, p); err != nil {
			return err
		}

		// 只写可变列. 聚合计数器由流水线独占重算，回写 Get 时的快照会
		// 吞掉并发完成条目的 worker 刚提交的计数.
		return tx.Model(&model.Collection{}).
			Where("id = ?", updated.ID).
			Updates(map[string]any{
				"name":            updated.Name,
				"locked":          updated.Locked,
				"publicly_shared": updated.PubliclyShared,
				"type":            updated.Type,
				"description":     updated.Description,
				"metadata":        updated.Metadata,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.publishLifecycle(&updated, lockedNow, sharedNow)

	return &updated, nil
}

// Delete 删除集合及其条目，blob 目录尽力清理.
func (s *CollectionService) Delete(ctx context.Context, id string) error {
	p := access.FromContext(ctx)

	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	var itemCount int64

	err = s.dbClient.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guard.BeforeDelete(tx, c, p); err != nil {
			return err
		}

		if err := tx.Model(&model.Item{}).Where("collection_id = ?", c.ID).Count(&itemCount).Error; err != nil {
			return err
		}

		if err := tx.Delete(c).Error; err != nil {
			return err
		}

		return guard.AfterDelete(tx, s.blobs, c)
	})
	if err != nil {
		return err
	}

	if s.mqClient != nil && configs.GetConfig().Events.Collection.Deleted {
		if err := queue.PublishCollectionDeleted(s.mqClient.Publisher(), queue.CollectionDeletedPayload{
			Collection: queue.CollectionRef{ID: c.ID, Kind: string(c.Kind), Name: c.Name, Owner: c.Owner},
			ItemCount:  itemCount,
		}, queue.WithProducer("assetvault")); err != nil {
			nlog.Logger().Warn().Err(err).Str("collection", c.ID).Msg("publish collection deleted event")
		}
	}

	return nil
}

// Items 列出集合条目，按创建顺序.
func (s *CollectionService) Items(ctx context.Context, id string) (types.ListItemsResponse, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return types.ListItemsResponse{}, err
	}

	var items []model.Item

	err := s.dbClient.GetDB().WithContext(ctx).
		Where("collection_id = ?", id).
		Order("created_at").
		Find(&items).Error
	if err != nil {
		return types.ListItemsResponse{}, err
	}

	return types.ListItemsResponse{Items: items, Total: int64(len(items))}, nil
}

// DeleteItem 删除单个条目及其 blob 文件. 锁定集合的条目不可删除.
func (s *CollectionService) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	p := access.FromContext(ctx)

	c, err := s.Get(ctx, collectionID)
	if err != nil {
		return err
	}

	if !p.CanMutate(c.Owner) {
		return errs.Forbiddenf("only the owner or an admin can delete items")
	}

	if c.Locked {
		return errs.Clientf("Can not delete items of a locked collection.")
	}

	return s.dbClient.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.Item

		err := tx.Where("id = ? AND collection_id = ?", itemID, collectionID).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("item", itemID)
		}

		if err != nil {
			return err
		}

		if err := tx.Delete(&item).Error; err != nil {
			return err
		}

		s.removeItemBlob(c, &item)

		return pipeline.RecomputeAggregates(tx, collectionID)
	})
}

// ClearItemError 清除条目的导入错误标记. 失败条目会阻塞集合的锁定，
// 清除错误（或删除条目）后集合才能继续生命周期.
func (s *CollectionService) ClearItemError(ctx context.Context, collectionID, itemID string) (*model.Item, error) {
	p := access.FromContext(ctx)

	c, err := s.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	if !p.CanMutate(c.Owner) {
		return nil, errs.Forbiddenf("only the owner or an admin can clear item errors")
	}

	var item model.Item

	err = s.dbClient.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND collection_id = ?", itemID, collectionID).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("item", itemID)
		}

		if err != nil {
			return err
		}

		if item.ImportError == "" {
			return nil
		}

		item.ImportError = ""

		if err := tx.Save(&item).Error; err != nil {
			return err
		}

		return pipeline.RecomputeAggregates(tx, collectionID)
	})
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// removeItemBlob 尽力删除条目对应的 blob 文件，失败只记日志.
func (s *CollectionService) removeItemBlob(c *model.Collection, item *model.Item) {
	paths := []string{}

	if c.Kind == model.KindImagesCollection {
		paths = append(paths,
			filepath.Join(s.blobs.ImagesDir(c.ID), item.FileName),
			filepath.Join(s.blobs.TempCollectionDir(c.Kind, c.ID), item.OriginalFileName),
		)
	} else {
		paths = append(paths, filepath.Join(s.blobs.CollectionDir(c.Kind, c.ID), item.FileName))
	}

	for _, path := range paths {
		if err := removeIfExists(path); err != nil {
			nlog.Logger().Warn().Err(err).Str("path", path).Msg("was not able to delete item file")
		}
	}
}

// publishLifecycle 发布 locked / shared 转换事件，按主题开关过滤.
func (s *CollectionService) publishLifecycle(c *model.Collection, lockedNow, sharedNow bool) {
	if s.mqClient == nil {
		return
	}

	ev := configs.GetConfig().Events.Collection
	ref := queue.CollectionRef{ID: c.ID, Kind: string(c.Kind), Name: c.Name, Owner: c.Owner}

	if lockedNow && ev.Locked {
		if err := queue.PublishCollectionLocked(s.mqClient.Publisher(), queue.CollectionLockedPayload{Collection: ref},
			queue.WithProducer("assetvault")); err != nil {
			nlog.Logger().Warn().Err(err).Str("collection", c.ID).Msg("publish collection locked event")
		}
	}

	if sharedNow && ev.Shared {
		if err := queue.PublishCollectionShared(s.mqClient.Publisher(), queue.CollectionSharedPayload{Collection: ref},
			queue.WithProducer("assetvault")); err != nil {
			nlog.Logger().Warn().Err(err).Str("collection", c.ID).Msg("publish collection shared event")
		}
	}
}

// applyUpdate 把请求中提交的字段覆盖到副本上.
func applyUpdate(c *model.Collection, req types.UpdateCollectionRequest) {
	if req.Name != nil {
		c.Name = *req.Name
	}

	if req.Locked != nil {
		c.Locked = *req.Locked
	}

	if req.PubliclyShared != nil {
		c.PubliclyShared = *req.PubliclyShared
	}

	if req.Type != nil {
		c.Type = *req.Type
	}

	if req.Description != nil {
		c.Description = *req.Description
	}

	if req.Metadata != nil {
		c.Metadata = *req.Metadata
	}
}

// parseKind 校验资产种类.
func parseKind(raw string) (model.Kind, error) {
	kind := model.Kind(raw)
	if !slices.Contains(model.Kinds(), kind) {
		return "", errs.Clientf("unknown collection kind %q", raw)
	}

	return kind, nil
}
