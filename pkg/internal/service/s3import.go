package service

import (
	"context"
	"os"

	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/internal/access"
	"github.com/yeisme/assetvault/pkg/internal/errs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/pipeline"
	"github.com/yeisme/assetvault/pkg/internal/types"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// S3ImportService 从 S3 兼容存储批量导入图像到既有空集合.
type S3ImportService struct{ *AssetService }

// NewS3ImportService 构造 S3 导入服务.
func NewS3ImportService(c context.Context) *S3ImportService {
	return &S3ImportService{NewAssetService(c)}
}

// ImportImages 把 bucket/prefix 下的对象并发下载到集合暂存目录，
// 登记 importing 条目并排队转换. 仅允许空的图像集合.
func (s *S3ImportService) ImportImages(ctx context.Context, collectionID string, req types.S3ImportRequest) (types.S3ImportResponse, error) {
	if s.s3Client == nil {
		return types.S3ImportResponse{}, errs.Clientf("no S3 import source configured")
	}

	p := access.FromContext(ctx)

	collSvc := &CollectionService{s.AssetService}

	c, err := collSvc.Get(ctx, collectionID)
	if err != nil {
		return types.S3ImportResponse{}, err
	}

	if !p.CanMutate(c.Owner) {
		return types.S3ImportResponse{}, errs.Forbiddenf("only the owner or an admin can import into this collection")
	}

	if c.Kind != model.KindImagesCollection {
		return types.S3ImportResponse{}, errs.Clientf("S3 import is only supported for images collections")
	}

	if c.Locked {
		return types.S3ImportResponse{}, errs.Clientf("Can not import into a locked collection.")
	}

	// 只允许导入到空集合，以当前条目状态为准
	var count int64
	if err := s.dbClient.GetDB().WithContext(ctx).Model(&model.Item{}).
		Where("collection_id = ?", c.ID).Count(&count).Error; err != nil {
		return types.S3ImportResponse{}, err
	}

	if count != 0 {
		return types.S3ImportResponse{}, errs.Clientf("Collection is not empty.")
	}

	dir := s.blobs.TempCollectionDir(c.Kind, c.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.S3ImportResponse{}, err
	}

	names, err := s.s3Client.DownloadPrefix(ctx, req.Bucket, req.Prefix, dir)
	if err != nil {
		return types.S3ImportResponse{}, errs.Clientf("Error while importing data.")
	}

	ids := make([]string, 0, len(names))

	err = s.dbClient.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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
		return types.S3ImportResponse{}, err
	}

	s.pipeline.Enqueue(ids...)

	nlog.Logger().Info().
		Str("collection", c.ID).
		Str("bucket", req.Bucket).
		Int("images", len(ids)).
		Msg("s3 import queued for conversion")

	return types.S3ImportResponse{CollectionID: c.ID, Queued: len(ids)}, nil
}
