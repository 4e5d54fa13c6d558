package service

import (
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/internal/access"
	"github.com/yeisme/assetvault/pkg/internal/errs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/pipeline"
	"github.com/yeisme/assetvault/pkg/internal/types"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// UploadService 向既有集合上传文件. 图像集合的上传进暂存目录并登记
// importing 条目交给转换流水线；其余种类直接落永久目录.
type UploadService struct{ *AssetService }

// NewUploadService 构造上传服务.
func NewUploadService(c context.Context) *UploadService {
	return &UploadService{NewAssetService(c)}
}

// Upload 接收 multipart 文件并入库. 返回登记的条目.
func (s *UploadService) Upload(ctx context.Context, collectionID string, files []*multipart.FileHeader) (types.ListItemsResponse, error) {
	p := access.FromContext(ctx)

	collSvc := &CollectionService{s.AssetService}

	c, err := collSvc.Get(ctx, collectionID)
	if err != nil {
		return types.ListItemsResponse{}, err
	}

	if !p.CanMutate(c.Owner) {
		return types.ListItemsResponse{}, errs.Forbiddenf("only the owner or an admin can upload to this collection")
	}

	if c.Locked {
		return types.ListItemsResponse{}, errs.Clientf("Can not upload to a locked collection.")
	}

	if c.Kind == model.KindImagesCollection {
		return s.uploadImages(ctx, c, files)
	}

	return s.uploadFiles(ctx, c, files)
}

// uploadImages 存入集合暂存目录，登记 importing 条目并排队转换.
func (s *UploadService) uploadImages(ctx context.Context, c *model.Collection, files []*multipart.FileHeader) (types.ListItemsResponse, error) {
	dir := s.blobs.TempCollectionDir(c.Kind, c.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.ListItemsResponse{}, err
	}

	items := make([]model.Item, 0, len(files))
	ids := make([]string, 0, len(files))

	err := s.dbClient.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fh := range files {
			name := filepath.Base(fh.Filename)
			if err := saveUploadedFile(fh, filepath.Join(dir, name)); err != nil {
				return err
			}

			item := model.NewPendingItem(c.ID, name)
			if err := tx.Create(item).Error; err != nil {
				return err
			}

			items = append(items, *item)
			ids = append(ids, item.ID)
		}

		return pipeline.RecomputeAggregates(tx, c.ID)
	})
	if err != nil {
		return types.ListItemsResponse{}, err
	}

	s.pipeline.Enqueue(ids...)

	nlog.Logger().Info().
		Str("collection", c.ID).
		Int("images", len(ids)).
		Msg("uploaded images queued for conversion")

	return types.ListItemsResponse{Items: items, Total: int64(len(items))}, nil
}

// uploadFiles 非图像种类直接写入永久目录并登记已落地条目.
func (s *UploadService) uploadFiles(ctx context.Context, c *model.Collection, files []*multipart.FileHeader) (types.ListItemsResponse, error) {
	dir := s.blobs.CollectionDir(c.Kind, c.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.ListItemsResponse{}, err
	}

	items := make([]model.Item, 0, len(files))

	err := s.dbClient.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fh := range files {
			name := filepath.Base(fh.Filename)
			if err := saveUploadedFile(fh, filepath.Join(dir, name)); err != nil {
				return err
			}

			item := model.NewImportedItem(c.ID, name, fh.Size)
			if err := tx.Create(item).Error; err != nil {
				return err
			}

			items = append(items, *item)
		}

		return pipeline.RecomputeAggregates(tx, c.ID)
	})
	if err != nil {
		return types.ListItemsResponse{}, err
	}

	return types.ListItemsResponse{Items: items, Total: int64(len(items))}, nil
}

// saveUploadedFile 把 multipart 文件写到目标路径.
func saveUploadedFile(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)

	return err
}
