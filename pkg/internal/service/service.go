// Package service 实现资产生命周期的业务逻辑层. 所有变更都在 gorm 事务内
// 经过 guard 门校验，所有读取都叠加 access 过滤谓词；存储资源经
// pkg/context 注入.
package service

import (
	"context"

	ctxPkg "github.com/yeisme/assetvault/pkg/context"
	"github.com/yeisme/assetvault/pkg/internal/data"
	"github.com/yeisme/assetvault/pkg/internal/pipeline"
	"github.com/yeisme/assetvault/pkg/internal/storage/db"
	"github.com/yeisme/assetvault/pkg/internal/storage/fs"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
	"github.com/yeisme/assetvault/pkg/internal/storage/mq"
	"github.com/yeisme/assetvault/pkg/internal/storage/s3"
)

// AssetService 聚合存储依赖，是各业务服务的公共底座.
type AssetService struct {
	dbClient *db.Client
	blobs    *fs.Store
	mqClient *mq.Client
	kvClient *kv.Client
	s3Client *s3.Client
	pipeline *pipeline.Pipeline
	registry *data.Registry
}

// NewAssetService 从 context 装配服务.
func NewAssetService(c context.Context) *AssetService {
	return &AssetService{
		dbClient: ctxPkg.GetDBClient(c),
		blobs:    ctxPkg.GetBlobStore(c),
		mqClient: ctxPkg.GetMQClient(c),
		kvClient: ctxPkg.GetKVClient(c),
		s3Client: ctxPkg.GetS3Client(c),
		pipeline: ctxPkg.GetPipeline(c),
		registry: ctxPkg.GetRegistry(c),
	}
}
