// Package storage 聚合资产服务的全部存储资源：记录库（gorm）、本地 blob
// 存储、消息队列、KV 缓存，以及可选的 S3 导入源. 统一经 Manager 注入
// context，在请求链路各处取用.
//
// Example:
//
//	ctx := context.Background()
//	mgr, err := storage.Init(ctx)
//	if err != nil {
//	    // 处理错误
//	}
//
//	db := mgr.GetDBClient()
//	blobs := mgr.GetBlobStore()
package storage

import (
	"context"
	"sync"

	"github.com/yeisme/assetvault/pkg/configs"
	dbc "github.com/yeisme/assetvault/pkg/internal/storage/db"
	fsc "github.com/yeisme/assetvault/pkg/internal/storage/fs"
	kvc "github.com/yeisme/assetvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/assetvault/pkg/internal/storage/mq"
	s3c "github.com/yeisme/assetvault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// Manager 聚合所有存储资源. S3 仅在配置了导入源时非 nil，
// MQ 仅在启用事件发布时非 nil.
type Manager struct {
	DB *dbc.Client
	FS *fsc.Store
	MQ *mqc.Client
	KV *kvc.Client
	S3 *s3c.Client
}

var (
	mgr     *Manager
	mgrOnce sync.Once
)

// Init 初始化默认存储，使用全局配置. 重复调用只返回已初始化实例.
func Init(ctx context.Context) (*Manager, error) {
	var err error

	mgrOnce.Do(func() {
		cfg := configs.GetConfig()
		m := &Manager{}

		// DB
		if dbi, e := dbc.New(ctx); e != nil {
			err = e

			return
		} else {
			m.DB = dbi
		}

		// 本地 blob 存储
		if fsi, e := fsc.New(cfg.Storage); e != nil {
			err = e

			return
		} else {
			m.FS = fsi
		}

		// KV（聚合统计缓存）
		if kvi, e := kvc.NewKVClient(ctx); e != nil {
			err = e

			return
		} else {
			m.KV = kvi
		}

		// MQ（生命周期事件发布）
		if cfg.Events.Enabled {
			if mqi, e := mqc.New(ctx); e != nil {
				err = e

				return
			} else {
				m.MQ = mqi
			}
		}

		// S3 导入源
		if cfg.S3.Enabled {
			if s3i, e := s3c.New(ctx); e != nil {
				err = e

				return
			} else {
				m.S3 = s3i
			}
		}

		mgr = m

		nlog.Logger().Info().Msg("storage manager initialized")
	})

	return mgr, err
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetBlobStore 获取本地 blob 存储.
func (m *Manager) GetBlobStore() *fsc.Store {
	return m.FS
}

// GetMQClient 获取 MQ 客户端，事件未启用时为 nil.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// GetS3Client 获取 S3 客户端，未配置导入源时为 nil.
func (m *Manager) GetS3Client() *s3c.Client {
	return m.S3
}

// Close 释放持有连接的存储资源.
func (m *Manager) Close() error {
	var err error

	if m.MQ != nil {
		if e := m.MQ.Close(); e != nil {
			err = e
		}
	}

	if m.KV != nil {
		if e := m.KV.Close(); e != nil {
			err = e
		}
	}

	return err
}
