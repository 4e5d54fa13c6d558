// Package s3 封装 S3 兼容对象存储的访问，作为图像批量导入的外部来源：
// 按 bucket + 前缀枚举对象并并发下载到集合暂存目录，之后交给转换流水线.
package s3

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/assetvault/pkg/configs"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// Client 包装 MinIO 客户端.
type Client struct {
	*minio.Client

	concurrency int
}

// New 初始化 MinIO 客户端. 只做连接，不创建 bucket：导入源的 bucket
// 归数据提供方所有.
func New(ctx context.Context) (*Client, error) {
	cfg := configs.GetConfig().S3

	endpoint := cfg.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			cfg.UseSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("assetvault", configs.AppVersion)

	nlog.Logger().Info().Str("endpoint", cfg.Endpoint).Msg("s3 import source connected")

	return &Client{Client: cli, concurrency: cfg.DownloadConcurrency}, nil
}

// DownloadPrefix 把 bucket 下指定前缀的全部对象下载到 destDir，保持文件名
// （对象键去掉前缀后的最后一段）. 并发度受配置限制，任何一个对象失败即
// 取消剩余下载并返回首个错误. 返回成功下载的文件名列表.
func (c *Client) DownloadPrefix(ctx context.Context, bucket, prefix, destDir string) ([]string, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.concurrency, 1))

	objects := c.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var names []string

	for obj := range objects {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s/%s: %w", bucket, prefix, obj.Err)
		}

		// 跳过目录占位对象
		if strings.HasSuffix(obj.Key, "/") || obj.Size == 0 {
			continue
		}

		key := obj.Key
		name := path.Base(key)
		names = append(names, name)

		g.Go(func() error {
			if err := c.FGetObject(ctx, bucket, key, filepath.Join(destDir, name), minio.GetObjectOptions{}); err != nil {
				return fmt.Errorf("download %s/%s: %w", bucket, key, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	nlog.Logger().Info().
		Str("bucket", bucket).
		Str("prefix", prefix).
		Int("objects", len(names)).
		Msg("s3 prefix downloaded")

	return names, nil
}

// HealthCheck 简单的健康检查，通过列出桶来验证连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ListBuckets(ctx)
	return err
}

// Close 关闭 S3 客户端连接（无实际操作，接口兼容）.
func (c *Client) Close() error {
	return nil
}
