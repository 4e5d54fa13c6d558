package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// S3Config S3 批量导入来源配置（MinIO 兼容）. 仅作为读取来源：
// 按 bucket/prefix 下载原始图像到上传暂存目录，再走常规导入流程.
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	// DownloadConcurrency 批量下载的并发数.
	DownloadConcurrency int `mapstructure:"download_concurrency" rule:"min=1,max=32"`
}

const (
	DefaultS3Endpoint            = "localhost:9000" // 默认S3端点
	DefaultS3AccessKeyID         = "minioadmin"     // 默认访问密钥ID
	DefaultS3SecretAccessKey     = "minioadmin"     // 默认秘密访问密钥
	DefaultS3UseSSL              = false            // 默认是否使用SSL
	DefaultS3Region              = "us-east-1"      // 默认区域
	DefaultS3DownloadConcurrency = 8                // 默认下载并发数
)

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// setDefaults 设置 S3 配置的默认值.
func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("s3.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("s3.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("s3.region", DefaultS3Region)
	v.SetDefault("s3.download_concurrency", DefaultS3DownloadConcurrency)
}
