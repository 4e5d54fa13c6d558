package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPipelineConcurrency     = 4              // 默认转换工作协程数
	DefaultPipelineTileSize        = 1024           // 默认瓦片尺寸（像素）
	DefaultConverterCommand        = "av-tile-conv" // 默认外部转换器命令
	DefaultConverterTimeoutSeconds = 600            // 单个文件转换超时（秒）
	DefaultPipelineRescanCron      = "*/10 * * * *" // 周期性补扫 importing 状态条目
	DefaultStagingSweepCron        = "30 4 * * *"   // 每天清理孤儿暂存目录
	DefaultStagingMaxAgeHours      = 72             // 孤儿暂存目录保留时长（小时）
	DefaultPipelineShutdownTimeout = 30             // 优雅停机等待（秒）
)

// PipelineConfig 图像转换流水线配置.
type PipelineConfig struct {
	Concurrency      int    `mapstructure:"concurrency"       rule:"min=1,max=64"`
	TileSize         int    `mapstructure:"tile_size"         rule:"min=16"`
	ConverterCommand string `mapstructure:"converter_command" rule:"required"`
	ConverterTimeout int    `mapstructure:"converter_timeout" rule:"min=1"`
	RescanCron       string `mapstructure:"rescan_cron"`
	StagingSweepCron string `mapstructure:"staging_sweep_cron"`
	StagingMaxAge    int    `mapstructure:"staging_max_age_hours" rule:"min=1"`
	ShutdownTimeout  int    `mapstructure:"shutdown_timeout"`

	// Breaker 外部转换器的熔断配置，连续失败时快速失败而不是反复拉起转换进程.
	Breaker CircuitBreakerConfig `mapstructure:"breaker"`
}

// GetConverterTimeout 返回转换超时作为 time.Duration.
func (c *PipelineConfig) GetConverterTimeout() time.Duration {
	return time.Duration(c.ConverterTimeout) * time.Second
}

// GetShutdownTimeout 返回停机等待作为 time.Duration.
func (c *PipelineConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// setDefaults 设置流水线配置的默认值.
func (c *PipelineConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.concurrency", DefaultPipelineConcurrency)
	v.SetDefault("pipeline.tile_size", DefaultPipelineTileSize)
	v.SetDefault("pipeline.converter_command", DefaultConverterCommand)
	v.SetDefault("pipeline.converter_timeout", DefaultConverterTimeoutSeconds)
	v.SetDefault("pipeline.rescan_cron", DefaultPipelineRescanCron)
	v.SetDefault("pipeline.staging_sweep_cron", DefaultStagingSweepCron)
	v.SetDefault("pipeline.staging_max_age_hours", DefaultStagingMaxAgeHours)
	v.SetDefault("pipeline.shutdown_timeout", DefaultPipelineShutdownTimeout)

	c.Breaker.setDefaults(v)
}
