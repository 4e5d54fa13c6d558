// Package configs 管理应用程序配置，包括数据库、本地资产存储、转换流水线和
// 消息队列的配置信息. 支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing DB config:
//
//	config := configs.GetConfig()
//	dsn := config.DB.GetDSN()
//	fmt.Println("DSN:", dsn)
//
// Example accessing Storage config:
//
//	config := configs.GetConfig()
//	fmt.Println("Root:", config.Storage.Root)
//	fmt.Println("Images collections:", config.Storage.ImagesCollectionsFolder())
//
// Example accessing Pipeline config:
//
//	config := configs.GetConfig()
//	fmt.Println("Converter threads:", config.Pipeline.Concurrency)
package configs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AppVersion 应用版本号，构建时可通过 ldflags 覆盖.
var AppVersion = "1.0.0"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server    ServerConfig    `mapstructure:"server"`     // 服务器端口、调试模式等
		DB        DBConfig        `mapstructure:"db"`         // 资产元数据记录库
		Log       LogConfig       `mapstructure:"log"`        // 日志相关配置
		Storage   StorageConfig   `mapstructure:"storage"`    // 本地资产 blob 存储
		Pipeline  PipelineConfig  `mapstructure:"pipeline"`   // 图像转换流水线
		MQ        MQConfig        `mapstructure:"mq"`         // 资产事件总线
		KV        KVConfig        `mapstructure:"kv"`         // 统计缓存 KV 后端
		S3        S3Config        `mapstructure:"s3"`         // S3 批量导入来源
		Auth      AuthConfig      `mapstructure:"auth"`       // 身份认证（代理注入头）
		Metrics   MetricsConfig   `mapstructure:"metrics"`    // Prometheus 指标
		Tracing   TracingConfig   `mapstructure:"tracing"`    // OpenTelemetry 追踪
		RateLimit RateLimitConfig `mapstructure:"rate_limit"` // 请求限流
		Events    EventsConfig    `mapstructure:"events"`     // 事件发布开关
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
func InitConfig(path string) error {
	appViper = viper.New()
	// 设置默认值
	setAllDefaults(appViper)

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		appViper.SetConfigFile(path)
	} else {
		// 是目录，设置配置名和路径
		appViper.SetConfigName("config")
		appViper.AddConfigPath(path)
		appViper.AddConfigPath(path + "/configs")

		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, ext := range exts {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				appViper.SetConfigFile(cfg)

				break
			}
		}
	}

	appViper.AutomaticEnv()
	appViper.SetEnvPrefix("ASSETVAULT")

	// 读取配置，找不到配置文件时退回默认值 + 环境变量
	if err := appViper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 解析到全局配置
	if err := appViper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	reloadConfigs(appViper, globalConfig.Server.ReloadConfig)

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var serverConfig ServerConfig

	var dbConfig DBConfig

	var logConfig LogConfig

	var storageConfig StorageConfig

	var pipelineConfig PipelineConfig

	var mqConfig MQConfig

	var kvConfig KVConfig

	var s3Config S3Config

	var authConfig AuthConfig

	var metricsConfig MetricsConfig

	var tracingConfig TracingConfig

	var rateLimitConfig RateLimitConfig

	var eventsConfig EventsConfig

	serverConfig.setDefaults(v)
	dbConfig.setDefaults(v)
	logConfig.setDefaults(v)
	storageConfig.setDefaults(v)
	pipelineConfig.setDefaults(v)
	mqConfig.setDefaults(v)
	kvConfig.setDefaults(v)
	s3Config.setDefaults(v)
	authConfig.setDefaults(v)
	metricsConfig.setDefaults(v)
	tracingConfig.setDefaults(v)
	rateLimitConfig.setDefaults(v)
	eventsConfig.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		fmt.Println("Reloading configuration...")

		if err := v.Unmarshal(&globalConfig); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
		}
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	return &globalConfig
}

func GetViper() *viper.Viper {
	return appViper
}
