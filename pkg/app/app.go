// Package app 提供应用程序的初始化和配置功能.
package app

import (
	contextPkg "context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/assetvault/pkg/api"
	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/convert"
	"github.com/yeisme/assetvault/pkg/internal/data"
	"github.com/yeisme/assetvault/pkg/internal/jobs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/pipeline"
	"github.com/yeisme/assetvault/pkg/internal/storage"
	"github.com/yeisme/assetvault/pkg/log"
	"github.com/yeisme/assetvault/pkg/metrics"
	"github.com/yeisme/assetvault/pkg/middleware"
	"github.com/yeisme/assetvault/pkg/scheduler"
	"github.com/yeisme/assetvault/pkg/tracing"
)

// App 组装配置、存储、转换流水线、导入注册表与 HTTP 引擎.
type App struct {
	Engine   *gin.Engine
	config   *configs.AppConfig
	manager  *storage.Manager
	pipeline *pipeline.Pipeline
	sched    *scheduler.Scheduler
}

// NewApp 初始化应用. 任何一步失败直接退出进程.
func NewApp(configPath string) *App {
	ctx := contextPkg.Background()
	engine := gin.New()

	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		fmt.Printf("Error initializing config: %v\n", err)
		os.Exit(1)
	}

	config := configs.GetConfig()

	// 初始化追踪
	if err := tracing.InitTracer(config.Tracing); err != nil {
		fmt.Printf("Error initializing tracing: %v\n", err)
		os.Exit(1)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}

	gdb := manager.GetDBClient().GetDB()
	if err := gdb.AutoMigrate(&model.Collection{}, &model.Item{}, &model.Job{}); err != nil {
		fmt.Printf("Error migrating schema: %v\n", err)
		os.Exit(1)
	}

	// 转换流水线：固定工作池 + 无界队列，启动时重扫 importing 条目
	converter := convert.NewCommandConverter(config.Pipeline)
	pipe := pipeline.New(gdb, manager.GetBlobStore(), converter, manager.GetMQClient(), config.Pipeline)

	if err := pipe.Start(ctx); err != nil {
		fmt.Printf("Error starting conversion pipeline: %v\n", err)
		os.Exit(1)
	}

	// 导入处理器注册表，覆盖全部资产种类
	blobs := manager.GetBlobStore()
	mq := manager.GetMQClient()
	registry := data.NewRegistry(
		data.NewImagesHandler(gdb, blobs, mq, pipe),
		data.NewGenericDataHandler(gdb, blobs, mq),
		data.NewPyramidHandler(gdb, blobs, mq),
		data.NewTensorflowModelHandler(gdb, blobs, mq),
	)

	// 每个种类都必须有处理器，缺失是配置错误，启动期直接失败
	for _, kind := range model.Kinds() {
		registry.MustHandler(kind)
	}

	sched, err := scheduler.NewScheduler()
	if err != nil {
		fmt.Printf("Error initializing scheduler: %v\n", err)
		os.Exit(1)
	}

	if err := jobs.RegisterCronJobs(sched, manager, pipe, config.Pipeline); err != nil {
		fmt.Printf("Error registering cron jobs: %v\n", err)
		os.Exit(1)
	}

	sched.Start()

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(config.Server),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.RateLimitMiddleware(config.RateLimit),
		middleware.AuthMiddleware(config.Auth),
		middleware.StorageMiddleware(manager),
		middleware.PipelineMiddleware(pipe),
		middleware.RegistryMiddleware(registry),
		middleware.SchedulerMiddleware(sched),
	)

	api.RegisterGroup(engine)

	if config.Metrics.Enabled {
		_ = metrics.StartMetricsServer(config.Metrics, engine)
	}

	return &App{
		Engine:   engine,
		config:   config,
		manager:  manager,
		pipeline: pipe,
		sched:    sched,
	}
}

// Run 启动 HTTP 服务并在收到 SIGINT/SIGTERM 时优雅停机：先停止接收
// 请求，再排空转换流水线，最后关闭调度器与存储连接.
func (a *App) Run() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	errCh := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Logger().Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := contextPkg.WithTimeout(contextPkg.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Logger().Error().Err(err).Msg("http server shutdown")
	}

	a.pipeline.Shutdown()

	if err := a.sched.Shutdown(); err != nil {
		log.Logger().Error().Err(err).Msg("scheduler shutdown")
	}

	a.manager.Close()

	if err := tracing.ShutdownTracer(shutdownCtx); err != nil {
		log.Logger().Error().Err(err).Msg("tracer shutdown")
	}

	return nil
}
