// Package pipeline 实现图像条目的异步转换流水线. 固定大小的工作协程池
// 从无界队列取条目，逐个转换为平铺 OME-TIFF；成功与失败都把条目迁入终态
// 并重算父集合聚合计数. 条目级失败互相隔离，不会中断兄弟条目.
//
// 崩溃恢复：进程重启后 Resume 重扫所有 importing 状态的条目并重新入队，
// 这是唯一的重试机制——暂存输入还在的条目重新转换即幂等.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/convert"
	"github.com/yeisme/assetvault/pkg/internal/model"
	fsc "github.com/yeisme/assetvault/pkg/internal/storage/fs"
	mqc "github.com/yeisme/assetvault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/assetvault/pkg/log"
	"github.com/yeisme/assetvault/pkg/metrics"
	"github.com/yeisme/assetvault/pkg/queue"
)

// importErrorMessage 条目转换失败时落库的固定文案.
const importErrorMessage = "Can not extract image."

// Pipeline 转换流水线.
type Pipeline struct {
	db        *gorm.DB
	blobs     *fsc.Store
	converter convert.Converter
	mq        *mqc.Client
	breaker   *gobreaker.CircuitBreaker
	cfg       configs.PipelineConfig

	mu       sync.Mutex
	cond     *sync.Cond
	backlog  []string            // 待处理条目 ID，FIFO
	inflight map[string]struct{} // 已入队或处理中的条目 ID
	closed   bool

	wg sync.WaitGroup
}

// New 构造流水线. mq 可以为 nil（事件未启用）.
func New(db *gorm.DB, blobs *fsc.Store, converter convert.Converter, mq *mqc.Client, cfg configs.PipelineConfig) *Pipeline {
	p := &Pipeline{
		db:        db,
		blobs:     blobs,
		converter: converter,
		mq:        mq,
		cfg:       cfg,
		inflight:  make(map[string]struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	if cfg.Breaker.Enabled {
		p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "image-converter",
			MaxRequests: cfg.Breaker.MaxRequestsInHalf,
			Interval:    time.Duration(cfg.Breaker.IntervalSeconds) * time.Second,
			Timeout:     time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				rate := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= cfg.Breaker.MinRequests && rate >= cfg.Breaker.FailureRate
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				nlog.Logger().Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("converter breaker state changed")
			},
		})
	}

	return p
}

// Start 启动工作协程池并执行崩溃恢复重扫.
func (p *Pipeline) Start(ctx context.Context) error {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)

		go p.worker(ctx)
	}

	nlog.Logger().Info().Int("workers", p.cfg.Concurrency).Msg("conversion pipeline started")

	return p.Resume(ctx)
}

// Resume 重扫所有 importing 状态的条目并重新入队. 幂等，可由定时任务
// 周期性调用补扫：在途条目由 Enqueue 去重，不会派发给第二个 worker.
func (p *Pipeline) Resume(ctx context.Context) error {
	var ids []string

	err := p.db.WithContext(ctx).Model(&model.Item{}).
		Where("importing = ?", true).
		Order("created_at").
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}

	if len(ids) > 0 {
		nlog.Logger().Info().Int("items", len(ids)).Msg("resuming interrupted conversions")
		p.Enqueue(ids...)
	}

	return nil
}

// Enqueue 把条目 ID 加入转换队列. 队列无界，生产者从不阻塞. 已在队列或
// 处理中的条目被跳过，重扫因此不会把同一条目派发给第二个 worker.
func (p *Pipeline) Enqueue(itemIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	for _, id := range itemIDs {
		if _, busy := p.inflight[id]; busy {
			continue
		}

		p.inflight[id] = struct{}{}
		p.backlog = append(p.backlog, id)
	}

	metrics.ConversionQueueDepth.Set(float64(len(p.backlog)))

	p.cond.Broadcast()
}

// release 条目处理结束后移出在途集合，之后的重扫才可以再次入队.
func (p *Pipeline) release(itemID string) {
	p.mu.Lock()
	delete(p.inflight, itemID)
	p.mu.Unlock()
}

// Shutdown 停止接收新条目并等待在途转换完成，超过配置的停机窗口则放弃
// 等待（剩余条目由下次启动的 Resume 接管）.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		nlog.Logger().Info().Msg("conversion pipeline drained")
	case <-time.After(p.cfg.GetShutdownTimeout()):
		nlog.Logger().Warn().Msg("conversion pipeline shutdown timed out, remaining items deferred to next restart")
	}
}

// next 取下一个条目 ID，队列关闭且为空时返回 false.
func (p *Pipeline) next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.backlog) == 0 && !p.closed {
		p.cond.Wait()
	}

	if len(p.backlog) == 0 {
		return "", false
	}

	id := p.backlog[0]
	p.backlog = p.backlog[1:]
	metrics.ConversionQueueDepth.Set(float64(len(p.backlog)))

	return id, true
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		id, ok := p.next()
		if !ok {
			return
		}

		p.processByID(ctx, id)
		p.release(id)
	}
}

// processByID 按当前库内状态处理条目. 已到终态的条目直接跳过，
// 这保证重扫与手工补扫入队的幂等性.
func (p *Pipeline) processByID(ctx context.Context, itemID string) {
	var item model.Item

	err := p.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}

	if err != nil {
		nlog.Logger().Error().Err(err).Str("item", itemID).Msg("load item for conversion")
		return
	}

	if !item.Importing {
		return
	}

	p.process(ctx, &item)
}

// process 执行单个条目的转换并迁移到终态.
func (p *Pipeline) process(ctx context.Context, item *model.Item) {
	logger := nlog.Logger().With().
		Str("item", item.ID).
		Str("collection", item.CollectionID).
		Str("file", item.FileName).
		Logger()

	logger.Info().Msg("starting extracting image")

	start := time.Now()
	outputName := convert.OutputFileName(item.FileName)

	claimed, err := p.extract(ctx, item, outputName)
	if err != nil {
		logger.Warn().Err(err).Msg("error extracting image")
		metrics.ConversionCounter.WithLabelValues("failed").Inc()

		p.markFailed(ctx, item)

		return
	}

	if !claimed {
		logger.Info().Msg("item reached terminal state elsewhere, result discarded")
		return
	}

	metrics.ConversionCounter.WithLabelValues("converted").Inc()
	metrics.ConversionDuration.Observe(time.Since(start).Seconds())

	p.publishConverted(item)

	logger.Info().Str("output", outputName).Msg("done extracting image")
}

// publishConverted 发布转换成功事件，MQ 未启用或主题开关关闭时为空操作.
func (p *Pipeline) publishConverted(item *model.Item) {
	if p.mq == nil || !configs.GetConfig().Events.Item.Converted {
		return
	}

	err := queue.PublishItemConverted(p.mq.Publisher(), queue.ItemConvertedPayload{
		ItemID:       item.ID,
		CollectionID: item.CollectionID,
		FileName:     item.FileName,
		FileSize:     item.FileSize,
	}, queue.WithProducer("assetvault"))
	if err != nil {
		nlog.Logger().Warn().Err(err).Str("item", item.ID).Msg("publish item converted event")
	}
}

// extract 转换 + 清理暂存输入 + 落库成功状态. 任何一步失败都整体按
// 失败处理，由调用方写入错误文案. 终态写是 importing = true 条件更新：
// 条目已被别处迁入终态时不覆盖，返回 claimed = false.
func (p *Pipeline) extract(ctx context.Context, item *model.Item, outputName string) (bool, error) {
	inputPath := filepath.Join(
		p.blobs.TempCollectionDir(model.KindImagesCollection, item.CollectionID),
		item.OriginalFileName,
	)

	outputDir := p.blobs.ImagesDir(item.CollectionID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return false, err
	}

	outputPath := filepath.Join(outputDir, outputName)

	if err := p.convert(ctx, inputPath, outputPath); err != nil {
		return false, err
	}

	if err := os.Remove(inputPath); err != nil {
		return false, err
	}

	size, err := p.blobs.FileSize(outputPath)
	if err != nil {
		return false, err
	}

	item.FileName = outputName
	item.FileSize = size
	item.Importing = false

	claimed := false

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Item{}).
			Where("id = ? AND importing = ?", item.ID, true).
			Updates(map[string]any{
				"file_name": outputName,
				"file_size": size,
				"importing": false,
			})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return nil
		}

		claimed = true

		return RecomputeAggregates(tx, item.CollectionID)
	})

	return claimed, err
}

// convert 调用转换器，启用熔断时经过 breaker.
func (p *Pipeline) convert(ctx context.Context, inputPath, outputPath string) error {
	if p.breaker == nil {
		return p.converter.Convert(ctx, inputPath, outputPath)
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.converter.Convert(ctx, inputPath, outputPath)
	})

	return err
}

// markFailed 写入固定错误文案并迁入终态. 同样是 importing = true 条件
// 更新，已终态的条目不被回写. 落库失败只能记日志，条目会留在 importing
// 状态等下次重扫.
func (p *Pipeline) markFailed(ctx context.Context, item *model.Item) {
	item.Importing = false
	item.ImportError = importErrorMessage

	claimed := false

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Item{}).
			Where("id = ? AND importing = ?", item.ID, true).
			Updates(map[string]any{
				"importing":    false,
				"import_error": importErrorMessage,
			})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return nil
		}

		claimed = true

		return RecomputeAggregates(tx, item.CollectionID)
	})
	if err != nil {
		nlog.Logger().Error().Err(err).Str("item", item.ID).Msg("persist conversion failure")
		return
	}

	if claimed {
		p.publishFailed(item)
	}
}

// publishFailed 发布转换失败事件，MQ 未启用或主题开关关闭时为空操作.
func (p *Pipeline) publishFailed(item *model.Item) {
	if p.mq == nil || !configs.GetConfig().Events.Item.ConvertFailed {
		return
	}

	err := queue.PublishItemConvertFailed(p.mq.Publisher(), queue.ItemConvertFailedPayload{
		ItemID:       item.ID,
		CollectionID: item.CollectionID,
		FileName:     item.FileName,
		Error:        item.ImportError,
	}, queue.WithProducer("assetvault"))
	if err != nil {
		nlog.Logger().Warn().Err(err).Str("item", item.ID).Msg("publish convert failed event")
	}
}
