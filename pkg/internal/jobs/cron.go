// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yeisme/assetvault/pkg/configs"
	ctxPkg "github.com/yeisme/assetvault/pkg/context"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/pipeline"
	"github.com/yeisme/assetvault/pkg/internal/storage"
	"github.com/yeisme/assetvault/pkg/log"
	"github.com/yeisme/assetvault/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - 周期性补扫 importing 状态的条目并重新排队转换
//   - 每天清理没有对应记录的孤儿暂存目录
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager, p *pipeline.Pipeline, cfg configs.PipelineConfig) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	// 将 storage manager 注入到 context，便于任务实现使用
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)

	_ = sched.AddCron(JobPipelineRescan, cfg.RescanCron, func(ctx context.Context) {
		runPipelineRescan(ctx, p)
	}, baseCtx)

	_ = sched.AddCron(JobStagingSweep, cfg.StagingSweepCron, func(ctx context.Context) {
		runStagingSweep(ctx, mgr, time.Duration(cfg.StagingMaxAge)*time.Hour)
	}, baseCtx)

	return nil
}

// runPipelineRescan 重新扫描 importing 状态的条目. 这是失败重试的唯一
// 入口：崩溃或停机遗留的条目靠它回到队列.
func runPipelineRescan(ctx context.Context, p *pipeline.Pipeline) {
	l := log.Logger().With().Str("job", JobPipelineRescan).Logger()

	if p == nil {
		l.Error().Msg("pipeline not initialized")
		return
	}

	if err := p.Resume(ctx); err != nil {
		l.Error().Err(err).Msg("rescan failed")
	}
}

// runStagingSweep 清理超龄且没有对应集合或作业记录的暂存目录.
func runStagingSweep(ctx context.Context, mgr *storage.Manager, maxAge time.Duration) {
	l := log.Logger().With().Str("job", JobStagingSweep).Logger()

	blobs := mgr.GetBlobStore()
	if blobs == nil {
		l.Error().Msg("blob store not initialized")
		return
	}

	entries, err := blobs.ListStagingEntries()
	if err != nil {
		l.Error().Err(err).Msg("list staging entries failed")
		return
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, e := range entries {
		if e.ModTime.After(cutoff) {
			continue
		}

		live, err := recordExists(ctx, mgr, e.ID)
		if err != nil {
			l.Error().Err(err).Str("id", e.ID).Msg("record lookup failed")
			continue
		}

		if live {
			continue
		}

		if err := os.RemoveAll(e.Path); err != nil {
			l.Warn().Err(err).Str("dir", e.Path).Msg("was not able to delete staging dir")
			continue
		}

		removed++
	}

	if removed > 0 {
		l.Info().Int("removed", removed).Msg("swept orphan staging dirs")
	}
}

// recordExists 判断暂存目录 ID 是否仍对应一条集合或作业记录.
func recordExists(ctx context.Context, mgr *storage.Manager, id string) (bool, error) {
	dbx := mgr.GetDBClient().GetDB().WithContext(ctx)

	var n int64
	if err := dbx.Model(&model.Collection{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}

	if n > 0 {
		return true, nil
	}

	if err := dbx.Model(&model.Job{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}

	return n > 0, nil
}
