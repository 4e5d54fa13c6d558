package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/yeisme/assetvault/pkg/cache"
	"github.com/yeisme/assetvault/pkg/internal/access"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/types"
)

// statsCacheTTL 统计结果缓存时长. 聚合计数器本身由流水线即时重算，
// 这里只是省掉列表页的重复扫表.
const statsCacheTTL = 30 * time.Second

// StatsService 全局资产统计，结果按调用方可见范围计算并在 KV 里短暂缓存.
type StatsService struct{ *AssetService }

// NewStatsService 构造统计服务.
func NewStatsService(c context.Context) *StatsService {
	return &StatsService{NewAssetService(c)}
}

// Summary 统计调用方可见范围内的集合与条目.
func (s *StatsService) Summary(ctx context.Context) (types.StatsSummary, error) {
	p := access.FromContext(ctx)

	if s.kvClient == nil {
		return s.computeSummary(ctx, p)
	}

	kvCache := cache.NewCache(s.kvClient.KVStore)

	return cache.GetOrSet(ctx, kvCache, statsCacheKey(p), func() (types.StatsSummary, error) {
		return s.computeSummary(ctx, p)
	}, statsCacheTTL)
}

func (s *StatsService) computeSummary(ctx context.Context, p access.Principal) (types.StatsSummary, error) {
	dbx := s.dbClient.GetDB().WithContext(ctx)

	type kindRow struct {
		Kind        string `gorm:"column:kind"`
		Collections int64  `gorm:"column:collections"`
		Items       int64  `gorm:"column:items"`
		TotalSize   int64  `gorm:"column:total_size"`
	}

	var rows []kindRow

	err := dbx.Model(&model.Collection{}).
		Scopes(access.Scope(p)).
		Select("kind, COUNT(*) AS collections, COALESCE(SUM(item_count),0) AS items, COALESCE(SUM(total_size),0) AS total_size").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return types.StatsSummary{}, err
	}

	summary := types.StatsSummary{Kinds: make([]types.StatsKindSummary, 0, len(rows))}

	for _, r := range rows {
		summary.Kinds = append(summary.Kinds, types.StatsKindSummary{
			Kind:        r.Kind,
			Collections: r.Collections,
			Items:       r.Items,
			TotalSize:   r.TotalSize,
		})
		summary.Collections += r.Collections
		summary.TotalSize += r.TotalSize
	}

	var totals struct {
		PublicShares   int64 `gorm:"column:public_shares"`
		ImportingItems int64 `gorm:"column:importing_items"`
		ErrorItems     int64 `gorm:"column:error_items"`
	}

	err = dbx.Model(&model.Collection{}).
		Scopes(access.Scope(p)).
		Select("COALESCE(SUM(CASE WHEN publicly_shared THEN 1 ELSE 0 END),0) AS public_shares, " +
			"COALESCE(SUM(importing_count),0) AS importing_items, " +
			"COALESCE(SUM(error_count),0) AS error_items").
		Scan(&totals).Error
	if err != nil {
		return types.StatsSummary{}, err
	}

	summary.PublicShares = totals.PublicShares
	summary.ImportingItems = totals.ImportingItems
	summary.ErrorItems = totals.ErrorItems

	return summary, nil
}

// statsCacheKey 按调用方身份分桶的缓存键，身份串不直接入键.
func statsCacheKey(p access.Principal) string {
	h := xxhash.Sum64String(fmt.Sprintf("%s|%t", p.Subject, p.Admin))

	return fmt.Sprintf("stats-summary-%x", h)
}
