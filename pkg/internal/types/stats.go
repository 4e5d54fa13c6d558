package types

// StatsKindSummary 单个资产种类的聚合统计.
type StatsKindSummary struct {
	Kind        string `json:"kind"`
	Collections int64  `json:"collections"`
	Items       int64  `json:"items"`
	TotalSize   int64  `json:"totalSize"`
}

// StatsSummary 全局资产统计，对调用方可见的记录范围内计算.
type StatsSummary struct {
	Kinds          []StatsKindSummary `json:"kinds"`
	Collections    int64              `json:"collections"`
	PublicShares   int64              `json:"publicShares"`
	ImportingItems int64              `json:"importingItems"`
	ErrorItems     int64              `json:"errorItems"`
	TotalSize      int64              `json:"totalSize"`
}
