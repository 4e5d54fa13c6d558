package pipeline

import "gorm.io/gorm"

// RecomputeAggregates 以库内当前条目状态重算集合的聚合计数器.
// 单条 UPDATE + 子查询，读与写发生在同一语句里，并发完成的工作协程
// 不会基于过期内存副本互相覆盖.
func RecomputeAggregates(tx *gorm.DB, collectionID string) error {
	const stmt = `
UPDATE collections SET
	item_count      = (SELECT COUNT(*)                  FROM items WHERE collection_id = @id),
	importing_count = (SELECT COUNT(*)                  FROM items WHERE collection_id = @id AND importing = @yes),
	error_count     = (SELECT COUNT(*)                  FROM items WHERE collection_id = @id AND import_error <> ''),
	total_size      = (SELECT COALESCE(SUM(file_size),0) FROM items WHERE collection_id = @id)
WHERE id = @id`

	return tx.Exec(stmt,
		map[string]any{"id": collectionID, "yes": true},
	).Error
}
