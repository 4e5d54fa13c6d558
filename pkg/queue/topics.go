// Package queue 定义消息主题常量与负载结构，供发布/订阅使用.
package queue

// 主题命名规范：av.<域>.<动作>[.<状态>]，尽量稳定且向后兼容.
// 域：collection(资产集合)、item(集合内条目)、job(作业导入)
// 动作/状态：created/imported/locked/shared/deleted、converted/convert.failed、output.bound

const (
	// 资产集合生命周期.
	TopicCollectionCreated = "av.collection.created" // 集合记录创建（上传或作业导入）
	TopicCollectionLocked  = "av.collection.locked"  // 集合被锁定，内容冻结
	TopicCollectionShared  = "av.collection.shared"  // 集合转为公开共享
	TopicCollectionDeleted = "av.collection.deleted" // 集合及其条目被删除

	// 条目转换流水线.
	TopicItemConverted     = "av.item.converted"      // 条目转换成功，进入终态
	TopicItemConvertFailed = "av.item.convert.failed" // 条目转换失败，错误已落库

	// 作业导入.
	TopicJobOutputBound = "av.job.output.bound" // 作业输出槽绑定到新资产
)

// 主题分组，用于批量订阅或权限控制.
var (
	// 集合生命周期相关主题集合.
	CollectionTopics = []string{
		TopicCollectionCreated, TopicCollectionLocked,
		TopicCollectionShared, TopicCollectionDeleted,
	}

	// 条目转换相关主题集合.
	ItemTopics = []string{
		TopicItemConverted, TopicItemConvertFailed,
	}
)
