package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分主题）。
type EventsConfig struct {
	Enabled    bool                   `mapstructure:"enabled"` // 总开关
	Collection CollectionEventsConfig `mapstructure:"collection"`
	Item       ItemEventsConfig       `mapstructure:"item"`
}

// CollectionEventsConfig 针对资产集合生命周期的事件开关。
type CollectionEventsConfig struct {
	Created  bool `mapstructure:"created"`
	Imported bool `mapstructure:"imported"`
	Locked   bool `mapstructure:"locked"`
	Shared   bool `mapstructure:"shared"`
	Deleted  bool `mapstructure:"deleted"`
}

// ItemEventsConfig 针对条目转换的事件开关。
type ItemEventsConfig struct {
	Converted     bool `mapstructure:"converted"`
	ConvertFailed bool `mapstructure:"convert_failed"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 总开关：默认启用事件系统
	v.SetDefault("events.enabled", true)

	// 集合生命周期事件：默认开启最小必要集
	v.SetDefault("events.collection.created", true)
	v.SetDefault("events.collection.imported", true)
	v.SetDefault("events.collection.deleted", true)

	// 锁定/公开属于低频操作，默认关闭
	v.SetDefault("events.collection.locked", false)
	v.SetDefault("events.collection.shared", false)

	// 条目转换事件：失败必须可见，成功默认也开启便于下游索引
	v.SetDefault("events.item.converted", true)
	v.SetDefault("events.item.convert_failed", true)
}
