package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 基于业务封装 events --------------------------

// PublishCollectionCreated 发布 av.collection.created 事件.
// 在集合记录提交成功后调用，通知下游新资产可见.
func PublishCollectionCreated(pub message.Publisher, payload CollectionCreatedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicCollectionCreated, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicCollectionCreated, msg)
}

// PublishCollectionLocked 发布 av.collection.locked 事件.
func PublishCollectionLocked(pub message.Publisher, payload CollectionLockedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicCollectionLocked, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicCollectionLocked, msg)
}

// PublishCollectionShared 发布 av.collection.shared 事件.
func PublishCollectionShared(pub message.Publisher, payload CollectionSharedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicCollectionShared, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicCollectionShared, msg)
}

// PublishCollectionDeleted 发布 av.collection.deleted 事件.
func PublishCollectionDeleted(pub message.Publisher, payload CollectionDeletedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicCollectionDeleted, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicCollectionDeleted, msg)
}

// PublishItemConverted 发布 av.item.converted 事件.
func PublishItemConverted(pub message.Publisher, payload ItemConvertedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicItemConverted, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicItemConverted, msg)
}

// PublishItemConvertFailed 发布 av.item.convert.failed 事件.
func PublishItemConvertFailed(pub message.Publisher, payload ItemConvertFailedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicItemConvertFailed, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicItemConvertFailed, msg)
}

// PublishJobOutputBound 发布 av.job.output.bound 事件.
func PublishJobOutputBound(pub message.Publisher, payload JobOutputBoundPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicJobOutputBound, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicJobOutputBound, msg)
}

// ParseItemConverted 将 Watermill 消息解析为强类型 Envelope（ItemConvertedPayload）.
func ParseItemConverted(msg *message.Message) (Message[ItemConvertedPayload], error) {
	return ParseWatermillMessage[ItemConvertedPayload](msg)
}

// ParseItemConvertFailed 将 Watermill 消息解析为强类型 Envelope（ItemConvertFailedPayload）.
func ParseItemConvertFailed(msg *message.Message) (Message[ItemConvertFailedPayload], error) {
	return ParseWatermillMessage[ItemConvertFailedPayload](msg)
}
