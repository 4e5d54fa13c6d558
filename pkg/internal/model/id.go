package model

import (
	crand "crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

// 全局单例的 ULID 熵源，使用单调递增策略，确保同一毫秒内生成的 ID 具有排序稳定性。
// ulid.Monotonic 非并发安全，流水线可能并发建条目，因此加锁。
var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(crand.Reader, 0)
)

// NewID 生成存储层的不透明记录 ID.
func NewID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), ulidEntropy).String()
}
