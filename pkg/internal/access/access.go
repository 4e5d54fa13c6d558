// Package access 实现按调用方身份收窄读取范围的访问过滤.
// 调用方被归类为 Anonymous / User(subject) / Admin，所有列表、搜索和
// get-by-id 操作都隐式附加同一谓词：
//   - Admin     → 全部记录
//   - User      → owner == subject OR publicly_shared
//   - Anonymous → publicly_shared
//
// 谓词以 gorm scope 的形式与其他查询条件 AND 组合，和存储层查询语言解耦.
package access

import (
	"context"

	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/internal/model"
)

// Principal 调用方身份. 零值即匿名.
type Principal struct {
	// Subject 认证身份字符串（邮箱），匿名为空
	Subject string
	// Admin 管理员，绕过所有权过滤
	Admin bool
}

// Anonymous 匿名身份.
func Anonymous() Principal { return Principal{} }

// User 普通认证用户.
func User(subject string) Principal { return Principal{Subject: subject} }

// Admin 管理员身份.
func Admin(subject string) Principal { return Principal{Subject: subject, Admin: true} }

// IsAnonymous 是否匿名.
func (p Principal) IsAnonymous() bool { return p.Subject == "" && !p.Admin }

// IsAdmin 是否管理员.
func (p Principal) IsAdmin() bool { return p.Admin }

// CanRead 单条记录的可见性判定，与 Scope 的谓词保持一致.
func (p Principal) CanRead(c *model.Collection) bool {
	if p.Admin || c.PubliclyShared {
		return true
	}

	return p.Subject != "" && p.Subject == c.Owner
}

// CanMutate 变更/删除所有权判定：管理员或记录 owner.
func (p Principal) CanMutate(owner string) bool {
	if p.Admin {
		return true
	}

	return p.Subject != "" && p.Subject == owner
}

// Scope 返回收窄读取范围的 gorm scope，可与任意附加查询条件组合.
func Scope(p Principal) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		switch {
		case p.Admin:
			return tx
		case p.Subject != "":
			return tx.Where("owner = ? OR publicly_shared = ?", p.Subject, true)
		default:
			return tx.Where("publicly_shared = ?", true)
		}
	}
}

type principalKey struct{}

// WithPrincipal 将调用方身份注入 context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext 从 context 取出调用方身份，缺省匿名.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}

	return Anonymous()
}
