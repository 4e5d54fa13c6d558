// Package guard 在每次资产记录变更的事务内强制执行生命周期不变量.
// 三个门由服务层在同一 gorm 事务中同步调用，门失败即整体回滚：
//   - BeforeCreate: 认证 + 名称唯一 + 填充 owner / creationDate
//   - BeforeSave:   所有权 + 逐项校验状态机不变量
//   - BeforeDelete: 所有权 + 删除前置条件（未锁定、无导入中、无导入错误）
//
// AfterDelete 在记录删除后做尽力而为的级联清理.
package guard

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/internal/access"
	"github.com/yeisme/assetvault/pkg/internal/errs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage/fs"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// BeforeCreate 创建门. 要求已认证调用方；owner 与 creationDate 由这里统一
// 填充，忽略调用方传入的值.
func BeforeCreate(tx *gorm.DB, c *model.Collection, p access.Principal) error {
	if p.IsAnonymous() {
		return errs.Forbiddenf("authentication required")
	}

	if err := assertNameUnique(tx, c.Kind, c.Name, ""); err != nil {
		return err
	}

	c.Owner = p.Subject
	c.CreationDate = time.Now()

	return nil
}

// BeforeSave 更新门. 以数据库中的当前状态为基准逐项校验 updated 的差异，
// 任何一项违反即拒绝并指明被违反的不变量.
func BeforeSave(tx *gorm.DB, updated *model.Collection, p access.Principal) error {
	old, err := loadCurrent(tx, updated.Kind, updated.ID)
	if err != nil {
		return err
	}

	if !p.CanMutate(old.Owner) {
		return errs.Forbiddenf("only the owner or an admin can modify this collection")
	}

	// 公开集合不能回退为私有
	if old.PubliclyShared && !updated.PubliclyShared {
		return errs.Clientf("Can not set a public collection to private.")
	}

	// 未锁定的集合不能公开
	if !old.PubliclyShared && updated.PubliclyShared && !old.Locked {
		return errs.Clientf("Can not set an unlocked collection to public, please lock collection first.")
	}

	if updated.Owner != old.Owner {
		return errs.Clientf("Can not change owner.")
	}

	if !updated.CreationDate.Equal(old.CreationDate) {
		return errs.Clientf("Can not change creation date.")
	}

	if updated.SourceJob != old.SourceJob {
		return errs.Clientf("Can not change source job.")
	}

	if updated.Name != old.Name {
		if err := assertNameUnique(tx, updated.Kind, updated.Name, updated.ID); err != nil {
			return err
		}
	}

	if updated.Locked != old.Locked {
		if !updated.Locked {
			return errs.Clientf("Can not unlock collection.")
		}

		// 加锁前集合必须静止：无导入中条目、无导入错误
		if err := assertNotImporting(tx, old.ID); err != nil {
			return err
		}

		if err := assertNoImportError(tx, old.ID); err != nil {
			return err
		}
	}

	return nil
}

// BeforeDelete 删除门. 锁定的集合、仍在导入或带导入错误的集合拒绝删除.
func BeforeDelete(tx *gorm.DB, c *model.Collection, p access.Principal) error {
	old, err := loadCurrent(tx, c.Kind, c.ID)
	if err != nil {
		return err
	}

	if !p.CanMutate(old.Owner) {
		return errs.Forbiddenf("only the owner or an admin can delete this collection")
	}

	if old.Locked {
		return errs.Clientf("Can not delete a locked collection.")
	}

	if err := assertNotImporting(tx, old.ID); err != nil {
		return err
	}

	return assertNoImportError(tx, old.ID)
}

// AfterDelete 级联删除子条目记录，再尽力清理 blob 目录.
// 条目删除在事务内；blob 清理失败只记日志，记录此时已经不在了.
func AfterDelete(tx *gorm.DB, blobs *fs.Store, c *model.Collection) error {
	if err := tx.Where("collection_id = ?", c.ID).Delete(&model.Item{}).Error; err != nil {
		return err
	}

	if blobs != nil {
		blobs.RemoveCollection(c.Kind, c.ID)
	}

	nlog.Logger().Info().
		Str("collection", c.ID).
		Str("kind", string(c.Kind)).
		Msg("collection deleted")

	return nil
}

// loadCurrent 读取数据库中的当前记录，不经过访问过滤.
func loadCurrent(tx *gorm.DB, kind model.Kind, id string) (*model.Collection, error) {
	var c model.Collection

	err := tx.Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound(string(kind), id)
	}

	if err != nil {
		return nil, err
	}

	return &c, nil
}

// assertNameUnique 同种类下名称唯一，excludeID 排除自身（改名场景）.
func assertNameUnique(tx *gorm.DB, kind model.Kind, name, excludeID string) error {
	q := tx.Model(&model.Collection{}).Where("kind = ? AND name = ?", kind, name)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return errs.Conflictf("a %s named %q already exists", kind, name)
	}

	return nil
}

func assertNotImporting(tx *gorm.DB, collectionID string) error {
	var count int64

	err := tx.Model(&model.Item{}).
		Where("collection_id = ? AND importing = ?", collectionID, true).
		Count(&count).Error
	if err != nil {
		return err
	}

	if count > 0 {
		return errs.Clientf("Collection is still importing.")
	}

	return nil
}

func assertNoImportError(tx *gorm.DB, collectionID string) error {
	var count int64

	err := tx.Model(&model.Item{}).
		Where("collection_id = ? AND import_error <> ''", collectionID).
		Count(&count).Error
	if err != nil {
		return err
	}

	if count > 0 {
		return errs.Clientf("Collection has import errors.")
	}

	return nil
}
