package guard_test

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/assetvault/pkg/internal/access"
	"github.com/yeisme/assetvault/pkg/internal/errs"
	"github.com/yeisme/assetvault/pkg/internal/guard"
	"github.com/yeisme/assetvault/pkg/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(&model.Collection{}, &model.Item{}, &model.Job{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

func mustCreate(t *testing.T, db *gorm.DB, c *model.Collection, p access.Principal) *model.Collection {
	t.Helper()

	if err := guard.BeforeCreate(db, c, p); err != nil {
		t.Fatalf("before create: %v", err)
	}

	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	return c
}

func TestBeforeCreateRejectsAnonymous(t *testing.T) {
	db := openTestDB(t)
	c := model.NewCollection(model.KindImagesCollection, "cells")

	err := guard.BeforeCreate(db, c, access.Anonymous())

	var forbidden *errs.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestBeforeCreateAssignsOwnerAndDate(t *testing.T) {
	db := openTestDB(t)
	c := model.NewCollection(model.KindImagesCollection, "cells")
	c.Owner = "mallory" // 调用方传入的值必须被覆盖

	if err := guard.BeforeCreate(db, c, access.User("alice")); err != nil {
		t.Fatalf("before create: %v", err)
	}

	if c.Owner != "alice" {
		t.Fatalf("owner = %q, want alice", c.Owner)
	}

	if c.CreationDate.IsZero() {
		t.Fatal("creation date not assigned")
	}
}

func TestBeforeCreateRejectsDuplicateName(t *testing.T) {
	db := openTestDB(t)
	alice := access.User("alice")
	mustCreate(t, db, model.NewCollection(model.KindImagesCollection, "cells"), alice)

	err := guard.BeforeCreate(db, model.NewCollection(model.KindImagesCollection, "cells"), alice)

	var conflict *errs.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestBeforeCreateAllowsSameNameAcrossKinds(t *testing.T) {
	db := openTestDB(t)
	alice := access.User("alice")
	mustCreate(t, db, model.NewCollection(model.KindImagesCollection, "cells"), alice)

	if err := guard.BeforeCreate(db, model.NewCollection(model.KindGenericData, "cells"), alice); err != nil {
		t.Fatalf("same name on another kind should be allowed: %v", err)
	}
}

func TestBeforeSaveLifecycleTrajectory(t *testing.T) {
	db := openTestDB(t)
	alice := access.User("alice")
	c := mustCreate(t, db, model.NewCollection(model.KindImagesCollection, "cells"), alice)

	// 未锁定不能公开
	updated := *c
	updated.PubliclyShared = true

	err := guard.BeforeSave(db, &updated, alice)

	var client *errs.ClientError
	if !errors.As(err, &client) {
		t.Fatalf("expected ClientError for unlocked→public, got %v", err)
	}

	// 先锁定
	updated = *c
	updated.Locked = true

	if err := guard.BeforeSave(db, &updated, alice); err != nil {
		t.Fatalf("lock should be accepted: %v", err)
	}

	if err := db.Save(&updated).Error; err != nil {
		t.Fatalf("save: %v", err)
	}

	// 锁定后可以公开
	shared := updated
	shared.PubliclyShared = true

	if err := guard.BeforeSave(db, &shared, alice); err != nil {
		t.Fatalf("locked→public should be accepted: %v", err)
	}

	if err := db.Save(&shared).Error; err != nil {
		t.Fatalf("save: %v", err)
	}

	// 解锁被拒绝
	unlocked := shared
	unlocked.Locked = false
	unlocked.PubliclyShared = true

	if err := guard.BeforeSave(db, &unlocked, alice); !errors.As(err, &client) {
		t.Fatalf("expected ClientError for unlock, got %v", err)
	}

	// 公开回退被拒绝
	private := shared
	private.PubliclyShared = false

	if err := guard.BeforeSave(db, &private, alice); !errors.As(err, &client) {
		t.Fatalf("expected ClientError for public→private, got %v", err)
	}
}

func TestBeforeSaveImmutableFields(t *testing.T) {
	db := openTestDB(t)
	alice := access.User("alice")
	c := mustCreate(t, db, model.NewCollection(model.KindGenericData, "results"), alice)

	cases := []struct {
		name   string
		mutate func(*model.Collection)
	}{
		{"owner", func(u *model.Collection) { u.Owner = "bob" }},
		{"creation date", func(u *model.Collection) { u.CreationDate = u.CreationDate.AddDate(0, 0, 1) }},
		{"source job", func(u *model.Collection) { u.SourceJob = "01JOBJOBJOBJOBJOBJOBJOBJOB" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			updated := *c
			tc.mutate(&updated)

			err := guard.BeforeSave(db, &updated, alice)

			var client *errs.ClientError
			if !errors.As(err, &client) {
				t.Fatalf("expected ClientError, got %v", err)
			}
		})
	}
}

func TestBeforeSaveOwnership(t *testing.T) {
	db := openTestDB(t)
	c := mustCreate(t, db, model.NewCollection(model.KindGenericData, "results"), access.User("alice"))

	updated := *c
	updated.Name = "renamed"

	var forbidden *errs.ForbiddenError
	if err := guard.BeforeSave(db, &updated, access.User("bob")); !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for non-owner, got %v", err)
	}

	// 管理员可以代为变更
	if err := guard.BeforeSave(db, &updated, access.Admin("root")); err != nil {
		t.Fatalf("admin should be allowed: %v", err)
	}
}

func TestBeforeSaveMissingRecord(t *testing.T) {
	db := openTestDB(t)
	ghost := model.NewCollection(model.KindPyramid, "ghost")

	var notFound *errs.NotFoundError
	if err := guard.BeforeSave(db, ghost, access.User("alice")); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestBeforeSaveLockRequiresQuiescence(t *testing.T) {
	db := openTestDB(t)
	alice := access.User("alice")
	c := mustCreate(t, db, model.NewCollection(model.KindImagesCollection, "cells"), alice)

	pending := model.NewPendingItem(c.ID, "a.tif")
	if err := db.Create(pending).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	updated := *c
	updated.Locked = true

	var client *errs.ClientError
	if err := guard.BeforeSave(db, &updated, alice); !errors.As(err, &client) {
		t.Fatalf("expected ClientError while importing, got %v", err)
	}

	// 条目失败后依然不能锁定
	pending.Importing = false
	pending.ImportError = "Can not extract image."
	if err := db.Save(pending).Error; err != nil {
		t.Fatalf("save item: %v", err)
	}

	if err := guard.BeforeSave(db, &updated, alice); !errors.As(err, &client) {
		t.Fatalf("expected ClientError with import errors, got %v", err)
	}
}

func TestBeforeDeleteRefusals(t *testing.T) {
	db := openTestDB(t)
	alice := access.User("alice")

	t.Run("locked", func(t *testing.T) {
		c := mustCreate(t, db, model.NewCollection(model.KindGenericData, "locked-data"), alice)
		c.Locked = true
		if err := db.Save(c).Error; err != nil {
			t.Fatalf("save: %v", err)
		}

		var client *errs.ClientError
		if err := guard.BeforeDelete(db, c, alice); !errors.As(err, &client) {
			t.Fatalf("expected ClientError, got %v", err)
		}
	})

	t.Run("importing item", func(t *testing.T) {
		c := mustCreate(t, db, model.NewCollection(model.KindImagesCollection, "busy"), alice)
		if err := db.Create(model.NewPendingItem(c.ID, "a.tif")).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}

		var client *errs.ClientError
		if err := guard.BeforeDelete(db, c, alice); !errors.As(err, &client) {
			t.Fatalf("expected ClientError, got %v", err)
		}
	})

	t.Run("non owner", func(t *testing.T) {
		c := mustCreate(t, db, model.NewCollection(model.KindGenericData, "private"), alice)

		var forbidden *errs.ForbiddenError
		if err := guard.BeforeDelete(db, c, access.User("bob")); !errors.As(err, &forbidden) {
			t.Fatalf("expected ForbiddenError, got %v", err)
		}
	})

	t.Run("deletable", func(t *testing.T) {
		c := mustCreate(t, db, model.NewCollection(model.KindGenericData, "clean"), alice)
		if err := guard.BeforeDelete(db, c, alice); err != nil {
			t.Fatalf("expected deletable, got %v", err)
		}
	})
}

func TestAfterDeleteCascadesItems(t *testing.T) {
	db := openTestDB(t)
	alice := access.User("alice")
	c := mustCreate(t, db, model.NewCollection(model.KindImagesCollection, "done"), alice)

	for _, name := range []string{"a.ome.tif", "b.ome.tif"} {
		if err := db.Create(model.NewImportedItem(c.ID, name, 10)).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}
	}

	if err := db.Delete(c).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := guard.AfterDelete(db, nil, c); err != nil {
		t.Fatalf("after delete: %v", err)
	}

	var count int64
	if err := db.Model(&model.Item{}).Where("collection_id = ?", c.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}

	if count != 0 {
		t.Fatalf("items not cascaded, %d left", count)
	}
}
