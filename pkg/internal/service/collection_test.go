package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/assetvault/pkg/configs"
	ctxPkg "github.com/yeisme/assetvault/pkg/context"
	"github.com/yeisme/assetvault/pkg/internal/access"
	"github.com/yeisme/assetvault/pkg/internal/errs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/service"
	"github.com/yeisme/assetvault/pkg/internal/storage"
	"github.com/yeisme/assetvault/pkg/internal/storage/db"
	fsc "github.com/yeisme/assetvault/pkg/internal/storage/fs"
	"github.com/yeisme/assetvault/pkg/internal/types"
)

// newTestService 经 context 注入组装服务，和请求链路同一条装配路径.
func newTestService(t *testing.T) (*service.CollectionService, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := gdb.AutoMigrate(&model.Collection{}, &model.Item{}, &model.Job{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	blobs, err := fsc.New(configs.StorageConfig{
		Root:                 t.TempDir(),
		ContainerInputsMount: "/data/inputs",
	})
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	mgr := &storage.Manager{DB: &db.Client{DB: gdb}, FS: blobs}
	svc := service.NewCollectionService(ctxPkg.WithStorageManager(context.Background(), mgr))

	return svc, gdb
}

func asUser(subject string) context.Context {
	return access.WithPrincipal(context.Background(), access.User(subject))
}

func ptr[T any](v T) *T { return &v }

func TestLifecycleTrajectory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := asUser("alice")

	c, err := svc.Create(ctx, types.CreateCollectionRequest{Kind: "images-collection", Name: "cells"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if c.Owner != "alice" || c.Locked || c.PubliclyShared {
		t.Fatalf("unexpected initial state: %+v", c)
	}

	// 未锁定直接公开 → 拒绝
	var client *errs.ClientError
	if _, err := svc.Update(ctx, c.ID, types.UpdateCollectionRequest{PubliclyShared: ptr(true)}); !errors.As(err, &client) {
		t.Fatalf("expected ClientError for unlocked→public, got %v", err)
	}

	// 锁定 → 接受
	if _, err := svc.Update(ctx, c.ID, types.UpdateCollectionRequest{Locked: ptr(true)}); err != nil {
		t.Fatalf("lock: %v", err)
	}

	// 公开 → 接受
	if _, err := svc.Update(ctx, c.ID, types.UpdateCollectionRequest{PubliclyShared: ptr(true)}); err != nil {
		t.Fatalf("share: %v", err)
	}

	// 解锁 → 拒绝
	if _, err := svc.Update(ctx, c.ID, types.UpdateCollectionRequest{Locked: ptr(false)}); !errors.As(err, &client) {
		t.Fatalf("expected ClientError for unlock, got %v", err)
	}

	// 公开回退 → 拒绝
	if _, err := svc.Update(ctx, c.ID, types.UpdateCollectionRequest{PubliclyShared: ptr(false)}); !errors.As(err, &client) {
		t.Fatalf("expected ClientError for public→private, got %v", err)
	}

	// 终态校验
	got, err := svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if !got.Locked || !got.PubliclyShared {
		t.Fatalf("terminal state lost: %+v", got)
	}
}

func TestGetAccessSemantics(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Create(asUser("alice"), types.CreateCollectionRequest{Kind: "generic-data", Name: "private"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// owner 可见
	if _, err := svc.Get(asUser("alice"), c.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}

	// 其他用户：存在但不可见 → Forbidden 而不是 NotFound
	var forbidden *errs.ForbiddenError
	if _, err := svc.Get(asUser("bob"), c.ID); !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}

	// 匿名同样 Forbidden
	if _, err := svc.Get(context.Background(), c.ID); !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for anonymous, got %v", err)
	}

	// 管理员可见
	adminCtx := access.WithPrincipal(context.Background(), access.Admin("root"))
	if _, err := svc.Get(adminCtx, c.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}

	// 不存在的 ID → NotFound
	var notFound *errs.NotFoundError
	if _, err := svc.Get(asUser("alice"), "01HXNOPENOPENOPENOPENOPENO"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestListScoping(t *testing.T) {
	svc, _ := newTestService(t)
	alice := asUser("alice")

	if _, err := svc.Create(alice, types.CreateCollectionRequest{Kind: "generic-data", Name: "alice-private"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	shared, err := svc.Create(alice, types.CreateCollectionRequest{Kind: "generic-data", Name: "alice-shared"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Update(alice, shared.ID, types.UpdateCollectionRequest{Locked: ptr(true)}); err != nil {
		t.Fatalf("lock: %v", err)
	}

	if _, err := svc.Update(alice, shared.ID, types.UpdateCollectionRequest{PubliclyShared: ptr(true)}); err != nil {
		t.Fatalf("share: %v", err)
	}

	cases := []struct {
		name string
		ctx  context.Context
		want int64
	}{
		{"owner sees both", alice, 2},
		{"other user sees public only", asUser("bob"), 1},
		{"anonymous sees public only", context.Background(), 1},
		{"admin sees all", access.WithPrincipal(context.Background(), access.Admin("root")), 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := svc.List(tc.ctx, types.ListCollectionsQuery{Kind: "generic-data"})
			if err != nil {
				t.Fatalf("list: %v", err)
			}

			if resp.Total != tc.want {
				t.Fatalf("total = %d, want %d", resp.Total, tc.want)
			}
		})
	}

	// 名称子串过滤与访问谓词 AND 组合
	resp, err := svc.List(asUser("bob"), types.ListCollectionsQuery{Name: "alice"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if resp.Total != 1 || resp.Collections[0].Name != "alice-shared" {
		t.Fatalf("filtered list = %+v", resp)
	}
}

func TestListNameFilterIgnoresCase(t *testing.T) {
	svc, _ := newTestService(t)
	alice := asUser("alice")

	if _, err := svc.Create(alice, types.CreateCollectionRequest{Kind: "generic-data", Name: "Mixed-Case-Cells"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, query := range []string{"mixed-case", "MIXED-CASE", "Case-Cells"} {
		resp, err := svc.List(alice, types.ListCollectionsQuery{Name: query})
		if err != nil {
			t.Fatalf("list %q: %v", query, err)
		}

		if resp.Total != 1 {
			t.Fatalf("query %q matched %d collections, want 1", query, resp.Total)
		}
	}
}

func TestDeleteRefusals(t *testing.T) {
	svc, gdb := newTestService(t)
	alice := asUser("alice")

	c, err := svc.Create(alice, types.CreateCollectionRequest{Kind: "generic-data", Name: "keep"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Update(alice, c.ID, types.UpdateCollectionRequest{Locked: ptr(true)}); err != nil {
		t.Fatalf("lock: %v", err)
	}

	var client *errs.ClientError
	if err := svc.Delete(alice, c.ID); !errors.As(err, &client) {
		t.Fatalf("expected ClientError for locked delete, got %v", err)
	}

	// 未锁定集合正常删除并级联条目
	d, err := svc.Create(alice, types.CreateCollectionRequest{Kind: "generic-data", Name: "drop"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := gdb.Create(model.NewImportedItem(d.ID, "f.bin", 3)).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	if err := svc.Delete(alice, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var notFound *errs.NotFoundError
	if _, err := svc.Get(alice, d.ID); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError after delete, got %v", err)
	}

	var count int64
	if err := gdb.Model(&model.Item{}).Where("collection_id = ?", d.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}

	if count != 0 {
		t.Fatalf("items not cascaded: %d", count)
	}
}

func TestClearItemErrorUnblocksLock(t *testing.T) {
	svc, gdb := newTestService(t)
	alice := asUser("alice")

	c, err := svc.Create(alice, types.CreateCollectionRequest{Kind: "images-collection", Name: "scratch"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	failed := model.NewImportedItem(c.ID, "broken.tif", 0)
	failed.ImportError = "Can not extract image."

	if err := gdb.Create(failed).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	// 有错误条目时锁定被拒绝
	var client *errs.ClientError
	if _, err := svc.Update(alice, c.ID, types.UpdateCollectionRequest{Locked: ptr(true)}); !errors.As(err, &client) {
		t.Fatalf("expected ClientError while errors present, got %v", err)
	}

	item, err := svc.ClearItemError(alice, c.ID, failed.ID)
	if err != nil {
		t.Fatalf("clear error: %v", err)
	}

	if item.ImportError != "" {
		t.Fatalf("error not cleared: %q", item.ImportError)
	}

	if _, err := svc.Update(alice, c.ID, types.UpdateCollectionRequest{Locked: ptr(true)}); err != nil {
		t.Fatalf("lock after clear: %v", err)
	}
}

func TestRenameUniqueness(t *testing.T) {
	svc, _ := newTestService(t)
	alice := asUser("alice")

	if _, err := svc.Create(alice, types.CreateCollectionRequest{Kind: "pyramid", Name: "taken"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	c, err := svc.Create(alice, types.CreateCollectionRequest{Kind: "pyramid", Name: "mine"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var conflict *errs.ConflictError
	if _, err := svc.Update(alice, c.ID, types.UpdateCollectionRequest{Name: ptr("taken")}); !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	if _, err := svc.Update(alice, c.ID, types.UpdateCollectionRequest{Name: ptr("renamed")}); err != nil {
		t.Fatalf("rename: %v", err)
	}
}

// Update 只允许回写可变列. 在读取和提交之间由 worker 提交的聚合重算
// 不能被读取时的快照覆盖；用 update 回调在 Update 的写语句之前、同一
// 事务内改动计数器来确定性地复现这个窗口.
func TestUpdateDoesNotClobberAggregates(t *testing.T) {
	svc, gdb := newTestService(t)
	alice := asUser("alice")

	c, err := svc.Create(alice, types.CreateCollectionRequest{Kind: "generic-data", Name: "counted"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var once sync.Once

	err = gdb.Callback().Update().Before("gorm:update").Register("bump_counters_midflight", func(tx *gorm.DB) {
		once.Do(func() {
			e := tx.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE collections SET item_count = 7, total_size = 99 WHERE id = ?", c.ID).Error
			if e != nil {
				t.Errorf("bump counters: %v", e)
			}
		})
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	if _, err := svc.Update(alice, c.ID, types.UpdateCollectionRequest{Name: ptr("renamed")}); err != nil {
		t.Fatalf("update: %v", err)
	}

	var got model.Collection
	if err := gdb.First(&got, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got.Name != "renamed" {
		t.Fatalf("name = %q, want renamed", got.Name)
	}

	if got.ItemCount != 7 || got.TotalSize != 99 {
		t.Fatalf("concurrent aggregate recompute reverted: %+v", got)
	}
}
