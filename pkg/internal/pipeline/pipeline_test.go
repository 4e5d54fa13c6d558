package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/pipeline"
	fsc "github.com/yeisme/assetvault/pkg/internal/storage/fs"
)

// fakeConverter 把输入复制到输出；文件名含 "bad" 时模拟转换器失败.
type fakeConverter struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeConverter) Convert(_ context.Context, inputPath, outputPath string) error {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(inputPath))
	f.mu.Unlock()

	if strings.Contains(filepath.Base(inputPath), "bad") {
		return fmt.Errorf("unreadable pixel data")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	return os.WriteFile(outputPath, data, 0o644)
}

// gatedConverter 在转换中途阻塞直到测试放行，用于制造在途条目.
// 放行后和 fakeConverter 一样把输入复制到输出.
type gatedConverter struct {
	entered chan struct{}
	release chan struct{}
	calls   int32
}

func (g *gatedConverter) Convert(_ context.Context, inputPath, outputPath string) error {
	atomic.AddInt32(&g.calls, 1)

	select {
	case g.entered <- struct{}{}:
	default:
	}

	<-g.release

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	return os.WriteFile(outputPath, data, 0o644)
}

func newTestEnv(t *testing.T) (*gorm.DB, *fsc.Store, configs.PipelineConfig) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(&model.Collection{}, &model.Item{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	blobs, err := fsc.New(configs.StorageConfig{
		Root:                 t.TempDir(),
		ContainerInputsMount: "/data/inputs",
	})
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	cfg := configs.PipelineConfig{
		Concurrency:     2,
		TileSize:        1024,
		ShutdownTimeout: 10,
	}

	return db, blobs, cfg
}

// stageItem 创建待转换条目并在集合暂存目录放置原始文件.
func stageItem(t *testing.T, db *gorm.DB, blobs *fsc.Store, collectionID, name string) *model.Item {
	t.Helper()

	item := model.NewPendingItem(collectionID, name)
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	dir := blobs.TempCollectionDir(model.KindImagesCollection, collectionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), []byte("raw-pixels"), 0o644); err != nil {
		t.Fatalf("stage input: %v", err)
	}

	return item
}

func newCollection(t *testing.T, db *gorm.DB, name string) *model.Collection {
	t.Helper()

	c := model.NewCollection(model.KindImagesCollection, name)
	c.Owner = "alice"

	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create collection: %v", err)
	}

	return c
}

func runPipeline(t *testing.T, db *gorm.DB, blobs *fsc.Store, cfg configs.PipelineConfig, conv *fakeConverter, enqueue ...string) {
	t.Helper()

	p := pipeline.New(db, blobs, conv, nil, cfg)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start pipeline: %v", err)
	}

	p.Enqueue(enqueue...)
	p.Shutdown()
}

func TestConvertItemSuccess(t *testing.T) {
	db, blobs, cfg := newTestEnv(t)
	c := newCollection(t, db, "cells")
	item := stageItem(t, db, blobs, c.ID, "cells.czi")

	runPipeline(t, db, blobs, cfg, &fakeConverter{}, item.ID)

	var got model.Item
	if err := db.First(&got, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}

	if got.Importing {
		t.Fatal("item still importing")
	}

	if got.ImportError != "" {
		t.Fatalf("unexpected import error %q", got.ImportError)
	}

	if got.FileName != "cells.ome.tif" {
		t.Fatalf("file name = %q, want cells.ome.tif", got.FileName)
	}

	if got.FileSize == 0 {
		t.Fatal("file size not recorded")
	}

	// 输出已落地，暂存输入已删除
	output := filepath.Join(blobs.ImagesDir(c.ID), "cells.ome.tif")
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("converted output missing: %v", err)
	}

	staged := filepath.Join(blobs.TempCollectionDir(model.KindImagesCollection, c.ID), "cells.czi")
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Fatalf("staged input not removed: %v", err)
	}

	var agg model.Collection
	if err := db.First(&agg, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload collection: %v", err)
	}

	if agg.ItemCount != 1 || agg.ImportingCount != 0 || agg.ErrorCount != 0 || agg.TotalSize != got.FileSize {
		t.Fatalf("aggregates = %+v", agg)
	}
}

func TestConvertFailureIsolated(t *testing.T) {
	db, blobs, cfg := newTestEnv(t)
	c := newCollection(t, db, "cells")
	good := stageItem(t, db, blobs, c.ID, "good.tif")
	bad := stageItem(t, db, blobs, c.ID, "bad.tif")

	runPipeline(t, db, blobs, cfg, &fakeConverter{}, good.ID, bad.ID)

	var gotBad model.Item
	if err := db.First(&gotBad, "id = ?", bad.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}

	if gotBad.Importing {
		t.Fatal("failed item still importing")
	}

	if gotBad.ImportError != "Can not extract image." {
		t.Fatalf("import error = %q", gotBad.ImportError)
	}

	// 失败不影响兄弟条目
	var gotGood model.Item
	if err := db.First(&gotGood, "id = ?", good.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}

	if gotGood.Importing || gotGood.ImportError != "" {
		t.Fatalf("sibling item affected: %+v", gotGood)
	}

	var agg model.Collection
	if err := db.First(&agg, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload collection: %v", err)
	}

	if agg.ItemCount != 2 || agg.ErrorCount != 1 || agg.ImportingCount != 0 {
		t.Fatalf("aggregates = %+v", agg)
	}
}

func TestResumePicksUpInterruptedItems(t *testing.T) {
	db, blobs, cfg := newTestEnv(t)
	c := newCollection(t, db, "cells")
	item := stageItem(t, db, blobs, c.ID, "interrupted.tif")

	// Start 内部 Resume 扫描 importing 状态条目，无需显式入队
	runPipeline(t, db, blobs, cfg, &fakeConverter{})

	var got model.Item
	if err := db.First(&got, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}

	if got.Importing {
		t.Fatal("interrupted item not resumed")
	}

	if got.FileName != "interrupted.ome.tif" {
		t.Fatalf("file name = %q", got.FileName)
	}
}

func TestTerminalItemSkipped(t *testing.T) {
	db, blobs, cfg := newTestEnv(t)
	c := newCollection(t, db, "cells")

	done := model.NewImportedItem(c.ID, "done.ome.tif", 42)
	if err := db.Create(done).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	conv := &fakeConverter{}
	runPipeline(t, db, blobs, cfg, conv, done.ID)

	if len(conv.calls) != 0 {
		t.Fatalf("terminal item reconverted: %v", conv.calls)
	}

	var got model.Item
	if err := db.First(&got, "id = ?", done.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}

	if got.FileSize != 42 || got.FileName != "done.ome.tif" {
		t.Fatalf("terminal item mutated: %+v", got)
	}
}

func TestOmeTiffNameKept(t *testing.T) {
	db, blobs, cfg := newTestEnv(t)
	c := newCollection(t, db, "cells")
	item := stageItem(t, db, blobs, c.ID, "already.ome.tif")

	runPipeline(t, db, blobs, cfg, &fakeConverter{}, item.ID)

	var got model.Item
	if err := db.First(&got, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}

	if got.FileName != "already.ome.tif" {
		t.Fatalf("file name = %q, want already.ome.tif", got.FileName)
	}
}

// newSharedDBEnv 使用文件型 sqlite，便于多个流水线实例（模拟多进程）
// 或测试协程并发访问同一数据库.
func newSharedDBEnv(t *testing.T) (*gorm.DB, *fsc.Store, configs.PipelineConfig) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pipeline.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(&model.Collection{}, &model.Item{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	blobs, err := fsc.New(configs.StorageConfig{
		Root:                 t.TempDir(),
		ContainerInputsMount: "/data/inputs",
	})
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	cfg := configs.PipelineConfig{
		Concurrency:     2,
		TileSize:        1024,
		ShutdownTimeout: 10,
	}

	return db, blobs, cfg
}

// 在途条目（排队或转换中）在库里仍是 importing，周期补扫不得把它派发给
// 第二个 worker.
func TestResumeSkipsInflightItems(t *testing.T) {
	db, blobs, cfg := newSharedDBEnv(t)
	c := newCollection(t, db, "cells")
	item := stageItem(t, db, blobs, c.ID, "cells.czi")

	conv := &gatedConverter{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}

	p := pipeline.New(db, blobs, conv, nil, cfg)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start pipeline: %v", err)
	}

	// 等 worker 进入转换，此时条目在库里仍是 importing
	<-conv.entered

	if err := p.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	close(conv.release)
	p.Shutdown()

	if got := atomic.LoadInt32(&conv.calls); got != 1 {
		t.Fatalf("converter invoked %d times, want 1", got)
	}

	var got model.Item
	if err := db.First(&got, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}

	if got.Importing || got.ImportError != "" || got.FileName != "cells.ome.tif" {
		t.Fatalf("unexpected final state: %+v", got)
	}
}

// 重启后的新流水线完成了转换，滞后的旧 worker 随后以失败收尾，
// 它的终态写必须是空操作，不得覆盖已落库的成功状态.
func TestStaleWorkerCannotOverwriteTerminalState(t *testing.T) {
	db, blobs, cfg := newSharedDBEnv(t)
	cfg.Concurrency = 1

	c := newCollection(t, db, "cells")
	item := stageItem(t, db, blobs, c.ID, "cells.czi")

	stale := &gatedConverter{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	old := pipeline.New(db, blobs, stale, nil, cfg)
	if err := old.Start(context.Background()); err != nil {
		t.Fatalf("start old pipeline: %v", err)
	}

	// 旧 worker 持有条目并阻塞在转换中
	<-stale.entered

	// 新流水线重扫同一条目并成功完成
	fresh := pipeline.New(db, blobs, &fakeConverter{}, nil, cfg)
	if err := fresh.Start(context.Background()); err != nil {
		t.Fatalf("start fresh pipeline: %v", err)
	}

	fresh.Shutdown()

	var converted model.Item
	if err := db.First(&converted, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}

	if converted.Importing || converted.ImportError != "" {
		t.Fatalf("fresh pipeline did not finish item: %+v", converted)
	}

	// 放行旧 worker：暂存输入已被删除，它以失败收尾
	close(stale.release)
	old.Shutdown()

	var got model.Item
	if err := db.First(&got, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}

	if got.ImportError != "" || got.FileName != "cells.ome.tif" || got.FileSize == 0 {
		t.Fatalf("terminal state overwritten by stale worker: %+v", got)
	}

	var agg model.Collection
	if err := db.First(&agg, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload collection: %v", err)
	}

	if agg.ErrorCount != 0 || agg.ItemCount != 1 {
		t.Fatalf("aggregates = %+v", agg)
	}
}
