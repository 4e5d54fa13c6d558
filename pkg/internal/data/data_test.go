package data_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/data"
	"github.com/yeisme/assetvault/pkg/internal/errs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	fsc "github.com/yeisme/assetvault/pkg/internal/storage/fs"
)

type fakeEnqueuer struct {
	ids []string
}

func (f *fakeEnqueuer) Enqueue(itemIDs ...string) {
	f.ids = append(f.ids, itemIDs...)
}

func newTestEnv(t *testing.T) (*gorm.DB, *fsc.Store, string) {
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

	root := t.TempDir()

	blobs, err := fsc.New(configs.StorageConfig{
		Root:                 root,
		ContainerInputsMount: "/data/inputs",
	})
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	return db, blobs, root
}

// stageJobOutput 准备作业记录和输出槽暂存目录.
func stageJobOutput(t *testing.T, db *gorm.DB, blobs *fsc.Store, jobName, outputName string, files map[string]string) *model.Job {
	t.Helper()

	job := &model.Job{
		ID:     model.NewID(),
		Name:   jobName,
		Owner:  "alice",
		Status: model.JobStatusSucceeded,
	}
	if err := job.SetOutputs([]model.JobOutput{{Name: outputName, Kind: model.KindGenericData}}); err != nil {
		t.Fatalf("set outputs: %v", err)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}

	dir := blobs.JobStagingDir(job.ID, outputName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir staging: %v", err)
	}

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("stage file: %v", err)
		}
	}

	return job
}

func TestRegistryFailFast(t *testing.T) {
	r := data.NewRegistry()

	if _, err := r.Handler(model.KindPyramid); err == nil {
		t.Fatal("expected error for unregistered kind")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("MustHandler should panic for unregistered kind")
		}
	}()

	r.MustHandler(model.KindPyramid)
}

func TestFolderImport(t *testing.T) {
	db, blobs, _ := newTestEnv(t)
	h := data.NewGenericDataHandler(db, blobs, nil)
	job := stageJobOutput(t, db, blobs, "segment", "stats", map[string]string{
		"result.csv": "a,b,c",
		"model.bin":  "0101",
	})

	c, err := h.ImportData(context.Background(), job, "stats")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if c.Name != "segment-stats" {
		t.Fatalf("name = %q, want segment-stats", c.Name)
	}

	if c.Owner != "alice" || c.SourceJob != job.ID {
		t.Fatalf("ownership not inherited: %+v", c)
	}

	// 文件已落地永久目录，暂存目录消费完毕
	if _, err := os.Stat(filepath.Join(blobs.CollectionDir(model.KindGenericData, c.ID), "result.csv")); err != nil {
		t.Fatalf("imported file missing: %v", err)
	}

	if _, err := os.Stat(blobs.JobStagingDir(job.ID, "stats")); !os.IsNotExist(err) {
		t.Fatalf("staging dir not consumed: %v", err)
	}

	// 条目登记且聚合已重算
	var got model.Collection
	if err := db.First(&got, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload collection: %v", err)
	}

	if got.ItemCount != 2 || got.ImportingCount != 0 || got.TotalSize == 0 {
		t.Fatalf("aggregates = %+v", got)
	}

	// 输出槽已绑定
	var gotJob model.Job
	if err := db.First(&gotJob, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}

	out, err := gotJob.Output("stats")
	if err != nil {
		t.Fatalf("output: %v", err)
	}

	if out.AssetID != c.ID {
		t.Fatalf("output bound to %q, want %q", out.AssetID, c.ID)
	}
}

func TestFolderImportRelocationFailure(t *testing.T) {
	db, blobs, _ := newTestEnv(t)
	h := data.NewPyramidHandler(db, blobs, nil)

	// 暂存目录不存在，rename 必然失败
	job := &model.Job{ID: model.NewID(), Name: "pyr", Owner: "alice", Status: model.JobStatusSucceeded}
	if err := job.SetOutputs([]model.JobOutput{{Name: "out", Kind: model.KindPyramid}}); err != nil {
		t.Fatalf("set outputs: %v", err)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}

	_, err := h.ImportData(context.Background(), job, "out")

	var relocErr *errs.StorageRelocationError
	if !errors.As(err, &relocErr) {
		t.Fatalf("expected StorageRelocationError, got %v", err)
	}

	// 补偿动作：记录已删除
	var count int64
	if err := db.Model(&model.Collection{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}

	if count != 0 {
		t.Fatalf("compensating delete missed, %d records left", count)
	}

	// 输出槽保持未绑定
	var gotJob model.Job
	if err := db.First(&gotJob, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}

	out, err := gotJob.Output("out")
	if err != nil {
		t.Fatalf("output: %v", err)
	}

	if out.AssetID != "" {
		t.Fatalf("output bound despite failed import: %q", out.AssetID)
	}
}

func TestGenericDataSidecar(t *testing.T) {
	db, blobs, _ := newTestEnv(t)
	h := data.NewGenericDataHandler(db, blobs, nil)
	job := stageJobOutput(t, db, blobs, "feat", "vectors", map[string]string{
		"vectors.npy":    "....",
		"data-info.json": `{"type":"features","description":"per-cell features","metadata":"{\"cols\":12}"}`,
	})

	c, err := h.ImportData(context.Background(), job, "vectors")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	var got model.Collection
	if err := db.First(&got, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got.Type != "features" || got.Description != "per-cell features" {
		t.Fatalf("sidecar fields not applied: %+v", got)
	}

	// sidecar 文件本身不登记为条目
	if got.ItemCount != 1 {
		t.Fatalf("item count = %d, want 1", got.ItemCount)
	}
}

func TestGenericDataMalformedSidecarNonFatal(t *testing.T) {
	db, blobs, _ := newTestEnv(t)
	h := data.NewGenericDataHandler(db, blobs, nil)
	job := stageJobOutput(t, db, blobs, "feat", "vectors", map[string]string{
		"vectors.npy":    "....",
		"data-info.json": `{not json`,
	})

	c, err := h.ImportData(context.Background(), job, "vectors")
	if err != nil {
		t.Fatalf("malformed sidecar should not fail import: %v", err)
	}

	var got model.Collection
	if err := db.First(&got, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got.Type != "" || got.Description != "" {
		t.Fatalf("descriptor fields should stay empty: %+v", got)
	}
}

func TestImagesImportQueuesConversion(t *testing.T) {
	db, blobs, _ := newTestEnv(t)
	enq := &fakeEnqueuer{}
	h := data.NewImagesHandler(db, blobs, nil, enq)
	job := stageJobOutput(t, db, blobs, "acquire", "raw", map[string]string{
		"a.czi": "xx",
		"b.czi": "yy",
	})

	c, err := h.ImportData(context.Background(), job, "raw")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if len(enq.ids) != 2 {
		t.Fatalf("enqueued %d items, want 2", len(enq.ids))
	}

	var items []model.Item
	if err := db.Where("collection_id = ?", c.ID).Find(&items).Error; err != nil {
		t.Fatalf("list items: %v", err)
	}

	for _, it := range items {
		if !it.Importing {
			t.Fatalf("image item should start importing: %+v", it)
		}
	}

	// 原始文件在集合暂存目录等待转换，不在永久 images 目录
	tempDir := blobs.TempCollectionDir(model.KindImagesCollection, c.ID)
	if _, err := os.Stat(filepath.Join(tempDir, "a.czi")); err != nil {
		t.Fatalf("raw image not staged: %v", err)
	}

	var got model.Collection
	if err := db.First(&got, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got.ImportingCount != 2 {
		t.Fatalf("importing count = %d, want 2", got.ImportingCount)
	}
}

func TestExportDataAsParam(t *testing.T) {
	db, blobs, root := newTestEnv(t)
	h := data.NewGenericDataHandler(db, blobs, nil)

	asset := h.ExportDataAsParam("01HXASSETASSETASSETASSETAS")
	want := filepath.Join("/data/inputs", "generic-datas", "01HXASSETASSETASSETASSETAS")

	if asset != want {
		t.Fatalf("asset path = %q, want %q", asset, want)
	}

	// 指向另一个作业输出的引用解析为暂存目录
	ref := h.ExportDataAsParam("{{ 01HXJOBJOBJOBJOBJOBJOBJOB.outdir }}")
	wantRef := filepath.Join("/data/inputs", "temp", "jobs", "01HXJOBJOBJOBJOBJOBJOBJOB", "outdir")

	if ref != wantRef {
		t.Fatalf("job ref path = %q, want %q", ref, wantRef)
	}

	if strings.HasPrefix(asset, root) {
		t.Fatalf("storage root not rewritten: %q", asset)
	}
}
