// Package fs 实现本地资产 blob 存储. 永久区按资产种类分根目录，每个资产
// 一个以记录 ID 命名的目录；暂存区保存作业输出 (<root>/temp/jobs/<jobID>/<output>)
// 和上传内容. 导入走整目录 os.Rename 原子搬迁，失败返回 StorageRelocationError
// 由调用方执行补偿动作.
package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/errs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// Store 本地 blob 存储.
type Store struct {
	cfg configs.StorageConfig
}

// New 初始化 blob 存储，创建各种类根目录与暂存目录.
func New(cfg configs.StorageConfig) (*Store, error) {
	s := &Store{cfg: cfg}

	dirs := []string{
		cfg.ImagesCollectionsFolder(),
		cfg.GenericDatasFolder(),
		cfg.PyramidsFolder(),
		cfg.TensorflowModelsFolder(),
		cfg.TempJobsFolder(),
		cfg.TempUploadsFolder(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", d, err)
		}
	}

	nlog.Logger().Info().Str("root", cfg.Root).Msg("blob store initialized")

	return s, nil
}

// Root 存储根目录.
func (s *Store) Root() string { return s.cfg.Root }

// KindFolder 指定种类的永久存储根目录.
func (s *Store) KindFolder(kind model.Kind) string {
	switch kind {
	case model.KindImagesCollection:
		return s.cfg.ImagesCollectionsFolder()
	case model.KindGenericData:
		return s.cfg.GenericDatasFolder()
	case model.KindPyramid:
		return s.cfg.PyramidsFolder()
	case model.KindTensorflowModel:
		return s.cfg.TensorflowModelsFolder()
	default:
		return filepath.Join(s.cfg.Root, string(kind))
	}
}

// CollectionDir 资产的永久目录.
func (s *Store) CollectionDir(kind model.Kind, id string) string {
	return filepath.Join(s.KindFolder(kind), id)
}

// ImagesDir 图像集合转换输出目录 <kind-root>/<id>/images.
func (s *Store) ImagesDir(collectionID string) string {
	return filepath.Join(s.CollectionDir(model.KindImagesCollection, collectionID),
		configs.DefaultImagesUploadSubFolder)
}

// TempCollectionDir 集合的暂存目录，转换前的原始文件放在这里.
func (s *Store) TempCollectionDir(kind model.Kind, id string) string {
	return filepath.Join(s.cfg.Root, configs.DefaultTempDir, filepath.Base(s.KindFolder(kind)), id)
}

// JobStagingDir 作业某个输出槽的暂存目录.
func (s *Store) JobStagingDir(jobID, outputName string) string {
	return filepath.Join(s.cfg.TempJobsFolder(), jobID, outputName)
}

// UploadStagingDir 一次上传会话的暂存目录.
func (s *Store) UploadStagingDir(uploadID string) string {
	return filepath.Join(s.cfg.TempUploadsFolder(), uploadID)
}

// MoveIntoPlace 将暂存目录原子搬迁到目标位置. 目标父目录会被创建；
// rename 失败（跨设备、目标已存在等）返回 StorageRelocationError.
func (s *Store) MoveIntoPlace(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &errs.StorageRelocationError{From: src, To: dst, Err: err}
	}

	if err := os.Rename(src, dst); err != nil {
		return &errs.StorageRelocationError{From: src, To: dst, Err: err}
	}

	return nil
}

// RemoveCollection 删除资产的永久目录与残留暂存目录. 记录已删除，
// blob 清理是尽力而为：失败只记日志.
func (s *Store) RemoveCollection(kind model.Kind, id string) {
	for _, d := range []string{s.CollectionDir(kind, id), s.TempCollectionDir(kind, id)} {
		if err := os.RemoveAll(d); err != nil {
			nlog.Logger().Warn().Err(err).Str("dir", d).Msg("was not able to delete collection folder")
		}
	}
}

// ListRegularFiles 列出目录下的普通文件名（不含子目录）.
func (s *Store) ListRegularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}

	return names, nil
}

// FileSize 返回文件大小.
func (s *Store) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// DirSize 递归统计目录占用字节数.
func (s *Store) DirSize(dir string) (int64, error) {
	var total int64

	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}

			total += info.Size()
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk dir %s: %w", dir, err)
	}

	return total, nil
}

// RewriteForContainer 将存储根前缀重写为计算容器内的挂载路径，
// 供 exportDataAsParam 向作业侧传参.
func (s *Store) RewriteForContainer(path string) string {
	return strings.Replace(path, s.cfg.Root, s.cfg.ContainerInputsMount, 1)
}

// StagingEntry 暂存区中的一个候选清理目录. ID 是目录名，对应集合、
// 作业或上传会话的记录 ID.
type StagingEntry struct {
	Path    string
	ID      string
	ModTime time.Time
}

// ListStagingEntries 枚举 <root>/temp/<category>/<id> 两级结构下的
// 全部暂存目录，供孤儿清理任务按记录存在性过滤.
func (s *Store) ListStagingEntries() ([]StagingEntry, error) {
	tempRoot := filepath.Join(s.cfg.Root, configs.DefaultTempDir)

	categories, err := os.ReadDir(tempRoot)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read temp root %s: %w", tempRoot, err)
	}

	var entries []StagingEntry

	for _, cat := range categories {
		if !cat.IsDir() {
			continue
		}

		catDir := filepath.Join(tempRoot, cat.Name())

		subs, err := os.ReadDir(catDir)
		if err != nil {
			return nil, fmt.Errorf("read staging category %s: %w", catDir, err)
		}

		for _, sub := range subs {
			if !sub.IsDir() {
				continue
			}

			info, err := sub.Info()
			if err != nil {
				continue
			}

			entries = append(entries, StagingEntry{
				Path:    filepath.Join(catDir, sub.Name()),
				ID:      sub.Name(),
				ModTime: info.ModTime(),
			})
		}
	}

	return entries, nil
}
