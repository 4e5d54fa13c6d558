package configs

import (
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	DefaultStorageRoot           = "data/assetvault" // 默认存储根目录
	DefaultContainerInputsMount  = "/data/inputs"    // 计算容器内看到的输入挂载路径
	DefaultImagesCollectionsDir  = "images-collections"
	DefaultGenericDatasDir       = "generic-datas"
	DefaultPyramidsDir           = "pyramids"
	DefaultTensorflowModelsDir   = "tf-models"
	DefaultTempDir               = "temp"
	DefaultTempJobsDir           = "temp/jobs"
	DefaultTempUploadsDir        = "temp/uploads"
	DefaultImagesUploadSubFolder = "images" // 集合目录下转换输出的子目录
)

// StorageConfig 本地资产 blob 存储配置. 永久区按资产种类分根目录，
// 暂存区（temp）保存作业输出和上传内容，导入时整目录原子重命名进入永久区.
type StorageConfig struct {
	Root string `mapstructure:"root" rule:"required"`
	// ContainerInputsMount 计算容器内部访问存储根目录的挂载点，
	// exportDataAsParam 用它重写路径前缀.
	ContainerInputsMount string `mapstructure:"container_inputs_mount" rule:"required"`
}

// ImagesCollectionsFolder 图像集合的永久存储根目录.
func (c *StorageConfig) ImagesCollectionsFolder() string {
	return filepath.Join(c.Root, DefaultImagesCollectionsDir)
}

// GenericDatasFolder 通用数据集的永久存储根目录.
func (c *StorageConfig) GenericDatasFolder() string {
	return filepath.Join(c.Root, DefaultGenericDatasDir)
}

// PyramidsFolder 金字塔数据的永久存储根目录.
func (c *StorageConfig) PyramidsFolder() string {
	return filepath.Join(c.Root, DefaultPyramidsDir)
}

// TensorflowModelsFolder 模型数据的永久存储根目录.
func (c *StorageConfig) TensorflowModelsFolder() string {
	return filepath.Join(c.Root, DefaultTensorflowModelsDir)
}

// TempJobsFolder 作业输出暂存根目录，布局为 <root>/temp/jobs/<jobID>/<outputName>.
func (c *StorageConfig) TempJobsFolder() string {
	return filepath.Join(c.Root, filepath.FromSlash(DefaultTempJobsDir))
}

// TempUploadsFolder 上传暂存根目录.
func (c *StorageConfig) TempUploadsFolder() string {
	return filepath.Join(c.Root, filepath.FromSlash(DefaultTempUploadsDir))
}

// setDefaults 设置存储配置的默认值.
func (c *StorageConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("storage.root", DefaultStorageRoot)
	v.SetDefault("storage.container_inputs_mount", DefaultContainerInputsMount)
}
