package convert

import (
	"path/filepath"
	"strings"
)

// OmeTiffSuffix 转换输出的规范后缀.
const OmeTiffSuffix = ".ome.tif"

// OutputFileName 计算条目的转换输出文件名：已经是 .ome.tif 的保持原名，
// 否则去掉最后一个扩展名再追加规范后缀.
func OutputFileName(fileName string) string {
	if strings.HasSuffix(fileName, OmeTiffSuffix) {
		return fileName
	}

	return strings.TrimSuffix(fileName, filepath.Ext(fileName)) + OmeTiffSuffix
}
