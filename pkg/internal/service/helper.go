package service

import "os"

// removeIfExists 删除文件，不存在不算错误.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}

	return err
}
