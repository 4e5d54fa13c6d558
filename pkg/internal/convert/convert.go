// Package convert 封装图像到 OME-TIFF 的转换器调用. 转换器是外部命令行
// 工具（bioformats 系），流水线通过 Converter 接口解耦，测试里用假实现替换.
package convert

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/errs"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// Converter 把一个原始输入文件转换成目标路径上的 OME-TIFF.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// CommandConverter 通过外部命令执行转换，命令约定为
//
//	<command> -i <input> -o <output> -t <tileSize>
//
// 命令退出码非零或超时都视为转换失败.
type CommandConverter struct {
	command  string
	tileSize int
	timeout  time.Duration
}

// NewCommandConverter 从流水线配置构造命令转换器.
func NewCommandConverter(cfg configs.PipelineConfig) *CommandConverter {
	return &CommandConverter{
		command:  cfg.ConverterCommand,
		tileSize: cfg.TileSize,
		timeout:  cfg.GetConverterTimeout(),
	}
}

// Convert 执行转换命令. 失败时 stderr 的末尾会进入错误链便于排查，
// 但调用方落到条目上的永远是固定文案.
func (c *CommandConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	cmd := exec.CommandContext(ctx, c.command,
		"-i", inputPath,
		"-o", outputPath,
		"-t", strconv.Itoa(c.tileSize),
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return &errs.ConversionError{
			Input: inputPath,
			Err:   fmt.Errorf("%s: %w: %s", c.command, err, tail(out, 512)),
		}
	}

	nlog.Logger().Debug().
		Str("input", inputPath).
		Str("output", outputPath).
		Dur("elapsed", time.Since(start)).
		Msg("image converted")

	return nil
}

// tail 截取输出末尾，避免把整段转换器日志塞进错误.
func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[len(s)-n:]
	}

	return s
}
