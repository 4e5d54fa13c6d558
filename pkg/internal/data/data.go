// Package data 实现按资产种类分发的导入处理器. 每个种类一个 Handler：
// ImportData 把作业输出的暂存目录落成一条新资产，ExportDataAsParam 把资产
// 引用解析为计算容器可见的路径. 处理器按种类注册，缺失注册属于配置错误，
// 启动期 fail fast 而不是等到请求时.
package data

import (
	"context"
	"fmt"
	"regexp"

	"github.com/yeisme/assetvault/pkg/internal/model"
)

// Handler 一个资产种类的导入/导出处理器.
type Handler interface {
	// Kind 处理器负责的资产种类.
	Kind() model.Kind
	// ImportData 消费作业 outputName 槽的暂存目录，创建恰好一条新资产记录
	// 并把目录搬迁入永久存储. 搬迁失败时删除刚建的记录（补偿动作）并返回
	// StorageRelocationError；输出槽只在搬迁成功后才绑定资产 ID.
	ImportData(ctx context.Context, job *model.Job, outputName string) (*model.Collection, error)
	// ExportDataAsParam 把资产引用解析为绝对路径并重写为容器内挂载路径.
	// 引用形如 "{{ jobID.outputName }}" 时解析为该作业的暂存目录，
	// 允许把尚未落库的作业输出接成另一个作业的输入.
	ExportDataAsParam(value string) string
}

// Registry 种类到处理器的注册表.
type Registry struct {
	handlers map[model.Kind]Handler
}

// NewRegistry 构造注册表.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[model.Kind]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Kind()] = h
	}

	return r
}

// Handler 查找种类对应的处理器.
func (r *Registry) Handler(kind model.Kind) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("no import handler registered for kind %q", kind)
	}

	return h, nil
}

// MustHandler 查找处理器，未注册直接 panic. 只在启动期装配校验时使用.
func (r *Registry) MustHandler(kind model.Kind) Handler {
	h, err := r.Handler(kind)
	if err != nil {
		panic(err)
	}

	return h
}

// Kinds 返回所有已注册的种类.
func (r *Registry) Kinds() []model.Kind {
	kinds := make([]model.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}

	return kinds
}

// jobOutputRef 匹配指向另一个作业输出的引用占位符.
var jobOutputRef = regexp.MustCompile(`\{\{ (.*)\.(.*) \}\}`)

// ParseJobOutputRef 解析 "{{ jobID.outputName }}" 形式的引用，
// 不匹配时返回 ok = false.
func ParseJobOutputRef(value string) (jobID, outputName string, ok bool) {
	m := jobOutputRef.FindStringSubmatch(value)
	if m == nil {
		return "", "", false
	}

	return m[1], m[2], true
}
