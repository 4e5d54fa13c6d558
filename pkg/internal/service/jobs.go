package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/internal/errs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/types"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// JobService 作业输出导入.
type JobService struct{ *AssetService }

// NewJobService 构造作业服务.
func NewJobService(c context.Context) *JobService {
	return &JobService{NewAssetService(c)}
}

// ImportJobOutputs 按声明顺序消费作业的全部未绑定输出槽. 单个槽失败即
// 中止并返回错误，已绑定的槽保持绑定——重试只会处理剩余的槽.
func (s *JobService) ImportJobOutputs(ctx context.Context, jobID string) (types.ImportJobOutputsResponse, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return types.ImportJobOutputsResponse{}, err
	}

	outputs, err := job.Outputs()
	if err != nil {
		return types.ImportJobOutputsResponse{}, err
	}

	for _, out := range outputs {
		if out.AssetID != "" {
			continue // 已绑定，幂等跳过
		}

		handler, err := s.registry.Handler(out.Kind)
		if err != nil {
			return types.ImportJobOutputsResponse{}, err
		}

		c, err := handler.ImportData(ctx, job, out.Name)
		if err != nil {
			nlog.Logger().Error().Err(err).
				Str("job", job.ID).
				Str("output", out.Name).
				Msg("import job output failed")

			return types.ImportJobOutputsResponse{}, err
		}

		nlog.Logger().Info().
			Str("job", job.ID).
			Str("output", out.Name).
			Str("collection", c.ID).
			Msg("job output imported")
	}

	bound, err := job.Outputs()
	if err != nil {
		return types.ImportJobOutputsResponse{}, err
	}

	return types.ImportJobOutputsResponse{JobID: job.ID, Outputs: bound}, nil
}

// ResolveParam 把作业输入引用解析为容器内路径.
func (s *JobService) ResolveParam(ctx context.Context, req types.ResolveParamRequest) (types.ResolveParamResponse, error) {
	kind, err := parseKind(req.Kind)
	if err != nil {
		return types.ResolveParamResponse{}, err
	}

	handler, err := s.registry.Handler(kind)
	if err != nil {
		return types.ResolveParamResponse{}, err
	}

	return types.ResolveParamResponse{Path: handler.ExportDataAsParam(req.Value)}, nil
}

func (s *JobService) loadJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job

	err := s.dbClient.GetDB().WithContext(ctx).Where("id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("job", jobID)
	}

	if err != nil {
		return nil, err
	}

	return &job, nil
}
