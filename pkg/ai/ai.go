// Package ai defines the model-inference capability the rest of the system
// depends on. Drivers live in subpackages; everything above this package only
// sees the interfaces here.
package ai

import (
	"context"
	"errors"

	"github.com/curio-ai/curio/pkg/types"
)

// ErrUnavailable 模型服务不可用
// 与正常的低置信结果严格区分，路由据此走降级分支
var ErrUnavailable = errors.New("ai: model service unavailable")

type PredictParams struct {
	MaxTokens   int
	Temperature float32
}

type PredictResult struct {
	Output     string
	Confidence float64
}

// Generator 承担按任务标签的一次推理调用
type Generator interface {
	Predict(ctx context.Context, task types.AITask, text string, params *PredictParams) (*PredictResult, error)
}

// Vision 图片描述能力，媒体预处理阶段使用
type Vision interface {
	DescribeImage(ctx context.Context, imageURL string) (string, error)
}

// Trainer 对接模型服务的训练任务接口
type Trainer interface {
	// UploadExamples 上传训练样例，返回文件句柄
	UploadExamples(ctx context.Context, name string, examples []types.TrainingExample) (string, error)
	// StartTraining 发起训练，返回远端任务 ID
	StartTraining(ctx context.Context, fileID string, mode types.TrainingMode) (string, error)
	// TrainingStatus 查询远端任务状态
	TrainingStatus(ctx context.Context, remoteJobID string) (types.TrainingJobStatus, error)
	// HasTunedModel 是否已有训练产出的模型
	HasTunedModel(ctx context.Context) (bool, error)
}

// Driver 单个模型供应商驱动
type Driver interface {
	Generator
	Vision
	Name() string
}
