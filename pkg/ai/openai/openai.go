package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/curio-ai/curio/pkg/ai"
	"github.com/curio-ai/curio/pkg/types"
)

const (
	NAME = "openai"
)

type ModelName struct {
	ChatModel   string
	VisionModel string
	BaseModel   string // fine-tune base
}

type Driver struct {
	client *openai.Client
	model  ModelName
}

func NewClient(token, proxy string) *openai.Client {
	cfg := openai.DefaultConfig(token)
	if proxy != "" {
		cfg.BaseURL = proxy
	}

	return openai.NewClientWithConfig(cfg)
}

func New(token, proxy string, model ModelName) *Driver {
	if model.ChatModel == "" {
		model.ChatModel = openai.GPT4oMini
	}
	if model.VisionModel == "" {
		model.VisionModel = model.ChatModel
	}
	if model.BaseModel == "" {
		model.BaseModel = openai.GPT4oMini20240718
	}

	return &Driver{
		client: NewClient(token, proxy),
		model:  model,
	}
}

func (s *Driver) Name() string {
	return NAME
}

var taskSystemPrompts = map[types.AITask]string{
	types.AI_TASK_TEXT_GENERATION: "You are a helpful writing assistant. Respond to the request directly.",
	types.AI_TASK_QA:              "You are a precise question answering assistant. Answer concisely and factually.",
	types.AI_TASK_CLASSIFICATION:  "You are a text classifier. Reply with the single most fitting label only.",
	types.AI_TASK_SENTIMENT:       ai.PROMPT_CLASSIFY_SENTIMENT_EN,
	types.AI_TASK_NER:             "Extract the named entities from the text. Reply with one entity per line as `type: value`.",
}

func (s *Driver) Predict(ctx context.Context, task types.AITask, text string, params *ai.PredictParams) (*ai.PredictResult, error) {
	system, ok := taskSystemPrompts[task]
	if !ok {
		return nil, fmt.Errorf("openai driver: unsupported task %q", task)
	}

	req := openai.ChatCompletionRequest{
		Model: s.model.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	}
	if params != nil {
		req.MaxTokens = params.MaxTokens
		req.Temperature = params.Temperature
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai driver: empty choices")
	}

	return &ai.PredictResult{
		Output:     strings.TrimSpace(resp.Choices[0].Message.Content),
		Confidence: confidenceFromFinish(resp.Choices[0].FinishReason),
	}, nil
}

func (s *Driver) DescribeImage(ctx context.Context, imageURL string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model.VisionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: ai.PROMPT_DESCRIBE_IMAGE_EN},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL}},
				},
			},
		},
	})
	if err != nil {
		return "", wrapUnavailable(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai driver: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// fineTuneLine 对话微调样例的 JSONL 行
type fineTuneLine struct {
	Messages []openai.ChatCompletionMessage `json:"messages"`
}

func (s *Driver) UploadExamples(ctx context.Context, name string, examples []types.TrainingExample) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ex := range examples {
		line := fineTuneLine{
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: taskSystemPrompts[ex.Task]},
				{Role: openai.ChatMessageRoleUser, Content: ex.Input},
				{Role: openai.ChatMessageRoleAssistant, Content: ex.Output},
			},
		}
		if err := enc.Encode(line); err != nil {
			return "", err
		}
	}

	file, err := s.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   buf.Bytes(),
		Purpose: openai.PurposeFineTune,
	})
	if err != nil {
		return "", wrapUnavailable(err)
	}
	return file.ID, nil
}

func (s *Driver) StartTraining(ctx context.Context, fileID string, mode types.TrainingMode) (string, error) {
	req := openai.FineTuningJobRequest{
		TrainingFile: fileID,
		Model:        s.model.BaseModel,
	}
	// incremental cycles run lighter than the initial pass
	if mode == types.TRAINING_MODE_INCREMENTAL {
		req.Hyperparameters = &openai.Hyperparameters{Epochs: 1}
	} else {
		req.Hyperparameters = &openai.Hyperparameters{Epochs: 3}
	}

	job, err := s.client.CreateFineTuningJob(ctx, req)
	if err != nil {
		return "", wrapUnavailable(err)
	}

	slog.Info("fine-tuning job created", slog.String("job_id", job.ID), slog.String("mode", mode.String()))
	return job.ID, nil
}

func (s *Driver) TrainingStatus(ctx context.Context, remoteJobID string) (types.TrainingJobStatus, error) {
	job, err := s.client.RetrieveFineTuningJob(ctx, remoteJobID)
	if err != nil {
		return "", wrapUnavailable(err)
	}

	switch job.Status {
	case "succeeded":
		return types.TRAINING_JOB_SUCCEEDED, nil
	case "failed", "cancelled":
		return types.TRAINING_JOB_FAILED, nil
	case "queued", "validating_files":
		return types.TRAINING_JOB_QUEUED, nil
	default:
		return types.TRAINING_JOB_RUNNING, nil
	}
}

func (s *Driver) HasTunedModel(ctx context.Context) (bool, error) {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		return false, wrapUnavailable(err)
	}
	for _, m := range models.Models {
		if strings.HasPrefix(m.ID, "ft:") {
			return true, nil
		}
	}
	return false, nil
}

// confidenceFromFinish 粗粒度置信度，截断的回答可信度打折
func confidenceFromFinish(reason openai.FinishReason) float64 {
	if reason == openai.FinishReasonStop {
		return 0.9
	}
	return 0.5
}

// wrapUnavailable 将服务端故障与网络错误统一映射为 ai.ErrUnavailable
func wrapUnavailable(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == 429 {
			return fmt.Errorf("%w: %s", ai.ErrUnavailable, apiErr.Message)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s", ai.ErrUnavailable, netErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout", ai.ErrUnavailable)
	}
	return err
}
