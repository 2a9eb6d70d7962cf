package srv

import (
	"context"
	"os"

	"github.com/curio-ai/curio/pkg/ai"
	"github.com/curio-ai/curio/pkg/ai/gemini"
	"github.com/curio-ai/curio/pkg/ai/openai"
	"github.com/curio-ai/curio/pkg/errors"
	"github.com/curio-ai/curio/pkg/types"
)

// AIDriver 问答链路用到的全部模型能力
type AIDriver interface {
	ai.Generator
	ai.Vision
	Name() string
	// Trainer 训练能力，驱动不支持时返回 nil
	Trainer() ai.Trainer
}

type AIConfig struct {
	Driver string       `toml:"driver"` // openai | gemini
	OpenAI OpenAIConfig `toml:"openai"`
	Gemini GeminiConfig `toml:"gemini"`
}

type OpenAIConfig struct {
	Token       string `toml:"token"`
	Endpoint    string `toml:"endpoint"`
	Model       string `toml:"model"`
	VisionModel string `toml:"vl_model"`
	BaseModel   string `toml:"base_model"` // 微调的底座模型
}

type GeminiConfig struct {
	Token string `toml:"token"`
	Model string `toml:"model"`
}

func (c *AIConfig) FromENV() {
	c.Driver = os.Getenv("CURIO_AI_DRIVER")
	c.OpenAI.Token = os.Getenv("CURIO_OPENAI_TOKEN")
	c.OpenAI.Endpoint = os.Getenv("CURIO_OPENAI_ENDPOINT")
	c.OpenAI.Model = os.Getenv("CURIO_OPENAI_MODEL")
	c.OpenAI.VisionModel = os.Getenv("CURIO_OPENAI_VL_MODEL")
	c.OpenAI.BaseModel = os.Getenv("CURIO_OPENAI_BASE_MODEL")
	c.Gemini.Token = os.Getenv("CURIO_GEMINI_TOKEN")
	c.Gemini.Model = os.Getenv("CURIO_GEMINI_MODEL")
}

// AI 聚合模型驱动，查询层只面向 AIDriver
type AI struct {
	driver  ai.Driver
	trainer ai.Trainer
}

func SetupAI(cfg AIConfig) (*AI, error) {
	switch cfg.Driver {
	case "", "openai":
		d := openai.New(cfg.OpenAI.Token, cfg.OpenAI.Endpoint, openai.ModelName{
			ChatModel:   cfg.OpenAI.Model,
			VisionModel: cfg.OpenAI.VisionModel,
			BaseModel:   cfg.OpenAI.BaseModel,
		})
		return &AI{driver: d, trainer: d}, nil
	case "gemini":
		d, err := gemini.New(context.Background(), cfg.Gemini.Token, cfg.Gemini.Model)
		if err != nil {
			return nil, errors.New("srv.SetupAI", "failed to setup gemini driver", err)
		}
		// gemini 不提供微调接口
		return &AI{driver: d}, nil
	default:
		return nil, errors.New("srv.SetupAI", "unknown ai driver: "+cfg.Driver, nil)
	}
}

func (s *AI) Predict(ctx context.Context, task types.AITask, text string, params *ai.PredictParams) (*ai.PredictResult, error) {
	return s.driver.Predict(ctx, task, text, params)
}

func (s *AI) DescribeImage(ctx context.Context, imageURL string) (string, error) {
	return s.driver.DescribeImage(ctx, imageURL)
}

func (s *AI) Name() string {
	return s.driver.Name()
}

func (s *AI) Trainer() ai.Trainer {
	return s.trainer
}
