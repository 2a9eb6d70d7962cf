package gemini

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/curio-ai/curio/pkg/ai"
	"github.com/curio-ai/curio/pkg/types"
)

const (
	NAME = "gemini"

	defaultModel = "gemini-1.5-flash"
)

// Driver 备用推理驱动，不承担训练
type Driver struct {
	client     *genai.Client
	model      string
	httpClient *http.Client
}

func New(ctx context.Context, apiKey, model string) (*Driver, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = defaultModel
	}
	return &Driver{
		client:     client,
		model:      model,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (s *Driver) Name() string {
	return NAME
}

var taskInstructions = map[types.AITask]string{
	types.AI_TASK_TEXT_GENERATION: "You are a helpful writing assistant. Respond to the request directly.",
	types.AI_TASK_QA:              "You are a precise question answering assistant. Answer concisely and factually.",
	types.AI_TASK_CLASSIFICATION:  "You are a text classifier. Reply with the single most fitting label only.",
	types.AI_TASK_SENTIMENT:       ai.PROMPT_CLASSIFY_SENTIMENT_EN,
	types.AI_TASK_NER:             "Extract the named entities from the text. Reply with one entity per line as `type: value`.",
}

func (s *Driver) Predict(ctx context.Context, task types.AITask, text string, params *ai.PredictParams) (*ai.PredictResult, error) {
	instruction, ok := taskInstructions[task]
	if !ok {
		return nil, fmt.Errorf("gemini driver: unsupported task %q", task)
	}

	model := s.client.GenerativeModel(s.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	if params != nil {
		if params.Temperature > 0 {
			model.SetTemperature(params.Temperature)
		}
		if params.MaxTokens > 0 {
			model.SetMaxOutputTokens(int32(params.MaxTokens))
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ai.ErrUnavailable, err.Error())
	}

	output := flatten(resp)
	if output == "" {
		return nil, fmt.Errorf("gemini driver: empty candidates")
	}

	return &ai.PredictResult{Output: output, Confidence: 0.8}, nil
}

func (s *Driver) DescribeImage(ctx context.Context, imageURL string) (string, error) {
	data, format, err := s.fetchImage(ctx, imageURL)
	if err != nil {
		return "", err
	}

	model := s.client.GenerativeModel(s.model)
	resp, err := model.GenerateContent(ctx,
		genai.Text(ai.PROMPT_DESCRIBE_IMAGE_EN),
		genai.ImageData(format, data),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ai.ErrUnavailable, err.Error())
	}

	output := flatten(resp)
	if output == "" {
		return "", fmt.Errorf("gemini driver: empty candidates")
	}
	return output, nil
}

func (s *Driver) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", err
	}

	format := "jpeg"
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		format = strings.TrimPrefix(ct, "image/")
	}
	return data, format, nil
}

func flatten(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}
