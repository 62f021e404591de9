// Package agenda 调用 Gemini generateContent 接口，为讨论生成分步骤的议程。
package agenda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// 调用方可通过 errors.Is 区分的三类失败
var (
	// ErrServiceError 外部服务不可达、返回非 2xx 状态或超时
	ErrServiceError = errors.New("agenda: generation service error")
	// ErrRejected 服务拒绝了请求（安全策略拦截、没有候选结果、缺少必需字段）
	ErrRejected = errors.New("agenda: generation rejected")
	// ErrParse 返回的结构化内容无法解析
	ErrParse = errors.New("agenda: malformed structured output")
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 30 * time.Second
)

// Step 是议程中的一个步骤
type Step struct {
	StepName       string `json:"step_name"`
	PromptQuestion string `json:"prompt_question"`
	AllocatedTime  int    `json:"allocated_time"` // 分钟
}

// Config 配置 Gemini 客户端
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client 封装 genai 客户端。未配置 API Key 时 genai 为 nil，Generate 直接报服务错误。
type Client struct {
	genai   *genai.Client
	model   string
	timeout time.Duration
}

// NewClient 创建客户端，空字段使用默认值
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{model: cfg.Model, timeout: cfg.Timeout}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if cfg.APIKey == "" {
		logrus.Warn("Gemini API key is empty, agenda generation will fail")
		return c, nil
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
			Timeout: &c.timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.genai = gc
	return c, nil
}

// Generate 请求为 topic 生成总时长为 totalDuration 分钟的议程。
// 各步骤时间之和由模型负责，这里不做校验也不修正。
func (c *Client) Generate(ctx context.Context, topic string, totalDuration int) ([]Step, error) {
	logCtx := logrus.WithFields(logrus.Fields{"operation": "agenda.Generate", "model": c.model})
	if c.genai == nil {
		return nil, fmt.Errorf("%w: api key not configured", ErrServiceError)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(buildPrompt(topic, totalDuration), genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   stepSchema,
		})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			logCtx.WithField("status", apiErr.Code).Warn("Agenda service returned an error status")
			return nil, fmt.Errorf("%w: status %d: %s", ErrServiceError, apiErr.Code, apiErr.Message)
		}
		logCtx.WithError(err).Warn("Agenda request failed")
		return nil, fmt.Errorf("%w: %v", ErrServiceError, err)
	}

	steps, err := parseResponse(resp)
	if err != nil {
		logCtx.WithError(err).Warn("Agenda response rejected")
		return nil, err
	}
	logCtx.WithFields(logrus.Fields{"steps": len(steps), "latency": time.Since(start)}).Info("Agenda generated")
	return steps, nil
}

// parseResponse 从 generateContent 响应中取出议程步骤
func parseResponse(resp *genai.GenerateContentResponse) ([]Step, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", ErrRejected, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates returned", ErrRejected)
	}

	switch reason := resp.Candidates[0].FinishReason; reason {
	case "", genai.FinishReasonUnspecified, genai.FinishReasonStop, genai.FinishReasonMaxTokens:
		// MAX_TOKENS 时 JSON 多半被截断，交给下面的解析报告
	default:
		return nil, fmt.Errorf("%w: finish reason %s", ErrRejected, reason)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: candidate has no text", ErrRejected)
	}

	var steps []Step
	if err := json.Unmarshal([]byte(text), &steps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: empty agenda", ErrRejected)
	}
	for i, s := range steps {
		if strings.TrimSpace(s.StepName) == "" || strings.TrimSpace(s.PromptQuestion) == "" || s.AllocatedTime <= 0 {
			return nil, fmt.Errorf("%w: step %d is missing required fields", ErrRejected, i)
		}
	}
	return steps, nil
}
