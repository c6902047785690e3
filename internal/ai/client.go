package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"mediaflow/internal/config"
	"mediaflow/internal/services"
)

const (
	defaultTimeout = 2 * time.Minute
	defaultModel   = "gpt-4o-mini"
)

// Describer asks a chat model about images.
type Describer struct {
	client     openai.Client
	model      string
	configured bool
}

// Option customizes a Describer.
type Option func(*[]option.RequestOption)

// WithHTTPClient overrides the HTTP client used for completions.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *[]option.RequestOption) {
		if client != nil {
			*opts = append(*opts, option.WithHTTPClient(client))
		}
	}
}

// NewDescriber builds a Describer from cfg. Retries are left to the activity
// invoker, so the SDK's own retry loop is disabled.
func NewDescriber(cfg config.AI, opts ...Option) *Describer {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	requestOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(base))
	}
	for _, opt := range opts {
		opt(&requestOpts)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &Describer{
		client:     openai.NewClient(requestOpts...),
		model:      model,
		configured: strings.TrimSpace(cfg.APIKey) != "",
	}
}

// Configured reports whether an API key is set.
func (d *Describer) Configured() bool {
	return d != nil && d.configured
}

// Model returns the configured model name.
func (d *Describer) Model() string {
	return d.model
}

// complete sends prompt with one image and returns the raw JSON text.
func (d *Describer) complete(ctx context.Context, operation, prompt, image string) (string, error) {
	if !d.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "ai", operation, "api key not configured (set ai.api_key or OPENAI_API_KEY)", nil)
	}
	imageURL, err := ImageURL(image)
	if err != nil {
		return "", err
	}
	params := openai.ChatCompletionNewParams{
		Model: d.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You describe media for a search index. Respond with a single JSON object only."),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageURL}),
			}),
		},
		Temperature: openai.Float(0.2),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(operation, err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrTransient, "ai", operation, "empty choices", nil)
	}
	choice := resp.Choices[0]
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		return "", services.Wrap(services.ErrTransient, "ai", operation, "model refused: "+refusal, nil)
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", services.Wrap(services.ErrTransient, "ai", operation, "empty content (finish_reason="+string(choice.FinishReason)+")", nil)
	}
	return content, nil
}

// classify maps SDK failures onto the error taxonomy: throttling, timeouts
// and server errors are transient; auth failures are configuration errors.
func classify(operation string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "ai", operation, "endpoint rejected credentials", err)
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "ai", operation, "", err)
		default:
			return services.Wrap(services.ErrExternalTool, "ai", operation, "", err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(services.ErrTransient, "ai", operation, "request failed", err)
}

// ImageURL returns image unchanged when it is an http(s) URL and otherwise
// inlines the local file as a base64 data URL.
func ImageURL(image string) (string, error) {
	lower := strings.ToLower(image)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return image, nil
	}
	data, err := os.ReadFile(image)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "ai", "read image", image, err)
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(image)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Ping verifies the endpoint accepts the key and knows the model.
func (d *Describer) Ping(ctx context.Context) error {
	if !d.Configured() {
		return services.Wrap(services.ErrConfiguration, "ai", "ping", "api key not configured", nil)
	}
	if _, err := d.client.Models.Get(ctx, d.model); err != nil {
		return classify("ping", err)
	}
	return nil
}
