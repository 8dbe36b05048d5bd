package banter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultModel   = openai.GPT3Dot5Turbo
	DefaultTimeout = 10 * time.Second

	maxTokens   = 64
	temperature = 0.9
)

var tracer = otel.Tracer("banter")

// Options configures the OpenAI-backed generator.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// RatePerMinute caps outgoing requests; zero disables the limiter.
	RatePerMinute int
}

// OpenAI generates banter through the chat completions API.
type OpenAI struct {
	client  *openai.Client
	apiKey  string
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewOpenAI builds a client. A missing API key is reported on each call.
func NewOpenAI(opts Options) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	o := &OpenAI{
		client:  openai.NewClientWithConfig(cfg),
		apiKey:  opts.APIKey,
		model:   model,
		timeout: timeout,
	}
	if opts.RatePerMinute > 0 {
		o.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute)
	}
	return o
}

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "banter.Generate", trace.WithAttributes(
		attribute.String("banter.model", o.model),
		attribute.String("move.player", string(req.Player)),
		attribute.Int("move.index", req.Index),
	))
	defer span.End()

	line, err := o.generate(ctx, req)
	if err != nil {
		be := classify(err)
		span.RecordError(be)
		span.SetStatus(codes.Error, be.Kind.String())
		slog.WarnContext(ctx, "banter request failed", "banter.kind", be.Kind.String(), "http.status", be.Status, "error", err)
		return "", be
	}
	return line, nil
}

func (o *OpenAI) generate(ctx context.Context, req Request) (string, error) {
	if o.apiKey == "" {
		return "", &Error{Kind: KindMissingCredential}
	}
	if o.limiter != nil && !o.limiter.Allow() {
		return "", &Error{Kind: KindRateLimited, Err: errors.New("local request budget exhausted")}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: UserMessage(req)},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &Error{Kind: KindTimeout, Err: err}
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		slog.WarnContext(ctx, "OpenAI returned no choices")
		return FallbackLine, nil
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return FallbackLine, nil
	}
	return content, nil
}
