// Package vertex is a Gemini-on-Vertex-AI extraction backend.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/joseph-ayodele/referral-intake/internal/llm"
)

type Config struct {
	ProjectID   string
	Location    string
	Model       string // default gemini-1.5-pro
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	base   *genai.Client
	logger *slog.Logger
}

var errEmptyResponse = errors.New("vertex returned no text")

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("vertex: projectID and location cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{cfg: cfg, base: base, logger: logger}, nil
}

func (c *Client) Name() string { return "vertex:" + c.cfg.Model }

// Complete implements llm.Completer. The system prompt becomes the model's
// system instruction and JSON output is requested.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	model := c.base.GenerativeModel(c.cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(c.cfg.Temperature),
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		c.logger.Error("llm.vertex.generate_failed", "model", c.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errEmptyResponse
	}
	c.logger.Info("llm.vertex.response", "model", c.cfg.Model, "bytes", len(text),
		"elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}

func (c *Client) Close() error {
	return c.base.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

var _ llm.Completer = (*Client)(nil)
