// Package llm provides an OpenAI-compatible chat-completions client with
// streaming and one-shot modes.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

// Client calls the chat completions endpoint of an OpenAI-compatible API.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
	streaming   *http.Client
}

// Config configures the chat client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// NewClient creates a chat client. The API key is read from the
// environment. Streaming requests carry no client timeout; they are
// bounded by the request context instead.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      key,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: t},
		streaming:   &http.Client{},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

// Complete returns the full completion for prompt in one call.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.send(ctx, c.client, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %v: %w", err, domain.ErrDependency)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no completion choices: %w", domain.ErrDependency)
	}
	return out.Choices[0].Message.Content, nil
}

// Stream produces the completion token by token. The returned channel is
// closed after a single terminal token (Done or Err). Cancelling ctx
// abandons the in-flight call.
func (c *Client) Stream(ctx context.Context, prompt string) (<-chan domain.StreamToken, error) {
	resp, err := c.send(ctx, c.streaming, prompt, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan domain.StreamToken)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				emit(ctx, ch, domain.StreamToken{Done: true})
				return
			}
			var event struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason *string `json:"finish_reason"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				emit(ctx, ch, domain.StreamToken{Err: fmt.Errorf("decode stream event: %v: %w", err, domain.ErrGeneration)})
				return
			}
			if len(event.Choices) == 0 {
				continue
			}
			if content := event.Choices[0].Delta.Content; content != "" {
				if !emit(ctx, ch, domain.StreamToken{Content: content}) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			emit(ctx, ch, domain.StreamToken{Err: fmt.Errorf("read stream: %v: %w", err, domain.ErrGeneration)})
			return
		}
		// EOF without a [DONE] marker means the provider cut the stream.
		emit(ctx, ch, domain.StreamToken{Err: fmt.Errorf("stream ended without completion marker: %w", domain.ErrGeneration)})
	}()
	return ch, nil
}

func (c *Client) send(ctx context.Context, hc *http.Client, prompt string, stream bool) (*http.Response, error) {
	body := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		Stream:      stream,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %v: %w", err, domain.ErrDependency)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("chat completions failed: %s: %s: %w", resp.Status, bytes.TrimSpace(msg), domain.ErrDependency)
	}
	return resp, nil
}

// emit delivers a token unless the consumer is gone.
func emit(ctx context.Context, ch chan<- domain.StreamToken, tok domain.StreamToken) bool {
	select {
	case ch <- tok:
		return true
	case <-ctx.Done():
		return false
	}
}
