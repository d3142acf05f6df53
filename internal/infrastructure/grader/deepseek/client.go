package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
	"github.com/akulikov/autograder/internal/infrastructure/resilience"
)

// Client grades extracted text through the DeepSeek chat-completions API.
// The model is instructed to answer with a JSON grade wrapped in <response>
// tags; parsing tolerates models that drop the tags but still emit the JSON
// object.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Executor *resilience.Executor
	Timeout  time.Duration
}

func New(baseURL, apiKey, model string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.Executor,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) GradeText(ctx context.Context, req ports.GradeRequest) (domain.GradeRecord, error) {
	var content string
	call := func(ctx context.Context) error {
		var err error
		content, err = c.complete(ctx, req)
		return err
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "grade.request", call, classifyTransportError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.GradeRecord{}, mapTransportError(err)
	}

	record, err := parseGradeResponse(content)
	if err != nil {
		return domain.GradeRecord{}, err
	}
	return record, nil
}

func (c *Client) complete(ctx context.Context, greq ports.GradeRequest) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(greq)},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal grade request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create grade request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepseek grade request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", domain.WrapError(domain.ErrInvalidGrade, "decode completion", err)
	}
	if len(parsed.Choices) == 0 {
		return "", domain.WrapErrorf(domain.ErrInvalidGrade, "decode completion", "no choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// HTTPStatusError preserves the grading service status for classification.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("deepseek status: %s", e.Status)
	}
	return fmt.Sprintf("deepseek status: %s: %s", e.Status, strings.TrimSpace(e.Body))
}

func classifyTransportError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500 {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// mapTransportError keeps ErrInvalidGrade as-is (the Grader re-requests
// those) and folds everything else into ErrGraderUnreachable.
func mapTransportError(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrInvalidGrade) {
		return err
	}
	return domain.WrapError(domain.ErrGraderUnreachable, "grade request", err)
}
