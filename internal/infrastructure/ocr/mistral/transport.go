package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// HTTPStatusError preserves the provider status for error-kind mapping.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "mistral status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("mistral %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("mistral %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (c *Client) uploadFile(ctx context.Context, doc []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("purpose", "ocr"); err != nil {
		return "", fmt.Errorf("write purpose field: %w", err)
	}
	part, err := writer.CreateFormFile("file", "document.pdf")
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(doc); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", &body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &resp, "file upload"); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &decodeError{operation: "file upload", reason: "empty file id"}
	}
	return resp.ID, nil
}

func (c *Client) signedURL(ctx context.Context, fileID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/files/"+fileID+"/url", nil)
	if err != nil {
		return "", fmt.Errorf("create signed url request: %w", err)
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &resp, "signed url"); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", &decodeError{operation: "signed url", reason: "empty url"}
	}
	return resp.URL, nil
}

// deleteFile is best-effort cleanup; a failure is logged, not propagated.
func (c *Client) deleteFile(fileID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/files/"+fileID, nil)
	if err != nil {
		return
	}
	if err := c.do(req, nil, "file delete"); err != nil {
		slog.Warn("mistral_file_cleanup_failed", "file_id", fileID, "error", err)
	}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, operation)
}

func (c *Client) do(req *http.Request, out any, operation string) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mistral %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{operation: operation, reason: err.Error()}
	}
	return nil
}

// decodeError marks responses that came back 2xx but unusable.
type decodeError struct {
	operation string
	reason    string
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("mistral %s: undecodable response: %s", e.operation, e.reason)
}
