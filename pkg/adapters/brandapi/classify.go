package brandapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FrenchMajesty/brand-identifier/internal/retry"
	"github.com/FrenchMajesty/brand-identifier/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Classify sends text to the process-text endpoint and returns the predicted label
func (c *Client) Classify(ctx context.Context, text string) (*types.ClassificationResult, error) {
	start := time.Now()

	opts := retry.Options{
		Config:       c.RetryConfig,
		ErrorChecker: isRetryableError,
		Logger:       c.logger.Sugar().Warnf,
		APIName:      "brand",
	}

	resp, err := retry.Execute(ctx, opts, func(ctx context.Context, attempt int) retry.Attempt[*ProcessTextResponse] {
		return c.processText(ctx, ProcessTextRequest{Text: text})
	})
	if err != nil {
		return nil, err
	}

	result := &types.ClassificationResult{
		Request: resp.TextRequest,
		Label:   *resp.TextResult,
		Latency: time.Since(start),
	}
	c.logger.Debug("classified description",
		zap.String("label", result.Label),
		zap.Duration("latency", result.Latency))

	return result, nil
}

// isRetryableError retries transport failures and server errors only.
// A canceled or expired context is never retried.
func isRetryableError(err error, statusCode int) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return err != nil
}

// processText performs a single request/response round trip
func (c *Client) processText(ctx context.Context, req ProcessTextRequest) retry.Attempt[*ProcessTextResponse] {
	body, err := json.Marshal(req)
	if err != nil {
		return retry.Attempt[*ProcessTextResponse]{Err: fmt.Errorf("failed to marshal process-text request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewBuffer(body))
	if err != nil {
		return retry.Attempt[*ProcessTextResponse]{Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return retry.Attempt[*ProcessTextResponse]{Err: fmt.Errorf("failed to send process-text request: %w", err)}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Attempt[*ProcessTextResponse]{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read process-text response body: %w", err),
		}
	}

	if c.DumpRequests {
		c.saveResponseToFile(req, bodyBytes, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return retry.Attempt[*ProcessTextResponse]{
			StatusCode: resp.StatusCode,
			Err: &APIError{
				Message:    withExcerpt(fmt.Sprintf("brand API error %d", resp.StatusCode), bodyBytes),
				StatusCode: resp.StatusCode,
				RawBody:    rawJSON(bodyBytes),
			},
		}
	}

	var parsed ProcessTextResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return retry.Attempt[*ProcessTextResponse]{
			StatusCode: resp.StatusCode,
			Err: &APIError{
				Message:    withExcerpt(fmt.Sprintf("failed to parse brand API response: %v", err), bodyBytes),
				StatusCode: resp.StatusCode,
				RawBody:    rawJSON(bodyBytes),
			},
		}
	}

	if parsed.TextResult == nil {
		return retry.Attempt[*ProcessTextResponse]{
			StatusCode: resp.StatusCode,
			Err: &APIError{
				Message:    "brand API response is missing text_result",
				StatusCode: resp.StatusCode,
				RawBody:    rawJSON(bodyBytes),
			},
		}
	}

	return retry.Attempt[*ProcessTextResponse]{Value: &parsed, StatusCode: resp.StatusCode}
}

// rawJSON keeps the body only when it is valid JSON so the error itself stays marshalable
func rawJSON(body []byte) json.RawMessage {
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	return json.RawMessage(body)
}

// maxExcerpt bounds how much of a non-JSON body is quoted in an error message
const maxExcerpt = 200

// withExcerpt appends the start of a body that rawJSON cannot keep,
// such as the HTML page a proxy returns while the service is waking up
func withExcerpt(message string, body []byte) string {
	if rawJSON(body) != nil {
		return message
	}
	text := strings.Join(strings.Fields(string(body)), " ")
	if text == "" {
		return message
	}
	if r := []rune(text); len(r) > maxExcerpt {
		text = string(r[:maxExcerpt]) + "..."
	}
	return fmt.Sprintf("%s: %s", message, text)
}

// saveResponseToFile saves the request/response to a file for debugging purposes
func (c *Client) saveResponseToFile(req ProcessTextRequest, bodyBytes []byte, statusCode int) {
	timestamp := time.Now().Format("20060102_150405")
	random := uuid.New().String()[:8]
	filename := fmt.Sprintf("brand_req_%s_%s.json", timestamp, random)

	if err := os.MkdirAll(c.DumpDir, 0755); err != nil {
		c.logger.Warn("failed to create dump directory", zap.String("dir", c.DumpDir), zap.Error(err))
		return
	}

	var responseBody any = string(bodyBytes)
	if json.Valid(bodyBytes) {
		responseBody = json.RawMessage(bodyBytes)
	}

	responseData := map[string]any{
		"request":  req,
		"response": responseBody,
		"status":   statusCode,
	}

	jsonData, err := json.MarshalIndent(responseData, "", "  ")
	if err != nil {
		c.logger.Warn("failed to marshal dump", zap.Error(err))
		return
	}

	path := filepath.Join(c.DumpDir, filename)
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		c.logger.Warn("failed to write dump", zap.String("path", path), zap.Error(err))
	}
}
