package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"latex-chunker/internal/config"
	"latex-chunker/internal/document"
	"latex-chunker/internal/logger"
	"latex-chunker/internal/types"
)

const (
	// MaxRetries is the maximum number of retry attempts for API errors
	MaxRetries = 3
	// BaseRetryDelay is the base delay between retries
	BaseRetryDelay = 2 * time.Second
)

// ChatCompletionRequest is the request body for the chat completions API.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the response body from the chat completions API.
type ChatCompletionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// OpenAIClient translates chunks through an OpenAI-compatible chat
// completions endpoint.
type OpenAIClient struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

// NewOpenAIClient builds a client from engine configuration.
func NewOpenAIClient(cfg *config.Config) *OpenAIClient {
	return &OpenAIClient{
		apiURL: normalizeAPIURL(cfg.BaseURL),
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// SetAPIURL overrides the endpoint, useful for testing with mock servers.
func (c *OpenAIClient) SetAPIURL(url string) {
	c.apiURL = url
}

// normalizeAPIURL ensures the API URL ends with /chat/completions.
func normalizeAPIURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	if strings.HasSuffix(url, "/chat/completions") {
		return url
	}
	return url + "/chat/completions"
}

const systemPromptFormat = `You are a professional academic translator. Translate the user's text into %s.

Rules:
- Tokens of the form [[WORD_123]] are protected content. Copy each one into the output exactly as written, in the position where its content belongs. Never translate, alter, drop, or invent such tokens.
- Preserve all LaTeX commands and braces exactly.
- Output only the translated text, with no explanations and no code fences.`

// TranslateChunk sends one chunk for translation, retrying transient
// failures with linear backoff. The returned text has code-fence artifacts
// stripped but is otherwise the model's output; structural validation is
// the dispatcher's job.
func (c *OpenAIClient) TranslateChunk(ctx context.Context, chunk document.Chunk, targetLanguage string) (string, error) {
	if c.apiKey == "" {
		return "", types.NewAppError(types.ErrConfig, "API key is not configured", nil)
	}

	var lastErr error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		translated, err := c.doTranslate(ctx, chunk, targetLanguage)
		if err == nil {
			return translated, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			logger.Error("non-retryable translation error", err, logger.String("chunkID", chunk.ID))
			return "", err
		}
		if attempt < MaxRetries {
			delay := BaseRetryDelay * time.Duration(attempt)
			logger.Debug("retrying after delay",
				logger.String("chunkID", chunk.ID),
				logger.String("delay", delay.String()))
			select {
			case <-ctx.Done():
				return "", types.NewAppError(types.ErrTranslation, "translation cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return "", types.NewAppError(types.ErrTranslation,
		fmt.Sprintf("translation failed after %d attempts", MaxRetries), lastErr)
}

func (c *OpenAIClient) doTranslate(ctx context.Context, chunk document.Chunk, targetLanguage string) (string, error) {
	reqBody := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: fmt.Sprintf(systemPromptFormat, targetLanguage)},
			{Role: "user", Content: chunk.Content},
		},
		Temperature: 0.3,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewAppError(types.ErrInternal, "failed to marshal request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", types.NewAppError(types.ErrInternal, "failed to create HTTP request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrNetwork, "API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewAppError(types.ErrNetwork, "failed to read API response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", apiHTTPError(resp.StatusCode, body)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", types.NewAppError(types.ErrAPICall, "failed to parse API response", err)
	}
	if chatResp.Error != nil {
		return "", types.NewAppErrorWithDetails(types.ErrAPICall, "API returned error", chatResp.Error.Message, nil)
	}
	if len(chatResp.Choices) == 0 {
		return "", types.NewAppError(types.ErrAPICall, "API returned no choices", nil)
	}

	if chatResp.Choices[0].FinishReason == "length" {
		logger.Warn("translation output truncated by token limit",
			logger.String("chunkID", chunk.ID),
			logger.Int("inputLength", len(chunk.Content)))
	}

	return stripCodeFences(chatResp.Choices[0].Message.Content), nil
}

// stripCodeFences removes a surrounding markdown code fence that some
// models wrap output in despite instructions.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	trimmed = strings.TrimPrefix(trimmed, "```latex")
	trimmed = strings.TrimPrefix(trimmed, "```tex")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// apiHTTPError maps an HTTP error status to an AppError with the body's
// error message as detail when one can be extracted.
func apiHTTPError(statusCode int, body []byte) error {
	detail := extractErrorMessage(body)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "API authentication failed", detail, nil)
	case http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(types.ErrAPIRateLimit, "API rate limit exceeded", detail, nil)
	case http.StatusBadRequest:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "API rejected the request", detail, nil)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return types.NewAppErrorWithDetails(types.ErrAPICall,
			fmt.Sprintf("API server error (status %d)", statusCode), detail, nil)
	default:
		return types.NewAppErrorWithDetails(types.ErrAPICall,
			fmt.Sprintf("API returned status %d", statusCode), detail, nil)
	}
}

func extractErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error.Message
}

// isRetryableError reports whether a translation error is transient:
// network failures, rate limits, and server-side API errors.
func isRetryableError(err error) bool {
	appErr, ok := err.(*types.AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case types.ErrNetwork, types.ErrAPIRateLimit:
		return true
	case types.ErrAPICall:
		return strings.Contains(appErr.Message, "server error")
	default:
		return false
	}
}
