package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	maxSummaryBody  = 6000
	maxClassifyBody = 3000
)

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	client      *http.Client
}

// NewOpenAIClient creates a summarizer client. baseURL may be empty to
// use the default endpoint; timeout bounds every request.
func NewOpenAIClient(
	apiKey, model, baseURL string,
	temperature float64,
	timeout time.Duration,
) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClient{
		apiKey:      apiKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// Summarize asks the model for a single action-oriented sentence.
func (c *OpenAIClient) Summarize(
	ctx context.Context,
	subject, body string,
) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize this email into a single concise action-oriented sentence "+
			"(<= %d characters). No preamble, no quotes, just the sentence.\n\n"+
			"Subject: %s\n\n%s",
		MaxSummaryLen, subject, truncate(body, maxSummaryBody),
	)

	out, err := c.chatCompletion(ctx, prompt)
	if err != nil {
		return "", err
	}

	out = trimEdgePunct(strings.TrimSpace(out))
	out = clamp(out, MaxSummaryLen)
	if out == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUnavailable)
	}

	return out, nil
}

// Classify asks the model for a one-word triage label and normalizes
// the answer.
func (c *OpenAIClient) Classify(
	ctx context.Context,
	subject, body string,
) (string, error) {
	prompt := fmt.Sprintf(
		"Classify this email for triage with ONE WORD only:\n"+
			"actionable = asks me to do something or likely needs a response\n"+
			"fyi        = informational only, no action needed\n"+
			"marketing  = promo/sales/newsletter/offer\n\n"+
			"Subject: %s\n\n%s\n\n"+
			"Answer with exactly one label: actionable or fyi or marketing.",
		subject, truncate(body, maxClassifyBody),
	)

	out, err := c.chatCompletion(ctx, prompt)
	if err != nil {
		return "", err
	}

	return NormalizeLabel(out), nil
}

// Ping verifies the endpoint and credentials with a trivial request.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	_, err := c.chatCompletion(ctx, "Reply with the single word: ok")
	return err
}

// chatCompletion performs one chat-completions round trip and returns
// the first choice's content.
func (c *OpenAIClient) chatCompletion(
	ctx context.Context,
	prompt string,
) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := apiErrorMessage(respBody)
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %s", ErrQuotaExceeded, msg)
		}
		return "", fmt.Errorf("%w: API error (%d): %s", ErrUnavailable, resp.StatusCode, msg)
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrUnavailable)
	}

	return result.Choices[0].Message.Content, nil
}

// apiErrorMessage extracts the error message from an API error body,
// falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var apiErr chatErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return string(body)
}

// truncate limits s to n characters at a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// trimEdgePunct strips wrapping quotes and markdown the model tends to
// add around single-line answers.
func trimEdgePunct(s string) string {
	return strings.Trim(s, "\"'`*_ \t\r\n")
}

// --- wire types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
