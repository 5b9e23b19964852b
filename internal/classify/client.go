package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/your-org/yaic/internal/observability"
)

const (
	defaultModel      = "qwen-vl-plus"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = time.Second

	// Response bodies logged at debug level are cut off past this size.
	maxLoggedBody = 2000
)

// Options configures a classification Client.
type Options struct {
	APIKey   string
	Endpoint string
	Model    string
	// Language is the ISO 639 code the prompt asks free-text answers in.
	Language   string
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to an OpenAI-compatible vision API. It holds no per-call
// state and is safe for concurrent use.
type Client struct {
	apiKey      string
	endpoint    string
	model       string
	language    string
	maxRetries  int
	baseBackoff time.Duration
	httpClient  *http.Client
}

// New creates a classification client. Zero option fields fall back to
// defaults (qwen-vl-plus, 30s timeout, 3 attempts).
func New(opts Options) *Client {
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		apiKey:      opts.APIKey,
		endpoint:    opts.Endpoint,
		model:       model,
		language:    opts.Language,
		maxRetries:  maxRetries,
		baseBackoff: defaultBackoff,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Chat-completion wire types. The response content arrives either as a
// plain string or as a list of typed parts, so it stays raw until decoded.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ClassifyImage sends the image through the two-phase classification
// protocol: one primary call, plus an analytics call when the label is
// "person" but the answer carried no person detail.
func (c *Client) ClassifyImage(ctx context.Context, image []byte) (ClassificationResult, error) {
	if len(image) == 0 {
		return ClassificationResult{}, fmt.Errorf("image bytes are empty: %w", ErrInvalidInput)
	}

	data, err := c.postImage(ctx, image, c.classifyPrompt(), "classify")
	if err != nil {
		return ClassificationResult{}, err
	}
	result := parseResult(data, nil)

	if result.Label == "person" && !hasPersonDetails(data) {
		detailData, err := c.postImage(ctx, image, c.analyticsPrompt(), "analytics")
		if err != nil {
			return ClassificationResult{}, err
		}
		result = parseResult(detailData, &result)
	}

	return result, nil
}

// postImage performs one logical call: build the envelope, send with
// bounded retries on transport failure, extract the answer's JSON object.
func (c *Client) postImage(ctx context.Context, image []byte, prompt, stage string) (map[string]any, error) {
	start := time.Now()
	defer func() {
		observability.ClassifierDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}()

	b64 := base64.StdEncoding.EncodeToString(image)
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: "data:" + sniffImageMIME(image) + ";base64," + b64}},
				{Type: "text", Text: prompt},
			},
		}},
	}

	backoff := c.baseBackoff
	for attempt := 1; ; attempt++ {
		body, err := c.attempt(ctx, req)
		if err == nil {
			return extractContentJSON(body)
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			slog.Info("classifier API rejected request", "status", statusErr.Code)
			return nil, err
		}

		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("classifier request failed after %d attempts: %w", attempt, err)
		}
		slog.Warn("classifier request failed, retrying",
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err,
		)
		time.Sleep(backoff)
		backoff *= 2
	}
}

// attempt sends one request, first asking for the constrained JSON response
// mode. A 400 means the server does not support that mode; the request is
// reissued once without it as capability negotiation, not counted as a
// retry.
func (c *Client) attempt(ctx context.Context, req chatRequest) ([]byte, error) {
	withFormat := req
	withFormat.ResponseFormat = &responseFormat{Type: "json_object"}

	status, body, err := c.send(ctx, withFormat)
	if err != nil {
		return nil, err
	}

	if status == http.StatusBadRequest {
		slog.Info("classifier API rejected response_format, retrying without it")
		status, body, err = c.send(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status >= 300 {
		return nil, &StatusError{Code: status}
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, req chatRequest) (int, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal classifier request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create classifier request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logRequest(ctx, req)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read classifier response: %w", err)
	}

	c.logResponse(ctx, resp.StatusCode, body)
	return resp.StatusCode, body, nil
}

// extractContentJSON digs the answer text out of the chat envelope and
// parses the first balanced-looking JSON object from it, tolerating code
// fences and surrounding prose.
func extractContentJSON(body []byte) (map[string]any, error) {
	var envelope chatResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode classifier envelope: %w", ErrMalformedResponse)
	}
	if len(envelope.Choices) == 0 {
		return nil, fmt.Errorf("classifier answer has no choices: %w", ErrMalformedResponse)
	}

	text, err := contentText(envelope.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	text = extractJSONObject(stripJSONFence(text))

	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("classifier answer is not a JSON object: %w", ErrMalformedResponse)
	}
	return data, nil
}

// contentText accepts the message content as either a bare string or a
// list of typed parts, taking the first part's text.
func contentText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("classifier answer has no content: %w", ErrMalformedResponse)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil && len(parts) > 0 && parts[0].Text != nil {
		return *parts[0].Text, nil
	}
	return "", fmt.Errorf("classifier answer content has unexpected shape: %w", ErrMalformedResponse)
}

// stripJSONFence removes one surrounding markdown code fence, if present.
func stripJSONFence(text string) string {
	stripped := strings.TrimSpace(text)
	if !strings.HasPrefix(stripped, "```") {
		return stripped
	}
	lines := strings.Split(stripped, "\n")
	if len(lines) <= 2 {
		return stripped
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

// extractJSONObject takes the span from the first '{' to the last '}' so
// leading or trailing prose around the object does not break parsing.
func extractJSONObject(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return trimmed
	}
	return trimmed[start : end+1]
}

func (c *Client) classifyPrompt() string {
	return "Return a JSON object with fields: label, confidence, and person analytics " +
		"(count, description, details[age_group, gender, appearance, role], " +
		"age_summary, gender_summary, role_summary). Return ONLY JSON, no markdown, " +
		"no code fences, no extra text. Language: " + c.language + "."
}

func (c *Client) analyticsPrompt() string {
	return "Return a JSON object with label, confidence, and person analytics fields " +
		"including count, description, details (age_group, gender, appearance, role), " +
		"age_summary, gender_summary, role_summary. Use ISO 639 language '" +
		c.language + "' for free-text fields."
}

// logRequest emits the outgoing request at debug level only, with the
// bearer token masked and the image payload replaced by a placeholder so
// credentials and image data never reach the logs at normal verbosity.
func (c *Client) logRequest(ctx context.Context, req chatRequest) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}
	payload, err := json.Marshal(sanitizeRequest(req))
	if err != nil {
		return
	}
	slog.Debug("classifier request",
		"endpoint", c.endpoint,
		"authorization", "Bearer "+maskToken(c.apiKey),
		"payload", string(payload),
	)
}

func (c *Client) logResponse(ctx context.Context, status int, body []byte) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}
	text := string(body)
	if len(text) > maxLoggedBody {
		text = text[:maxLoggedBody] + "...[truncated]"
	}
	slog.Debug("classifier response", "status", status, "body", text)
}

func sanitizeRequest(req chatRequest) chatRequest {
	safe := req
	safe.Messages = make([]chatMessage, len(req.Messages))
	for i, msg := range req.Messages {
		safeMsg := msg
		safeMsg.Content = make([]contentPart, len(msg.Content))
		for j, part := range msg.Content {
			if part.Type == "image_url" {
				part.ImageURL = &imageURL{URL: "data:<omitted>"}
			}
			safeMsg.Content[j] = part
		}
		safe.Messages[i] = safeMsg
	}
	return safe
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "***" + token[len(token)-4:]
}

// sniffImageMIME types the opaque blob by magic bytes; anything that is
// not a PNG is assumed to be a JPEG.
func sniffImageMIME(image []byte) string {
	if bytes.HasPrefix(image, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}
	if bytes.HasPrefix(image, []byte{0xFF, 0xD8}) {
		return "image/jpeg"
	}
	return "image/jpeg"
}
