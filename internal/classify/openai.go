package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dormline/dormline/internal/config"
)

// ErrNotConfigured indicates the external classifier has no base URL set.
var ErrNotConfigured = errors.New("external classifier not configured")

// ModelClassifier is the primary path: a chat-completions call against an
// OpenAI-compatible endpoint, constrained to the canonical label sets by the
// prompt and parsed from a single structured reply line.
type ModelClassifier struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewModelClassifier builds the primary classifier from config. A zero-value
// base URL yields a classifier that always returns ErrNotConfigured, which
// the Service treats as a routine fallback trigger.
func NewModelClassifier(cfg config.ClassifierConfig) *ModelClassifier {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ModelClassifier{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the external endpoint is set.
func (c *ModelClassifier) Configured() bool {
	return c.baseURL != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
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

// Classify asks the model for a "category | condition | confidence" line and
// normalizes the parsed labels onto the canonical sets.
func (c *ModelClassifier) Classify(ctx context.Context, itemText string) (Result, error) {
	if !c.Configured() {
		return Result{}, ErrNotConfigured
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifierPrompt()},
			{Role: "user", Content: itemText},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("classifier error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("failed to parse classifier response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, errors.New("classifier returned no choices")
	}
	return parseReply(parsed.Choices[0].Message.Content)
}

func classifierPrompt() string {
	return fmt.Sprintf(
		"You classify a marketplace item for a campus buy/sell board. "+
			"Reply with exactly one line in the form: category | condition | confidence. "+
			"category must be one of: %s. "+
			"condition must be one of: %s. "+
			"confidence is an integer 0-100.",
		strings.Join(Categories, ", "),
		strings.Join(Conditions, ", "),
	)
}

// parseReply accepts "category | condition | confidence" and tolerates a
// missing confidence field.
func parseReply(reply string) (Result, error) {
	line := strings.TrimSpace(reply)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	parts := strings.Split(line, "|")
	if len(parts) < 2 {
		return Result{}, fmt.Errorf("unparseable classifier reply: %q", reply)
	}

	confidence := 50
	if len(parts) >= 3 {
		raw := strings.TrimSuffix(strings.TrimSpace(parts[2]), "%")
		if n, err := strconv.Atoi(raw); err == nil {
			confidence = n
		}
	}

	return Result{
		Category:   NormalizeCategory(parts[0]),
		Condition:  NormalizeCondition(parts[1]),
		Confidence: clamp(confidence, 0, 100),
	}, nil
}
