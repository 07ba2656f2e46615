package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nitesh/news_digest/internal/digest"
	"github.com/nitesh/news_digest/pkg/models"
)

// maxContentChars bounds the article text sent to the model.
const maxContentChars = 30000

// Client is a minimal Ollama-compatible client that summarizes an article
// and labels its sentiment in one request.
type Client struct {
	url    string
	model  string
	hc     *http.Client
	logger *zap.Logger
}

// Enrichment is what the model adds to a raw article.
type Enrichment struct {
	Summary     string           `json:"summary"`
	Sentiment   models.Sentiment `json:"sentiment"`
	Explanation string           `json:"explanation"`
}

// NewClient creates a new client. If httpClient is nil, a default with timeout is used.
func NewClient(url, model string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    url,
		model:  model,
		hc:     httpClient,
		logger: logger.With(zap.String("component", "llm")),
	}
}

// Enrich asks the model for a summary, a sentiment label and a one-sentence
// justification of that label.
func (c *Client) Enrich(ctx context.Context, title, content string) (Enrichment, error) {
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	body := map[string]any{
		"model":      c.model,
		"prompt":     buildPrompt(title, content),
		"max_tokens": 384,
		"stream":     false,
		"format":     "json",
	}
	b, err := json.Marshal(body)
	if err != nil {
		return Enrichment{}, fmt.Errorf("llm marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return Enrichment{}, fmt.Errorf("llm new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	c.logger.Debug("llm request",
		zap.String("url", c.url),
		zap.String("model", c.model),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err))
	if err != nil {
		return Enrichment{}, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Enrichment{}, fmt.Errorf("llm read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Enrichment{}, fmt.Errorf("llm request failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	return parseEnrichment(extractText(respBody))
}

// parseEnrichment decodes the first JSON object found in text.
func parseEnrichment(text string) (Enrichment, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Enrichment{}, fmt.Errorf("llm response has no JSON object: %q", truncate(text, 200))
	}

	var raw struct {
		Summary     string `json:"summary"`
		Sentiment   string `json:"sentiment"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Enrichment{}, fmt.Errorf("llm decode enrichment: %w", err)
	}
	// models answer in free text, so the label is lower-cased here before
	// the strict check
	sentiment, err := digest.ParseSentiment(strings.ToLower(strings.TrimSpace(raw.Sentiment)))
	if err != nil {
		return Enrichment{}, err
	}
	return Enrichment{
		Summary:     strings.TrimSpace(raw.Summary),
		Sentiment:   sentiment,
		Explanation: strings.TrimSpace(raw.Explanation),
	}, nil
}

// extractText pulls the generated text out of the response shapes seen in
// the wild:
//  1. {"response": "..."} (Ollama)
//  2. {"text": "..."}
//  3. {"choices":[{"text":"..."}]} or {"choices":[{"message":{"content":"..."}}]}
//  4. {"results":[{"response"|"text": "..."}]}
//
// Anything else is returned as the trimmed raw body.
func extractText(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return string(bytes.TrimSpace(body))
	}

	if s, ok := m["response"].(string); ok && s != "" {
		return s
	}
	if s, ok := m["text"].(string); ok && s != "" {
		return s
	}
	if arr, ok := m["choices"].([]any); ok && len(arr) > 0 {
		if first, ok := arr[0].(map[string]any); ok {
			if s, ok := first["text"].(string); ok && s != "" {
				return s
			}
			if msg, ok := first["message"].(map[string]any); ok {
				if s, ok := msg["content"].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	if arr, ok := m["results"].([]any); ok {
		var buf strings.Builder
		for _, it := range arr {
			oo, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := oo["response"].(string); ok {
				buf.WriteString(s)
			} else if s, ok := oo["text"].(string); ok {
				buf.WriteString(s)
			}
		}
		if buf.Len() > 0 {
			return buf.String()
		}
	}

	return string(bytes.TrimSpace(body))
}

func buildPrompt(title, content string) string {
	return fmt.Sprintf(`Summarize the following news article in 2-3 sentences and classify its overall sentiment.
Reply with a JSON object only, with keys "summary", "sentiment" (one of "positive", "neutral", "negative") and "explanation" (one sentence on why that sentiment applies).

Title: %s

Article: %s`, title, content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
