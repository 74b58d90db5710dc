package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/go-scripts/reviewscrape/internal/wordfreq"
	"github.com/go-scripts/reviewscrape/pkg/common"
)

const (
	DefaultEndpoint        = "http://localhost:8080/v1/chat/completions"
	DefaultSystemPrompt    = "You are a film critic summarizing audience reviews."
	DefaultQueryTemplate   = "Summarize the main points of these {{.Count}} {{.Sentiment}} reviews in a few markdown bullet points.\n\n{{.Reviews}}"
	DefaultTemperature     = 0.3
	DefaultReasoningEffort = "medium"
)

// Config holds the chat endpoint settings
type Config struct {
	APIEndpoint     string
	SystemPrompt    string
	QueryTemplate   string
	Temperature     float64
	ReasoningEffort string
	OutputDir       string
	MaxRetries      int
	// RequestsPerMinute of 0 disables rate limiting
	RequestsPerMinute int
	// MaxReviews caps the reviews sent per sentiment; 0 sends all
	MaxReviews int
}

// DefaultConfig returns the settings used for a local llama-server
func DefaultConfig() Config {
	return Config{
		APIEndpoint:       DefaultEndpoint,
		SystemPrompt:      DefaultSystemPrompt,
		QueryTemplate:     DefaultQueryTemplate,
		Temperature:       DefaultTemperature,
		ReasoningEffort:   DefaultReasoningEffort,
		OutputDir:         ".",
		MaxRetries:        5,
		RequestsPerMinute: 5,
		MaxReviews:        50,
	}
}

// Message is a single chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request payload for the chat endpoint
type ChatRequest struct {
	Messages        []Message `json:"messages"`
	Stream          bool      `json:"stream"`
	Temperature     float64   `json:"temperature"`
	ReasoningEffort string    `json:"reasoning_effort"`
}

// Choice is one completion in a ChatResponse
type Choice struct {
	FinishReason string  `json:"finish_reason"`
	Index        int     `json:"index"`
	Message      Message `json:"message"`
}

// ChatResponse is the response payload of the chat endpoint
type ChatResponse struct {
	Choices []Choice `json:"choices"`
}

// Summarizer sends review text to a llama-compatible chat endpoint
type Summarizer struct {
	client    *http.Client
	config    Config
	query     *template.Template
	limiter   *rate.Limiter
	logger    *log.Logger
	baseDelay time.Duration
	sleep     func(context.Context, time.Duration) error
}

// Option configures a Summarizer
type Option func(*Summarizer)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) Option {
	return func(s *Summarizer) { s.client = c }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *Summarizer) { s.logger = l }
}

// WithBackoff sets the first retry delay; later retries double it
func WithBackoff(d time.Duration) Option {
	return func(s *Summarizer) { s.baseDelay = d }
}

// New validates config and builds a Summarizer
func New(config Config, opts ...Option) (*Summarizer, error) {
	if config.APIEndpoint == "" {
		return nil, errors.New("API endpoint is required")
	}
	if config.QueryTemplate == "" {
		config.QueryTemplate = DefaultQueryTemplate
	}
	tmpl, err := template.New("query").Option("missingkey=error").Parse(config.QueryTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid query template: %w", err)
	}

	s := &Summarizer{
		client:    &http.Client{Timeout: 360 * time.Second},
		config:    config,
		query:     tmpl,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		logger:    log.Default(),
		baseDelay: time.Second,
		sleep:     sleepContext,
	}
	if config.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), config.RequestsPerMinute)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type queryData struct {
	Sentiment string
	Count     int
	Reviews   string
}

// Query renders the user message for one sentiment
func (s *Summarizer) Query(sentiment wordfreq.Sentiment, texts []string) (string, error) {
	var buf bytes.Buffer
	lines := make([]string, len(texts))
	for i, t := range texts {
		lines[i] = "- " + t
	}
	err := s.query.Execute(&buf, queryData{
		Sentiment: sentiment.String(),
		Count:     len(texts),
		Reviews:   strings.Join(lines, "\n"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render query: %w", err)
	}
	return buf.String(), nil
}

// Summarize returns the endpoint's summary of texts
func (s *Summarizer) Summarize(ctx context.Context, sentiment wordfreq.Sentiment, texts []string) (string, error) {
	query, err := s.Query(sentiment, texts)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(ChatRequest{
		Messages: []Message{
			{Role: "system", Content: s.config.SystemPrompt},
			{Role: "user", Content: query},
		},
		Temperature:     s.temperature(),
		ReasoningEffort: s.reasoningEffort(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	resp, err := s.send(ctx, sentiment, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chat ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", errors.New("chat endpoint returned empty choices array")
	}
	return chat.Choices[0].Message.Content, nil
}

// send posts body, retrying with exponential backoff and jitter until a
// 200 response or MaxRetries is exhausted.
func (s *Summarizer) send(ctx context.Context, sentiment wordfreq.Sentiment, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.baseDelay * time.Duration(1<<uint(attempt-1))
			if half := int64(delay) / 2; half > 0 {
				delay += time.Duration(rand.Int63n(half))
			}
			s.logger.Debug("Backing off before retry", "sentiment", sentiment, "attempt", attempt, "delay", delay)
			if err := s.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIEndpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("failed to send request: %w", err)
			s.logger.Error("Failed to send request to chat endpoint", "sentiment", sentiment, "error", err, "attempt", attempt)
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("chat endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		s.logger.Error("Chat endpoint returned non-OK status", "sentiment", sentiment, "status", resp.StatusCode, "attempt", attempt)
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", s.config.MaxRetries+1, lastErr)
}

// Run summarizes positive and negative reviews and writes
// summary_<sentiment>.md for each side that has reviews. It returns the
// written paths.
func (s *Summarizer) Run(ctx context.Context, reviews []common.Review) ([]string, error) {
	groups := map[wordfreq.Sentiment][]string{}
	for _, t := range wordfreq.Tag(reviews) {
		groups[t.Sentiment] = append(groups[t.Sentiment], t.Text)
	}

	var written []string
	for _, sentiment := range []wordfreq.Sentiment{wordfreq.Positive, wordfreq.Negative} {
		texts := groups[sentiment]
		if len(texts) == 0 {
			s.logger.Info("No reviews to summarize", "sentiment", sentiment)
			continue
		}
		if s.config.MaxReviews > 0 && len(texts) > s.config.MaxReviews {
			texts = texts[:s.config.MaxReviews]
		}

		summary, err := s.Summarize(ctx, sentiment, texts)
		if err != nil {
			return written, fmt.Errorf("failed to summarize %s reviews: %w", sentiment, err)
		}
		path := filepath.Join(s.config.OutputDir, Filename(sentiment))
		if err := writeFile(path, summary); err != nil {
			return written, err
		}
		s.logger.Info("Wrote summary", "sentiment", sentiment, "reviews", len(texts), "path", path)
		written = append(written, path)
	}
	return written, nil
}

// Filename is the markdown file name for a sentiment
func Filename(sentiment wordfreq.Sentiment) string {
	return "summary_" + sentiment.String() + ".md"
}

func (s *Summarizer) temperature() float64 {
	if s.config.Temperature > 0 {
		return s.config.Temperature
	}
	return DefaultTemperature
}

func (s *Summarizer) reasoningEffort() string {
	if s.config.ReasoningEffort != "" {
		return s.config.ReasoningEffort
	}
	return DefaultReasoningEffort
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
