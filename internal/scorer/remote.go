// Package scorer provides the two sentiment scoring backends: a remote
// inference API client and a local lexicon-based fallback.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Souradip121/sentiment-service/internal/domain"
)

// RetryableError marks a remote failure that is worth retrying: the upstream
// may recover on the next attempt. Anything not wrapped in it is terminal for
// the current request.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err (or anything it wraps) is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// RemoteConfig configures the remote inference client.
type RemoteConfig struct {
	// BaseURL is the full inference endpoint URL.
	BaseURL string

	// APIKey is sent as a Bearer token. Empty means unauthenticated.
	APIKey string

	// Timeout bounds a single scoring request.
	Timeout time.Duration

	// MaxConnsPerHost limits connections to the inference host.
	MaxConnsPerHost int
}

// DefaultRemoteConfig returns sensible defaults for the inference client.
func DefaultRemoteConfig(baseURL, apiKey string) RemoteConfig {
	return RemoteConfig{
		BaseURL:         baseURL,
		APIKey:          apiKey,
		Timeout:         10 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// RemoteClient scores text against a HuggingFace-style inference endpoint.
// It performs exactly one attempt per Score call; retry scheduling and
// circuit breaking belong to the caller.
type RemoteClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRemoteClient creates a client with a tuned transport and connection
// pooling.
func NewRemoteClient(cfg RemoteConfig, logger *slog.Logger) *RemoteClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = 100
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &RemoteClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: logger,
	}
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

type inferenceLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Score sends the text to the inference API and maps the response to a
// signed score. Errors are classified: network failures, timeouts, 429 and
// 5xx come back wrapped in RetryableError; malformed responses and other 4xx
// do not.
func (c *RemoteClient) Score(ctx context.Context, text string) (domain.Result, error) {
	body, err := json.Marshal(inferenceRequest{Inputs: text})
	if err != nil {
		return domain.Result{}, fmt.Errorf("marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return domain.Result{}, fmt.Errorf("create inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Caller went away; not an upstream verdict.
			return domain.Result{}, ctx.Err()
		}
		return domain.Result{}, &RetryableError{Err: fmt.Errorf("inference request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("inference API returned status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return domain.Result{}, &RetryableError{Err: err}
		}
		return domain.Result{}, err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Result{}, &RetryableError{Err: fmt.Errorf("read inference response: %w", err)}
	}

	top, err := parseInferenceResponse(raw)
	if err != nil {
		return domain.Result{}, err
	}

	return resultFromLabel(top)
}

// parseInferenceResponse accepts both response shapes the inference API is
// known to produce: a flat list of label objects, or a list nested one level
// deep. The entry with the highest confidence wins.
func parseInferenceResponse(raw []byte) (inferenceLabel, error) {
	var flat []inferenceLabel
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 && flat[0].Label != "" {
		return highestConfidence(flat), nil
	}

	var nested [][]inferenceLabel
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return highestConfidence(nested[0]), nil
	}

	return inferenceLabel{}, fmt.Errorf("unexpected inference response shape: %s", truncate(string(raw), 200))
}

func highestConfidence(labels []inferenceLabel) inferenceLabel {
	top := labels[0]
	for _, l := range labels[1:] {
		if l.Score > top.Score {
			top = l
		}
	}
	return top
}

// resultFromLabel converts the winning classifier label to a signed score:
// positive confidence stays positive, negative confidence is negated, and
// neutral maps to zero.
func resultFromLabel(top inferenceLabel) (domain.Result, error) {
	switch strings.ToUpper(top.Label) {
	case "POSITIVE", "LABEL_2":
		return domain.Result{Label: domain.LabelPositive, Score: top.Score}, nil
	case "NEGATIVE", "LABEL_0":
		return domain.Result{Label: domain.LabelNegative, Score: -top.Score}, nil
	case "NEUTRAL", "LABEL_1":
		return domain.Result{Label: domain.LabelNeutral, Score: 0}, nil
	default:
		return domain.Result{}, fmt.Errorf("unexpected inference label %q", top.Label)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
