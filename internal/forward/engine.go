package forward

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/meverapp/media-gateway/internal/config"
)

const userAgent = "Mozilla/5.0 (compatible; MeverGateway/1.0)"

// Engine forwards requests to the single upstream extraction API with a
// bounded retry budget. The upstream is treated as an untrusted peer: it can
// be slow, return non-JSON, or fail outright.
type Engine struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

func New(cfg config.UpstreamConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Engine{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		backoff:     time.Duration(cfg.BackoffSeconds) * time.Second,
		logger:      logger,
	}
}

// Forward calls the upstream endpoint with the given caller parameters and
// returns the JSON body verbatim on success. Failures come back as
// ErrNotConfigured, *TerminalError, or *RetriesExhaustedError; none of them
// carry the credential or the full upstream URL.
func (e *Engine) Forward(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if e.apiKey == "" {
		e.logger.Error("upstream API key missing, refusing to forward",
			zap.String("endpoint", endpoint))
		return nil, ErrNotConfigured
	}

	query := url.Values{}
	for name, values := range params {
		for _, v := range values {
			query.Add(name, v)
		}
	}
	query.Set("apikey", e.apiKey)

	target := fmt.Sprintf("%s/%s?%s", e.baseURL, endpoint, query.Encode())

	var lastDetail string
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		body, detail, outcome := e.attempt(ctx, endpoint, target, attempt)

		switch outcome {
		case OutcomeSuccess:
			return body, nil
		case OutcomeTerminal:
			return nil, &TerminalError{Detail: detail}
		}

		lastDetail = detail
		if attempt < e.maxAttempts {
			select {
			case <-time.After(e.backoff):
			case <-ctx.Done():
				return nil, &RetriesExhaustedError{Attempts: attempt, Detail: lastDetail}
			}
		}
	}

	return nil, &RetriesExhaustedError{Attempts: e.maxAttempts, Detail: lastDetail}
}

func (e *Engine) attempt(ctx context.Context, endpoint, target string, attempt int) (json.RawMessage, string, Outcome) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "invalid upstream request", OutcomeTerminal
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		detail := DescribeNetworkError(err)
		e.logger.Warn("upstream attempt failed",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.String("detail", detail))
		return nil, detail, OutcomeRetryable
	}
	defer resp.Body.Close()

	switch ClassifyStatus(resp.StatusCode) {
	case OutcomeTerminal:
		detail := fmt.Sprintf("upstream rejected the request (HTTP %d)", resp.StatusCode)
		e.logger.Warn("upstream terminal status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, detail, OutcomeTerminal
	case OutcomeRetryable:
		detail := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		e.logger.Warn("upstream retryable status",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode))
		return nil, detail, OutcomeRetryable
	}

	if !IsJSONContentType(resp.Header.Get("Content-Type")) {
		// Upstream contract violation. Parsing this as JSON would be lying
		// to the client, and a retry will not change the content type.
		e.logger.Warn("upstream returned non-JSON payload",
			zap.String("endpoint", endpoint),
			zap.String("content_type", resp.Header.Get("Content-Type")))
		return nil, "invalid response format from upstream", OutcomeTerminal
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "failed reading upstream response", OutcomeRetryable
	}

	return json.RawMessage(body), "", OutcomeSuccess
}
