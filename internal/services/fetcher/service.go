package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
)

// maxBodyBytes bounds how much of a response body is read into memory.
const maxBodyBytes = 8 * 1024 * 1024

// Service retrieves URLs with per-host rate limits, retries, robots.txt
// enforcement, optional browser rendering, and digest-based change detection.
type Service struct {
	config    *common.FetcherConfig
	client    *http.Client
	limiter   *RateLimiter
	retry     *RetryPolicy
	robots    *RobotsCache
	userAgent *userAgentPool
	browsers  *BrowserPool
	snapshots interfaces.CrawlSnapshotStorage
	logger    arbor.ILogger
}

// NewService creates a fetcher. browsers may be nil when rendered fetches are
// disabled; snapshots may be nil for probe-only use (detector tests).
func NewService(cfg *common.FetcherConfig, browsers *BrowserPool, snapshots interfaces.CrawlSnapshotStorage, logger arbor.ILogger) *Service {
	client := &http.Client{
		Timeout: time.Duration(cfg.PlainTimeoutSecs) * time.Second,
	}

	retry := NewRetryPolicy()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryBaseMS > 0 {
		retry.InitialBackoff = time.Duration(cfg.RetryBaseMS) * time.Millisecond
	}
	if cfg.RetryAfterCapSecs > 0 {
		retry.RetryAfterCap = time.Duration(cfg.RetryAfterCapSecs) * time.Second
	}

	agents := newUserAgentPool(cfg.UserAgents)

	return &Service{
		config:    cfg,
		client:    client,
		limiter:   NewRateLimiter(cfg),
		retry:     retry,
		robots:    NewRobotsCache(client, agents.Next(), logger),
		userAgent: agents,
		browsers:  browsers,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Fetch retrieves a URL subject to policy. The returned Result reports
// Unchanged=true (and writes no snapshot) when the content digest matches the
// most recent snapshot for the URL.
func (s *Service) Fetch(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	if err := common.ValidateAbsoluteURL(rawURL); err != nil {
		return nil, models.WrapError(models.KindInvalidArgument, "fetch url", err)
	}

	if err := s.limiter.Wait(ctx, rawURL); err != nil {
		return nil, models.WrapError(models.KindCancelled, "rate limit wait", err)
	}

	// robots.txt is honored for page fetches only; vendor API endpoints are
	// published for programmatic access
	if s.config.RespectRobots && !opts.APIEndpoint {
		if !s.robots.Allowed(ctx, rawURL) {
			return nil, models.NewError(models.KindRobotsDenied, fmt.Sprintf("robots.txt disallows %s", rawURL))
		}
	}

	var result *Result
	var err error
	if opts.Render {
		result, err = s.fetchRendered(ctx, rawURL, opts)
	} else {
		result, err = s.fetchPlain(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}

	result.Hash = models.HashContent(result.Content)
	s.detectChange(ctx, result, opts)
	return result, nil
}

// fetchPlain acquires a URL over plain HTTP with the retry loop.
func (s *Service) fetchPlain(ctx context.Context, rawURL string) (*Result, error) {
	var content string

	attempt, err := s.retry.ExecuteWithRetry(ctx, s.logger, func() (attemptResult, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if reqErr != nil {
			return attemptResult{}, models.WrapError(models.KindInvalidArgument, "build request", reqErr)
		}
		req.Header.Set("User-Agent", s.userAgent.Next())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

		resp, doErr := s.client.Do(req)
		if doErr != nil {
			return attemptResult{}, models.WrapError(models.KindTransport, "http request", doErr)
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return attemptResult{statusCode: resp.StatusCode}, models.WrapError(models.KindTransport, "read body", readErr)
		}

		res := attemptResult{statusCode: resp.StatusCode, headers: resp.Header}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return res, models.NewError(models.KindNotFound, fmt.Sprintf("%s returned 404", rawURL))
		case resp.StatusCode == http.StatusTooManyRequests:
			return res, models.NewError(models.KindRateLimited, fmt.Sprintf("%s returned 429", rawURL))
		case resp.StatusCode >= 500:
			return res, models.NewError(models.KindHTTPServerError, fmt.Sprintf("%s returned %d", rawURL, resp.StatusCode))
		case resp.StatusCode >= 400:
			return res, models.NewError(models.KindHTTPClientError, fmt.Sprintf("%s returned %d", rawURL, resp.StatusCode))
		}

		content = string(body)
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		URL:        rawURL,
		Content:    content,
		StatusCode: attempt.statusCode,
		Headers:    attempt.headers,
	}, nil
}

// fetchRendered acquires a URL through the headless browser pool.
func (s *Service) fetchRendered(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	if s.browsers == nil || !s.browsers.IsInitialized() {
		return nil, models.NewError(models.KindInternal, "browser pool not available")
	}

	timeout := time.Duration(s.config.RenderTimeoutSecs) * time.Second
	html, err := s.browsers.Render(ctx, rawURL, opts.WaitSelector, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.WrapError(models.KindCancelled, "rendered fetch", err)
		}
		return nil, models.WrapError(models.KindRenderTimeout, fmt.Sprintf("render %s", rawURL), err)
	}

	return &Result{
		URL:        rawURL,
		Content:    html,
		StatusCode: http.StatusOK,
		Rendered:   true,
	}, nil
}

// detectChange compares the result digest against the latest snapshot for the
// URL and persists a new snapshot only when the content changed.
func (s *Service) detectChange(ctx context.Context, result *Result, opts Options) {
	if s.snapshots == nil || opts.CompanyID == "" {
		return
	}

	if !opts.SkipChangeDetection {
		latest, err := s.snapshots.GetLatestSnapshot(ctx, opts.CompanyID, result.URL)
		if err == nil && latest != nil && latest.HTMLHash == result.Hash {
			result.Unchanged = true
			s.logger.Debug().
				Str("url", result.URL).
				Str("hash", result.Hash).
				Msg("Content unchanged, skipping snapshot")
			return
		}
	}

	snap := models.NewCrawlSnapshot(opts.CompanyID, result.URL, result.Content, result.StatusCode, result.Rendered)
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Warn().Err(err).Str("url", result.URL).Msg("Failed to persist crawl snapshot")
		return
	}
	result.SnapshotID = snap.ID
}

// GetJSON fetches a vendor API endpoint and decodes the JSON response into
// target. API endpoints bypass robots but still honor rate limits and retry.
func (s *Service) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	result, err := s.Fetch(ctx, rawURL, Options{APIEndpoint: true})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(result.Content), target); err != nil {
		return models.WrapError(models.KindParseError, fmt.Sprintf("decode %s", rawURL), err)
	}
	return nil
}

// PostJSON issues a JSON POST to a vendor API endpoint (Workday's search API)
// and decodes the response into target.
func (s *Service) PostJSON(ctx context.Context, rawURL string, payload interface{}, target interface{}) error {
	if err := s.limiter.Wait(ctx, rawURL); err != nil {
		return models.WrapError(models.KindCancelled, "rate limit wait", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return models.WrapError(models.KindInvalidArgument, "marshal payload", err)
	}

	var content string
	_, err = s.retry.ExecuteWithRetry(ctx, s.logger, func() (attemptResult, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
		if reqErr != nil {
			return attemptResult{}, models.WrapError(models.KindInvalidArgument, "build request", reqErr)
		}
		req.Header.Set("User-Agent", s.userAgent.Next())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, doErr := s.client.Do(req)
		if doErr != nil {
			return attemptResult{}, models.WrapError(models.KindTransport, "http request", doErr)
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return attemptResult{statusCode: resp.StatusCode}, models.WrapError(models.KindTransport, "read body", readErr)
		}

		res := attemptResult{statusCode: resp.StatusCode, headers: resp.Header}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return res, models.NewError(models.KindNotFound, fmt.Sprintf("%s returned 404", rawURL))
		case resp.StatusCode == http.StatusTooManyRequests:
			return res, models.NewError(models.KindRateLimited, fmt.Sprintf("%s returned 429", rawURL))
		case resp.StatusCode >= 500:
			return res, models.NewError(models.KindHTTPServerError, fmt.Sprintf("%s returned %d", rawURL, resp.StatusCode))
		case resp.StatusCode >= 400:
			return res, models.NewError(models.KindHTTPClientError, fmt.Sprintf("%s returned %d", rawURL, resp.StatusCode))
		}

		content = string(respBody)
		return res, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(content), target); err != nil {
		return models.WrapError(models.KindParseError, fmt.Sprintf("decode %s", rawURL), err)
	}
	return nil
}

// SetHostLimit installs an explicit per-host rate limit at runtime.
func (s *Service) SetHostLimit(host string, perSec float64, burst int) {
	s.limiter.SetHostLimit(host, perSec, burst)
}
