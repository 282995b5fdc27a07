package search

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"

	"github.com/openresearch/deepsearch/pkg/domain"
	"github.com/openresearch/deepsearch/pkg/observability"
)

// Gateway fronts a search provider with the policy the research loop
// needs: bounded retries with exponential backoff, a per-call timeout,
// result deduplication and content truncation. Search exhaustion is not
// an error; a paragraph can finish on whatever evidence it already has,
// so the gateway degrades to an empty record instead of failing the run.
type Gateway struct {
	client           domain.SearchClient
	logger           observability.Logger
	telemetry        *observability.Telemetry
	metrics          *observability.Metrics
	maxResults       int
	maxContentLength int
	timeout          time.Duration
	retries          int
}

// GatewayOptions configures a search gateway.
type GatewayOptions struct {
	MaxResults       int
	MaxContentLength int
	Timeout          time.Duration
	Retries          int
	Telemetry        *observability.Telemetry
	Metrics          *observability.Metrics
}

// NewGateway creates a gateway over a search client.
func NewGateway(client domain.SearchClient, logger observability.Logger, opts GatewayOptions) *Gateway {
	if logger == nil {
		logger = observability.NewStructuredLogger("search-gateway")
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = 3
	}
	if opts.MaxContentLength == 0 {
		opts.MaxContentLength = 20000
	}
	if opts.Timeout == 0 {
		opts.Timeout = 4 * time.Minute
	}
	return &Gateway{
		client:           client,
		logger:           logger,
		telemetry:        opts.Telemetry,
		metrics:          opts.Metrics,
		maxResults:       opts.MaxResults,
		maxContentLength: opts.MaxContentLength,
		timeout:          opts.Timeout,
		retries:          opts.Retries,
	}
}

// Provider returns the underlying provider name.
func (g *Gateway) Provider() string {
	return g.client.Name()
}

// Search runs one query through the provider and returns a normalized
// record. Provider failures are retried with exponential backoff up to
// the configured limit; once retries are exhausted the record comes back
// empty and the caller decides whether that degrades the paragraph.
// Cancellation of the parent context stops the retry loop immediately.
func (g *Gateway) Search(ctx context.Context, query string) domain.SearchRecord {
	record := domain.SearchRecord{
		Query:     query,
		Timestamp: time.Now().UTC(),
	}

	start := time.Now()
	var results []domain.SearchResult

	run := func(ctx context.Context) (int, error) {
		raw, err := g.searchWithRetry(ctx, query)
		if err != nil {
			return 0, err
		}
		results = raw
		return len(raw), nil
	}

	var err error
	if g.telemetry != nil {
		err = g.telemetry.InstrumentSearch(ctx, g.client.Name(), query, run)
	} else {
		_, err = run(ctx)
	}

	if g.metrics != nil {
		g.metrics.RecordSearchRequest(ctx, g.client.Name(), time.Since(start), len(results), err == nil)
	}

	if err != nil {
		g.logger.Warn(ctx, "search exhausted retries, degrading to empty results", map[string]interface{}{
			"provider": g.client.Name(),
			"error":    err.Error(),
		})
		return record
	}

	record.Results, record.Truncated = g.normalize(results)
	return record
}

// searchWithRetry runs the provider call under the retry policy.
func (g *Gateway) searchWithRetry(ctx context.Context, query string) ([]domain.SearchResult, error) {
	var results []domain.SearchResult

	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 && g.metrics != nil {
			g.metrics.RecordSearchRetry(ctx, g.client.Name())
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		raw, err := g.client.Search(callCtx, query, g.maxResults)
		if err != nil {
			if ctx.Err() != nil {
				// Parent cancellation, not a provider fault. Stop retrying.
				return backoff.Permanent(ctx.Err())
			}
			serr := &domain.SearchError{
				Query:   query,
				Timeout: errors.Is(callCtx.Err(), context.DeadlineExceeded),
				Err:     err,
			}
			g.logger.Warn(ctx, "search attempt failed", map[string]interface{}{
				"provider": g.client.Name(),
				"attempt":  attempt,
				"timeout":  serr.Timeout,
				"error":    err.Error(),
			})
			return serr
		}
		results = raw
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(g.retries)),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return results, nil
}

// normalize deduplicates results by source, caps the result count and
// truncates over-length content at a word boundary.
func (g *Gateway) normalize(raw []domain.SearchResult) ([]domain.SearchResult, bool) {
	seen := make(map[string]bool, len(raw))
	truncated := false

	var results []domain.SearchResult
	for _, r := range raw {
		if r.SourceID == "" || seen[r.SourceID] {
			continue
		}
		seen[r.SourceID] = true

		if len(r.Content) > g.maxContentLength {
			r.Content = truncateAtWord(r.Content, g.maxContentLength)
			truncated = true
		}

		results = append(results, r)
		if len(results) >= g.maxResults {
			break
		}
	}
	return results, truncated
}

// truncateAtWord cuts text to at most limit bytes without splitting a
// rune or a word, then marks the cut with an ellipsis. Content without
// spaces (CJK prose) is cut on the rune boundary alone.
func truncateAtWord(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	end := limit
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	cut := text[:end]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \t\n") + "..."
}
