package websearch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of extracting one candidate URL.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFetchFailed Status = "fetch_failed"
	StatusParseFailed Status = "parse_failed"
	StatusTimedOut    Status = "timed_out"
)

// Result is one extracted page. Title/Snippet/Body are present only on
// success.
type Result struct {
	URL     string
	Status  Status
	Title   string
	Snippet string
	Body    string
}

// Report aggregates an extraction run. Results holds only successes, in the
// provider's ranking order; Attempted vs Succeeded lets callers distinguish
// "few results existed" from "fetches failed".
type Report struct {
	Results   []Result
	Attempted int
	Succeeded int
}

// Fetcher retrieves one page. It must honor ctx cancellation.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

const (
	defaultFetchTimeout   = 5 * time.Second
	defaultParseTimeout   = 2 * time.Second
	defaultOverallTimeout = 12 * time.Second
	defaultMaxConcurrent  = 4
)

// Extractor concurrently fetches and parses candidate pages with isolated
// per-URL failures.
type Extractor struct {
	fetch Fetcher

	fetchTimeout   time.Duration
	parseTimeout   time.Duration
	overallTimeout time.Duration
	maxConcurrent  int
}

type ExtractorOption func(*Extractor)

func WithFetchTimeout(timeout time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if timeout > 0 {
			e.fetchTimeout = timeout
		}
	}
}

func WithParseTimeout(timeout time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if timeout > 0 {
			e.parseTimeout = timeout
		}
	}
}

// WithOverallTimeout bounds one whole extraction run.
func WithOverallTimeout(timeout time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if timeout > 0 {
			e.overallTimeout = timeout
		}
	}
}

func WithMaxConcurrent(max int) ExtractorOption {
	return func(e *Extractor) {
		if max > 0 {
			e.maxConcurrent = max
		}
	}
}

func NewExtractor(fetch Fetcher, opts ...ExtractorOption) (*Extractor, error) {
	if fetch == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	e := &Extractor{
		fetch:          fetch,
		fetchTimeout:   defaultFetchTimeout,
		parseTimeout:   defaultParseTimeout,
		overallTimeout: defaultOverallTimeout,
		maxConcurrent:  defaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract resolves candidate URLs until the target count of successes is
// reached, every URL has resolved, or the overall deadline elapses —
// whichever comes first. One URL's failure never cancels its siblings.
func (e *Extractor) Extract(ctx context.Context, urls []string, target int) (*Report, error) {
	ctx, span := tracer.Start(ctx, "extract search content")
	defer span.End()
	span.SetAttributes(
		attribute.Int("extract.candidates", len(urls)),
		attribute.Int("extract.target", target),
	)

	if target <= 0 || target > len(urls) {
		target = len(urls)
	}

	ctx, cancel := context.WithTimeout(ctx, e.overallTimeout)
	defer cancel()

	var (
		mu        sync.Mutex
		attempted int
		succeeded int
	)
	results := make([]Result, len(urls))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.maxConcurrent)

	for i, url := range urls {
		mu.Lock()
		enough := succeeded >= target
		mu.Unlock()
		if enough || groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			mu.Lock()
			attempted++
			mu.Unlock()

			result := e.extractOne(groupCtx, url)
			mu.Lock()
			results[i] = result
			if result.Status == StatusSuccess {
				succeeded++
				if succeeded >= target {
					cancel()
				}
			}
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait() // workers record their own failures

	report := &Report{}
	mu.Lock()
	report.Attempted = attempted
	for _, result := range results {
		if result.Status != StatusSuccess {
			continue
		}
		report.Results = append(report.Results, result)
		if len(report.Results) == target {
			break
		}
	}
	report.Succeeded = len(report.Results)
	mu.Unlock()

	span.SetAttributes(
		attribute.Int("extract.attempted", report.Attempted),
		attribute.Int("extract.succeeded", report.Succeeded),
	)
	return report, nil
}

func (e *Extractor) extractOne(ctx context.Context, url string) Result {
	result := Result{URL: url}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	data, err := e.fetch(fetchCtx, url)
	if err != nil {
		result.Status = StatusFetchFailed
		if fetchCtx.Err() == context.DeadlineExceeded {
			result.Status = StatusTimedOut
		}
		logger.Debug("failed to fetch search candidate", "url", url, "error", err)
		return result
	}

	page, err := e.parseWithTimeout(ctx, data)
	if err != nil {
		result.Status = StatusParseFailed
		logger.Debug("failed to parse search candidate", "url", url, "error", err)
		return result
	}

	result.Status = StatusSuccess
	result.Title = page.title
	result.Snippet = page.snippet
	result.Body = page.body
	return result
}

func (e *Extractor) parseWithTimeout(ctx context.Context, data []byte) (parsedPage, error) {
	type parseOutcome struct {
		page parsedPage
		err  error
	}

	done := make(chan parseOutcome, 1)
	go func() {
		page, err := parsePage(data)
		done <- parseOutcome{page: page, err: err}
	}()

	select {
	case outcome := <-done:
		return outcome.page, outcome.err
	case <-time.After(e.parseTimeout):
		return parsedPage{}, fmt.Errorf("parse timed out after %s", e.parseTimeout)
	case <-ctx.Done():
		return parsedPage{}, ctx.Err()
	}
}
