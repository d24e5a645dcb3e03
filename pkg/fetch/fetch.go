package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"redgrab/pkg/errors"
	"redgrab/pkg/logger"
)

// DefaultRetryInterval is the fixed sleep between retries of a transient
// failure. Deliberately a flat interval, not exponential: the cumulative
// wait budget is the cutoff.
const DefaultRetryInterval = 60 * time.Second

// defaultUserAgent is sent on every request unless overridden.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Fetcher performs blocking HTTP transfers with bounded retry. Only
// status 408, 429, and connection-level failures are transient; any other
// non-2xx status fails immediately.
type Fetcher struct {
	client    *http.Client
	interval  time.Duration
	userAgent string
	log       logger.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithInterval overrides the fixed retry interval.
func WithInterval(d time.Duration) Option {
	return func(f *Fetcher) { f.interval = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithClient overrides the underlying HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New creates a Fetcher.
func New(log logger.Logger, opts ...Option) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	f := &Fetcher{
		client:    &http.Client{Timeout: 2 * time.Minute},
		interval:  DefaultRetryInterval,
		userAgent: defaultUserAgent,
		log:       log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url, retrying transient failures on a fixed interval
// while the accumulated sleep stays below maxWait. Success is a 2xx
// status with a non-empty body.
func (f *Fetcher) Fetch(ctx context.Context, url string, maxWait time.Duration) ([]byte, error) {
	var waited time.Duration
	for {
		data, err := f.once(ctx, url)
		if err == nil {
			return data, nil
		}
		if errors.KindOf(err) != errors.KindTransient {
			return nil, err
		}
		if waited >= maxWait {
			return nil, errors.ForURL(errors.KindTransient, url,
				"retry wait budget exhausted: "+err.Error())
		}

		f.log.WarnWithFields("transient fetch failure, retrying", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"waited":   waited,
			"max_wait": maxWait,
		})
		if err := sleep(ctx, f.interval); err != nil {
			return nil, errors.ForURL(errors.KindTransient, url, "retry cancelled: "+err.Error())
		}
		waited += f.interval
	}
}

// once performs a single GET attempt.
func (f *Fetcher) once(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.ForURL(errors.KindPermanent, url, "invalid request: "+err.Error())
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.ForURL(errors.KindTransient, url, "connection error: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.ForStatus(url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ForURL(errors.KindTransient, url, "read error: "+err.Error())
	}
	if len(data) == 0 {
		return nil, errors.ForURL(errors.KindPermanent, url, "empty response body")
	}
	return data, nil
}

// Exists probes url with a HEAD request, reporting whether it resolves to
// a 2xx response. Used by adapters that must discover which candidate
// extension a media identifier carries.
func (f *Fetcher) Exists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
