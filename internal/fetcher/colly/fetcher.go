// Package collyfetcher implements the crawl fetch primitive using gocolly.
//
// A fetch never fails from the caller's point of view: any unusable outcome
// is logged and reported as an empty body.
package collyfetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-crawler/internal/metrics"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultCooldown = 15 * time.Second
)

// DefaultUserAgent is the desktop browser identity sent with every fetch.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/70.0.3538.77 Safari/537.36"

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, locator string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	// Timeout bounds a single request.
	Timeout time.Duration
	// Cooldown is slept after a connection-level failure.
	Cooldown time.Duration
	// Limiter is optional.
	Limiter Limiter
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	headers       http.Header
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// outcome is what one collector run produced.
type outcome struct {
	status     int
	body       []byte
	err        error
	connFailed bool
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	c.SetRedirectHandler(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	})

	return &Fetcher{
		cfg:           cfg,
		headers:       HeaderProfile(),
		baseCollector: c,
		logger:        logger,
	}
}

// HeaderProfile is the fixed set of request headers sent with every fetch.
// Accept-Encoding is left to the transport so responses are decompressed.
func HeaderProfile() http.Header {
	return http.Header{
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.9,ru;q=0.8"},
		"Cache-Control":   {"max-age=0"},
		"Connection":      {"keep-alive"},
	}
}

// Fetch retrieves locator and returns its body, or "" when the page is unusable.
func (f *Fetcher) Fetch(ctx context.Context, locator string) string {
	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(ctx, locator); err != nil {
			f.logger.Debug("fetch abandoned while rate limited", zap.String("url", locator), zap.Error(err))
			return ""
		}
	}
	start := time.Now()
	res := f.run(ctx, locator)
	elapsed := time.Since(start)

	switch {
	case res.err != nil && res.connFailed:
		f.logger.Warn("connection failed; cooling down",
			zap.String("url", locator),
			zap.Duration("cooldown", f.cfg.Cooldown),
			zap.Error(res.err),
		)
		metrics.ObserveFetch(locator, metrics.FetchConnError, 0, elapsed)
		f.cooldown(ctx)
		return ""
	case res.err != nil:
		f.logger.Warn("fetch failed", zap.String("url", locator), zap.Error(res.err))
		metrics.ObserveFetch(locator, metrics.FetchInvalid, 0, elapsed)
		return ""
	case res.status < 200 || res.status > 299:
		f.logger.Warn("unexpected status", zap.String("url", locator), zap.Int("status_code", res.status))
		metrics.ObserveFetch(locator, metrics.FetchHTTPError, len(res.body), elapsed)
		return ""
	}
	metrics.ObserveFetch(locator, metrics.FetchOK, len(res.body), elapsed)
	return string(res.body)
}

func (f *Fetcher) run(ctx context.Context, locator string) outcome {
	var res outcome
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.Context = ctx
	f.configureCollectorHooks(collector, &res)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(locator)
	}()

	select {
	case <-ctx.Done():
		return outcome{err: ctx.Err()}
	case err := <-done:
		if res.err == nil && err != nil {
			res.err = err
			res.connFailed = isConnError(err)
		}
		return res
	}
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, res *outcome) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range f.headers {
			r.Headers.Del(key)
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		res.status = r.StatusCode
		res.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		res.err = err
		res.connFailed = (r == nil || r.StatusCode == 0) && isConnError(err)
		if r != nil {
			res.status = r.StatusCode
		}
	})
}

func (f *Fetcher) cooldown(ctx context.Context) {
	if f.cfg.Cooldown == 0 {
		return
	}
	timer := time.NewTimer(f.cfg.Cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// isConnError reports whether err came from the network layer rather than
// from a malformed locator.
func isConnError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
}
