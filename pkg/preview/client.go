// Package preview fetches live documents from the upstream wiki and cleans
// them up for side-by-side review.
package preview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

const (
	defaultTimeout = 30 * time.Second
	// 10 MB limit for upstream HTML
	defaultMaxBody = 10 * 1024 * 1024
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the upstream wiki.
type Client struct {
	base      *url.URL
	http      *http.Client
	maxBody   int64
	userAgent string
	log       *zap.Logger

	group singleflight.Group
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}
	c := &Client{
		base:      base,
		http:      opts.HTTPClient,
		maxBody:   opts.MaxBodyBytes,
		userAgent: opts.UserAgent,
		log:       opts.Logger,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.maxBody <= 0 {
		c.maxBody = defaultMaxBody
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c, nil
}

// BaseURL is the upstream root without a trailing slash.
func (c *Client) BaseURL() string { return c.base.String() }

// resolve turns a root-relative path into an absolute upstream address.
func (c *Client) resolve(path string) string {
	return c.base.String() + path
}

func (c *Client) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, apperrors.Upstream(target, 0, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return req, nil
}

// get fetches target. Identical concurrent fetches share one request, which
// is bounded by the client timeout rather than by any one caller's ctx; a
// caller that gives up stops waiting without failing the others.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	ch := c.group.DoChan(target, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), target)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debug("Shared upstream response", zap.String("url", target))
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, target)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("Upstream request failed", zap.String("url", target), zap.Error(err))
		return nil, apperrors.Upstream(target, 0, err)
	}
	defer resp.Body.Close()
	c.log.Debug("Upstream response",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if err := statusError(target, resp.StatusCode); err != nil {
		return nil, err
	}
	if resp.ContentLength > c.maxBody {
		return nil, apperrors.Upstream(target, resp.StatusCode,
			fmt.Errorf("content-length %d exceeds limit of %d bytes", resp.ContentLength, c.maxBody))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, apperrors.Upstream(target, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > c.maxBody {
		return nil, apperrors.Upstream(target, resp.StatusCode,
			fmt.Errorf("response body exceeded maximum size limit of %d bytes", c.maxBody))
	}
	return body, nil
}

func statusError(target string, status int) error {
	switch {
	case status == http.StatusNotFound:
		return apperrors.UpstreamNotFound(target)
	case status < 200 || status > 299:
		return apperrors.Upstream(target, status, nil)
	}
	return nil
}

// Exists reports whether a document is still served upstream. A 404 is a
// definite "no"; any other failure is returned as an error.
func (c *Client) Exists(ctx context.Context, locale, slug string) (bool, error) {
	target := c.resolve(docPath(locale, slug))
	req, err := c.newRequest(ctx, http.MethodHead, target)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, apperrors.Upstream(target, 0, err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err := statusError(target, resp.StatusCode); err != nil {
		return false, err
	}
	return true, nil
}

// docPath escapes each segment of slug but keeps the separators.
func docPath(locale, slug string) string {
	return "/" + url.PathEscape(locale) + "/docs/" + escapeSlug(slug)
}

func escapeSlug(slug string) string {
	parts := strings.Split(slug, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
