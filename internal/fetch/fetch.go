// Package fetch downloads pages and robots.txt files for the adapters.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
)

const (
	MaxHops        = 15
	defaultReferer = "https://www.google.com/"
)

// ErrBlocked is returned when the response is a bot-check page instead of
// the requested content.
var ErrBlocked = errors.New("captcha detected")

var (
	rePageTitle  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	blockMarkers = []string{"captcha", "security check", "are you a robot", "attention required"}
)

type Fetcher struct {
	client    *http.Client
	userAgent string
}

type Option func(*Fetcher)

// WithTransport replaces the default transport. Listing collectors and
// article fetches both go through it.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) { f.client.Transport = rt }
}

func New(timeout time.Duration, userAgent string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= MaxHops {
					return fmt.Errorf("stopped after %d redirects", MaxHops)
				}
				return nil
			},
		},
		userAgent: userAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Transport is shared with the colly collectors of markup adapters so
// listing and article requests reuse one connection pool.
func (f *Fetcher) Transport() http.RoundTripper {
	return f.client.Transport
}

func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Get downloads urlStr and returns the body decoded to UTF-8. Transport
// errors, timeouts and non-200 statuses are network failures.
func (f *Fetcher) Get(ctx context.Context, urlStr string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", failure.Validation("build request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Referer", defaultReferer)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", failure.Network("get "+urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", failure.Network("get "+urlStr, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = resp.Body
	}

	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", failure.Network("read "+urlStr, err)
	}

	text := string(body)
	if IsBlockPage(text) {
		return "", failure.Network("get "+urlStr, ErrBlocked)
	}
	return text, nil
}

// IsBlockPage reports whether the page title looks like a bot check.
func IsBlockPage(html string) bool {
	m := rePageTitle.FindStringSubmatch(html)
	if m == nil {
		return false
	}
	title := strings.ToLower(m[1])
	for _, marker := range blockMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// Robots loads robots.txt of the site serving base and returns the group
// that applies to the fetcher's user agent. Missing files allow everything.
func (f *Fetcher) Robots(ctx context.Context, base string) (*robotstxt.Group, error) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, failure.Validation("robots base url", fmt.Errorf("invalid url %q", base))
	}
	robotsURL := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, failure.Validation("build robots request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, failure.Network("get "+robotsURL.String(), err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, failure.Parse("parse robots.txt", err)
	}
	return data.FindGroup(f.userAgent), nil
}
