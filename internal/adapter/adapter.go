// Package adapter turns source configuration into headline adapters.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/config"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/extract"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/fetch"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

// Adapter extracts headlines and article content from one outlet.
// Every returned error is a *failure.Error.
type Adapter interface {
	Name() string
	FetchListing(ctx context.Context) ([]models.RawCandidate, error)
	FetchFullText(ctx context.Context, articleURL string) (string, error)
	FetchAuxiliary(ctx context.Context, articleURL string) ([]string, error)
}

// base holds what the markup and feed adapters share: the configured
// heuristics and the article-page capabilities.
type base struct {
	cfg       *config.SourceConfig
	extractor *extract.Extractor
	fullText  *extract.FullTextExtractor
	auxiliary *extract.AuxiliaryExtractor
	fetcher   *fetch.Fetcher
	timeout   time.Duration
	logger    *zap.Logger
}

func newBase(src *config.SourceConfig, fetcher *fetch.Fetcher, timeout time.Duration, logger *zap.Logger) (*base, error) {
	ex, err := extract.NewExtractor(src)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name, err)
	}
	return &base{
		cfg:       src,
		extractor: ex,
		fullText:  extract.NewFullTextExtractor(src.FullText),
		auxiliary: extract.NewAuxiliaryExtractor(src.Auxiliary),
		fetcher:   fetcher,
		timeout:   timeout,
		logger:    logger.With(zap.String("source", src.Name)),
	}, nil
}

func (b *base) Name() string {
	return b.cfg.Name
}

func (b *base) FetchFullText(ctx context.Context, articleURL string) (string, error) {
	page, err := articlePage(articleURL)
	if err != nil {
		return "", b.attribute(err)
	}
	html, err := b.fetcher.Get(ctx, page.String())
	if err != nil {
		return "", b.attribute(err)
	}
	text, err := b.fullText.Extract(html, page)
	if err != nil {
		return "", b.attribute(err)
	}
	return text, nil
}

func (b *base) FetchAuxiliary(ctx context.Context, articleURL string) ([]string, error) {
	page, err := articlePage(articleURL)
	if err != nil {
		return nil, b.attribute(err)
	}
	html, err := b.fetcher.Get(ctx, page.String())
	if err != nil {
		return nil, b.attribute(err)
	}
	items, err := b.auxiliary.Extract(html)
	if err != nil {
		return nil, b.attribute(err)
	}
	return items, nil
}

// withRobots returns the extractor to use for one listing call, carrying
// the robots group when the source respects robots.txt.
func (b *base) withRobots(ctx context.Context) *extract.Extractor {
	if !b.cfg.RespectRobots {
		return b.extractor
	}
	group, err := b.fetcher.Robots(ctx, b.cfg.BaseURL)
	if err != nil {
		b.logger.Warn("robots.txt unavailable, not filtering", zap.Error(err))
		return b.extractor
	}
	links := *b.extractor.Links
	links.Robots = group
	ex := *b.extractor
	ex.Links = &links
	return &ex
}

func (b *base) logRejections(page string, res extract.Result) {
	if ce := b.logger.Check(zap.DebugLevel, "listing page extracted"); ce != nil {
		strategies := make(map[string]int)
		for _, s := range res.Strategies {
			strategies[s.String()]++
		}
		ce.Write(
			zap.String("page", page),
			zap.Int("anchors", res.Anchors),
			zap.Int("accepted", len(res.Candidates)),
			zap.Any("strategies", strategies),
			zap.Any("rejected", res.Rejected),
		)
	}
}

// attribute tags err with the source name.
func (b *base) attribute(err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return fe.WithSource(b.cfg.Name)
	}
	return failure.Parse("", err).WithSource(b.cfg.Name)
}

func noArticles() error {
	return failure.Parse("listing", failure.ErrNoArticles)
}

func articlePage(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, failure.Validation("article url", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, failure.Validation("article url", fmt.Errorf("%q is not an absolute http(s) url", raw))
	}
	return u, nil
}

// New builds the adapter for one source: a feed adapter when a feed is
// configured, falling back to markup when listing pages are configured too.
func New(src *config.SourceConfig, fetcher *fetch.Fetcher, timeout time.Duration, logger *zap.Logger) (Adapter, error) {
	b, err := newBase(src, fetcher, timeout, logger)
	if err != nil {
		return nil, err
	}

	var markup *MarkupAdapter
	if src.HasMarkup() {
		markup = &MarkupAdapter{base: b}
	}
	if src.HasFeed() {
		return &FeedAdapter{base: b, fallback: markup}, nil
	}
	if markup == nil {
		return nil, fmt.Errorf("source %s: neither feed nor listing urls", src.Name)
	}
	return markup, nil
}

// FromConfig builds the ordered adapter registry, skipping disabled sources.
func FromConfig(cfg *config.Config, fetcher *fetch.Fetcher, logger *zap.Logger) ([]Adapter, error) {
	timeout := time.Duration(cfg.Logic.TimeoutSec) * time.Second
	adapters := make([]Adapter, 0, len(cfg.Sources))
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.Disabled {
			logger.Info("source disabled, skipping", zap.String("source", src.Name))
			continue
		}
		a, err := New(src, fetcher, timeout, logger)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}
