package adapter

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/extract"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

const (
	httpPrefix         = "http"
	maxFeedDescription = 300
)

var (
	_ Adapter = (*FeedAdapter)(nil)
	_ Adapter = (*MarkupAdapter)(nil)
)

// FeedAdapter reads headlines from an RSS or Atom feed. When the source
// also lists markup pages, they are scraped if the feed fails or is empty.
type FeedAdapter struct {
	*base
	fallback *MarkupAdapter
}

func (f *FeedAdapter) FetchListing(ctx context.Context) ([]models.RawCandidate, error) {
	candidates, err := f.fetchFeed(ctx)
	if err == nil || f.fallback == nil || ctx.Err() != nil {
		return candidates, err
	}
	f.logger.Warn("feed unusable, falling back to listing pages", zap.Error(err))
	return f.fallback.FetchListing(ctx)
}

func (f *FeedAdapter) fetchFeed(ctx context.Context) ([]models.RawCandidate, error) {
	feedURL, err := url.Parse(f.cfg.Feed.URL)
	if err != nil {
		return nil, f.attribute(failure.Validation("feed url", err))
	}

	body, err := f.fetcher.Get(ctx, f.cfg.Feed.URL)
	if err != nil {
		return nil, f.attribute(err)
	}

	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, f.attribute(failure.Parse("parse feed", err))
	}

	ex := f.withRobots(ctx)
	batch := extract.NewBatch()
	rejected := make(map[string]int)
	var candidates []models.RawCandidate

	for _, item := range parsed.Items {
		link, err := ex.Links.Resolve(itemLink(item, f.cfg.Feed.PreferEmbeddedLink), feedURL)
		if err != nil {
			rejected[err.Error()]++
			continue
		}
		c, err := ex.Accept(models.RawCandidate{
			Title:       item.Title,
			Link:        link,
			SourceHint:  feedURL.Host,
			Description: itemDescription(item),
			PublishedAt: publishedAt(item),
		}, batch)
		if extract.IsCapReached(err) {
			break
		}
		if err != nil {
			rejected[err.Error()]++
			continue
		}
		candidates = append(candidates, c)
	}

	f.logger.Debug("feed extracted",
		zap.String("feed", f.cfg.Feed.URL),
		zap.Int("items", len(parsed.Items)),
		zap.Int("accepted", len(candidates)),
		zap.Any("rejected", rejected),
	)

	if len(candidates) == 0 {
		return nil, f.attribute(noArticles())
	}
	return candidates, nil
}

// itemLink picks the article URL of a feed item. Aggregator feeds point
// item links at their own redirect pages, so the first anchor of the
// description wins when preferEmbedded is set.
func itemLink(item *gofeed.Item, preferEmbedded bool) string {
	if preferEmbedded {
		if href := embeddedLink(item.Description); href != "" {
			return href
		}
	}
	if item.Link != "" {
		return item.Link
	}
	if strings.HasPrefix(item.GUID, httpPrefix) {
		return item.GUID
	}
	return ""
}

func embeddedLink(description string) string {
	if !strings.Contains(description, "<a") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("a[href]").First().AttrOr("href", ""))
}

func itemDescription(item *gofeed.Item) string {
	text := item.Description
	if strings.Contains(text, "<") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err == nil {
			text = doc.Text()
		}
	}
	text = extract.NormalizeText(text)
	if text == extract.NormalizeText(item.Title) {
		return ""
	}
	return extract.TruncateRunes(text, maxFeedDescription)
}

func publishedAt(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return item.Published
}
