package adapter

import (
	"context"

	"github.com/gocolly/colly"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/extract"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

// MarkupAdapter scrapes headline anchors out of listing pages.
type MarkupAdapter struct {
	*base
}

func (m *MarkupAdapter) newCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(m.fetcher.UserAgent()),
	)
	c.WithTransport(m.fetcher.Transport())
	c.SetRequestTimeout(m.timeout)
	return c
}

// FetchListing visits every listing page once. Pages that fail are logged
// and skipped; the call fails only when no page could be fetched or no
// page yielded a record.
func (m *MarkupAdapter) FetchListing(ctx context.Context) ([]models.RawCandidate, error) {
	ex := m.withRobots(ctx)
	batch := extract.NewBatch()

	var candidates []models.RawCandidate
	c := m.newCollector()
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnHTML("html", func(e *colly.HTMLElement) {
		res := ex.Extract(e.DOM, e.Request.URL, batch)
		m.logRejections(e.Request.URL.String(), res)
		for _, c := range res.Candidates {
			c.Category = m.cfg.Category
			candidates = append(candidates, c)
		}
	})

	var firstErr error
	fetched := 0
	for _, listing := range m.cfg.ListingURLs {
		if err := ctx.Err(); err != nil {
			return nil, m.attribute(failure.Network("listing cancelled", err))
		}
		if m.cfg.MaxRecords > 0 && batch.Len() >= m.cfg.MaxRecords {
			break
		}
		if err := c.Visit(listing); err != nil {
			m.logger.Warn("listing page failed", zap.String("page", listing), zap.Error(err))
			if firstErr == nil {
				firstErr = failure.Network("get "+listing, err)
			}
			continue
		}
		fetched++
	}

	if err := ctx.Err(); err != nil {
		return nil, m.attribute(failure.Network("listing cancelled", err))
	}
	if fetched == 0 && firstErr != nil {
		return nil, m.attribute(firstErr)
	}
	if len(candidates) == 0 {
		return nil, m.attribute(noArticles())
	}
	return candidates, nil
}
