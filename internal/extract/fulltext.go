package extract

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/config"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
)

const (
	paragraphSeparator = "\n\n"
	looseParagraphLen  = 40
)

// FullTextExtractor pulls the article body out of a page, trying
// configured containers before generic markup and readability.
type FullTextExtractor struct {
	Selectors       []string
	Skip            *PhraseMatcher
	MinParagraphLen int
	MinLength       int
}

func NewFullTextExtractor(cfg config.FullTextConfig) *FullTextExtractor {
	return &FullTextExtractor{
		Selectors:       cfg.Selectors,
		Skip:            NewPhraseMatcher(cfg.SkipPhrases),
		MinParagraphLen: cfg.MinParagraphLen,
		MinLength:       cfg.MinLength,
	}
}

func (f *FullTextExtractor) Extract(rawHTML string, page *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", failure.Parse("parse article markup", err)
	}

	strategies := []func() string{
		func() string { return f.fromSelectors(doc) },
		func() string { return f.fromJSONLD(doc) },
		func() string { return f.join(f.paragraphs(doc.Find(`[itemprop="articleBody"] p`), f.MinParagraphLen)) },
		func() string { return f.join(f.paragraphs(doc.Find("article p"), f.MinParagraphLen)) },
		func() string {
			return f.join(f.paragraphs(doc.Find("p"), max(looseParagraphLen, f.MinParagraphLen)))
		},
		func() string { return f.fromReadability(rawHTML, page) },
	}

	for _, strategy := range strategies {
		if text := strategy(); text != "" {
			return text, nil
		}
	}
	return "", failure.Parse("extract full text", failure.ErrNoContent)
}

// join returns the paragraphs separated by blank lines, or "" when the
// result is below the minimum article length.
func (f *FullTextExtractor) join(parts []string) string {
	text := strings.Join(parts, paragraphSeparator)
	if RuneLen(text) < f.MinLength {
		return ""
	}
	return text
}

func (f *FullTextExtractor) paragraphs(sel *goquery.Selection, minLen int) []string {
	var parts []string
	sel.Each(func(_ int, p *goquery.Selection) {
		text := Text(p)
		if RuneLen(text) < minLen || f.Skip.Contains(text) {
			return
		}
		parts = append(parts, text)
	})
	return parts
}

func (f *FullTextExtractor) fromSelectors(doc *goquery.Document) string {
	for _, sel := range f.Selectors {
		matches := doc.Find(sel)
		if matches.Length() == 0 {
			continue
		}
		if strings.HasSuffix(sel, " p") {
			if text := f.join(f.paragraphs(matches, f.MinParagraphLen)); text != "" {
				return text
			}
			continue
		}
		var found string
		matches.EachWithBreak(func(_ int, container *goquery.Selection) bool {
			parts := f.paragraphs(container.Find("p"), f.MinParagraphLen)
			if len(parts) == 0 {
				parts = []string{Text(container)}
			}
			found = f.join(parts)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func (f *FullTextExtractor) fromJSONLD(doc *goquery.Document) string {
	var body string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		body = articleBody(data)
		if RuneLen(body) < f.MinLength {
			body = ""
		}
		return body == ""
	})
	return body
}

func articleBody(v any) string {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if body := articleBody(item); body != "" {
				return body
			}
		}
	case map[string]any:
		if isArticleType(node["@type"]) {
			if body, ok := node["articleBody"].(string); ok && strings.TrimSpace(body) != "" {
				return strings.TrimSpace(body)
			}
		}
		if graph, ok := node["@graph"]; ok {
			return articleBody(graph)
		}
	}
	return ""
}

func isArticleType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "NewsArticle" || t == "Article" || t == "ReportageNewsArticle"
	case []any:
		for _, item := range t {
			if isArticleType(item) {
				return true
			}
		}
	}
	return false
}

func (f *FullTextExtractor) fromReadability(rawHTML string, page *url.URL) string {
	if page == nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), page)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}
	doc.Find("figure, aside, script, style").Remove()

	if text := f.join(f.paragraphs(doc.Find("p"), f.MinParagraphLen)); text != "" {
		return text
	}
	return f.join([]string{Text(doc.Selection)})
}

// AuxiliaryExtractor collects secondary fragments such as quotes and
// highlights.
type AuxiliaryExtractor struct {
	Selectors []string
	Skip      *PhraseMatcher
	MinLen    int
}

func NewAuxiliaryExtractor(cfg config.AuxiliaryConfig) *AuxiliaryExtractor {
	return &AuxiliaryExtractor{
		Selectors: cfg.Selectors,
		Skip:      NewPhraseMatcher(cfg.SkipPhrases),
		MinLen:    cfg.MinLen,
	}
}

func (x *AuxiliaryExtractor) Extract(rawHTML string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, failure.Parse("parse page markup", err)
	}

	var out []string
	seen := make(map[string]bool)
	for _, sel := range x.Selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := Text(s)
			if RuneLen(text) <= x.MinLen || seen[text] || x.Skip.Contains(text) {
				return
			}
			seen[text] = true
			out = append(out, text)
		})
	}
	if len(out) == 0 {
		return nil, failure.Parse("extract auxiliary content", failure.ErrNoContent)
	}
	return out, nil
}
