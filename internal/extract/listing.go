package extract

import (
	"errors"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/config"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/linkset"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

const maxDescriptionLen = 300

// Candidate rejection reasons, besides the link reasons in link.go.
var (
	ErrNoTitle        = errors.New("no title strategy matched")
	ErrTitleTooLong   = errors.New("title longer than max_title_len")
	ErrDuplicateLink  = errors.New("duplicate link")
	ErrDuplicateTitle = errors.New("duplicate title")
	ErrLanguage       = errors.New("title language not allowed")
)

// Extractor applies the title and link heuristics to one listing page.
type Extractor struct {
	Titles               *TitleResolver
	Links                *LinkResolver
	Languages            *LanguageFilter
	AnchorSelectors      []string
	SelectorMode         string
	DescriptionSelectors []string
	MinTitleLen          int
	MaxTitleLen          int
	DedupeTitles         bool
	MaxRecords           int
}

// NewExtractor builds the extractor described by a source configuration.
func NewExtractor(src *config.SourceConfig) (*Extractor, error) {
	links, err := NewLinkResolver(src.Domains, src.AllowPatterns, src.DenyPatterns)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		Titles: &TitleResolver{
			TitleSelectors: src.TitleSelectors,
			Boilerplate:    NewPhraseMatcher(src.Boilerplate),
			MinLen:         src.MinTitleLen,
			AncestorDepth:  src.AncestorDepth,
		},
		Links:                links,
		Languages:            NewLanguageFilter(src.Languages),
		AnchorSelectors:      src.AnchorSelectors,
		SelectorMode:         src.SelectorMode,
		DescriptionSelectors: src.DescriptionSelectors,
		MinTitleLen:          src.MinTitleLen,
		MaxTitleLen:          src.MaxTitleLen,
		DedupeTitles:         src.DedupeTitlesEnabled(),
		MaxRecords:           src.MaxRecords,
	}, nil
}

// Result is the outcome of one listing page extraction.
type Result struct {
	Candidates []models.RawCandidate
	Strategies []Strategy
	Anchors    int
	Rejected   map[string]int
}

func (r *Result) reject(reason error) {
	if r.Rejected == nil {
		r.Rejected = make(map[string]int)
	}
	r.Rejected[reason.Error()]++
}

// Batch carries the de-duplication state across the pages of one listing
// call so that uniqueness holds for the whole adapter batch.
type Batch struct {
	links  *linkset.Set
	titles map[string]bool
	fold   cases.Caser
	count  int
}

func NewBatch() *Batch {
	return &Batch{
		links:  linkset.NewSet(),
		titles: make(map[string]bool),
		fold:   cases.Fold(),
	}
}

func (b *Batch) Len() int {
	return b.count
}

// Extract runs the heuristics over every selected anchor under root.
func (e *Extractor) Extract(root *goquery.Selection, page *url.URL, batch *Batch) Result {
	var res Result
	anchors := e.selectAnchors(root)
	res.Anchors = len(anchors)

	for _, a := range anchors {
		if e.MaxRecords > 0 && batch.count >= e.MaxRecords {
			break
		}

		link, err := e.Links.Resolve(a.AttrOr("href", ""), page)
		if err != nil {
			res.reject(err)
			continue
		}
		if batch.links.Contains(link) {
			res.reject(ErrDuplicateLink)
			continue
		}

		title, strategy, ok := e.Titles.Resolve(a)
		if !ok {
			res.reject(ErrNoTitle)
			continue
		}
		if err := e.CheckTitle(title); err != nil {
			res.reject(err)
			continue
		}

		key := batch.fold.String(title)
		if e.DedupeTitles && batch.titles[key] {
			res.reject(ErrDuplicateTitle)
			continue
		}

		batch.links.Add(link)
		batch.titles[key] = true
		batch.count++

		res.Candidates = append(res.Candidates, models.RawCandidate{
			Title:       title,
			Link:        link,
			SourceHint:  page.Host,
			Description: e.description(a, title),
		})
		res.Strategies = append(res.Strategies, strategy)
	}

	return res
}

// CheckTitle applies the length and language rules shared by markup and
// feed extraction.
func (e *Extractor) CheckTitle(title string) error {
	n := RuneLen(title)
	if title == "" || n < e.MinTitleLen {
		return ErrNoTitle
	}
	if e.MaxTitleLen > 0 && n > e.MaxTitleLen {
		return ErrTitleTooLong
	}
	if !e.Languages.Allows(title) {
		return ErrLanguage
	}
	return nil
}

// Accept registers an externally extracted candidate (feed items) in the
// batch, applying the same link, title and uniqueness checks.
func (e *Extractor) Accept(c models.RawCandidate, batch *Batch) (models.RawCandidate, error) {
	if e.MaxRecords > 0 && batch.count >= e.MaxRecords {
		return c, errMaxRecords
	}
	c.Title = NormalizeText(c.Title)
	if err := e.Links.Check(c.Link); err != nil {
		return c, err
	}
	if batch.links.Contains(c.Link) {
		return c, ErrDuplicateLink
	}
	if err := e.CheckTitle(c.Title); err != nil {
		return c, err
	}
	key := batch.fold.String(c.Title)
	if e.DedupeTitles && batch.titles[key] {
		return c, ErrDuplicateTitle
	}
	batch.links.Add(c.Link)
	batch.titles[key] = true
	batch.count++
	return c, nil
}

var errMaxRecords = errors.New("max_records reached")

// IsCapReached reports whether err signals the per-batch record cap.
func IsCapReached(err error) bool {
	return errors.Is(err, errMaxRecords)
}

func (e *Extractor) selectAnchors(root *goquery.Selection) []*goquery.Selection {
	var anchors []*goquery.Selection
	seenHref := make(map[string]bool)

	for _, sel := range e.AnchorSelectors {
		found := root.Find(sel)
		if found.Length() == 0 {
			continue
		}
		found.Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) != "a" {
				s = s.Find("a[href]").First()
				if s.Length() == 0 {
					return
				}
			}
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			if e.SelectorMode == config.SelectorModeUnion {
				if seenHref[href] {
					return
				}
				seenHref[href] = true
			}
			anchors = append(anchors, s)
		})
		if e.SelectorMode != config.SelectorModeUnion && len(anchors) > 0 {
			break
		}
	}
	return anchors
}

func (e *Extractor) description(a *goquery.Selection, title string) string {
	parent := a.Parent()
	for _, sel := range e.DescriptionSelectors {
		var found string
		parent.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := Text(s)
			if text == "" || text == title {
				return true
			}
			found = text
			return false
		})
		if found != "" {
			return TruncateRunes(found, maxDescriptionLen)
		}
	}
	return ""
}
