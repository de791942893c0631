package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy identifies which step of the title fallback chain produced a
// title. The order of the constants is the order the chain tries them.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyTitleContainer
	StrategyNestedHeading
	StrategyAnchorText
	StrategyTitleAttr
	StrategyAncestorHeading
	StrategyImageAlt
	StrategySurroundingText
)

func (s Strategy) String() string {
	switch s {
	case StrategyTitleContainer:
		return "title_container"
	case StrategyNestedHeading:
		return "nested_heading"
	case StrategyAnchorText:
		return "anchor_text"
	case StrategyTitleAttr:
		return "title_attr"
	case StrategyAncestorHeading:
		return "ancestor_heading"
	case StrategyImageAlt:
		return "image_alt"
	case StrategySurroundingText:
		return "surrounding_text"
	default:
		return "none"
	}
}

const headingSelector = "h1, h2, h3, h4, h5, h6"

// TitleResolver runs the title fallback chain over an anchor element.
type TitleResolver struct {
	TitleSelectors []string
	Boilerplate    *PhraseMatcher
	MinLen         int
	AncestorDepth  int
}

// Resolve returns the first title that is non-empty and at least MinLen
// runes long, and the strategy that produced it.
func (r *TitleResolver) Resolve(a *goquery.Selection) (string, Strategy, bool) {
	steps := []struct {
		strategy Strategy
		fn       func(*goquery.Selection) string
	}{
		{StrategyTitleContainer, r.fromTitleContainer},
		{StrategyNestedHeading, fromNestedHeading},
		{StrategyAnchorText, r.fromAnchorText},
		{StrategyTitleAttr, fromTitleAttr},
		{StrategyAncestorHeading, r.fromAncestorHeading},
		{StrategyImageAlt, fromImageAlt},
		{StrategySurroundingText, fromSurroundingText},
	}

	for _, step := range steps {
		if title := step.fn(a); r.qualifies(title) {
			return title, step.strategy, true
		}
	}
	return "", StrategyNone, false
}

func (r *TitleResolver) qualifies(title string) bool {
	return title != "" && RuneLen(title) >= r.MinLen
}

func (r *TitleResolver) firstQualifying(scope *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		var found string
		scope.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := Text(s); r.qualifies(text) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func (r *TitleResolver) fromTitleContainer(a *goquery.Selection) string {
	return r.firstQualifying(a, r.TitleSelectors)
}

func fromNestedHeading(a *goquery.Selection) string {
	return Text(a.Find(headingSelector).First())
}

func (r *TitleResolver) fromAnchorText(a *goquery.Selection) string {
	text := Text(a)
	if r.Boilerplate.Contains(text) {
		return ""
	}
	return text
}

func fromTitleAttr(a *goquery.Selection) string {
	if title := NormalizeText(a.AttrOr("title", "")); title != "" {
		return title
	}
	return NormalizeText(a.AttrOr("aria-label", ""))
}

func (r *TitleResolver) fromAncestorHeading(a *goquery.Selection) string {
	cur := a.Parent()
	for depth := 0; depth < r.AncestorDepth && cur.Length() > 0; depth++ {
		if isHeading(cur) {
			if text := Text(cur); r.qualifies(text) {
				return text
			}
		}
		if text := Text(cur.Find(headingSelector).First()); r.qualifies(text) {
			return text
		}
		if text := r.firstQualifying(cur, r.TitleSelectors); text != "" {
			return text
		}
		cur = cur.Parent()
	}
	return ""
}

func fromImageAlt(a *goquery.Selection) string {
	return NormalizeText(a.Find("img[alt]").First().AttrOr("alt", ""))
}

func fromSurroundingText(a *goquery.Selection) string {
	parent := a.Parent()
	if parent.Length() == 0 {
		return ""
	}
	surrounding := Text(parent)
	if own := Text(a); own != "" {
		surrounding = NormalizeText(strings.Replace(surrounding, own, "", 1))
	}
	return FirstSentence(surrounding)
}

func isHeading(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}
