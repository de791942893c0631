package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudflare/ahocorasick"
)

var reWhitespace = regexp.MustCompile(`\s+`)

func NormalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// Text returns the whitespace-collapsed text of a selection.
func Text(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	return NormalizeText(s.Text())
}

func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 || RuneLen(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

// FirstSentence returns the text before the first period.
func FirstSentence(s string) string {
	if i := strings.Index(s, "."); i != -1 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// PhraseMatcher reports whether a text contains any of a fixed set of
// phrases, case-insensitively.
type PhraseMatcher struct {
	m     *ahocorasick.Matcher
	empty bool
}

func NewPhraseMatcher(phrases []string) *PhraseMatcher {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	if len(lowered) == 0 {
		return &PhraseMatcher{empty: true}
	}
	return &PhraseMatcher{m: ahocorasick.NewStringMatcher(lowered)}
}

func (p *PhraseMatcher) Contains(text string) bool {
	if p == nil || p.empty {
		return false
	}
	return p.m.Contains([]byte(strings.ToLower(text)))
}
