package extract

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// LanguageFilter drops headlines reliably detected as a language outside
// the allowed ISO 639-1 codes. A nil filter allows everything.
type LanguageFilter struct {
	allowed map[string]bool
}

func NewLanguageFilter(languages []string) *LanguageFilter {
	if len(languages) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(languages))
	for _, l := range languages {
		allowed[strings.ToLower(strings.TrimSpace(l))] = true
	}
	return &LanguageFilter{allowed: allowed}
}

func (f *LanguageFilter) Allows(text string) bool {
	if f == nil {
		return true
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return true
	}
	return f.allowed[info.Lang.Iso6391()]
}
