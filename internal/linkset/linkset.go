// Package linkset normalizes article URLs, matches them against URL
// patterns and keeps a seen set of normalized links.
package linkset

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return urlStr
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}

	return parsed.String()
}

// ComputeHash is the md5 hex digest of content.
func ComputeHash(content string) string {
	hash := md5.Sum([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// Patterns is a compiled list of URL regexes.
type Patterns []*regexp.Regexp

func CompilePatterns(patterns []string) (Patterns, error) {
	out := make(Patterns, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (p Patterns) MatchAny(urlStr string) bool {
	for _, re := range p {
		if re.MatchString(urlStr) {
			return true
		}
	}
	return false
}

// ShouldBeFollowed applies exclude patterns first, then requires a follow
// pattern match when any follow patterns exist.
func ShouldBeFollowed(urlStr string, follow, exclude Patterns) bool {
	if exclude.MatchAny(urlStr) {
		return false
	}
	if len(follow) == 0 {
		return true
	}
	return follow.MatchAny(urlStr)
}

// HostInDomains reports whether host equals one of domains or is a
// subdomain of it. A leading "www." on either side is ignored.
func HostInDomains(host string, domains []string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "www."))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Set is a seen set keyed by the hash of the normalized URL.
type Set struct {
	seen map[string]struct{}
}

func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add records urlStr and reports whether it was new.
func (s *Set) Add(urlStr string) bool {
	key := ComputeHash(NormalizeURL(urlStr))
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

func (s *Set) Contains(urlStr string) bool {
	_, ok := s.seen[ComputeHash(NormalizeURL(urlStr))]
	return ok
}

func (s *Set) Len() int {
	return len(s.seen)
}
