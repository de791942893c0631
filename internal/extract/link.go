package extract

import (
	"errors"
	"net/url"
	"strings"

	"github.com/temoto/robotstxt"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/linkset"
)

// Link rejection reasons.
var (
	ErrEmptyHref      = errors.New("empty href")
	ErrNonArticleHref = errors.New("non-article href scheme")
	ErrBadHref        = errors.New("unparsable href")
	ErrDenied         = errors.New("link matches deny list")
	ErrNotAllowed     = errors.New("link matches no article pattern")
	ErrForeignDomain  = errors.New("link outside configured domains")
	ErrRobots         = errors.New("link disallowed by robots.txt")
)

// DefaultDenyPatterns reject media and file links on every source.
var DefaultDenyPatterns = []string{
	`(?i)\.(jpe?g|png|gif|svg|webp|ico|pdf|mp3|mp4|m4a|wav|avi|mov|zip|gz)(\?.*)?$`,
}

var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// LinkResolver turns hrefs into absolute article URLs and rejects the
// ones that are not articles of the configured outlet.
type LinkResolver struct {
	Domains []string
	Allow   linkset.Patterns
	Deny    linkset.Patterns
	Robots  *robotstxt.Group
}

func NewLinkResolver(domains, allow, deny []string) (*LinkResolver, error) {
	allowPatterns, err := linkset.CompilePatterns(allow)
	if err != nil {
		return nil, err
	}
	denyPatterns, err := linkset.CompilePatterns(append(append([]string{}, DefaultDenyPatterns...), deny...))
	if err != nil {
		return nil, err
	}
	return &LinkResolver{Domains: domains, Allow: allowPatterns, Deny: denyPatterns}, nil
}

// Resolve joins href against base and validates the result.
func (r *LinkResolver) Resolve(href string, base *url.URL) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", ErrEmptyHref
	}
	if strings.HasPrefix(href, "#") {
		return "", ErrNonArticleHref
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", ErrNonArticleHref
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", ErrBadHref
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
		return "", ErrNonArticleHref
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	link := abs.String()

	if err := r.Check(link); err != nil {
		return "", err
	}
	return link, nil
}

// Check validates an already absolute link.
func (r *LinkResolver) Check(link string) error {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return ErrBadHref
	}
	if !linkset.ShouldBeFollowed(link, r.Allow, r.Deny) {
		if r.Deny.MatchAny(link) {
			return ErrDenied
		}
		return ErrNotAllowed
	}
	if len(r.Domains) > 0 && !linkset.HostInDomains(u.Host, r.Domains) {
		return ErrForeignDomain
	}
	if r.Robots != nil && !r.Robots.Test(u.EscapedPath()) {
		return ErrRobots
	}
	return nil
}
