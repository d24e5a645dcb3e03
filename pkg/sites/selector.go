package sites

import (
	"context"
	"regexp"
	"strings"

	"redgrab/pkg/errors"
	"redgrab/pkg/fetch"
	"redgrab/pkg/models"
)

// pattern pairs a normalized host+path regexp with the adapter it routes
// to. Patterns are tried in order, so specific shapes (an imgur .gifv
// link, a reddit-hosted gallery path) sit above generic catch-alls.
type pattern struct {
	name    string
	re      *regexp.Regexp
	factory Factory
}

func defaultPatterns() []pattern {
	return []pattern{
		{"imgur", regexp.MustCompile(`^(i\.|m\.)?imgur\.com/.*\.gifv$`), NewImgur},
		{"gallery", regexp.MustCompile(`^reddit\.com/gallery/`), NewGallery},
		{"imgur", regexp.MustCompile(`^(i\.|m\.)?imgur\.com/`), NewImgur},
		{"selftext", regexp.MustCompile(`^(old\.)?reddit\.com/r/[^/]+/comments/`), NewSelfText},
		{"redgifs", regexp.MustCompile(`^(v3\.)?redgifs\.com/`), NewRedgifs},
		{"gfycat", regexp.MustCompile(`^gfycat\.com/`), NewGfycat},
		{"vidble", regexp.MustCompile(`^vidble\.com/`), NewVidble},
		// Last resort before the fallback extractor: a path ending in a
		// dot-extension is treated as a direct link. Anchored to the end
		// of the normalized string (query already stripped) and required
		// to sit after a slash, so the host's TLD never counts as an
		// extension.
		{"direct", regexp.MustCompile(`/[^/]*\.[A-Za-z0-9]{3,4}$`), NewDirect},
	}
}

// Selector maps a URL to the adapter that can resolve it.
type Selector struct {
	patterns []pattern
	probe    CapabilityProbe
	fallback Factory
}

// NewSelector creates a selector with the standard pattern table and the
// given fallback probe. A nil probe disables the fallback adapter.
func NewSelector(probe CapabilityProbe) *Selector {
	s := &Selector{
		patterns: defaultPatterns(),
		probe:    probe,
	}
	if probe != nil {
		s.fallback = NewFallback
	}
	return s
}

// DefaultSelector creates a selector backed by the youtube extractor as
// its fallback.
func DefaultSelector() *Selector {
	return NewSelector(NewYoutubeProbe())
}

// Normalize strips the scheme, a leading "www.", and any query string or
// fragment, leaving host+path for pattern matching.
func Normalize(rawurl string) string {
	s := rawurl
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

// Select returns the factory for the first matching pattern. Matching is
// pure except for the fallback's capability probe, which performs network
// I/O. An unrecognized URL is a not-downloadable error.
func (s *Selector) Select(ctx context.Context, rawurl string) (Factory, error) {
	normalized := Normalize(rawurl)
	for _, p := range s.patterns {
		if p.re.MatchString(normalized) {
			return p.factory, nil
		}
	}
	if s.probe != nil && s.probe.CanHandle(ctx, rawurl) {
		return s.fallback, nil
	}
	return nil, errors.ForURL(errors.KindNotDownloadable, rawurl, "no site adapter matches this URL")
}

// ForPost resolves the adapter for a post. Self posts synthesize their
// own text document and bypass URL matching entirely.
func (s *Selector) ForPost(ctx context.Context, post *models.Post, client *fetch.Fetcher) (Adapter, error) {
	if post.IsSelf {
		return NewSelfText(post, client), nil
	}
	factory, err := s.Select(ctx, post.URL)
	if err != nil {
		return nil, err
	}
	return factory(post, client), nil
}
