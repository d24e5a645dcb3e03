package sites

import (
	"context"

	"redgrab/pkg/fetch"
	"redgrab/pkg/models"
	"redgrab/pkg/resource"
)

// Adapter turns a post's URL into one or more fetchable resources. An
// adapter may perform network I/O (page fetch, extension probing) to
// resolve the actual media URLs, which are usually distinct from the
// post's original URL. Every unresolvable condition surfaces as a typed
// error carrying the failing URL; adapters never return partially wrong
// data when a site's expected structure is absent.
type Adapter interface {
	Name() string
	FindResources(ctx context.Context) ([]*resource.Resource, error)
}

// Factory constructs an adapter for one post.
type Factory func(post *models.Post, client *fetch.Fetcher) Adapter

// CapabilityProbe reports whether the fallback extractor recognizes a
// URL. The probe itself performs network I/O and is fallible.
type CapabilityProbe interface {
	CanHandle(ctx context.Context, url string) bool
}
