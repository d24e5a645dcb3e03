package sites

import (
	"context"

	"redgrab/pkg/fetch"
	"redgrab/pkg/models"
	"redgrab/pkg/resource"
)

// Direct handles links that already point at the media: the resource URL
// is the post URL verbatim, no resolution needed.
type Direct struct {
	post *models.Post
}

// NewDirect creates the direct-link adapter.
func NewDirect(post *models.Post, _ *fetch.Fetcher) Adapter {
	return &Direct{post: post}
}

func (a *Direct) Name() string { return "direct" }

func (a *Direct) FindResources(_ context.Context) ([]*resource.Resource, error) {
	return []*resource.Resource{resource.New(a.post, a.post.URL, "")}, nil
}
