package sites

import (
	"context"

	"redgrab/pkg/fetch"
	"redgrab/pkg/models"
	"redgrab/pkg/resource"
)

const redgifsBase = "https://www.redgifs.com/watch/"

// Redgifs resolves redgifs links by scraping the watch page's embedded
// ld+json metadata for the real media URL.
type Redgifs struct {
	post   *models.Post
	client *fetch.Fetcher
	base   string
}

// NewRedgifs creates the redgifs adapter.
func NewRedgifs(post *models.Post, client *fetch.Fetcher) Adapter {
	return &Redgifs{post: post, client: client, base: redgifsBase}
}

func (a *Redgifs) Name() string { return "redgifs" }

func (a *Redgifs) FindResources(ctx context.Context) ([]*resource.Resource, error) {
	mediaURL, err := scrapeVideoPage(ctx, a.client, a.base+mediaID(a.post.URL))
	if err != nil {
		return nil, err
	}
	return []*resource.Resource{resource.New(a.post, mediaURL, "")}, nil
}
