package sites

import (
	"context"

	"redgrab/pkg/errors"
	"redgrab/pkg/fetch"
	"redgrab/pkg/logger"
	"redgrab/pkg/models"
	"redgrab/pkg/resource"
)

const gfycatBase = "https://gfycat.com/"

// Gfycat resolves gfycat links the same way Redgifs does, against its own
// base domain. Much of the catalog has migrated to redgifs, so when the
// gfycat page no longer carries the expected ld+json block the adapter
// chains to the sibling domain's scrape.
type Gfycat struct {
	post        *models.Post
	client      *fetch.Fetcher
	base        string
	siblingBase string
}

// NewGfycat creates the gfycat adapter.
func NewGfycat(post *models.Post, client *fetch.Fetcher) Adapter {
	return &Gfycat{post: post, client: client, base: gfycatBase, siblingBase: redgifsBase}
}

func (a *Gfycat) Name() string { return "gfycat" }

func (a *Gfycat) FindResources(ctx context.Context) ([]*resource.Resource, error) {
	id := mediaID(a.post.URL)

	mediaURL, err := scrapeVideoPage(ctx, a.client, a.base+id)
	if err != nil {
		if errors.KindOf(err) != errors.KindSite {
			return nil, err
		}
		logger.GetLogger().DebugWithFields("gfycat page missing media block, trying redgifs", map[string]interface{}{
			"post_id": a.post.ID,
			"url":     a.post.URL,
		})
		mediaURL, err = scrapeVideoPage(ctx, a.client, a.siblingBase+id)
		if err != nil {
			return nil, err
		}
	}
	return []*resource.Resource{resource.New(a.post, mediaURL, "")}, nil
}
