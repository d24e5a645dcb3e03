package sites

import (
	"context"

	"redgrab/pkg/errors"
	"redgrab/pkg/fetch"
	"redgrab/pkg/logger"
	"redgrab/pkg/models"
	"redgrab/pkg/resource"
)

// galleryHost serves reddit gallery media by bare identifier; the site
// never declares which extension an identifier carries.
const galleryHost = "https://i.redd.it/"

// galleryCandidateExtensions are probed in order per media identifier,
// stopping at the first that resolves.
var galleryCandidateExtensions = []string{".jpg", ".png", ".gif", ".mp4"}

// Gallery resolves reddit-hosted gallery posts. The post carries a list
// of media identifiers; each one is probed against the candidate
// extensions with HEAD requests.
type Gallery struct {
	post   *models.Post
	client *fetch.Fetcher
	log    logger.Logger
	host   string
}

// NewGallery creates the reddit gallery adapter.
func NewGallery(post *models.Post, client *fetch.Fetcher) Adapter {
	return &Gallery{post: post, client: client, log: logger.GetLogger(), host: galleryHost}
}

func (a *Gallery) Name() string { return "gallery" }

func (a *Gallery) FindResources(ctx context.Context) ([]*resource.Resource, error) {
	if len(a.post.GalleryIDs) == 0 {
		return nil, errors.ForURL(errors.KindSite, a.post.URL, "gallery post carries no media identifiers")
	}

	var out []*resource.Resource
	for _, id := range a.post.GalleryIDs {
		resolved := false
		for _, ext := range galleryCandidateExtensions {
			candidate := a.host + id + ext
			if a.client.Exists(ctx, candidate) {
				out = append(out, resource.New(a.post, candidate, ext))
				resolved = true
				break
			}
		}
		if !resolved {
			a.log.ErrorWithFields("gallery media identifier resolved to nothing", map[string]interface{}{
				"post_id":  a.post.ID,
				"media_id": id,
			})
		}
	}

	if len(out) == 0 {
		return nil, errors.ForURL(errors.KindNotFound, a.post.URL, "no gallery media identifier resolved")
	}
	return out, nil
}
