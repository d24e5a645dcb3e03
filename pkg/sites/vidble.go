package sites

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"redgrab/pkg/errors"
	"redgrab/pkg/fetch"
	"redgrab/pkg/models"
	"redgrab/pkg/resource"
)

const vidbleHost = "https://vidble.com"

// preferredBitrateToken picks one variant when a clip offers several
// bitrates.
const preferredBitrateToken = "720"

// Vidble resolves vidble albums by scraping the page DOM: front-facing
// image tags plus video source tags, with video variants reduced to a
// single preferred bitrate per clip.
type Vidble struct {
	post   *models.Post
	client *fetch.Fetcher
	host   string
}

// NewVidble creates the vidble adapter.
func NewVidble(post *models.Post, client *fetch.Fetcher) Adapter {
	return &Vidble{post: post, client: client, host: vidbleHost}
}

func (a *Vidble) Name() string { return "vidble" }

func (a *Vidble) FindResources(ctx context.Context) ([]*resource.Resource, error) {
	doc, err := fetchDocument(ctx, a.client, a.post.URL)
	if err != nil {
		return nil, err
	}

	var urls []string

	doc.Find("img.img2").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}
		urls = append(urls, a.absolute(fullSize(src)))
	})

	doc.Find("video").Each(func(_ int, video *goquery.Selection) {
		var sources []string
		video.Find("source").Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("src"); ok && src != "" {
				sources = append(sources, src)
			}
		})
		if pick := pickVariant(sources); pick != "" {
			urls = append(urls, a.absolute(pick))
		}
	})

	if len(urls) == 0 {
		return nil, errors.ForURL(errors.KindSite, a.post.URL, "page carries no image or video elements")
	}

	out := make([]*resource.Resource, 0, len(urls))
	for _, u := range urls {
		out = append(out, resource.New(a.post, u, ""))
	}
	return out, nil
}

func (a *Vidble) absolute(src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	return a.host + "/" + strings.TrimPrefix(src, "/")
}

// fullSize strips the thumbnail variant suffix from an image URL.
func fullSize(src string) string {
	return strings.Replace(src, "_med.", ".", 1)
}

// pickVariant reduces a clip's source list to one URL, preferring the
// configured bitrate and falling back to the first offered.
func pickVariant(sources []string) string {
	if len(sources) == 0 {
		return ""
	}
	for _, src := range sources {
		if strings.Contains(src, preferredBitrateToken) {
			return src
		}
	}
	return sources[0]
}
