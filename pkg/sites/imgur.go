package sites

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"redgrab/pkg/errors"
	"redgrab/pkg/fetch"
	"redgrab/pkg/models"
	"redgrab/pkg/resource"
)

const imgurMediaHost = "https://i.imgur.com/"

// imgurPostDataPattern isolates the inline widget-configuration script.
// The payload is a JSON-encoded string with irregular wrapper text around
// it, so it is cut out by regex first and unquoted before parsing.
var imgurPostDataPattern = regexp.MustCompile(`window\.postDataJSON\s*=\s*("(?s:.*?)")\s*(?:;|</script>)`)

// imgurPostData is the subset of the widget configuration the adapter
// needs.
type imgurPostData struct {
	IsAlbum bool `json:"is_album"`
	Media   []struct {
		ID  string `json:"id"`
		Ext string `json:"ext"`
	} `json:"media"`
}

// Imgur resolves imgur links: .gifv links are rewritten to their .mp4
// form directly, everything else is scraped from the page's inline
// postDataJSON script. Albums yield one resource per media entry.
type Imgur struct {
	post   *models.Post
	client *fetch.Fetcher
	host   string
}

// NewImgur creates the imgur adapter.
func NewImgur(post *models.Post, client *fetch.Fetcher) Adapter {
	return &Imgur{post: post, client: client, host: imgurMediaHost}
}

func (a *Imgur) Name() string { return "imgur" }

func (a *Imgur) FindResources(ctx context.Context) ([]*resource.Resource, error) {
	if strings.HasSuffix(strings.ToLower(Normalize(a.post.URL)), ".gifv") {
		url := a.host + mediaID(a.post.URL) + ".mp4"
		return []*resource.Resource{resource.New(a.post, url, ".mp4")}, nil
	}

	body, err := a.client.Fetch(ctx, a.post.URL, 0)
	if err != nil {
		return nil, err
	}

	m := imgurPostDataPattern.FindSubmatch(body)
	if m == nil {
		return nil, errors.ForURL(errors.KindSite, a.post.URL, "expected postDataJSON script block is absent")
	}

	// m[1] is a JSON string literal; unquote it, then parse the payload.
	var payload string
	if err := json.Unmarshal(m[1], &payload); err != nil {
		return nil, errors.ForURL(errors.KindSite, a.post.URL, "malformed postDataJSON wrapper: "+err.Error())
	}
	var data imgurPostData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, errors.ForURL(errors.KindSite, a.post.URL, "unparsable postDataJSON payload: "+err.Error())
	}
	if len(data.Media) == 0 {
		return nil, errors.ForURL(errors.KindSite, a.post.URL, "postDataJSON carries no media entries")
	}

	out := make([]*resource.Resource, 0, len(data.Media))
	for _, media := range data.Media {
		ext := strings.ToLower(media.Ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if ext == ".gifv" {
			ext = ".mp4"
		}
		out = append(out, resource.New(a.post, a.host+media.ID+ext, ext))
	}
	return out, nil
}
