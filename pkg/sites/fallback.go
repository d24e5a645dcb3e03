package sites

import (
	"context"
	"strings"

	"github.com/kkdai/youtube/v2"

	"redgrab/pkg/errors"
	"redgrab/pkg/fetch"
	"redgrab/pkg/models"
	"redgrab/pkg/resource"
)

// YoutubeProbe answers capability checks for the fallback extractor by
// asking the library to resolve the URL. The probe is network I/O and
// treated as fallible: any failure just means "cannot handle".
type YoutubeProbe struct {
	client youtube.Client
}

// NewYoutubeProbe creates the fallback capability probe.
func NewYoutubeProbe() *YoutubeProbe {
	return &YoutubeProbe{}
}

// CanHandle reports whether the extractor recognizes the URL.
func (p *YoutubeProbe) CanHandle(ctx context.Context, url string) bool {
	_, err := p.client.GetVideoContext(ctx, url)
	return err == nil
}

// Fallback delegates wholesale to the embedded media extraction library,
// which resolves the video, picks a format, and decides the extension
// itself.
type Fallback struct {
	post   *models.Post
	client youtube.Client
}

// NewFallback creates the fallback extractor adapter.
func NewFallback(post *models.Post, _ *fetch.Fetcher) Adapter {
	return &Fallback{post: post}
}

func (a *Fallback) Name() string { return "fallback" }

func (a *Fallback) FindResources(ctx context.Context) ([]*resource.Resource, error) {
	video, err := a.client.GetVideoContext(ctx, a.post.URL)
	if err != nil {
		return nil, errors.ForURL(errors.KindSite, a.post.URL, "extractor cannot resolve video: "+err.Error())
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		formats = video.Formats
	}
	if len(formats) == 0 {
		return nil, errors.ForURL(errors.KindNotFound, a.post.URL, "extractor found no downloadable formats")
	}
	format := &formats[0]

	streamURL, err := a.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, errors.ForURL(errors.KindSite, a.post.URL, "extractor cannot build stream URL: "+err.Error())
	}

	return []*resource.Resource{resource.New(a.post, streamURL, formatExtension(format))}, nil
}

// formatExtension derives the file extension from the format's MIME type.
func formatExtension(format *youtube.Format) string {
	mimeType := strings.SplitN(format.MimeType, ";", 2)[0]
	parts := strings.SplitN(mimeType, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return ".mp4"
	}
	return "." + parts[1]
}
