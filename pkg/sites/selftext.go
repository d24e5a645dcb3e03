package sites

import (
	"context"
	"fmt"
	"strings"

	"redgrab/pkg/fetch"
	"redgrab/pkg/models"
	"redgrab/pkg/resource"
)

// SelfText synthesizes a markdown document from a self post's title and
// body. No network fetch happens: the content is populated directly and
// the fingerprint is available immediately.
type SelfText struct {
	post *models.Post
}

// NewSelfText creates the self-text adapter.
func NewSelfText(post *models.Post, _ *fetch.Fetcher) Adapter {
	return &SelfText{post: post}
}

func (a *SelfText) Name() string { return "selftext" }

func (a *SelfText) FindResources(_ context.Context) ([]*resource.Resource, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", a.post.Title)
	if a.post.SelfText != "" {
		b.WriteString(a.post.SelfText)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Submitted by u/%s", a.post.AuthorName())
	if a.post.Permalink != "" {
		fmt.Fprintf(&b, " at https://www.reddit.com%s", a.post.Permalink)
	}
	b.WriteString("\n")

	r := resource.New(a.post, a.post.URL, ".md")
	r.SetContent([]byte(b.String()))
	return []*resource.Resource{r}, nil
}
