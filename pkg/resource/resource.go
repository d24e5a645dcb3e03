package resource

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"redgrab/pkg/errors"
	"redgrab/pkg/models"
)

// extensionPattern matches the rightmost dot-extension of a URL path:
// a dot followed by 3 to 5 alphanumeric characters at the end of the path.
var extensionPattern = regexp.MustCompile(`(\.[A-Za-z0-9]{3,5})$`)

// Resource is one fetchable unit derived from a Post. A site adapter
// creates it, the fetcher populates Content exactly once, and the
// orchestrator makes a single persist decision. A failed fetch discards
// the Resource; it is never retried as an object.
type Resource struct {
	Post      *models.Post
	URL       string
	Extension string

	// Content is nil until fetched (or synthesized by a self-text
	// adapter).
	Content []byte

	hash string
}

// New creates a Resource. When ext is empty the extension is inferred
// from the URL's path suffix; inference failure leaves it empty, which is
// a hard error at path-computation time rather than a default.
func New(post *models.Post, rawurl, ext string) *Resource {
	if ext == "" {
		ext = InferExtension(rawurl)
	}
	return &Resource{Post: post, URL: rawurl, Extension: ext}
}

// SetContent populates the downloaded bytes and invalidates any
// previously computed hash.
func (r *Resource) SetContent(data []byte) {
	r.Content = data
	r.hash = ""
}

// HasContent reports whether bytes have been populated.
func (r *Resource) HasContent() bool {
	return r.Content != nil
}

// Hash lazily computes the MD5 fingerprint of the content. Calling it
// before content is populated is a usage error.
func (r *Resource) Hash() (string, error) {
	if r.Content == nil {
		return "", errors.ForURL(errors.KindUsage, r.URL, "hash requested before content was fetched")
	}
	if r.hash == "" {
		sum := md5.Sum(r.Content)
		r.hash = hex.EncodeToString(sum[:])
	}
	return r.hash, nil
}

// InferExtension extracts the rightmost dot-extension from a URL's path,
// ignoring any query string or fragment. Returns "" when none is found.
func InferExtension(rawurl string) string {
	path := rawurl
	if u, err := url.Parse(rawurl); err == nil && u.Path != "" {
		path = u.Path
	} else {
		// Fall back to manual stripping for unparsable inputs.
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
	}
	m := extensionPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
