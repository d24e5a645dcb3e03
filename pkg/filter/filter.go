package filter

import (
	"strings"

	"redgrab/pkg/resource"
)

// Filter rejects resources by file extension or source domain before any
// bytes are fetched. Both lists are fixed at construction; empty lists
// allow everything on that axis.
type Filter struct {
	extensions []string
	domains    []string
}

// New creates a Filter from excluded extensions and excluded domain
// fragments. Extensions are matched case-insensitively against the
// resource's extension suffix; domains are substring-matched against the
// resource URL.
func New(extensions, domains []string) *Filter {
	f := &Filter{}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions = append(f.extensions, ext)
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		f.domains = append(f.domains, d)
	}
	return f
}

// Check reports whether the resource is allowed through.
func (f *Filter) Check(r *resource.Resource) bool {
	return f.checkExtension(r) && f.checkDomain(r)
}

func (f *Filter) checkExtension(r *resource.Resource) bool {
	ext := strings.ToLower(r.Extension)
	for _, excluded := range f.extensions {
		if strings.HasSuffix(ext, excluded) {
			return false
		}
	}
	return true
}

func (f *Filter) checkDomain(r *resource.Resource) bool {
	url := strings.ToLower(r.URL)
	for _, excluded := range f.domains {
		if strings.Contains(url, excluded) {
			return false
		}
	}
	return true
}
