package models

import "time"

// DeletedAuthor is substituted when a post's author account no longer
// exists (deleted or suspended).
const DeletedAuthor = "DELETED"

// Post is one submission from the upstream listing. It is read-only to the
// download pipeline: produced by the reddit client, consumed once per
// orchestration pass, never mutated.
type Post struct {
	ID         string `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Subreddit  string `json:"subreddit" yaml:"subreddit"`
	Author     string `json:"author" yaml:"author"`
	URL        string `json:"url" yaml:"url"`
	Permalink  string `json:"permalink" yaml:"permalink"`
	Score      int    `json:"score" yaml:"score"`
	Flair      string `json:"flair,omitempty" yaml:"flair,omitempty"`
	SelfText   string `json:"selftext,omitempty" yaml:"selftext,omitempty"`
	IsSelf     bool   `json:"is_self" yaml:"is_self"`
	CreatedUTC int64  `json:"created_utc" yaml:"created_utc"`

	// GalleryIDs holds the media identifiers of a reddit-hosted gallery
	// post. Empty for non-gallery posts.
	GalleryIDs []string `json:"gallery_ids,omitempty" yaml:"gallery_ids,omitempty"`
}

// Comment is one flattened comment from a post's tree, carried by
// archive mode. Replies stay nested.
type Comment struct {
	ID         string    `json:"id" yaml:"id"`
	Author     string    `json:"author" yaml:"author"`
	Body       string    `json:"body" yaml:"body"`
	Score      int       `json:"score" yaml:"score"`
	CreatedUTC int64     `json:"created_utc" yaml:"created_utc"`
	Replies    []Comment `json:"replies,omitempty" yaml:"replies,omitempty"`
}

// Created returns the post's creation time.
func (p *Post) Created() time.Time {
	return time.Unix(p.CreatedUTC, 0)
}

// AuthorName returns the author, substituting the DELETED sentinel when
// the account is gone.
func (p *Post) AuthorName() string {
	if p.Author == "" {
		return DeletedAuthor
	}
	return p.Author
}
