package reddit

import (
	"github.com/loganintech/go-reddit/v2/reddit"

	"redgrab/pkg/models"
)

// convert maps one API post onto the pipeline's Post. A removed account
// carries the DELETED sentinel; the API reports it as "[deleted]" or an
// empty author.
func convert(p *reddit.Post) *models.Post {
	var created int64
	if p.Created != nil {
		created = p.Created.Time.Unix()
	}

	return &models.Post{
		ID:         p.ID,
		Title:      p.Title,
		Subreddit:  p.SubredditName,
		Author:     normalizeAuthor(p.Author),
		URL:        p.URL,
		Permalink:  p.Permalink,
		Score:      p.Score,
		SelfText:   p.Body,
		IsSelf:     p.IsSelfPost,
		CreatedUTC: created,
	}
}

func convertAll(posts []*reddit.Post) []*models.Post {
	out := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, convert(p))
	}
	return out
}

func normalizeAuthor(author string) string {
	if author == "" || author == "[deleted]" {
		return models.DeletedAuthor
	}
	return author
}

// convertComments maps an API comment tree, keeping the nesting.
func convertComments(comments []*reddit.Comment) []models.Comment {
	out := make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		var created int64
		if c.Created != nil {
			created = c.Created.Time.Unix()
		}
		mc := models.Comment{
			ID:         c.ID,
			Author:     normalizeAuthor(c.Author),
			Body:       c.Body,
			Score:      c.Score,
			CreatedUTC: created,
		}
		if c.Replies.Comments != nil {
			mc.Replies = convertComments(c.Replies.Comments)
		}
		out = append(out, mc)
	}
	return out
}
