package reddit

import (
	"context"
	"fmt"
	"strings"

	"github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/time/rate"

	"redgrab/pkg/config"
	"redgrab/pkg/errors"
	"redgrab/pkg/logger"
	"redgrab/pkg/models"
	"redgrab/pkg/retry"
)

// Sort names a listing order on the Reddit API.
type Sort string

const (
	SortHot           Sort = "hot"
	SortNew           Sort = "new"
	SortTop           Sort = "top"
	SortControversial Sort = "controversial"
	SortRising        Sort = "rising"
)

// ParseSort validates a sort name from config or flags.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(s)) {
	case SortHot, SortNew, SortTop, SortControversial, SortRising:
		return Sort(strings.ToLower(s)), nil
	default:
		return "", errors.Newf(errors.KindUsage, "unknown sort %q", s)
	}
}

// ListOptions shape one listing call.
type ListOptions struct {
	Sort Sort
	// Period scopes top and controversial listings (hour, day, week,
	// month, year, all). Ignored for other sorts.
	Period string
	Limit  int
}

// Client wraps the Reddit API for post enumeration. Every call passes
// through a token-bucket limiter and bounded retry.
type Client struct {
	api      *reddit.Client
	limiter  *rate.Limiter
	retryCfg *retry.Config
	log      logger.Logger
}

// New builds a Client from the reddit section of the configuration.
// Without script-app credentials it falls back to the read-only API,
// which is enough for public listings.
func New(cfg config.RedditConfig, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	var api *reddit.Client
	var err error
	if cfg.ClientID == "" {
		api, err = reddit.NewReadonlyClient(reddit.WithUserAgent(cfg.UserAgent))
	} else {
		creds := reddit.Credentials{
			ID:       cfg.ClientID,
			Secret:   cfg.ClientSecret,
			Username: cfg.Username,
			Password: cfg.Password,
		}
		api, err = reddit.NewClient(creds, reddit.WithUserAgent(cfg.UserAgent))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create reddit client: %w", err)
	}

	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(cfg.RequestInterval), 1),
		retryCfg: &retry.Config{
			MaxAttempts: 3,
			Backoff:     retry.DefaultExponentialBackoff(),
			RetryIf:     retry.DefaultRetryIf,
			Context:     context.Background(),
			Logger:      log,
		},
		log: log,
	}, nil
}

// SubredditPosts enumerates one subreddit's posts with the given sort.
func (c *Client) SubredditPosts(ctx context.Context, name string, opts ListOptions) ([]*models.Post, error) {
	return c.listing(ctx, name, opts)
}

// MultiredditPosts enumerates several subreddits as one merged listing.
// The API accepts plus-joined names natively.
func (c *Client) MultiredditPosts(ctx context.Context, subreddits []string, opts ListOptions) ([]*models.Post, error) {
	if len(subreddits) == 0 {
		return nil, errors.New(errors.KindUsage, "multireddit needs at least one subreddit")
	}
	return c.listing(ctx, strings.Join(subreddits, "+"), opts)
}

func (c *Client) listing(ctx context.Context, name string, opts ListOptions) ([]*models.Post, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	posts, err := retry.DoWithResult(func() ([]*reddit.Post, error) {
		var (
			posts []*reddit.Post
			err   error
		)
		switch opts.Sort {
		case SortNew:
			posts, _, err = c.api.Subreddit.NewPosts(ctx, name, &reddit.ListOptions{Limit: opts.Limit})
		case SortRising:
			posts, _, err = c.api.Subreddit.RisingPosts(ctx, name, &reddit.ListOptions{Limit: opts.Limit})
		case SortTop:
			posts, _, err = c.api.Subreddit.TopPosts(ctx, name, &reddit.ListPostOptions{
				ListOptions: reddit.ListOptions{Limit: opts.Limit},
				Time:        opts.Period,
			})
		case SortControversial:
			posts, _, err = c.api.Subreddit.ControversialPosts(ctx, name, &reddit.ListPostOptions{
				ListOptions: reddit.ListOptions{Limit: opts.Limit},
				Time:        opts.Period,
			})
		default:
			posts, _, err = c.api.Subreddit.HotPosts(ctx, name, &reddit.ListOptions{Limit: opts.Limit})
		}
		return posts, err
	}, c.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("listing r/%s failed: %w", name, err)
	}

	c.log.DebugWithFields("listing fetched", map[string]interface{}{
		"subreddit": name,
		"sort":      string(opts.Sort),
		"posts":     len(posts),
	})
	return convertAll(posts), nil
}

// UserPosts enumerates a redditor's submitted posts, newest first.
func (c *Client) UserPosts(ctx context.Context, username string, limit int) ([]*models.Post, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	posts, err := retry.DoWithResult(func() ([]*reddit.Post, error) {
		posts, _, err := c.api.User.PostsOf(ctx, username, &reddit.ListUserOverviewOptions{
			ListOptions: reddit.ListOptions{Limit: limit},
			Sort:        "new",
		})
		return posts, err
	}, c.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("listing u/%s failed: %w", username, err)
	}
	return convertAll(posts), nil
}

// SearchPosts enumerates posts matching a query, optionally scoped to
// one subreddit.
func (c *Client) SearchPosts(ctx context.Context, query, subreddit string, limit int) ([]*models.Post, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	posts, err := retry.DoWithResult(func() ([]*reddit.Post, error) {
		posts, _, err := c.api.Subreddit.SearchPosts(ctx, query, subreddit, &reddit.ListPostSearchOptions{
			ListPostOptions: reddit.ListPostOptions{
				ListOptions: reddit.ListOptions{Limit: limit},
			},
		})
		return posts, err
	}, c.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("search %q failed: %w", query, err)
	}
	return convertAll(posts), nil
}

// PostWithComments fetches one post and its comment tree by ID, used by
// archive mode.
func (c *Client) PostWithComments(ctx context.Context, id string) (*models.Post, []models.Comment, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	pc, err := retry.DoWithResult(func() (*reddit.PostAndComments, error) {
		pc, _, err := c.api.Post.Get(ctx, id)
		return pc, err
	}, c.retryCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching post %s failed: %w", id, err)
	}

	return convert(pc.Post), convertComments(pc.Comments), nil
}
