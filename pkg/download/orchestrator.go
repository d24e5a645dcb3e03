package download

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"redgrab/pkg/dedup"
	"redgrab/pkg/errors"
	"redgrab/pkg/fetch"
	"redgrab/pkg/filter"
	"redgrab/pkg/logger"
	"redgrab/pkg/models"
	"redgrab/pkg/naming"
	"redgrab/pkg/resource"
	"redgrab/pkg/seen"
	"redgrab/pkg/sites"
)

// AdapterResolver yields the site adapter for a post. *sites.Selector is
// the production implementation.
type AdapterResolver interface {
	ForPost(ctx context.Context, post *models.Post, client *fetch.Fetcher) (sites.Adapter, error)
}

// Options holds the per-run policies the orchestrator enforces.
type Options struct {
	// NoDuplicates skips writing content whose hash is already in the
	// ledger.
	NoDuplicates bool
	// HardLink replaces duplicate writes with a hard link to the
	// first-seen file. Mutually exclusive with NoDuplicates.
	HardLink bool
	// MaxWaitTime is the cumulative retry budget per fetch.
	MaxWaitTime time.Duration
	// ExcludeIDs lists post IDs skipped before any adapter work.
	ExcludeIDs map[string]struct{}
	// SkipSubreddits lists subreddits skipped before any adapter work.
	SkipSubreddits map[string]struct{}
}

// Stats counts run outcomes.
type Stats struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Params collects the orchestrator's collaborators.
type Params struct {
	Selector AdapterResolver
	Fetcher  *fetch.Fetcher
	Filter   *filter.Filter
	Ledger   *dedup.Ledger
	Namer    *naming.Formatter
	Root     string
	Options  Options
	// Seen persists fully processed post IDs across runs. A post is
	// recorded only when none of its resources failed. Optional.
	Seen   *seen.Store
	Logger logger.Logger
}

// Orchestrator drives the per-post download pipeline: adapter selection,
// resource resolution, path computation, filtering, fetch, fingerprint,
// dedup decision, persist. Posts and resources are processed strictly
// sequentially; the ledger is the only cross-post state and needs no
// locking here.
type Orchestrator struct {
	selector AdapterResolver
	fetcher  *fetch.Fetcher
	filter   *filter.Filter
	ledger   *dedup.Ledger
	namer    *naming.Formatter
	root     string
	opts     Options
	seen     *seen.Store
	log      logger.Logger
	stats    Stats
}

// New creates an orchestrator.
func New(p Params) *Orchestrator {
	log := p.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Orchestrator{
		selector: p.Selector,
		fetcher:  p.Fetcher,
		filter:   p.Filter,
		ledger:   p.Ledger,
		namer:    p.Namer,
		root:     p.Root,
		opts:     p.Options,
		seen:     p.Seen,
		log:      log,
	}
}

// Run processes posts in order. Site failures never escape: each is
// logged and the run moves on.
func (o *Orchestrator) Run(ctx context.Context, posts []*models.Post) Stats {
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			o.log.WithError(err).Warn("run cancelled")
			break
		}
		o.ProcessPost(ctx, post)
	}

	o.log.InfoWithFields("run finished", map[string]interface{}{
		"downloaded": o.stats.Downloaded,
		"skipped":    o.stats.Skipped,
		"failed":     o.stats.Failed,
	})
	return o.stats
}

// ProcessPost resolves and persists one post's resources. A failure at
// selection or resolution aborts the whole post; a failure at any
// per-resource stage abandons only that resource.
func (o *Orchestrator) ProcessPost(ctx context.Context, post *models.Post) {
	if o.excluded(post.ID) {
		o.log.DebugWithFields("post in exclusion set, skipping", map[string]interface{}{
			"post_id": post.ID,
		})
		o.stats.Skipped++
		return
	}
	if _, ok := o.opts.SkipSubreddits[strings.ToLower(post.Subreddit)]; ok {
		o.log.DebugWithFields("subreddit in skip set, skipping", map[string]interface{}{
			"post_id":   post.ID,
			"subreddit": post.Subreddit,
		})
		o.stats.Skipped++
		return
	}

	adapter, err := o.selector.ForPost(ctx, post, o.fetcher)
	if err != nil {
		o.logFailure(post.ID, "selector", err)
		o.stats.Failed++
		return
	}

	resources, err := adapter.FindResources(ctx)
	if err != nil {
		o.logFailure(post.ID, adapter.Name(), err)
		o.stats.Failed++
		return
	}

	failedBefore := o.stats.Failed

	multi := len(resources) > 1
	for i, r := range resources {
		index := 0
		if multi {
			index = i + 1
		}
		o.processResource(ctx, post, adapter.Name(), r, index)
	}

	// A post only counts as processed when none of its resources failed,
	// so a later run retries it after a transient host outage.
	if o.seen != nil && o.stats.Failed == failedBefore {
		o.seen.Add(post.ID)
	}
}

// processResource runs one resource through path computation, filter,
// fetch, fingerprint, dedup decision, and persist.
func (o *Orchestrator) processResource(ctx context.Context, post *models.Post, adapterName string, r *resource.Resource, index int) {
	dest, err := o.namer.FormatPath(o.root, r, index)
	if err != nil {
		o.logFailure(post.ID, adapterName, err)
		o.stats.Failed++
		return
	}

	// A destination that already exists is skipped on path alone: no
	// fetch, no ledger entry.
	if _, err := os.Stat(dest); err == nil {
		o.log.DebugWithFields("destination already exists, skipping", map[string]interface{}{
			"post_id": post.ID,
			"path":    dest,
		})
		o.stats.Skipped++
		return
	}

	if !o.filter.Check(r) {
		o.log.DebugWithFields("resource rejected by download filter", map[string]interface{}{
			"post_id": post.ID,
			"url":     r.URL,
		})
		o.stats.Skipped++
		return
	}

	// Self-text resources arrive with content already synthesized.
	if !r.HasContent() {
		data, err := o.fetcher.Fetch(ctx, r.URL, o.opts.MaxWaitTime)
		if err != nil {
			o.logFailure(post.ID, adapterName, err)
			o.stats.Failed++
			return
		}
		r.SetContent(data)
	}

	hash, err := r.Hash()
	if err != nil {
		o.logFailure(post.ID, adapterName, err)
		o.stats.Failed++
		return
	}

	if firstPath, dup := o.ledger.Lookup(hash); dup {
		switch {
		case o.opts.NoDuplicates:
			o.log.InfoWithFields("duplicate content, skipping", map[string]interface{}{
				"post_id": post.ID,
				"hash":    hash,
				"first":   firstPath,
			})
			o.stats.Skipped++
			return
		case o.opts.HardLink:
			if err := o.link(firstPath, dest); err != nil {
				o.logFailure(post.ID, adapterName, err)
				o.stats.Failed++
				return
			}
			o.log.InfoWithFields("duplicate content, hard-linked", map[string]interface{}{
				"post_id": post.ID,
				"path":    dest,
				"first":   firstPath,
			})
			o.stats.Downloaded++
			return
		}
		// Default policy: duplicates are written as independent files.
		// The ledger keeps the first-seen path either way.
	}

	if err := o.persist(dest, r); err != nil {
		o.logFailure(post.ID, adapterName, err)
		o.stats.Failed++
		return
	}
	o.ledger.Record(hash, dest)

	o.log.InfoWithFields("downloaded resource", map[string]interface{}{
		"post_id": post.ID,
		"adapter": adapterName,
		"path":    dest,
		"bytes":   len(r.Content),
	})
	o.stats.Downloaded++
}

// persist writes the resource atomically (temp file, then rename) and
// backdates the modification time to the post's creation time so the
// output tree reflects content age.
func (o *Orchestrator) persist(dest string, r *resource.Resource) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.ForURL(errors.KindFilesystem, dest, "failed to create directory: "+err.Error())
	}

	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, r.Content, 0644); err != nil {
		return errors.ForURL(errors.KindFilesystem, dest, "failed to write file: "+err.Error())
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errors.ForURL(errors.KindFilesystem, dest, "failed to rename temp file: "+err.Error())
	}

	created := r.Post.Created()
	if err := os.Chtimes(dest, created, created); err != nil {
		// The file itself is fine; a failed backdate is only worth a log.
		o.log.WarnWithFields("failed to set file modification time", map[string]interface{}{
			"path":  dest,
			"error": err.Error(),
		})
	}
	return nil
}

// link creates a hard link from dest to the first-seen copy.
func (o *Orchestrator) link(firstPath, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.ForURL(errors.KindFilesystem, dest, "failed to create directory: "+err.Error())
	}
	if err := os.Link(firstPath, dest); err != nil {
		return errors.ForURL(errors.KindFilesystem, dest, "failed to create hard link: "+err.Error())
	}
	return nil
}

func (o *Orchestrator) excluded(id string) bool {
	if _, ok := o.opts.ExcludeIDs[id]; ok {
		return true
	}
	return o.seen != nil && o.seen.Contains(id)
}

func (o *Orchestrator) logFailure(postID, adapterName string, err error) {
	o.log.ErrorWithFields("post processing failed", map[string]interface{}{
		"post_id": postID,
		"adapter": adapterName,
		"kind":    string(errors.KindOf(err)),
		"error":   err.Error(),
	})
}

// Stats returns the counters accumulated so far.
func (o *Orchestrator) Stats() Stats {
	return o.stats
}
