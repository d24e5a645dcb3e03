package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"redgrab/pkg/auth"
	"redgrab/pkg/config"
	"redgrab/pkg/dedup"
	"redgrab/pkg/download"
	"redgrab/pkg/fetch"
	"redgrab/pkg/filter"
	"redgrab/pkg/logger"
	"redgrab/pkg/models"
	"redgrab/pkg/naming"
	"redgrab/pkg/reddit"
	"redgrab/pkg/seen"
	"redgrab/pkg/sites"
)

var (
	// Source flags
	dlSubreddits  []string
	dlUsers       []string
	dlMultireddit []string
	dlSearch      string
	dlSort        string
	dlPeriod      string
	dlLimit       int
	dlAccount     string

	// Pipeline flags
	dlOutput         string
	dlFileScheme     string
	dlFolderScheme   string
	dlNoDuplicates   bool
	dlHardLink       bool
	dlSearchExisting bool
	dlMaxWaitTime    time.Duration
	dlSkipExtensions []string
	dlSkipDomains    []string
	dlSkipSubreddits []string
	dlExcludeIDs     []string
	dlExcludeIDFile  string
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the media behind posts from subreddits, users, or a search",
	Long: `Download resolves each post's URL to concrete media files through the
site adapters, then fetches, deduplicates, and writes them under the
output tree using the configured naming schemes.

At least one source is required: --subreddit, --user, --multireddit, or
--search.`,
	Example: `  # Hot posts from two subreddits
  redgrab download --subreddit earthporn --subreddit aww

  # A user's submissions, skipping video files
  redgrab download --user someredditor --skip-extension .mp4

  # Top posts of the week, hard-linking duplicate content
  redgrab download --subreddit pics --sort top --time week --hard-link

  # Several subreddits as one merged listing
  redgrab download --multireddit golang --multireddit programming`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringSliceVarP(&dlSubreddits, "subreddit", "s", nil, "subreddit to download from (repeatable)")
	downloadCmd.Flags().StringSliceVarP(&dlUsers, "user", "u", nil, "redditor whose submissions to download (repeatable)")
	downloadCmd.Flags().StringSliceVarP(&dlMultireddit, "multireddit", "m", nil, "subreddits merged into one listing (repeatable)")
	downloadCmd.Flags().StringVar(&dlSearch, "search", "", "search query; scoped to --subreddit when one is given")
	downloadCmd.Flags().StringVar(&dlSort, "sort", "hot", "listing sort (hot, new, top, controversial, rising)")
	downloadCmd.Flags().StringVar(&dlPeriod, "time", "all", "time period for top and controversial (hour, day, week, month, year, all)")
	downloadCmd.Flags().IntVarP(&dlLimit, "limit", "l", 0, "posts per listing (default from config)")
	downloadCmd.Flags().StringVarP(&dlAccount, "account", "a", "", "use specific stored account")

	downloadCmd.Flags().StringVarP(&dlOutput, "output", "o", "", "output directory")
	downloadCmd.Flags().StringVar(&dlFileScheme, "file-scheme", "", "file naming scheme")
	downloadCmd.Flags().StringVar(&dlFolderScheme, "folder-scheme", "", "folder naming scheme")
	downloadCmd.Flags().BoolVar(&dlNoDuplicates, "no-duplicates", false, "skip files whose content was already written")
	downloadCmd.Flags().BoolVar(&dlHardLink, "hard-link", false, "hard-link duplicate content to the first copy")
	downloadCmd.Flags().BoolVar(&dlSearchExisting, "search-existing", false, "hash the existing output tree before downloading")
	downloadCmd.Flags().DurationVar(&dlMaxWaitTime, "max-wait-time", 0, "cumulative retry budget per fetch")
	downloadCmd.Flags().StringSliceVar(&dlSkipExtensions, "skip-extension", nil, "file extension to exclude (repeatable)")
	downloadCmd.Flags().StringSliceVar(&dlSkipDomains, "skip-domain", nil, "domain substring to exclude (repeatable)")
	downloadCmd.Flags().StringSliceVar(&dlSkipSubreddits, "skip-subreddit", nil, "subreddit to skip entirely (repeatable)")
	downloadCmd.Flags().StringSliceVar(&dlExcludeIDs, "exclude-id", nil, "post ID to skip (repeatable)")
	downloadCmd.Flags().StringVar(&dlExcludeIDFile, "exclude-id-file", "", "file of post IDs to skip, one per line")
}

func runDownload(cmd *cobra.Command, args []string) error {
	if len(dlSubreddits) == 0 && len(dlUsers) == 0 && len(dlMultireddit) == 0 && dlSearch == "" {
		return fmt.Errorf("no source given: use --subreddit, --user, --multireddit, or --search")
	}

	cfg, err := loadDownloadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("redgrab starting")

	if err := resolveCredentials(cfg, dlAccount, log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := reddit.New(cfg.Reddit, log)
	if err != nil {
		return err
	}

	posts, err := enumeratePosts(ctx, client, cfg)
	if err != nil {
		return err
	}
	log.WithField("posts", len(posts)).Info("enumeration finished")

	orch, seenStore, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}

	stats := orch.Run(ctx, posts)

	if seenStore != nil {
		if err := seenStore.Save(); err != nil {
			log.WithError(err).Warn("failed to save seen file")
		}
	}

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d posts failed", stats.Failed, len(posts))
	}
	return nil
}

func loadDownloadConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if dlOutput != "" {
		flags["output"] = dlOutput
	}
	if dlFileScheme != "" {
		flags["file-scheme"] = dlFileScheme
	}
	if dlFolderScheme != "" {
		flags["folder-scheme"] = dlFolderScheme
	}
	if dlNoDuplicates {
		flags["no-duplicates"] = true
	}
	if dlHardLink {
		flags["hard-link"] = true
	}
	if dlSearchExisting {
		flags["search-existing"] = true
	}
	if dlMaxWaitTime > 0 {
		flags["max-wait-time"] = dlMaxWaitTime
	}
	if len(dlSkipExtensions) > 0 {
		flags["skip-extension"] = dlSkipExtensions
	}
	if len(dlSkipDomains) > 0 {
		flags["skip-domain"] = dlSkipDomains
	}
	if len(dlSkipSubreddits) > 0 {
		flags["skip-subreddit"] = dlSkipSubreddits
	}
	if len(dlExcludeIDs) > 0 {
		flags["exclude-id"] = dlExcludeIDs
	}
	if dlExcludeIDFile != "" {
		flags["exclude-id-file"] = dlExcludeIDFile
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	return config.Load(configFile, flags)
}

// resolveCredentials fills the reddit section from the credential manager
// when the config carries none. Missing credentials are not fatal: the
// client falls back to the read-only API.
func resolveCredentials(cfg *config.Config, accountName string, log logger.Logger) error {
	if cfg.Reddit.ClientID != "" && accountName == "" {
		return nil
	}

	credManager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if accountName != "" {
		account, err = credManager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("account %q not found: run 'redgrab auth list' to see stored accounts", accountName)
		}
	} else {
		account, err = credManager.RetrieveDefault()
		if err != nil {
			log.Info("no stored credentials, using the read-only API")
			return nil
		}
	}

	cfg.Reddit.ClientID = account.ClientID
	cfg.Reddit.ClientSecret = account.ClientSecret
	cfg.Reddit.Username = account.Username
	cfg.Reddit.Password = account.Password
	if account.UserAgent != "" {
		cfg.Reddit.UserAgent = account.UserAgent
	}
	log.WithField("account", account.Username).Info("using stored credentials")
	return nil
}

func enumeratePosts(ctx context.Context, client *reddit.Client, cfg *config.Config) ([]*models.Post, error) {
	sort, err := reddit.ParseSort(dlSort)
	if err != nil {
		return nil, err
	}

	limit := dlLimit
	if limit <= 0 {
		limit = cfg.Reddit.PostLimit
	}
	opts := reddit.ListOptions{Sort: sort, Period: dlPeriod, Limit: limit}

	var posts []*models.Post

	if dlSearch != "" {
		scope := ""
		if len(dlSubreddits) == 1 {
			scope = dlSubreddits[0]
		}
		found, err := client.SearchPosts(ctx, dlSearch, scope, limit)
		if err != nil {
			return nil, err
		}
		return append(posts, found...), nil
	}

	for _, sub := range dlSubreddits {
		found, err := client.SubredditPosts(ctx, sub, opts)
		if err != nil {
			return nil, err
		}
		posts = append(posts, found...)
	}

	if len(dlMultireddit) > 0 {
		found, err := client.MultiredditPosts(ctx, dlMultireddit, opts)
		if err != nil {
			return nil, err
		}
		posts = append(posts, found...)
	}

	for _, user := range dlUsers {
		found, err := client.UserPosts(ctx, user, limit)
		if err != nil {
			return nil, err
		}
		posts = append(posts, found...)
	}

	return posts, nil
}

func buildPipeline(ctx context.Context, cfg *config.Config, log logger.Logger) (*download.Orchestrator, *seen.Store, error) {
	namer, err := naming.NewFormatter(cfg.Output.FileScheme, cfg.Output.FolderScheme)
	if err != nil {
		return nil, nil, err
	}

	ledger := dedup.NewLedger()
	if cfg.Download.SearchExisting {
		seeded, err := dedup.SeedFromDirectory(ctx, cfg.Output.BaseDirectory, cfg.Download.ScanWorkers, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan existing files: %w", err)
		}
		ledger = dedup.NewLedgerFrom(seeded)
		log.WithField("files", ledger.Len()).Info("seeded dedup ledger from existing tree")
	}

	excludeIDs := make(map[string]struct{})
	for _, id := range cfg.Download.ExcludeIDs {
		excludeIDs[id] = struct{}{}
	}
	if cfg.Download.ExcludeIDFile != "" {
		ids, err := seen.LoadIDFile(cfg.Download.ExcludeIDFile)
		if err != nil {
			return nil, nil, err
		}
		for _, id := range ids {
			excludeIDs[id] = struct{}{}
		}
	}

	skipSubs := make(map[string]struct{})
	for _, sub := range cfg.Download.SkipSubreddits {
		skipSubs[strings.ToLower(sub)] = struct{}{}
	}

	var seenStore *seen.Store
	if cfg.Download.SeenFile != "" {
		seenStore, err = seen.Open(cfg.Download.SeenFile)
		if err != nil {
			return nil, nil, err
		}
	}

	orch := download.New(download.Params{
		Selector: sites.DefaultSelector(),
		Fetcher: fetch.New(log,
			fetch.WithInterval(cfg.Download.RetryInterval),
			fetch.WithUserAgent(cfg.Reddit.UserAgent)),
		Filter: filter.New(cfg.Download.ExcludedExtensions, cfg.Download.ExcludedDomains),
		Ledger: ledger,
		Namer:  namer,
		Root:   cfg.Output.BaseDirectory,
		Options: download.Options{
			NoDuplicates:   cfg.Download.NoDuplicates,
			HardLink:       cfg.Download.HardLink,
			MaxWaitTime:    cfg.Download.MaxWaitTime,
			ExcludeIDs:     excludeIDs,
			SkipSubreddits: skipSubs,
		},
		Seen:   seenStore,
		Logger: log,
	})

	return orch, seenStore, nil
}
