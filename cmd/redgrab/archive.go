package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"redgrab/pkg/archive"
	"redgrab/pkg/config"
	"redgrab/pkg/logger"
	"redgrab/pkg/reddit"
)

var (
	arSubreddit string
	arSort      string
	arPeriod    string
	arLimit     int
	arFormat    string
	arOutput    string
	arAccount   string
)

// archiveCmd represents the archive command
var archiveCmd = &cobra.Command{
	Use:   "archive [post-id ...]",
	Short: "Save post metadata and comments instead of media",
	Long: `Archive serializes post metadata and the comment tree to json or yaml
files named by post ID. Give post IDs as arguments, or --subreddit to
archive a whole listing.`,
	Example: `  # Archive two posts by ID
  redgrab archive abc123 def456

  # Archive the top posts of a subreddit as yaml
  redgrab archive --subreddit golang --sort top --archive-format yaml`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().StringVarP(&arSubreddit, "subreddit", "s", "", "archive a subreddit listing instead of explicit IDs")
	archiveCmd.Flags().StringVar(&arSort, "sort", "hot", "listing sort (hot, new, top, controversial, rising)")
	archiveCmd.Flags().StringVar(&arPeriod, "time", "all", "time period for top and controversial")
	archiveCmd.Flags().IntVarP(&arLimit, "limit", "l", 0, "posts per listing (default from config)")
	archiveCmd.Flags().StringVar(&arFormat, "archive-format", "", "serialization format (json, yaml)")
	archiveCmd.Flags().StringVarP(&arOutput, "output", "o", "", "output directory")
	archiveCmd.Flags().StringVarP(&arAccount, "account", "a", "", "use specific stored account")
}

func runArchive(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && arSubreddit == "" {
		return fmt.Errorf("no source given: pass post IDs or --subreddit")
	}

	flags := make(map[string]interface{})
	if arOutput != "" {
		flags["output"] = arOutput
	}
	if arFormat != "" {
		flags["archive-format"] = arFormat
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
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

	if err := resolveCredentials(cfg, arAccount, log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := reddit.New(cfg.Reddit, log)
	if err != nil {
		return err
	}

	writer, err := archive.NewWriter(cfg.Output.BaseDirectory, cfg.Archive.Format, log)
	if err != nil {
		return err
	}

	ids := args
	if arSubreddit != "" {
		sort, err := reddit.ParseSort(arSort)
		if err != nil {
			return err
		}
		limit := arLimit
		if limit <= 0 {
			limit = cfg.Reddit.PostLimit
		}
		posts, err := client.SubredditPosts(ctx, arSubreddit, reddit.ListOptions{
			Sort:   sort,
			Period: arPeriod,
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		for _, p := range posts {
			ids = append(ids, p.ID)
		}
	}

	var failed int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		post, comments, err := client.PostWithComments(ctx, id)
		if err != nil {
			log.WithError(err).WithField("post_id", id).Error("failed to fetch post")
			failed++
			continue
		}

		dest, err := writer.Write(archive.Entry{Post: post, Comments: comments})
		if err != nil {
			log.WithError(err).WithField("post_id", id).Error("failed to write archive entry")
			failed++
			continue
		}
		log.WithField("path", dest).Info("archived post")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d posts failed", failed, len(ids))
	}
	return nil
}
