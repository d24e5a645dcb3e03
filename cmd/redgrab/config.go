package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"redgrab/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage redgrab configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (REDGRAB_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	RunE:  runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	RunE:  runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# redgrab configuration file
#
# Environment variables prefixed with REDGRAB_ override these values,
# for example REDGRAB_CLIENT_ID and REDGRAB_OUTPUT_DIR.

# Reddit API access. Optional: without credentials redgrab uses the
# read-only API, which is enough for public listings.
reddit:
  client_id: ""
  client_secret: ""
  username: ""
  password: ""
  user_agent: "redgrab (by /u/yourname)"
  # Spacing between listing API calls.
  request_interval: 1s
  # Posts per listing call.
  post_limit: 100

download:
  # Cumulative retry budget per fetch.
  max_wait_time: 120s
  # Fixed sleep between fetch retries.
  retry_interval: 60s
  # Skip writing content whose hash was already written.
  no_duplicates: false
  # Hard-link duplicate content to the first copy instead.
  hard_link: false
  # Hash the existing output tree before downloading.
  search_existing: false
  scan_workers: 4
  excluded_extensions: []
  excluded_domains: []
  skip_subreddits: []
  exclude_ids: []
  exclude_id_file: ""
  # Persist processed post IDs across runs. Empty disables it.
  seen_file: ""

output:
  base_directory: "./downloads"
  # Tokens: {POSTID} {TITLE} {SUBREDDIT} {REDDITOR} {FLAIR} {UPVOTES} {DATE}
  file_scheme: "{REDDITOR}_{TITLE}_{POSTID}"
  folder_scheme: "{SUBREDDIT}"

archive:
  # json or yaml
  format: json

logging:
  level: info
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".redgrab.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	// Mask secrets before printing.
	masked := *cfg
	if masked.Reddit.ClientSecret != "" {
		masked.Reddit.ClientSecret = "********"
	}
	if masked.Reddit.Password != "" {
		masked.Reddit.Password = "********"
	}

	out, err := yaml.Marshal(&masked)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Println("Configuration is valid.")
	return nil
}
