package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wolffm/dispatch/internal/aggregator"
	"github.com/wolffm/dispatch/internal/cache"
	"github.com/wolffm/dispatch/internal/fork"
	"github.com/wolffm/dispatch/internal/gh"
	"github.com/wolffm/dispatch/internal/notify"
	"github.com/wolffm/dispatch/internal/output"
	"github.com/wolffm/dispatch/internal/pipeline"
	"github.com/wolffm/dispatch/internal/poll"
	"github.com/wolffm/dispatch/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	pipe      *pipeline.Pipeline

	verbose bool
	dryRun  bool

	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch - pipeline for agent-driven open source contributions",
	Long: `dispatch runs an open source contribution pipeline end to end:
watch target repos, score their issues for contribution viability, fork
and hand the best ones to a coding agent, then shepherd the agent's fix
from the fork into an upstream pull request and track it to merge.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return statusOverviewRun(cmd.Context())
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/dispatch/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "dispatch")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DISPATCH")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "dispatch")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "dispatch.db"))
	viper.SetDefault("dev_mode", false)
	viper.SetDefault("cache.dir", filepath.Join(defaultConfigDir, "cache"))
	viper.SetDefault("cache.disabled", false)
	viper.SetDefault("github.agent_login", "Copilot")
	viper.SetDefault("gh.timeout", 30*time.Second)
	viper.SetDefault("gh.merge_timeout", 60*time.Second)
	viper.SetDefault("fork.wait_timeout", 60*time.Second)
	viper.SetDefault("fork.wait_interval", 3*time.Second)
	viper.SetDefault("poll.workers", 5)
	viper.SetDefault("aggregator.url", "")
	viper.SetDefault("discord.webhook_url", "")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store and pipeline initialize lazily — only when commands actually
	// need them. This allows config/version commands to run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getGH returns a gh client with the configured timeouts.
func getGH() *gh.Client {
	return gh.NewClient(gh.NewRunner()).
		WithTimeouts(viper.GetDuration("gh.timeout"), viper.GetDuration("gh.merge_timeout"))
}

// getCache builds the response cache: production TTL normally, the relaxed
// dev TTL when dev_mode is on.
func getCache() *cache.Cache {
	ttl := cache.DefaultTTL
	if viper.GetBool("dev_mode") {
		ttl = cache.DevTTL
	}
	return cache.New(viper.GetString("cache.dir"), ttl, !viper.GetBool("cache.disabled"))
}

func getNotifier() notify.Notifier {
	return notify.NewDiscord(viper.GetString("discord.webhook_url"))
}

// getPipeline assembles the shared pipeline, initializing it on first call.
func getPipeline() (*pipeline.Pipeline, error) {
	if pipe != nil {
		return pipe, nil
	}

	s, err := getStore()
	if err != nil {
		return nil, err
	}

	ghc := getGH()
	forks := fork.New(ghc,
		viper.GetDuration("fork.wait_timeout"),
		viper.GetDuration("fork.wait_interval"))

	pipe = pipeline.New(s, ghc, forks,
		aggregator.New(viper.GetString("aggregator.url")),
		getCache(), getNotifier(),
		pipeline.Options{
			AgentLogin: viper.GetString("github.agent_login"),
			Workers:    viper.GetInt("poll.workers"),
		})
	return pipe, nil
}

// getPoller assembles the submitted-PR polling engine.
func getPoller() (*poll.Engine, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return poll.New(s, getGH(), getNotifier(), viper.GetInt("poll.workers")), nil
}
