package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "dispatch"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage dispatch configuration.

Running bare 'dispatch config' is the same as 'dispatch config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# dispatch configuration
# See: dispatch config show (for effective values and sources)

# State/data directory (default: ~/.config/dispatch)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/dispatch/dispatch.db)
# db_path: {{ .DBPath }}

# Relaxed cache TTL for local development (default: false)
dev_mode: {{ .DevMode }}

# Response cache
cache:
  # Cache directory (default: ~/.config/dispatch/cache)
  # dir: {{ .CacheDir }}

  # Disable caching entirely (default: false)
  disabled: {{ .CacheDisabled }}

# GitHub
github:
  # Login of the coding agent assigned to fork issues (default: "Copilot")
  agent_login: "{{ .AgentLogin }}"

# Fork readiness wait
fork:
  # Total time to wait for a new fork to become visible (default: 60s)
  wait_timeout: {{ .ForkWaitTimeout }}

  # Interval between readiness probes (default: 3s)
  wait_interval: {{ .ForkWaitInterval }}

# Aggregator (optional collaborator service)
aggregator:
  # Base URL; empty disables aggregator integration
  url: "{{ .AggregatorURL }}"

# Discord notifications
discord:
  # Webhook URL; empty disables notifications
  webhook_url: "{{ .DiscordWebhookURL }}"

# Anthropic (for 'dispatch submit --draft-body')
anthropic:
  # api_key: ""
  model: "{{ .AnthropicModel }}"
`

type configTemplateData struct {
	StateDir          string
	DBPath            string
	DevMode           bool
	CacheDir          string
	CacheDisabled     bool
	AgentLogin        string
	ForkWaitTimeout   string
	ForkWaitInterval  string
	AggregatorURL     string
	DiscordWebhookURL string
	AnthropicModel    string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:          viper.GetString("state_dir"),
		DBPath:            viper.GetString("db_path"),
		DevMode:           viper.GetBool("dev_mode"),
		CacheDir:          viper.GetString("cache.dir"),
		CacheDisabled:     viper.GetBool("cache.disabled"),
		AgentLogin:        viper.GetString("github.agent_login"),
		ForkWaitTimeout:   viper.GetDuration("fork.wait_timeout").String(),
		ForkWaitInterval:  viper.GetDuration("fork.wait_interval").String(),
		AggregatorURL:     viper.GetString("aggregator.url"),
		DiscordWebhookURL: viper.GetString("discord.webhook_url"),
		AnthropicModel:    viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "DISPATCH_STATE_DIR"},
	{Key: "db_path", EnvVar: "DISPATCH_DB_PATH"},
	{Key: "dev_mode", EnvVar: "DISPATCH_DEV_MODE"},
	{Key: "cache.dir", EnvVar: "DISPATCH_CACHE_DIR"},
	{Key: "cache.disabled", EnvVar: "DISPATCH_CACHE_DISABLED"},
	{Key: "github.agent_login", EnvVar: "DISPATCH_GITHUB_AGENT_LOGIN"},
	{Key: "gh.timeout", EnvVar: "DISPATCH_GH_TIMEOUT"},
	{Key: "gh.merge_timeout", EnvVar: "DISPATCH_GH_MERGE_TIMEOUT"},
	{Key: "fork.wait_timeout", EnvVar: "DISPATCH_FORK_WAIT_TIMEOUT"},
	{Key: "fork.wait_interval", EnvVar: "DISPATCH_FORK_WAIT_INTERVAL"},
	{Key: "poll.workers", EnvVar: "DISPATCH_POLL_WORKERS"},
	{Key: "aggregator.url", EnvVar: "DISPATCH_AGGREGATOR_URL"},
	{Key: "discord.webhook_url", EnvVar: "DISPATCH_DISCORD_WEBHOOK_URL"},
	{Key: "anthropic.api_key", EnvVar: "DISPATCH_ANTHROPIC_API_KEY"},
	{Key: "anthropic.model", EnvVar: "DISPATCH_ANTHROPIC_MODEL"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Key == "anthropic.api_key" && val != "" {
			val = "(set)"
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set — set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'dispatch config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
