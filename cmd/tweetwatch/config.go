package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tweetwatch/pkg/config"
	"tweetwatch/pkg/settings"
	"tweetwatch/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage tweetwatch configuration.

Configuration is loaded from, in order of priority:
  - Command line flags
  - Environment variables (TWEETWATCH_*, also read from .env files)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with every option documented.

The file is written to the --config path, or to
$HOME/.config/tweetwatch/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Example: `  tweetwatch config set UpdateTime 30
  tweetwatch config set BaseUrl "https://x.com/{account}"
  tweetwatch config set CookiesFileName vault:main`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigGet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

const exampleConfig = `# tweetwatch configuration
#
# Environment variables prefixed with TWEETWATCH_ override these values,
# for example TWEETWATCH_ACCOUNTS or TWEETWATCH_UPDATE_TIME.

settings:
  # Tracked accounts as handle:mode pairs. Modes: View, Sound,
  # ViewAndSound, Disabled.
  TwitterAccounts: "nasa:View,golang:ViewAndSound"

  # Page to poll. {account} is replaced with each handle; a URL without it
  # is polled once per cycle as a combined timeline.
  BaseUrl: "https://x.com/{account}"

  # Seconds between polls
  UpdateTime: 60

  # Text-to-speech voice (see 'tweetwatch watch --list-voices') and volume 0-100
  Voice: ""
  Volume: 100

  # Dark or Light
  Theme: Dark

  # Cookies exported from a logged-in browser, as a JSON file path or
  # vault:<name> (see 'tweetwatch cookies import')
  CookiesFileName: ""

  # Post container class hint. Learned automatically when empty or stale.
  Selector: ""

  FirstRun: true

browser:
  # Browser executable; empty downloads a matching Chromium
  bin: ""
  headless: true
  no_sandbox: true
  stealth: true
  navigation_timeout: 20s
  shutdown_timeout: 5s

notifications:
  # desktop, console or none
  notification_type: desktop
  max_per_minute: 30
  delivery_timeout: 10s
  workers: 2

speech:
  enabled: true
  # Read the post text after "<handle> posted new update"
  include_text: false

logging:
  # debug, info, warn, error
  level: info
  # Optional log file
  file: ""
  json: false

metrics:
  # Address for the Prometheus endpoint, e.g. ":9090". Empty disables it.
  listen_addr: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		fmt.Fprintln(ui.Out, "\nTo overwrite, first remove the existing file:")
		fmt.Fprintf(ui.Out, "  rm %s\n", path)
		return errors.New("refusing to overwrite configuration")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Edit TwitterAccounts, or use 'tweetwatch accounts add <handle>'")
	fmt.Fprintln(ui.Out, "2. Run 'tweetwatch config validate' to check the configuration")
	fmt.Fprintln(ui.Out, "3. Start polling with 'tweetwatch watch'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))

	fmt.Fprintln(ui.Out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(ui.Out, "1. Command line flags")
	fmt.Fprintln(ui.Out, "2. Environment variables (TWEETWATCH_*)")
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(ui.Out, "3. Configuration file: %s\n", path)
	} else {
		fmt.Fprintln(ui.Out, "3. Configuration file: (none)")
	}
	fmt.Fprintln(ui.Out, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Configuration validation failed")
		return err
	}
	ui.PrintInfo("Validated", path)

	var warnings []string
	if cfg.Settings.TwitterAccounts == "" {
		warnings = append(warnings, "no accounts tracked")
	}
	if cfg.Settings.CookiesFileName == "" {
		warnings = append(warnings, "no cookies configured; timelines that need a login will come back empty")
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return fmt.Errorf("cannot create log directory: %w", err)
		}
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(ui.Out, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Out)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Out, "\nConfiguration summary:")
	fmt.Fprintf(ui.Out, "  Accounts: %s\n", cfg.Settings.TwitterAccounts)
	fmt.Fprintf(ui.Out, "  Base URL: %s\n", cfg.Settings.BaseURL)
	fmt.Fprintf(ui.Out, "  Interval: %s\n", cfg.UpdateInterval())
	fmt.Fprintf(ui.Out, "  Notifications: %s (max %d/min)\n", cfg.Notifications.NotificationType, cfg.Notifications.MaxPerMinute)
	fmt.Fprintf(ui.Out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	store, err := openSettings()
	if err != nil {
		return err
	}
	if err := store.Set(args[0], args[1]); err != nil {
		if errors.Is(err, settings.ErrUnknownKey) {
			ui.PrintInfo("Known keys", fmt.Sprint(settings.Keys()))
		}
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("%s = %s", args[0], args[1]))
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	store, err := openSettings()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		v, err := store.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, v)
		return nil
	}

	tw := tabwriter.NewWriter(ui.Out, 0, 4, 2, ' ', 0)
	for _, key := range settings.Keys() {
		v, _ := store.Get(key)
		fmt.Fprintf(tw, "%s\t%s\n", ui.Cyan(key), v)
	}
	return tw.Flush()
}
