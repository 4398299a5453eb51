package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tweetwatch/pkg/config"
	"tweetwatch/pkg/logger"
	"tweetwatch/pkg/settings"
	"tweetwatch/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "tweetwatch",
	Short: "Watch timelines and get notified about new posts",
	Long: `tweetwatch polls the timelines of the accounts you track through a headless
browser and tells you when someone posts: a desktop notification, a spoken
announcement, or both, chosen per account.

Accounts are kept as "handle:mode" pairs where mode is View, Sound,
ViewAndSound or Disabled. Cookies exported from a logged-in browser session
can be kept in a file or in the system keychain.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
		if noColor {
			ui.SetTheme("Plain")
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/tweetwatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.SetVersionTemplate(`tweetwatch {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads configuration from every source and returns it with the
// file settings are saved to.
func loadConfig(flags map[string]interface{}) (*config.Config, string, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, path, err := config.Load(configFile, flags)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		path = configFile
	}
	if path == "" {
		path = config.DefaultPath()
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, "", fmt.Errorf("failed to initialize logger: %w", err)
	}
	if !noColor {
		ui.SetTheme(cfg.Settings.Theme)
	}
	return cfg, path, nil
}

// openSettings loads configuration and wraps it in a settings store.
func openSettings() (*settings.Store, error) {
	cfg, path, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	return settings.New(cfg, path, logger.GetLogger()), nil
}

// readSecret reads a line from stdin without echo when stdin is a terminal.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(secret), nil
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// stdinIsTerminal reports whether prompting is possible.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
