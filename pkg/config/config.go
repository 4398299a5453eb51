package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AccountPlaceholder is substituted with the account handle in Settings.BaseURL.
const AccountPlaceholder = "{account}"

// DefaultUserAgent is the desktop browser identity presented on every navigation.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.212 Safari/537.36"

// Config holds all configuration options for the timeline watcher
type Config struct {
	// User-facing settings, persisted under their historical key names
	Settings SettingsConfig `yaml:"settings" json:"settings"`

	// Headless browser session
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Visual notification delivery
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Text-to-speech delivery
	Speech SpeechConfig `yaml:"speech" json:"speech"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// SettingsConfig carries the keys exposed through the settings store.
type SettingsConfig struct {
	TwitterAccounts string `yaml:"TwitterAccounts" json:"TwitterAccounts"`
	BaseURL         string `yaml:"BaseUrl" json:"BaseUrl"`
	UpdateTime      int    `yaml:"UpdateTime" json:"UpdateTime"` // seconds
	Voice           string `yaml:"Voice" json:"Voice"`
	Volume          int    `yaml:"Volume" json:"Volume"`
	Theme           string `yaml:"Theme" json:"Theme"`
	CookiesFileName string `yaml:"CookiesFileName" json:"CookiesFileName"`
	Selector        string `yaml:"Selector" json:"Selector"`
	FirstRun        bool   `yaml:"FirstRun" json:"FirstRun"`
}

// BrowserConfig holds headless browser options
type BrowserConfig struct {
	Bin               string            `yaml:"bin" json:"bin"`
	Headless          bool              `yaml:"headless" json:"headless"`
	NoSandbox         bool              `yaml:"no_sandbox" json:"no_sandbox"`
	Stealth           bool              `yaml:"stealth" json:"stealth"`
	UserAgent         string            `yaml:"user_agent" json:"user_agent"`
	Headers           map[string]string `yaml:"headers" json:"headers"`
	NavigationTimeout time.Duration     `yaml:"navigation_timeout" json:"navigation_timeout"`
	ShutdownTimeout   time.Duration     `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	// desktop, console or none
	NotificationType string        `yaml:"notification_type" json:"notification_type"`
	MaxPerMinute     int           `yaml:"max_per_minute" json:"max_per_minute"`
	DeliveryTimeout  time.Duration `yaml:"delivery_timeout" json:"delivery_timeout"`
	Workers          int           `yaml:"workers" json:"workers"`
}

// SpeechConfig controls the speech sink
type SpeechConfig struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	IncludeText bool `yaml:"include_text" json:"include_text"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	JSON  bool   `yaml:"json" json:"json"`
}

// MetricsConfig holds the metrics listener address; empty disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Settings: SettingsConfig{
			BaseURL:    "https://x.com/" + AccountPlaceholder,
			UpdateTime: 60,
			Volume:     100,
			Theme:      "Dark",
			FirstRun:   true,
		},
		Browser: BrowserConfig{
			Headless:  true,
			NoSandbox: true,
			Stealth:   true,
			UserAgent: DefaultUserAgent,
			Headers: map[string]string{
				"Accept": "application/json, text/plain, */*",
			},
			NavigationTimeout: 20 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Notifications: NotificationConfig{
			NotificationType: "desktop",
			MaxPerMinute:     30,
			DeliveryTimeout:  10 * time.Second,
			Workers:          2,
		},
		Speech: SpeechConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// UpdateInterval returns the poll interval as a duration.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.Settings.UpdateTime) * time.Second
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if accounts := os.Getenv("TWEETWATCH_ACCOUNTS"); accounts != "" {
		c.Settings.TwitterAccounts = accounts
	}
	if baseURL := os.Getenv("TWEETWATCH_BASE_URL"); baseURL != "" {
		c.Settings.BaseURL = baseURL
	}
	if update := os.Getenv("TWEETWATCH_UPDATE_TIME"); update != "" {
		val, err := strconv.Atoi(update)
		if err != nil {
			return fmt.Errorf("TWEETWATCH_UPDATE_TIME: %w", err)
		}
		c.Settings.UpdateTime = val
	}
	if cookies := os.Getenv("TWEETWATCH_COOKIES_FILE"); cookies != "" {
		c.Settings.CookiesFileName = cookies
	}
	if selector := os.Getenv("TWEETWATCH_SELECTOR"); selector != "" {
		c.Settings.Selector = selector
	}
	if bin := os.Getenv("TWEETWATCH_BROWSER_BIN"); bin != "" {
		c.Browser.Bin = bin
	}
	if headless := os.Getenv("TWEETWATCH_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) == "true"
	}
	if notifType := os.Getenv("TWEETWATCH_NOTIFICATION_TYPE"); notifType != "" {
		c.Notifications.NotificationType = notifType
	}
	if logLevel := os.Getenv("TWEETWATCH_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if addr := os.Getenv("TWEETWATCH_METRICS_ADDR"); addr != "" {
		c.Metrics.ListenAddr = addr
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) (string, error) {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return "", nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return "", fmt.Errorf("failed to parse config file: %w", err)
	}

	return path, nil
}

// FindConfigFile searches for a config file in the standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"tweetwatch.yaml",
		".tweetwatch.yaml",
		".tweetwatch.yml",
		filepath.Join(home, ".config", "tweetwatch", "config.yaml"),
		filepath.Join(home, ".tweetwatch.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// DefaultPath is where `config init` writes and where settings are saved
// when no file was loaded.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "tweetwatch", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if err := ValidateBaseURL(c.Settings.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.Settings.UpdateTime <= 0 {
		errs = append(errs, errors.New("UpdateTime must be positive"))
	}
	if c.Settings.Volume < 0 || c.Settings.Volume > 100 {
		errs = append(errs, errors.New("Volume must be between 0 and 100"))
	}
	if !ValidTheme(c.Settings.Theme) {
		errs = append(errs, fmt.Errorf("Theme must be Dark or Light, got %q", c.Settings.Theme))
	}

	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Browser.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}

	validNotifTypes := map[string]bool{
		"desktop": true, "console": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}
	if c.Notifications.MaxPerMinute <= 0 {
		errs = append(errs, errors.New("max notifications per minute must be positive"))
	}
	if c.Notifications.Workers <= 0 {
		errs = append(errs, errors.New("notification workers must be positive"))
	}
	if c.Notifications.DeliveryTimeout <= 0 {
		errs = append(errs, errors.New("delivery timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ValidateBaseURL accepts absolute http(s) URLs, with or without the account placeholder.
func ValidateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("BaseUrl is required")
	}
	u, err := url.Parse(strings.ReplaceAll(raw, AccountPlaceholder, "account"))
	if err != nil {
		return fmt.Errorf("BaseUrl is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BaseUrl must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("BaseUrl has no host")
	}
	return nil
}

// ValidTheme reports whether theme is one of the supported names.
func ValidTheme(theme string) bool {
	return theme == "Dark" || theme == "Light"
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write through a temp file so a watcher never observes a truncated file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if interval, ok := flags["interval"].(int); ok && interval > 0 {
		c.Settings.UpdateTime = interval
	}
	if cookies, ok := flags["cookies"].(string); ok && cookies != "" {
		c.Settings.CookiesFileName = cookies
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Settings.BaseURL = baseURL
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.ListenAddr = addr
	}
	if notifType, ok := flags["notification-type"].(string); ok && notifType != "" {
		c.Notifications.NotificationType = notifType
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
}

// Load loads configuration from all sources with proper precedence and
// returns it together with the file it was read from (empty if none).
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, string, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tweetwatch.env"))

	config := DefaultConfig()

	path, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, "", fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, path, nil
}
