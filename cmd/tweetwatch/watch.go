package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tweetwatch/pkg/accounts"
	"tweetwatch/pkg/config"
	"tweetwatch/pkg/cookies"
	"tweetwatch/pkg/extract"
	"tweetwatch/pkg/feed"
	"tweetwatch/pkg/logger"
	"tweetwatch/pkg/metrics"
	"tweetwatch/pkg/notify"
	"tweetwatch/pkg/ratelimit"
	"tweetwatch/pkg/scheduler"
	"tweetwatch/pkg/session"
	"tweetwatch/pkg/settings"
	"tweetwatch/pkg/ui"
	"tweetwatch/pkg/vault"
	"tweetwatch/pkg/watcher"
)

var (
	// Watch command flags
	watchInterval    int
	watchOnce        bool
	watchMetricsAddr string
	watchDryRun      bool
	watchListVoices  bool
	watchCookies     string
	watchHeadless    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll tracked accounts and notify about new posts",
	Long: `Start polling. The first cycle records what is already on every timeline
without notifying; later cycles notify about posts that were not there
before. Settings changed with 'tweetwatch config set' or by editing the
config file are picked up while running.`,
	Example: `  # Poll every 60 seconds using the config file
  tweetwatch watch

  # Poll every 30 seconds and print notifications instead of showing them
  tweetwatch watch --interval 30 --dry-run

  # Expose Prometheus metrics
  tweetwatch watch --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().IntVarP(&watchInterval, "interval", "i", 0, "seconds between polls (overrides UpdateTime)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "run a single cycle and exit")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	watchCmd.Flags().BoolVar(&watchDryRun, "dry-run", false, "print notifications to the terminal and stay silent")
	watchCmd.Flags().BoolVar(&watchListVoices, "list-voices", false, "list installed text-to-speech voices and exit")
	watchCmd.Flags().StringVar(&watchCookies, "cookies", "", "cookie file or vault:<name> (overrides CookiesFileName)")
	watchCmd.Flags().BoolVar(&watchHeadless, "headless", true, "run the browser without a window")
}

func runWatch(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if watchInterval > 0 {
		flags["interval"] = watchInterval
	}
	if watchMetricsAddr != "" {
		flags["metrics-addr"] = watchMetricsAddr
	}
	if watchCookies != "" {
		flags["cookies"] = watchCookies
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = watchHeadless
	}
	if watchDryRun {
		flags["notification-type"] = "console"
	}

	cfg, path, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	speaker := notify.NewCommandSpeaker(cfg.Settings.Voice, cfg.Settings.Volume)
	if watchListVoices {
		return printVoices(cmd.Context(), speaker)
	}

	ui.PrintBanner()
	store := settings.New(cfg, path, log)
	if cfg.Settings.FirstRun {
		printFirstRunHints(cfg)
		if err := store.Set(settings.KeyFirstRun, "false"); err != nil {
			log.WithError(err).Warn("Could not record first run")
		}
	}

	registry := accounts.NewRegistry(accounts.Parse(cfg.Settings.TwitterAccounts), store)
	if len(accounts.Enabled(registry.Snapshot())) == 0 {
		ui.PrintWarning("No enabled accounts; add one with 'tweetwatch accounts add <handle> View'")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	vaultManager, err := vault.NewManager("", watchPassphrase())
	if err != nil {
		return err
	}
	driver := session.New(
		session.RodLauncher{Log: log},
		&cookies.Loader{Vault: vaultManager},
		sessionOptions(cfg),
		log,
	)

	var sp notify.Speaker = notify.NopSpeaker{}
	if cfg.Speech.Enabled && !watchDryRun {
		sp = speaker
	}
	notifier := notify.NewNotifier(cfg.Notifications.NotificationType)
	dispatcher := notify.NewDispatcher(notifier, sp, notify.Options{
		Workers:   cfg.Notifications.Workers,
		Timeout:   cfg.Notifications.DeliveryTimeout,
		Limiter:   ratelimit.PerMinute(cfg.Notifications.MaxPerMinute),
		SpeakText: cfg.Speech.IncludeText,
		OnResult: func(sink string, err error) {
			m.Delivered(sink, errors.Is(err, notify.ErrDropped), err)
		},
	}, log)

	var sched *scheduler.Scheduler
	engine := feed.NewEngine()
	w := watcher.New(watcher.Options{
		Fetcher:    driver,
		Extractor:  extract.NewChain(),
		Engine:     engine,
		Registry:   registry,
		Dispatcher: dispatcher,
		Settings:   store,
		Metrics:    m,
		BaseURL:    cfg.Settings.BaseURL,
		Selector:   cfg.Settings.Selector,
		Cookies:    driver,
		Voice:      speaker,
		OnInterval: func(d time.Duration) { sched.SetInterval(d) },
	}, log)
	sched = scheduler.New(cfg.UpdateInterval(), w.RunCycle, log)
	sched.OnSkip = m.TickSkipped
	store.Subscribe(w.Apply)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Browser.ShutdownTimeout+cfg.Notifications.DeliveryTimeout)
		defer cancel()
		if err := dispatcher.Close(shutdownCtx); err != nil {
			log.WithError(err).Warn("Pending notifications dropped on shutdown")
		}
		if d, ok := notifier.(*notify.DesktopNotifier); ok {
			d.Close()
		}
		if err := driver.Close(shutdownCtx); err != nil {
			log.WithError(err).Warn("Browser shutdown incomplete")
		}
		logger.LogComponentStop("watch", "shutdown")
	}()

	ui.PrintInfo("Tracking", registry.Serialize())
	ui.PrintInfo("Interval", sched.Interval().String())
	if err := driver.Open(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	if watchOnce {
		if err := sched.RunOnce(ctx); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Cycle complete: %d posts on record", engine.Seen().Len()))
		return nil
	}

	logger.LogComponentStart("watch", map[string]interface{}{
		"accounts": len(registry.Snapshot()),
		"interval": sched.Interval().String(),
		"base_url": cfg.Settings.BaseURL,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := store.Watch(gctx); err != nil {
			log.WithError(err).Warn("Config file changes will not be picked up")
		}
		return nil
	})
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		g.Go(func() error {
			log.WithField("addr", addr).Info("Serving metrics")
			if err := m.Serve(gctx, addr); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		err := sched.Run(gctx)
		// Stop the helpers when polling ends for any reason.
		stop()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	ui.PrintSuccess("Stopped")
	return nil
}

func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		Launch: session.LaunchOptions{
			Bin:       cfg.Browser.Bin,
			Headless:  cfg.Browser.Headless,
			NoSandbox: cfg.Browser.NoSandbox,
			Stealth:   cfg.Browser.Stealth,
		},
		UserAgent:         cfg.Browser.UserAgent,
		Headers:           cfg.Browser.Headers,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		ShutdownTimeout:   cfg.Browser.ShutdownTimeout,
		CookieSource:      cfg.Settings.CookiesFileName,
	}
}

// watchPassphrase prompts for the vault passphrase only when someone can
// answer.
func watchPassphrase() vault.PassphraseFunc {
	if !stdinIsTerminal() {
		return vault.EnvPassphrase(nil)
	}
	return vault.EnvPassphrase(func() (string, error) {
		return readSecret("Vault passphrase: ")
	})
}

func printVoices(ctx context.Context, speaker *notify.CommandSpeaker) error {
	if ctx == nil {
		ctx = context.Background()
	}
	voices, err := speaker.ListVoices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}
	if len(voices) == 0 {
		ui.PrintWarning("No voices reported by the speech synthesizer")
		return nil
	}
	ui.PrintHighlight("Installed voices")
	fmt.Fprintln(ui.Out, "  "+strings.Join(voices, "\n  "))
	return nil
}
