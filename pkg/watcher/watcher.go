// Package watcher runs one poll cycle: fetch every target page, extract
// posts, find the new ones and hand them to the dispatcher.
package watcher

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tweetwatch/pkg/accounts"
	"tweetwatch/pkg/config"
	twerrors "tweetwatch/pkg/errors"
	"tweetwatch/pkg/extract"
	"tweetwatch/pkg/feed"
	"tweetwatch/pkg/logger"
	"tweetwatch/pkg/metrics"
	"tweetwatch/pkg/models"
	"tweetwatch/pkg/session"
	"tweetwatch/pkg/settings"
	"tweetwatch/pkg/ui"
)

// Fetcher loads a page. *session.Driver implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (session.FetchResult, error)
}

// Dispatcher delivers a new post. *notify.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, account accounts.Account, post models.Post)
}

// SettingStore persists values the watcher learns, such as a healed
// selector. *settings.Store implements it.
type SettingStore interface {
	Set(key, value string) error
}

// CookieSourceSetter is told when the cookie file setting changes.
type CookieSourceSetter interface {
	SetCookieSource(source string)
}

// VoiceSetter is told when the speech settings change.
type VoiceSetter interface {
	SetVoice(voice string)
	SetVolume(volume int)
}

// Options wires a Watcher. Fetcher, Extractor, Registry and Dispatcher
// are required.
type Options struct {
	Fetcher    Fetcher
	Extractor  extract.Extractor
	Engine     *feed.Engine
	Registry   *accounts.Registry
	Dispatcher Dispatcher
	Settings   SettingStore
	Metrics    *metrics.Metrics

	BaseURL  string
	Selector string

	// Targets of live reconfiguration; each may be nil.
	Cookies    CookieSourceSetter
	Voice      VoiceSetter
	OnInterval func(time.Duration)
}

// Watcher is safe for concurrent use, but cycles must not overlap; the
// scheduler guarantees that.
type Watcher struct {
	opts Options
	log  logger.Logger

	mu       sync.RWMutex
	baseURL  string
	selector string
}

func New(opts Options, log logger.Logger) *Watcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Engine == nil {
		opts.Engine = feed.NewEngine()
	}
	return &Watcher{
		opts:     opts,
		log:      log.WithField("component", "watcher"),
		baseURL:  opts.BaseURL,
		selector: opts.Selector,
	}
}

// Target is one page fetched per cycle.
type Target struct {
	// Key identifies the target for baseline bookkeeping.
	Key string
	URL string
	// Account is set in per-account mode.
	Account *accounts.Account
}

// Targets builds the fetch list for list under baseURL. A URL containing
// the account placeholder yields one target per enabled account;
// otherwise the URL is a single dashboard showing every account.
func Targets(baseURL string, list []accounts.Account) []Target {
	if !strings.Contains(baseURL, config.AccountPlaceholder) {
		return []Target{{Key: "dashboard", URL: baseURL}}
	}

	enabled := accounts.Enabled(list)
	targets := make([]Target, 0, len(enabled))
	for i := range enabled {
		a := enabled[i]
		targets = append(targets, Target{
			Key:     "account:" + a.Key(),
			URL:     strings.ReplaceAll(baseURL, config.AccountPlaceholder, url.PathEscape(a.Handle)),
			Account: &a,
		})
	}
	return targets
}

func (w *Watcher) current() (string, string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.baseURL, w.selector
}

// Selector is the container hint the next extraction starts from.
func (w *Watcher) Selector() string {
	_, sel := w.current()
	return sel
}

// RunCycle polls every target once. Failures of a single target are
// logged and skipped; errors that concern the whole session end the cycle
// and are returned. Cancellation is checked before every target.
func (w *Watcher) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	start := time.Now()
	log := w.log.WithField("cycle_id", cycleID)

	list := w.opts.Registry.Snapshot()
	baseURL, _ := w.current()
	targets := Targets(baseURL, list)
	w.opts.Metrics.SetTrackedAccounts(len(accounts.Enabled(list)))

	var newPosts int
	var err error
	for _, t := range targets {
		if err = ctx.Err(); err != nil {
			break
		}
		var n int
		n, err = w.poll(ctx, log, t, list)
		newPosts += n
		if err != nil {
			break
		}
	}

	w.opts.Metrics.SetSeenPosts(w.opts.Engine.Seen().Len())
	w.opts.Metrics.CycleFinished(time.Since(start), err)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.WithFields(map[string]interface{}{"new_posts": newPosts}).Debug("Poll cycle cancelled")
		return err
	}
	logger.LogCycle(cycleID, len(targets), newPosts, time.Since(start), err)
	return err
}

// poll handles one target. Only session-level errors are returned.
func (w *Watcher) poll(ctx context.Context, log logger.Logger, t Target, list []accounts.Account) (int, error) {
	log = log.WithField("target", t.Key)

	res, err := w.opts.Fetcher.Fetch(ctx, t.URL)
	w.opts.Metrics.Fetched(res.TimedOut, err)
	if err != nil {
		if sessionLevel(ctx, err) {
			return 0, err
		}
		log.WithError(err).WarnWithFields("Fetch failed, skipping target", map[string]interface{}{"url": t.URL})
		return 0, nil
	}

	_, selector := w.current()
	posts, next, err := w.opts.Extractor.Extract(res.Content, selector)
	strategy := w.opts.Extractor.Name()
	if s, ok := w.opts.Extractor.(interface{ LastStrategy() string }); ok {
		strategy = s.LastStrategy()
	}
	if err != nil {
		log.WithError(err).WarnWithFields("Extraction failed, skipping target", map[string]interface{}{
			"strategy":  strategy,
			"timed_out": res.TimedOut,
		})
		return 0, nil
	}
	w.opts.Metrics.PostsExtracted(strategy, len(posts))
	if next != selector {
		w.adoptSelector(log, selector, next)
	}

	if t.Account != nil {
		for i := range posts {
			if posts[i].AuthorHandle == "" {
				posts[i].AuthorHandle = t.Account.Handle
			}
		}
	}

	baseline := !w.opts.Engine.Primed(t.Key)
	events, err := w.opts.Engine.Classify(ctx, posts, list, baseline)
	if err != nil {
		return 0, err
	}
	w.opts.Engine.Prime(t.Key)

	if baseline {
		log.DebugWithFields("Baseline recorded", map[string]interface{}{"posts": len(posts)})
		return 0, nil
	}

	for _, ev := range events {
		logger.LogNewPost(ev.Account.Handle, ev.Post.ID, ev.Account.Mode.String())
		w.opts.Metrics.NewPost(ev.Account.Handle)
		w.opts.Dispatcher.Dispatch(ctx, ev.Account, ev.Post)
	}
	return len(events), nil
}

// sessionLevel reports whether a fetch error affects every target.
func sessionLevel(ctx context.Context, err error) bool {
	switch {
	case ctx.Err() != nil:
		return true
	case twerrors.IsFatal(err), errors.Is(err, session.ErrNotOpen):
		return true
	default:
		return false
	}
}

func (w *Watcher) adoptSelector(log logger.Logger, old, next string) {
	w.mu.Lock()
	w.selector = next
	w.mu.Unlock()

	log.InfoWithFields("Container selector changed", map[string]interface{}{"from": old, "to": next})
	if w.opts.Settings == nil {
		return
	}
	if err := w.opts.Settings.Set(settings.KeySelector, next); err != nil {
		log.WithError(err).Warn("Could not persist selector")
	}
}

// Apply reacts to a settings change. It is meant to be subscribed to the
// settings store.
func (w *Watcher) Apply(c settings.Change) {
	log := w.log.WithFields(map[string]interface{}{"key": c.Key, "value": c.New})

	switch c.Key {
	case settings.KeyBaseURL:
		w.mu.Lock()
		w.baseURL = c.New
		w.mu.Unlock()
	case settings.KeySelector:
		w.mu.Lock()
		w.selector = c.New
		w.mu.Unlock()
	case settings.KeyTwitterAccounts:
		// Registry edits persist through the store and come back here.
		if w.opts.Registry.Serialize() == c.New {
			return
		}
		w.opts.Registry.Replace(accounts.Parse(c.New))
	case settings.KeyCookiesFileName:
		if w.opts.Cookies != nil {
			w.opts.Cookies.SetCookieSource(c.New)
		}
	case settings.KeyUpdateTime:
		secs, err := strconv.Atoi(c.New)
		if err != nil || secs <= 0 || w.opts.OnInterval == nil {
			return
		}
		w.opts.OnInterval(time.Duration(secs) * time.Second)
	case settings.KeyVoice:
		if w.opts.Voice != nil {
			w.opts.Voice.SetVoice(c.New)
		}
	case settings.KeyVolume:
		vol, err := strconv.Atoi(c.New)
		if err != nil || w.opts.Voice == nil {
			return
		}
		w.opts.Voice.SetVolume(vol)
	case settings.KeyTheme:
		ui.SetTheme(c.New)
	default:
		return
	}
	log.Info("Setting applied")
}
