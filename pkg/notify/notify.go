// Package notify turns new-post events into desktop notifications and
// spoken announcements.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tweetwatch/internal/delivery"
	"tweetwatch/pkg/accounts"
	twerrors "tweetwatch/pkg/errors"
	"tweetwatch/pkg/logger"
	"tweetwatch/pkg/models"
	"tweetwatch/pkg/ratelimit"
)

// Sink names used in logs and metrics.
const (
	SinkView  = "view"
	SinkSound = "sound"
)

// ErrDropped marks a notification that was never handed to its sink,
// because of the flood guard or a full queue.
var ErrDropped = errors.New("notification dropped")

// Message is a visual notification.
type Message struct {
	Title string
	Body  string
	Link  string
}

// Notifier shows a visual notification.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Speaker announces text aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Headline is the announcement for a new post by handle.
func Headline(handle string) string {
	return handle + " posted new update"
}

// Options configure a Dispatcher.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	// Limiter throttles visual notifications; nil means unlimited.
	Limiter ratelimit.Limiter
	// SpeakText appends the post text to the spoken headline.
	SpeakText bool
	// OnResult observes each finished delivery.
	OnResult func(sink string, err error)
}

// Dispatcher routes posts to sinks according to the account mode.
// Deliveries run asynchronously; their failures are logged and dropped.
type Dispatcher struct {
	notifier Notifier
	speaker  Speaker
	pool     *delivery.Pool
	limiter  ratelimit.Limiter
	opts     Options
	log      logger.Logger
}

// NewDispatcher creates a dispatcher and starts its delivery workers.
func NewDispatcher(n Notifier, s Speaker, opts Options, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if n == nil {
		n = NopNotifier{}
	}
	if s == nil {
		s = NopSpeaker{}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	d := &Dispatcher{
		notifier: n,
		speaker:  s,
		pool:     delivery.NewPool(opts.Workers, opts.QueueSize, opts.Timeout, log),
		limiter:  limiter,
		opts:     opts,
		log:      log.WithField("component", "dispatcher"),
	}
	d.pool.OnResult = func(r delivery.Result) {
		if opts.OnResult != nil {
			opts.OnResult(r.Job.Sink, r.Err)
		}
	}
	d.pool.Start()
	return d
}

// Dispatch delivers post for account according to its mode. It never
// blocks on a sink and never fails. Nothing is sent once ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, account accounts.Account, post models.Post) {
	if ctx.Err() != nil {
		return
	}
	headline := Headline(account.Handle)

	if account.Mode.Has(accounts.View) {
		if d.limiter.Allow() {
			msg := Message{Title: headline, Body: post.Text, Link: post.Permalink}
			d.submit(SinkView, account, post, func(ctx context.Context) error {
				return d.notifier.Notify(ctx, msg)
			})
		} else {
			d.log.WarnWithFields("Notification throttled", map[string]interface{}{
				"account": account.Handle,
				"post_id": post.ID,
			})
			d.observe(SinkView, fmt.Errorf("%w: rate limit reached", ErrDropped))
		}
	}

	if account.Mode.Has(accounts.Sound) {
		text := headline
		if d.opts.SpeakText && post.Text != "" {
			text += ": " + post.Text
		}
		d.submit(SinkSound, account, post, func(ctx context.Context) error {
			return d.speaker.Speak(ctx, text)
		})
	}
}

func (d *Dispatcher) submit(sink string, account accounts.Account, post models.Post, run func(context.Context) error) {
	err := d.pool.Submit(delivery.Job{
		Sink:    sink,
		Account: account.Handle,
		PostID:  post.ID,
		Run: func(ctx context.Context) error {
			if err := run(ctx); err != nil {
				return twerrors.NotificationSink(sink, err).ForAccount(account.Handle)
			}
			return nil
		},
	})
	if err != nil {
		d.log.WithError(err).WarnWithFields("Notification dropped", map[string]interface{}{
			"sink":    sink,
			"account": account.Handle,
			"post_id": post.ID,
		})
		d.observe(sink, fmt.Errorf("%w: %w", ErrDropped, err))
	}
}

func (d *Dispatcher) observe(sink string, err error) {
	if d.opts.OnResult != nil {
		d.opts.OnResult(sink, err)
	}
}

// Close waits for queued deliveries, up to ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	return d.pool.Stop(ctx)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, msg Message) error { return nil }

// NopSpeaker discards speech.
type NopSpeaker struct{}

func (NopSpeaker) Speak(ctx context.Context, text string) error { return nil }
