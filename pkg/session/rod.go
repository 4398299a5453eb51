package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"tweetwatch/pkg/cookies"
	"tweetwatch/pkg/logger"
)

const contentReadTimeout = 5 * time.Second

// RodLauncher starts Chromium through go-rod. Without a configured binary
// rod looks for a local browser and downloads one if none is found.
type RodLauncher struct {
	Log logger.Logger
}

func (r RodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox).
		Set("disable-setuid-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Leakless(true)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch headless browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to headless browser: %w", err)
	}

	if r.Log != nil {
		r.Log.DebugWithFields("Chromium started", map[string]interface{}{
			"pid":         l.PID(),
			"control_url": u,
		})
	}
	return &rodBrowser{browser: b, launcher: l, stealth: opts.Stealth, bin: opts.Bin}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	stealth  bool
	bin      string
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	var (
		p   *rod.Page
		err error
	)
	if b.stealth {
		p, err = stealth.Page(b.browser)
	} else {
		p, err = b.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("create tab: %w", err)
	}
	return &rodPage{page: p}, nil
}

func (b *rodBrowser) Close() error {
	return b.browser.Close()
}

// Kill stops the launched process, removes its profile directory and then
// terminates any stray process running the configured binary.
func (b *rodBrowser) Kill(ctx context.Context) error {
	b.launcher.Kill()
	b.launcher.Cleanup()
	if b.bin == "" {
		return nil
	}
	return killByExecutable(ctx, b.bin)
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) SetUserAgent(ua string) error {
	return p.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua})
}

func (p *rodPage) SetHeaders(headers map[string]string) error {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dict := make([]string, 0, len(headers)*2)
	for _, k := range keys {
		dict = append(dict, k, headers[k])
	}
	_, err := p.page.SetExtraHeaders(dict)
	return err
}

func (p *rodPage) SetCookies(records []cookies.Record) error {
	return p.page.SetCookies(cookieParams(records))
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

func (p *rodPage) HTML() (string, error) {
	return p.page.Timeout(contentReadTimeout).HTML()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

// cookieParams converts records for the DevTools protocol. A nil result
// clears the browser's cookies, which is what an empty cookie file means.
func cookieParams(records []cookies.Record) []*proto.NetworkCookieParam {
	if len(records) == 0 {
		return nil
	}
	params := make([]*proto.NetworkCookieParam, 0, len(records))
	for _, r := range records {
		param := &proto.NetworkCookieParam{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   r.Domain,
			Path:     r.Path,
			Secure:   r.Secure,
			HTTPOnly: r.HTTPOnly,
			SameSite: sameSite(r.SameSite),
		}
		if r.Expires != nil {
			param.Expires = proto.TimeSinceEpoch(*r.Expires)
		}
		params = append(params, param)
	}
	return params
}

func sameSite(s cookies.SameSite) proto.NetworkCookieSameSite {
	switch s {
	case cookies.SameSiteStrict:
		return proto.NetworkCookieSameSiteStrict
	case cookies.SameSiteLax:
		return proto.NetworkCookieSameSiteLax
	case cookies.SameSiteNone:
		return proto.NetworkCookieSameSiteNone
	default:
		return ""
	}
}
