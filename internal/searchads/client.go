// Package searchads logs into Apple Search Ads through the identity service and
// runs report and keyword recommendation queries with the resulting session.
package searchads

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"searchads-client/internal/components/telemetry"
	"searchads-client/internal/queue"
	"searchads-client/internal/session"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("searchads/client")

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"

// Client owns one Session and the queue of queries waiting on it.
type Client struct {
	opts    Options
	http    *resty.Client
	api     *resty.Client
	session *session.Session
	queue   *queue.Queue[Result]
	limiter *rate.Limiter
	tel     telemetry.API

	loggingIn atomic.Bool
}

func NewClient(opts Options) *Client {
	opts = opts.withDefaults()
	tel := telemetry.NewScopedAPI("searchads", opts.Telemetry)

	sess := session.New()
	injected := opts.Session != nil && opts.Session.Authenticated
	if opts.Session != nil {
		sess = session.FromSnapshot(*opts.Session)
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		opts: opts,
		// login hops are bounded per call, queries only by RequestTimeout
		http:    newRestyClient(opts, tel, opts.HTTPTimeout),
		api:     newRestyClient(opts, tel, 0),
		session: sess,
		limiter: limiter,
		tel:     tel,
		queue: queue.New[Result](queue.Options{
			Concurrency:  opts.ConcurrentRequests,
			TaskTimeout:  opts.RequestTimeout,
			StartResumed: injected,
			Telemetry:    tel,
		}),
	}
}

func newRestyClient(opts Options, tel telemetry.API, timeout time.Duration) *resty.Client {
	client := resty.New()
	// cookies are tracked by hand, the std jar would mix up hops across domains
	client.SetCookieJar(nil)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	telemetry.InstrumentResty(client, tel, opts.DumpOutput)
	return client
}

// Cookies returns the session's cookies in `Cookie` header format.
func (c *Client) Cookies() string {
	return c.session.CookieHeader()
}

func (c *Client) XSRFToken() string {
	return c.session.XSRFToken()
}

func (c *Client) Authenticated() bool {
	return c.session.Authenticated()
}

// Session returns a copy of the current session state.
func (c *Client) Session() session.Snapshot {
	return c.session.Snapshot()
}

// Logout pauses the queue and forgets the session.
func (c *Client) Logout() {
	c.queue.Pause()
	c.session.Replace(session.Snapshot{})
}

// Close stops the queue, queries that have not started fail with queue.ErrClosed.
func (c *Client) Close() {
	c.queue.Close()
}

// authenticate commits a finished session and lets the queue drain.
func (c *Client) authenticate(ctx context.Context, account string, snap session.Snapshot) {
	snap.Authenticated = true
	c.session.Replace(snap)
	c.queue.Resume()

	if c.opts.Store != nil && account != "" {
		err := c.opts.Store.Save(ctx, account, snap)
		if err != nil {
			c.tel.ReportWarning(report_login_store, err)
		}
	}
	if c.opts.OnAuthenticated != nil {
		c.opts.OnAuthenticated(ctx, snap)
	}
}

// apiHeaders are sent with every call to the reporting application.
func apiHeaders(snap session.Snapshot) map[string]string {
	return map[string]string{
		"Content-Type":    "application/json;charset=UTF-8",
		"Accept":          "application/json, text/plain, */*",
		"Cookie":          snap.CookieHeader(),
		"x-xsrf-token-cm": snap.XSRFToken,
	}
}
