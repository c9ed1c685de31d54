package searchads

import (
	"context"
	"strings"
	"time"

	"searchads-client/internal/components/telemetry"
	"searchads-client/internal/query"
	"searchads-client/internal/session"
	"searchads-client/internal/sessionstore"
)

const (
	DefaultSignInURL  = "https://idmsa.apple.com/IDMSWebAuth/signin"
	DefaultAuthURL    = "https://idmsa.apple.com/appleauth/auth"
	DefaultStartupURL = "https://app.searchads.apple.com/cm/api/v1/startup"
	DefaultAppURL     = "https://app.searchads.apple.com/cm/app?tab=0"
	DefaultCheckURL   = "https://app.searchads.apple.com/cm/api/v1/taxprofile/status"
	DefaultWidgetKey  = "a01459d797984726ee0914a7097e53fad42b70e1f08d09294d14523a1d4f61e1"

	DefaultConcurrentRequests = 2
	DefaultRequestTimeout     = 200 * time.Second
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultProbeAttempts      = 3
)

type Options struct {
	// SignInURL is fetched before the handshake to pick up tracking cookies.
	SignInURL string
	// AuthURL is the root of the identity service's auth endpoints.
	AuthURL string
	// StartupURL issues the anti-forgery token cookie.
	StartupURL string
	// AppURL is the reporting application's landing page.
	AppURL string
	// CheckURL is probed to check whether pre-seeded cookies still work.
	CheckURL string
	// APIURL is the root queries are posted to.
	APIURL    string
	WidgetKey string

	ConcurrentRequests int
	// RequestsPerSecond limits query calls, 0 means no limit.
	RequestsPerSecond float64
	// RequestTimeout bounds a single query call.
	RequestTimeout time.Duration
	// HTTPTimeout bounds each call made while logging in.
	HTTPTimeout time.Duration
	// ProbeAttempts is how many times pre-seeded cookies are probed before
	// falling back to a full login.
	ProbeAttempts int

	// Cookies is a `Cookie` header value to try before logging in.
	Cookies   string
	XSRFToken string
	// Session injects an already authenticated session, the queue starts
	// draining right away when it is set and authenticated.
	Session *session.Snapshot

	// TwoFactor blocks until the user supplies a verification code.
	TwoFactor func(ctx context.Context) (string, error)
	// OnExternalCookiesFailed is called when pre-seeded cookies are rejected.
	OnExternalCookiesFailed func(ctx context.Context, err error)
	// OnAuthenticated is called with the final session after every successful login.
	OnAuthenticated func(ctx context.Context, snap session.Snapshot)
	// OnLoginFailed is called with the cause whenever Login fails.
	OnLoginFailed func(ctx context.Context, err error)

	// Store persists the session between runs, it is optional.
	Store sessionstore.Store

	Telemetry telemetry.API
	// DumpOutput receives full renderings of every http message, it is optional.
	DumpOutput telemetry.InstrumentOutput
}

func (o Options) withDefaults() Options {
	defaultString := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	defaultString(&o.SignInURL, DefaultSignInURL)
	defaultString(&o.AuthURL, DefaultAuthURL)
	defaultString(&o.StartupURL, DefaultStartupURL)
	defaultString(&o.AppURL, DefaultAppURL)
	defaultString(&o.CheckURL, DefaultCheckURL)
	defaultString(&o.APIURL, query.DefaultAPIURL)
	defaultString(&o.WidgetKey, DefaultWidgetKey)
	o.APIURL = strings.TrimSuffix(o.APIURL, "/")

	if o.ConcurrentRequests <= 0 {
		o.ConcurrentRequests = DefaultConcurrentRequests
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = DefaultHTTPTimeout
	}
	if o.ProbeAttempts <= 0 {
		o.ProbeAttempts = DefaultProbeAttempts
	}
	if o.Telemetry == nil {
		o.Telemetry = telemetry.Discard{}
	}
	return o
}
