package searchads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"searchads-client/internal/components/assert"
	"searchads-client/internal/gsa"
	"searchads-client/internal/session"
	"searchads-client/internal/sessionstore"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_login       = "login"
	report_login_probe = "login.probe"
	report_login_store = "login.store"
	report_login_step  = "login.step"
)

const (
	cookieAccountInfo = "myacinfo"
	cookieDevicePref  = "DES"
	cookieUserID      = "searchads.userId"
	cookieSAUser      = "sa_user"
	cookieXSRF        = "XSRF-TOKEN-CM"

	headerScnt      = "scnt"
	headerSessionID = "X-Apple-ID-Session-Id"

	authTypeHSA2 = "hsa2"
)

var errNotAuthorized = errors.New("searchads: not authorized")

// Login authenticates the client. On success the queue starts draining, on
// failure it stays paused and the session stays unauthenticated.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if !c.loggingIn.CompareAndSwap(false, true) {
		return ErrLoginInProgress
	}
	defer c.loggingIn.Store(false)

	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	c.queue.Pause()
	c.session.SetAuthenticated(false)

	if c.tryExternalCookies(ctx, username) {
		span.SetAttributes(attribute.Bool("fast_path", true))
		return nil
	}

	fail := func(attempt string, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportWarning(report_login, attempt, err)
		if c.opts.OnLoginFailed != nil {
			c.opts.OnLoginFailed(ctx, err)
		}
		return err
	}

	if username == "" || password == "" {
		return fail("", fmt.Errorf("%w: username and password are required", ErrLoginFailed))
	}

	flow := newLoginFlow(c, username, password)
	span.SetAttributes(attribute.String("attempt", flow.attempt))

	snap, err := flow.run(ctx)
	if err != nil {
		return fail(flow.attempt, err)
	}

	c.authenticate(ctx, username, snap)
	return nil
}

// tryExternalCookies probes the check endpoint with pre-seeded or stored
// cookies, it reports whether the session could be reused.
func (c *Client) tryExternalCookies(ctx context.Context, account string) bool {
	ctx, span := tracer.Start(ctx, "tryExternalCookies")
	defer span.End()

	snap := session.Snapshot{
		Cookies:   session.ParseHeader(c.opts.Cookies).Cookies(),
		XSRFToken: c.opts.XSRFToken,
	}
	if len(snap.Cookies) == 0 && c.opts.Store != nil && account != "" {
		stored, err := c.opts.Store.Load(ctx, account)
		switch {
		case err == nil:
			snap = stored
		case !errors.Is(err, sessionstore.ErrNotFound):
			c.tel.ReportWarning(report_login_store, err)
		}
	}
	if len(snap.Cookies) == 0 {
		return false
	}

	var err error
	for attempt := 1; attempt <= c.opts.ProbeAttempts; attempt++ {
		var rotated []*http.Cookie
		rotated, err = c.probe(ctx, snap)
		if err == nil {
			jar := session.NewJar(snap.Cookies...)
			jar.Apply(rotated)
			snap.Cookies = jar.Cookies()
			c.authenticate(ctx, account, snap)
			return true
		}
		if !errors.Is(err, errNotAuthorized) {
			break
		}
		c.tel.ReportDebug(report_login_probe, attempt, err)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.tel.ReportWarning(report_login_probe, err)
	if c.opts.OnExternalCookiesFailed != nil {
		c.opts.OnExternalCookiesFailed(ctx, err)
	}
	return false
}

func (c *Client) probe(ctx context.Context, snap session.Snapshot) ([]*http.Cookie, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(apiHeaders(snap)).
		Get(c.opts.CheckURL)
	if err != nil {
		return nil, err
	}
	if res.IsSuccess() {
		return res.Cookies(), nil
	}
	resErr := newResponseError(ErrLoginFailed, res)
	status := res.StatusCode()
	if status == http.StatusUnauthorized ||
		status == http.StatusForbidden ||
		bytes.Contains(res.Body(), []byte("Not authorized")) {
		return nil, fmt.Errorf("%w: %w", errNotAuthorized, resErr)
	}
	return nil, resErr
}

type loginState int

const (
	stateInit loginState = iota
	stateChallenged
	stateRepairing
	stateVerifying2FA
	stateHarvesting
	stateAuthenticated
	stateFailed
)

func (s loginState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateChallenged:
		return "challenged"
	case stateRepairing:
		return "repairing"
	case stateVerifying2FA:
		return "verifying-2fa"
	case stateHarvesting:
		return "harvesting"
	case stateAuthenticated:
		return "authenticated"
	case stateFailed:
		return "failed"
	}
	return fmt.Sprintf("loginState(%d)", int(s))
}

// loginFlow is the state of a single full login attempt, nothing in it
// outlives the attempt.
type loginFlow struct {
	client   *Client
	attempt  string
	username string
	password string
	auth     *gsa.Authenticator

	// hop is the identity service's cookie jar.
	hop       *session.Jar
	scnt      string
	sessionID string

	challenge gsa.Challenge
	authType  string
	// last is the response the harvesting step reads cookies from.
	last *resty.Response

	// app accumulates the cookies of the session being built.
	app       *session.Jar
	xsrfToken string
}

func newLoginFlow(c *Client, username, password string) *loginFlow {
	assert.NotNil(c, "client")
	assert.NotEmptyStr(username, "username")
	assert.NotEmptyStr(password, "password")

	return &loginFlow{
		client:   c,
		attempt:  uuid.NewString(),
		username: username,
		password: password,
		auth:     gsa.NewAuthenticator(username),
		hop:      session.NewJar(),
		app:      session.NewJar(),
	}
}

func (f *loginFlow) transition(state loginState) func(ctx context.Context) (loginState, error) {
	switch state {
	case stateInit:
		return f.initialize
	case stateChallenged:
		return f.challenged
	case stateRepairing:
		return f.repair
	case stateVerifying2FA:
		return f.verify2FA
	case stateHarvesting:
		return f.harvest
	}
	return nil
}

func (f *loginFlow) run(ctx context.Context) (session.Snapshot, error) {
	state := stateInit
	for state != stateAuthenticated {
		err := ctx.Err()
		if err != nil {
			return session.Snapshot{}, err
		}

		step := f.transition(state)
		if step == nil {
			return session.Snapshot{}, fmt.Errorf("searchads: no transition from state %s", state)
		}

		stepCtx, span := tracer.Start(ctx, "login."+state.String())
		next, err := step(stepCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			f.client.tel.ReportDebug(report_login_step, f.attempt, state.String(), stateFailed.String(), err)
			return session.Snapshot{}, err
		}
		span.End()

		f.client.tel.ReportDebug(report_login_step, f.attempt, state.String(), next.String())
		state = next
	}

	return session.Snapshot{
		Cookies:       f.app.Cookies(),
		XSRFToken:     f.xsrfToken,
		Authenticated: true,
	}, nil
}

// identityHeaders are replayed on every call to the identity service.
func (f *loginFlow) identityHeaders() map[string]string {
	headers := map[string]string{
		"Content-Type":       "application/json",
		"Accept":             "application/json",
		"X-Apple-Widget-Key": f.client.opts.WidgetKey,
		"X-Requested-With":   "XMLHttpRequest",
		"X-Apple-Domain-Id":  "3",
		"Sec-Fetch-Site":     "same-origin",
		"Sec-Fetch-Mode":     "cors",
	}
	if f.scnt != "" {
		headers[headerScnt] = f.scnt
	}
	if f.sessionID != "" {
		headers[headerSessionID] = f.sessionID
	}
	if f.hop.Len() > 0 {
		headers["Cookie"] = f.hop.Header()
	}
	return headers
}

// absorb keeps the hop state the identity service hands back.
func (f *loginFlow) absorb(res *resty.Response) {
	f.hop.Apply(res.Cookies())
	if scnt := res.Header().Get(headerScnt); scnt != "" {
		f.scnt = scnt
	}
	if id := res.Header().Get(headerSessionID); id != "" {
		f.sessionID = id
	}
}

func (f *loginFlow) authURL(path string) string {
	return strings.TrimSuffix(f.client.opts.AuthURL, "/") + path
}

func (f *loginFlow) initialize(ctx context.Context) (loginState, error) {
	opts := f.client.opts

	signIn, err := url.Parse(opts.SignInURL)
	if err != nil {
		return stateFailed, fmt.Errorf("%w: sign in url: %w", ErrLoginFailed, err)
	}
	params := signIn.Query()
	params.Set("appIdKey", opts.WidgetKey)
	params.Set("rv", "1")
	params.Set("path", "")
	signIn.RawQuery = params.Encode()

	res, err := f.client.http.R().
		SetContext(ctx).
		SetHeaders(f.identityHeaders()).
		Get(signIn.String())
	if err != nil {
		return stateFailed, fmt.Errorf("%w: preflight: %w", ErrLoginFailed, err)
	}
	if res.StatusCode() >= http.StatusBadRequest {
		return stateFailed, newResponseError(ErrLoginFailed, res)
	}
	f.absorb(res)

	clientInit, err := f.auth.Init()
	if err != nil {
		return stateFailed, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	res, err = f.client.http.R().
		SetContext(ctx).
		SetHeaders(f.identityHeaders()).
		SetBody(clientInit).
		Post(f.authURL("/signin/init"))
	if err != nil {
		return stateFailed, fmt.Errorf("%w: signin init: %w", ErrLoginFailed, err)
	}
	if !res.IsSuccess() {
		return stateFailed, newResponseError(ErrLoginFailed, res)
	}
	f.absorb(res)

	err = json.Unmarshal(res.Body(), &f.challenge)
	if err != nil {
		return stateFailed, loginFailed("decode challenge: %s", err)
	}
	return stateChallenged, nil
}

type completeBody struct {
	gsa.Proof
	RememberMe bool `json:"rememberMe"`
}

func (f *loginFlow) challenged(ctx context.Context) (loginState, error) {
	proof, err := f.auth.Complete(f.password, f.challenge)
	if err != nil {
		return stateFailed, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	res, err := f.client.http.R().
		SetContext(ctx).
		SetHeaders(f.identityHeaders()).
		SetQueryParam("isRememberMeEnabled", "true").
		SetBody(completeBody{Proof: proof, RememberMe: true}).
		Post(f.authURL("/signin/complete"))
	if err != nil {
		return stateFailed, fmt.Errorf("%w: signin complete: %w", ErrLoginFailed, err)
	}
	f.absorb(res)

	switch status := res.StatusCode(); {
	case res.IsSuccess():
		f.last = res
		return stateHarvesting, nil
	case status == http.StatusPreconditionFailed:
		return stateRepairing, nil
	case status == http.StatusConflict:
		var body struct {
			AuthType string `json:"authType"`
		}
		// an undecodable body is treated like an absent authType
		_ = json.Unmarshal(res.Body(), &body)
		f.authType = body.AuthType
		return stateVerifying2FA, nil
	}
	return stateFailed, newResponseError(ErrLoginFailed, res)
}

func (f *loginFlow) repair(ctx context.Context) (loginState, error) {
	res, err := f.client.http.R().
		SetContext(ctx).
		SetHeaders(f.identityHeaders()).
		Post(f.authURL("/repair/complete"))
	if err != nil {
		return stateFailed, fmt.Errorf("%w: repair: %w", ErrLoginFailed, err)
	}
	if !res.IsSuccess() {
		return stateFailed, newResponseError(ErrLoginFailed, res)
	}
	f.absorb(res)
	f.last = res
	return stateHarvesting, nil
}

type securityCodeBody struct {
	SecurityCode struct {
		Code string `json:"code"`
	} `json:"securityCode"`
}

func (f *loginFlow) verify2FA(ctx context.Context) (loginState, error) {
	opts := f.client.opts
	if opts.TwoFactor == nil {
		return stateFailed, fmt.Errorf("%w: %w", ErrLoginFailed, ErrTwoFactorUnavailable)
	}

	if f.authType == authTypeHSA2 {
		// fetching the auth root pushes the code to trusted devices
		res, err := f.client.http.R().
			SetContext(ctx).
			SetHeaders(f.identityHeaders()).
			Get(opts.AuthURL)
		if err != nil {
			return stateFailed, fmt.Errorf("%w: trigger push: %w", ErrLoginFailed, err)
		}
		if res.StatusCode() >= http.StatusBadRequest {
			return stateFailed, newResponseError(ErrLoginFailed, res)
		}
		f.absorb(res)
	}

	code, err := opts.TwoFactor(ctx)
	if err != nil {
		return stateFailed, fmt.Errorf("%w: two-factor code: %w", ErrLoginFailed, err)
	}
	var body securityCodeBody
	body.SecurityCode.Code = strings.TrimSpace(code)

	res, err := f.client.http.R().
		SetContext(ctx).
		SetHeaders(f.identityHeaders()).
		SetBody(body).
		Post(f.authURL("/verify/trusteddevice/securitycode"))
	if err != nil {
		return stateFailed, fmt.Errorf("%w: submit code: %w", ErrLoginFailed, err)
	}
	if !res.IsSuccess() {
		return stateFailed, newResponseError(ErrLoginFailed, res)
	}
	f.absorb(res)

	res, err = f.client.http.R().
		SetContext(ctx).
		SetHeaders(f.identityHeaders()).
		Get(f.authURL("/2sv/trust"))
	if err != nil {
		return stateFailed, fmt.Errorf("%w: trust browser: %w", ErrLoginFailed, err)
	}
	if !res.IsSuccess() {
		return stateFailed, newResponseError(ErrLoginFailed, res)
	}
	f.absorb(res)
	f.last = res
	return stateHarvesting, nil
}

func findCookie(cookies []*http.Cookie, match func(name string) bool) *http.Cookie {
	for _, c := range cookies {
		if match(c.Name) && c.Value != "" {
			return c
		}
	}
	return nil
}

func named(name string) func(string) bool {
	return func(n string) bool {
		return n == name
	}
}

func (f *loginFlow) harvest(ctx context.Context) (loginState, error) {
	opts := f.client.opts
	cookies := f.last.Cookies()

	account := findCookie(cookies, named(cookieAccountInfo))
	if account == nil {
		return stateFailed, loginFailed("no %s cookie in %s response", cookieAccountInfo, f.last.Request.URL)
	}
	f.app.Set(account.Name, account.Value)
	if des := findCookie(cookies, func(n string) bool { return strings.HasPrefix(n, cookieDevicePref) }); des != nil {
		f.app.Set(des.Name, des.Value)
	}

	res, err := f.client.http.R().
		SetContext(ctx).
		SetHeader("Cookie", f.app.Header()).
		Get(opts.AppURL)
	if err != nil {
		return stateFailed, fmt.Errorf("%w: app handshake: %w", ErrLoginFailed, err)
	}
	if res.StatusCode() >= http.StatusBadRequest {
		return stateFailed, newResponseError(ErrLoginFailed, res)
	}
	appCookies := res.Cookies()
	f.app.DeleteFunc(func(n string) bool {
		return n == cookieUserID || n == cookieSAUser
	})
	if userID := findCookie(appCookies, named(cookieUserID)); userID != nil {
		f.app.Set(userID.Name, userID.Value)
	}
	if saUser := findCookie(appCookies, named(cookieSAUser)); saUser != nil {
		f.app.Set(saUser.Name, saUser.Value)
	}

	res, err = f.client.http.R().
		SetContext(ctx).
		SetHeader("Cookie", f.app.Header()).
		Get(opts.StartupURL)
	if err != nil {
		return stateFailed, fmt.Errorf("%w: startup: %w", ErrLoginFailed, err)
	}
	if res.StatusCode() >= http.StatusBadRequest {
		return stateFailed, newResponseError(ErrLoginFailed, res)
	}

	token := findCookie(res.Cookies(), named(cookieXSRF))
	if token == nil {
		token = findCookie(appCookies, named(cookieXSRF))
	}
	if token == nil {
		return stateFailed, loginFailed("no %s cookie in app or startup response", cookieXSRF)
	}
	f.xsrfToken = token.Value
	return stateAuthenticated, nil
}
