package searchads

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"searchads-client/internal/gsa"
)

const (
	testAccountInfo = "acct-cookie"
	testXSRFToken   = "xsrf-token"
	testCode        = "123456"
)

// fakeVendor stands in for both the identity service and the reporting app.
type fakeVendor struct {
	t   testing.TB
	srv *httptest.Server

	mu sync.Mutex

	completeStatus  int
	authType        string
	omitAccountInfo bool
	omitXSRF        bool
	checkStatuses   []int
	startupDelay    time.Duration
	apiDelay        time.Duration
	// apiSlowSuffix limits apiDelay to api paths ending with it
	apiSlowSuffix string
	apiFailSuffix string

	obs         observations
	apiInFlight int
}

// observations is what the vendor saw, read it through fakeVendor.observed.
type observations struct {
	calls      []string
	checkCalls int
	pushes     int
	codes      []string
	repairScnt string
	repairSess string
	apiPaths   []string
	apiTokens  []string
	apiMaxPar  int
}

// newFakeVendor applies configure before the server starts serving.
func newFakeVendor(t testing.TB, configure ...func(v *fakeVendor)) *fakeVendor {
	v := &fakeVendor{t: t, completeStatus: http.StatusOK}
	for _, fn := range configure {
		fn(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /signin", v.signIn)
	mux.HandleFunc("POST /auth/signin/init", v.signInInit)
	mux.HandleFunc("POST /auth/signin/complete", v.signInComplete)
	mux.HandleFunc("POST /auth/repair/complete", v.repairComplete)
	mux.HandleFunc("GET /auth", v.authRoot)
	mux.HandleFunc("POST /auth/verify/trusteddevice/securitycode", v.securityCode)
	mux.HandleFunc("GET /auth/2sv/trust", v.trust)
	mux.HandleFunc("GET /app", v.app)
	mux.HandleFunc("GET /startup", v.startup)
	mux.HandleFunc("GET /check", v.check)
	mux.HandleFunc("POST /api/", v.api)

	v.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v.mu.Lock()
		v.obs.calls = append(v.obs.calls, r.Method+" "+r.URL.Path)
		v.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(v.srv.Close)
	return v
}

func (v *fakeVendor) options() Options {
	return Options{
		SignInURL:      v.srv.URL + "/signin",
		AuthURL:        v.srv.URL + "/auth",
		StartupURL:     v.srv.URL + "/startup",
		AppURL:         v.srv.URL + "/app",
		CheckURL:       v.srv.URL + "/check",
		APIURL:         v.srv.URL + "/api",
		HTTPTimeout:    5 * time.Second,
		RequestTimeout: 5 * time.Second,
		TwoFactor: func(ctx context.Context) (string, error) {
			return testCode, nil
		},
	}
}

func (v *fakeVendor) observed() observations {
	v.mu.Lock()
	defer v.mu.Unlock()
	obs := v.obs
	obs.calls = append([]string(nil), v.obs.calls...)
	obs.codes = append([]string(nil), v.obs.codes...)
	obs.apiPaths = append([]string(nil), v.obs.apiPaths...)
	obs.apiTokens = append([]string(nil), v.obs.apiTokens...)
	return obs
}

func (v *fakeVendor) callsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range v.observed().calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (v *fakeVendor) setAccountCookies(w http.ResponseWriter) {
	if v.omitAccountInfo {
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "myacinfo", Value: testAccountInfo, Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "DES58b0eba5", Value: "device", Path: "/"})
}

func (v *fakeVendor) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		v.t.Error(err)
	}
}

func (v *fakeVendor) signIn(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("appIdKey") == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "aasp", Value: "tracking", Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (v *fakeVendor) signInInit(w http.ResponseWriter, r *http.Request) {
	var clientInit gsa.ClientInit
	err := json.NewDecoder(r.Body).Decode(&clientInit)
	if err != nil || clientInit.A == "" || clientInit.AccountName == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !strings.Contains(r.Header.Get("Cookie"), "aasp=tracking") {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("scnt", "scnt-init")
	w.Header().Set("X-Apple-ID-Session-Id", "session-1")
	v.writeJSON(w, http.StatusOK, gsa.Challenge{
		Protocol:  gsa.ProtocolS2K,
		Salt:      base64.StdEncoding.EncodeToString([]byte("pepper")),
		B:         base64.StdEncoding.EncodeToString([]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab}),
		Iteration: 10,
		C:         "correlation",
	})
}

func (v *fakeVendor) signInComplete(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil ||
		r.URL.Query().Get("isRememberMeEnabled") != "true" ||
		body["rememberMe"] != true ||
		body["c"] != "correlation" ||
		body["m1"] == "" ||
		r.Header.Get("scnt") != "scnt-init" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("scnt", "scnt-complete")
	switch v.completeStatus {
	case http.StatusOK:
		v.setAccountCookies(w)
		w.WriteHeader(http.StatusOK)
	case http.StatusConflict:
		conflict := map[string]any{}
		if v.authType != "" {
			conflict["authType"] = v.authType
		}
		v.writeJSON(w, http.StatusConflict, conflict)
	default:
		w.WriteHeader(v.completeStatus)
	}
}

func (v *fakeVendor) repairComplete(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	v.obs.repairScnt = r.Header.Get("scnt")
	v.obs.repairSess = r.Header.Get("X-Apple-ID-Session-Id")
	v.mu.Unlock()
	v.setAccountCookies(w)
	w.WriteHeader(http.StatusOK)
}

func (v *fakeVendor) authRoot(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	v.obs.pushes++
	v.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (v *fakeVendor) securityCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SecurityCode struct {
			Code string `json:"code"`
		} `json:"securityCode"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	v.mu.Lock()
	v.obs.codes = append(v.obs.codes, body.SecurityCode.Code)
	v.mu.Unlock()
	if body.SecurityCode.Code != testCode {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (v *fakeVendor) trust(w http.ResponseWriter, r *http.Request) {
	v.setAccountCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (v *fakeVendor) app(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Cookie"), "myacinfo="+testAccountInfo) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "sa_user", Value: "fresh-user", Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "searchads.userId", Value: "fresh-id", Path: "/"})
	w.Header().Set("Location", "/app/home")
	w.WriteHeader(http.StatusFound)
}

func (v *fakeVendor) startup(w http.ResponseWriter, r *http.Request) {
	time.Sleep(v.startupDelay)
	if !v.omitXSRF {
		http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN-CM", Value: testXSRFToken, Path: "/"})
	}
	v.writeJSON(w, http.StatusOK, map[string]any{})
}

func (v *fakeVendor) check(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	status := http.StatusUnauthorized
	if len(v.checkStatuses) > 0 {
		idx := v.obs.checkCalls
		if idx >= len(v.checkStatuses) {
			idx = len(v.checkStatuses) - 1
		}
		status = v.checkStatuses[idx]
	}
	v.obs.checkCalls++
	v.mu.Unlock()

	if status == http.StatusOK {
		http.SetCookie(w, &http.Cookie{Name: "myacinfo", Value: "rotated", Path: "/"})
	}
	w.WriteHeader(status)
	if status == http.StatusUnauthorized {
		fmt.Fprint(w, "Not authorized")
	}
}

func (v *fakeVendor) api(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	v.obs.apiPaths = append(v.obs.apiPaths, r.URL.Path)
	v.obs.apiTokens = append(v.obs.apiTokens, r.Header.Get("x-xsrf-token-cm"))
	v.apiInFlight++
	if v.apiInFlight > v.obs.apiMaxPar {
		v.obs.apiMaxPar = v.apiInFlight
	}
	delay := v.apiDelay
	if v.apiSlowSuffix != "" && !strings.HasSuffix(r.URL.Path, v.apiSlowSuffix) {
		delay = 0
	}
	fail := v.apiFailSuffix != "" && strings.HasSuffix(r.URL.Path, v.apiFailSuffix)
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.apiInFlight--
		v.mu.Unlock()
	}()

	time.Sleep(delay)
	if fail {
		v.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "searchads.userId", Value: "rotated-id", Path: "/"})
	v.writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"path":   r.URL.Path,
			"adamId": r.URL.Query().Get("adamId"),
		},
	})
}
