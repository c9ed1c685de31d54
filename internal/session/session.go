// Package session holds the cookie and token state that authorizes calls to
// the reporting application.
package session

import (
	"net/http"
	"sync"
)

// Snapshot is a copy of a Session at a point in time.
type Snapshot struct {
	Cookies       []Cookie `json:"cookies"`
	XSRFToken     string   `json:"xsrf_token"`
	Authenticated bool     `json:"authenticated"`
}

// CookieHeader flattens the cookies into a `Cookie` header value.
func (s Snapshot) CookieHeader() string {
	return NewJar(s.Cookies...).Header()
}

// Session is safe for concurrent use.
type Session struct {
	mu            sync.RWMutex
	jar           *Jar
	xsrfToken     string
	authenticated bool
}

func New() *Session {
	return &Session{jar: NewJar()}
}

// FromSnapshot creates a session carrying the snapshot's state.
func FromSnapshot(snap Snapshot) *Session {
	s := New()
	s.Replace(snap)
	return s
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Cookies:       s.jar.Cookies(),
		XSRFToken:     s.xsrfToken,
		Authenticated: s.authenticated,
	}
}

// Replace swaps out the whole state of the session.
func (s *Session) Replace(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = NewJar(snap.Cookies...)
	s.xsrfToken = snap.XSRFToken
	s.authenticated = snap.Authenticated
}

// Update runs fn with exclusive access to the jar.
func (s *Session) Update(fn func(jar *Jar)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.jar)
}

// Rotate applies cookies returned by an authenticated response.
func (s *Session) Rotate(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	s.Update(func(jar *Jar) {
		jar.Apply(cookies)
	})
}

func (s *Session) CookieHeader() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jar.Header()
}

func (s *Session) XSRFToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.xsrfToken
}

func (s *Session) SetXSRFToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.xsrfToken = token
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) SetAuthenticated(authenticated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = authenticated
}
