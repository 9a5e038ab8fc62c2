// Package navigation abstracts the browser location so the core can route the user
// without knowing how pages are rendered.
package navigation

import (
	"net/url"
	"sync"
)

type Kind string

const (
	// KindNavigate is an in-app route change.
	KindNavigate Kind = "navigate"
	// KindRedirect leaves the app for an external URL.
	KindRedirect Kind = "redirect"
	// KindReplace rewrites the current URL without a reload.
	KindReplace Kind = "replace"
)

type Navigator interface {
	Navigate(path string)
	Redirect(externalURL string)
	ReplaceURL(u string)
}

type Action struct {
	Kind Kind   `json:"kind"`
	URL  string `json:"url"`
}

// Recorder keeps the last navigation request until it is taken.
type Recorder struct {
	mu   sync.Mutex
	last *Action
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Navigate(path string)        { r.set(KindNavigate, path) }
func (r *Recorder) Redirect(externalURL string) { r.set(KindRedirect, externalURL) }
func (r *Recorder) ReplaceURL(u string)         { r.set(KindReplace, u) }

func (r *Recorder) set(kind Kind, u string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &Action{Kind: kind, URL: u}
}

// Take returns the pending action, if any, and clears it.
func (r *Recorder) Take() *Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.last
	r.last = nil
	return a
}

// WithoutQuery returns u with the named query parameter removed.
func WithoutQuery(u *url.URL, param string) string {
	if u == nil {
		return ""
	}
	out := *u
	q := out.Query()
	q.Del(param)
	out.RawQuery = q.Encode()
	return out.String()
}
