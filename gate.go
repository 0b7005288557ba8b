package staticredirect

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/getlantern/mtime"
)

// Mode is the kind of request as seen by the browser.
type Mode string

const (
	// ModeNavigate is a top-level navigation that loads a new document.
	ModeNavigate Mode = "navigate"
	// ModeOther covers sub-resource fetches and anything else.
	ModeOther Mode = "other"
)

// Request is what Intercept needs to know about an incoming request. URL
// may carry a fragment.
type Request struct {
	Method string
	Mode   Mode
	URL    *url.URL
}

// Redirect is the response Intercept asks the host to send.
type Redirect struct {
	Location *url.URL
	Code     int
	// Rule is the index of the matching rule in the manifest.
	Rule int
}

// Write sends the redirect with an empty body.
func (rd *Redirect) Write(resp http.ResponseWriter) {
	resp.Header().Set("Location", rd.Location.String())
	resp.WriteHeader(rd.Code)
}

// NewRequest classifies an HTTP request. A request is a navigation when the
// browser says so through Sec-Fetch-Mode. When assumeNavigation is set,
// requests carrying no Sec-Fetch metadata that accept text/html count as
// navigations too, for clients that don't send fetch metadata.
func NewRequest(req *http.Request, assumeNavigation bool) Request {
	mode := ModeOther
	switch fetchMode := req.Header.Get("Sec-Fetch-Mode"); {
	case fetchMode == "navigate":
		mode = ModeNavigate
	case fetchMode == "" && assumeNavigation && req.Header.Get("Sec-Fetch-Dest") == "" &&
		strings.Contains(req.Header.Get("Accept"), "text/html"):
		mode = ModeNavigate
	}
	u := *req.URL
	return Request{Method: req.Method, Mode: mode, URL: &u}
}

// Intercept decides whether req gets redirected. It only considers GET
// navigations; for everything else, and for navigations no rule matches, it
// returns false and the request should be handled as usual.
func (w *Worker) Intercept(req Request) (*Redirect, bool) {
	if req.Method != http.MethodGet || req.Mode != ModeNavigate || req.URL == nil {
		return nil, false
	}
	rules := w.Active().Rules
	if rules == nil {
		return nil, false
	}

	relPath := w.relativePath(req.URL)
	start := mtime.Now()
	m, matched := rules.Resolve(relPath)
	w.opts.Metrics.observeResolve(w.label, mtime.Now().Sub(start))
	if !matched {
		return nil, false
	}

	location, err := destination(w.scope, m.To, req.URL)
	if err != nil {
		w.log.Debugf("Not redirecting %v, bad target %q in rule %d: %v", relPath, m.To, m.Index, err)
		return nil, false
	}
	if !isRedirectStatus(m.Code) {
		w.log.Debugf("Not redirecting %v, rule %d has status %d", relPath, m.Index, m.Code)
		return nil, false
	}
	w.opts.Metrics.observeRedirect(w.label, m.Code)
	w.log.Debugf("Redirecting %v to %v with %d", req.URL, location, m.Code)
	return &Redirect{Location: location, Code: m.Code, Rule: m.Index}, true
}

// InScope reports whether u falls under the worker's scope path.
func (w *Worker) InScope(u *url.URL) bool {
	return strings.HasPrefix(u.EscapedPath(), w.scopePath)
}

// Middleware answers matching navigations under the scope with a redirect
// and hands every other request to next untouched.
func (w *Worker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		if !w.InScope(req.URL) {
			next.ServeHTTP(resp, req)
			return
		}
		w.serve(resp, req, next)
	})
}

// serve answers req with a redirect when a rule matches and hands it to next
// otherwise.
func (w *Worker) serve(resp http.ResponseWriter, req *http.Request, next http.Handler) {
	if rd, ok := w.Intercept(NewRequest(req, w.opts.AssumeNavigation)); ok {
		rd.Write(resp)
		return
	}
	next.ServeHTTP(resp, req)
}

// relativePath strips the scope path from u's path, keeping the leading
// slash, so that rules are written against "/" whatever the mount point.
// Paths outside the scope are returned unchanged.
func (w *Worker) relativePath(u *url.URL) string {
	p := u.EscapedPath()
	if strings.HasPrefix(p, w.scopePath) {
		return p[len(w.scopePath)-1:]
	}
	return p
}

// destination resolves to against the scope and replaces its query and
// fragment with the ones of the original request.
func destination(scope *url.URL, to string, original *url.URL) (*url.URL, error) {
	ref, err := url.Parse(cleanTarget(to))
	if err != nil {
		return nil, err
	}
	target := scope.ResolveReference(ref)
	target.RawQuery = original.RawQuery
	target.ForceQuery = false
	target.Fragment = original.Fragment
	target.RawFragment = original.RawFragment
	return target, nil
}

// isRedirectStatus reports whether code is a status a redirect can be sent
// with.
func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	}
	return false
}
