package staticredirect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeWorker(t *testing.T, scope string, manifest string) *Worker {
	w := newTestWorker(t, scope, manifest)
	w.Activate(context.Background())
	return w
}

func TestPreserveQueryAndFragment(t *testing.T) {
	w := activeWorker(t, "https://example.com/", `[{"from": "/old", "to": "/new?ignored=1#ignored"}]`)

	rd, ok := w.Intercept(navigate(t, "https://example.com/old?keep=2#frag"))
	require.True(t, ok)
	assert.Equal(t, "https://example.com/new?keep=2#frag", rd.Location.String())
	assert.Equal(t, http.StatusMovedPermanently, rd.Code)
}

func TestRuleQueryDroppedWithoutRequestQuery(t *testing.T) {
	w := activeWorker(t, "https://example.com/", `[{"from": "/old", "to": "/new?ignored=1#ignored"}]`)

	rd, ok := w.Intercept(navigate(t, "https://example.com/old"))
	require.True(t, ok)
	assert.Equal(t, "https://example.com/new", rd.Location.String())
}

func TestTargetWhitespaceIsStripped(t *testing.T) {
	w := activeWorker(t, "https://example.com/", `[
		{"from": "/old", "to": " /new "},
		{"from": "/split", "to": "/ne\nw\t"}
	]`)

	rd, ok := w.Intercept(navigate(t, "https://example.com/old"))
	require.True(t, ok)
	assert.Equal(t, "https://example.com/new", rd.Location.String())

	rd, ok = w.Intercept(navigate(t, "https://example.com/split?q=1"))
	require.True(t, ok)
	assert.Equal(t, "https://example.com/new?q=1", rd.Location.String())
}

func TestMatchedStatusCode(t *testing.T) {
	w := activeWorker(t, "https://example.com/", `[
		{"from": "/default", "to": "/x"},
		{"from": "/found", "to": "/x", "type": 302}
	]`)

	rd, ok := w.Intercept(navigate(t, "https://example.com/default"))
	require.True(t, ok)
	assert.Equal(t, 301, rd.Code)

	rd, ok = w.Intercept(navigate(t, "https://example.com/found"))
	require.True(t, ok)
	assert.Equal(t, 302, rd.Code)
}

func TestOnlyGetNavigationsAreIntercepted(t *testing.T) {
	w := activeWorker(t, "https://example.com/", `[{"from": "/old", "to": "/new"}]`)
	u, _ := url.Parse("https://example.com/old")

	_, ok := w.Intercept(Request{Method: http.MethodPost, Mode: ModeNavigate, URL: u})
	assert.False(t, ok, "POST must not be redirected")

	_, ok = w.Intercept(Request{Method: http.MethodGet, Mode: ModeOther, URL: u})
	assert.False(t, ok, "sub-resource GET must not be redirected")

	_, ok = w.Intercept(Request{Method: http.MethodHead, Mode: ModeNavigate, URL: u})
	assert.False(t, ok)
}

func TestScopeRelativePaths(t *testing.T) {
	w := activeWorker(t, "https://example.com/docs/", `[
		{"from": "/", "to": "/docs/start"},
		{"from": "/guide/*", "to": "manual/"}
	]`)

	rd, ok := w.Intercept(navigate(t, "https://example.com/docs/"))
	require.True(t, ok)
	assert.Equal(t, "https://example.com/docs/start", rd.Location.String())

	rd, ok = w.Intercept(navigate(t, "https://example.com/docs/guide/setup"))
	require.True(t, ok)
	assert.Equal(t, "https://example.com/docs/manual/", rd.Location.String(), "relative targets resolve against the scope")
}

func TestScopeWithoutTrailingSlash(t *testing.T) {
	w := activeWorker(t, "https://example.com/docs", `[{"from": "/a", "to": "/b"}]`)
	assert.Equal(t, "/a", w.relativePath(&url.URL{Path: "/docs/a"}))
	assert.Equal(t, "/other/a", w.relativePath(&url.URL{Path: "/other/a"}))
}

func TestEscapedPathsAreMatched(t *testing.T) {
	w := activeWorker(t, "https://example.com/", `[{"from": "/caf%C3%A9", "to": "/cafe"}]`)
	rd, ok := w.Intercept(navigate(t, "https://example.com/caf%C3%A9"))
	require.True(t, ok)
	assert.Equal(t, "/cafe", rd.Location.Path)
}

func TestAbsoluteTarget(t *testing.T) {
	w := activeWorker(t, "https://example.com/", `[{"from": "/away", "to": "https://other.example.org/landing"}]`)
	rd, ok := w.Intercept(navigate(t, "https://example.com/away?x=1"))
	require.True(t, ok)
	assert.Equal(t, "https://other.example.org/landing?x=1", rd.Location.String())
}

func TestUnusableMatchPassesThrough(t *testing.T) {
	w := activeWorker(t, "https://example.com/", `[
		{"from": "/bad-status", "to": "/x", "type": 200},
		{"from": "/bad-target", "to": "http://[::1"},
		{"from": "/zero-status", "to": "/x", "type": "0"},
		{"from": "/half-status", "to": "/x", "type": 0.5},
		{"from": "/blank-status", "to": "/x", "type": " "},
		{"from": "/bad-*", "to": "/never"}
	]`)
	for _, p := range []string{"/zero-status", "/half-status", "/blank-status"} {
		_, ok := w.Intercept(navigate(t, "https://example.com"+p))
		assert.False(t, ok, "%v has no usable status and must pass through", p)
	}
	_, ok := w.Intercept(navigate(t, "https://example.com/bad-status"))
	assert.False(t, ok)
	_, ok = w.Intercept(navigate(t, "https://example.com/bad-target"))
	assert.False(t, ok, "the first match decides even when it can't redirect")
}

func TestNewRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/page?q=1", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	r := NewRequest(req, false)
	assert.Equal(t, ModeNavigate, r.Mode)
	assert.Equal(t, "q=1", r.URL.RawQuery)

	req = httptest.NewRequest(http.MethodGet, "/app.js", nil)
	req.Header.Set("Sec-Fetch-Mode", "no-cors")
	req.Header.Set("Accept", "text/html")
	assert.Equal(t, ModeOther, NewRequest(req, true).Mode)

	req = httptest.NewRequest(http.MethodGet, "/page", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	assert.Equal(t, ModeOther, NewRequest(req, false).Mode)
	assert.Equal(t, ModeNavigate, NewRequest(req, true).Mode)

	req.Header.Set("Sec-Fetch-Dest", "iframe")
	assert.Equal(t, ModeOther, NewRequest(req, true).Mode)
}

func TestMiddleware(t *testing.T) {
	w := activeWorker(t, "https://example.com/site/", `[{"from": "/old", "to": "/new", "type": 308}]`)
	handler := w.Middleware(http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		resp.Write([]byte("page"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/site/old?x=y", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "https://example.com/new?x=y", rec.Header().Get("Location"))
	assert.Empty(t, rec.Body.String())

	// Sub-resource requests fall through to the site.
	req = httptest.NewRequest(http.MethodGet, "/site/old", nil)
	req.Header.Set("Sec-Fetch-Mode", "cors")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page", rec.Body.String())

	// So does anything outside the scope.
	req = httptest.NewRequest(http.MethodGet, "/old", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// And POSTs.
	req = httptest.NewRequest(http.MethodPost, "/site/old", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
