// Package staticredirect applies a redirect table to navigations of a
// statically hosted site. Rules are read from a redirects.json manifest next
// to the site's scope and matched against the scope-relative path of each
// top-level GET navigation; the first matching rule answers with a redirect
// that keeps the request's query string and fragment.
package staticredirect

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getlantern/golog"
	"github.com/google/uuid"
)

var (
	log = golog.LoggerFor("staticredirect")
)

// Options configures a Worker.
type Options struct {
	// Source supplies the manifest. Defaults to an HTTPSource for
	// redirects.json under the scope.
	Source Source
	// FetchTimeout bounds each manifest load. Zero means no timeout.
	FetchTimeout time.Duration
	// AssumeNavigation treats requests without Sec-Fetch headers as
	// navigations when they accept text/html.
	AssumeNavigation bool
	Metrics          *Metrics
}

// Generation is one activation of a Worker: the rules produced by a single
// manifest load. Rules is nil when the load failed, in which case no path is
// redirected for the lifetime of the generation.
type Generation struct {
	ID       string
	Rules    *RuleSet
	LoadErr  error
	Prepared time.Time
	seq      uint64
}

// Worker intercepts navigations under a single scope. Prepare loads a new
// generation, Takeover makes it the serving one, and Intercept answers
// requests from whatever generation is serving at the time.
type Worker struct {
	log       golog.Logger
	scope     *url.URL
	scopePath string
	label     string
	source    Source
	opts      Options
	loader    *loader
	seq       atomic.Uint64
	active    atomic.Value // *Generation
}

// NewWorker creates a Worker for the given absolute scope URL. Until the
// first Takeover it serves an unprepared generation without rules.
func NewWorker(scope string, opts Options) (*Worker, error) {
	u, err := url.Parse(scope)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, errors.New("scope must be an absolute URL")
	}
	scopePath := u.EscapedPath()
	if !strings.HasSuffix(scopePath, "/") {
		scopePath += "/"
	}
	if opts.Source == nil {
		opts.Source = NewHTTPSource(u, nil)
	}
	w := &Worker{
		log:       golog.LoggerFor("staticredirect.worker"),
		scope:     u,
		scopePath: scopePath,
		label:     u.String(),
		source:    opts.Source,
		opts:      opts,
		loader:    newLoader(),
	}
	w.active.Store(&Generation{ID: "unprepared"})
	return w, nil
}

// Scope returns a copy of the worker's scope URL.
func (w *Worker) Scope() *url.URL {
	u := *w.scope
	return &u
}

// Source returns the manifest source.
func (w *Worker) Source() Source {
	return w.source
}

// Prepare loads the manifest for a new generation and returns once the load
// has settled, successfully or not. The generation doesn't serve requests
// until it is passed to Takeover.
func (w *Worker) Prepare(ctx context.Context) *Generation {
	if w.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.FetchTimeout)
		defer cancel()
	}
	// Generations are ordered by when their load started, so a slow load
	// can't replace one that began after it.
	seq := w.seq.Add(1)
	result := w.loader.load(ctx, w.source)
	w.opts.Metrics.observeLoad(w.label, result)
	g := &Generation{
		ID:       uuid.New().String(),
		Rules:    result.Rules,
		LoadErr:  result.Err,
		Prepared: time.Now(),
		seq:      seq,
	}
	if result.OK() {
		w.log.Debugf("Prepared generation %v for %v with %d rules", g.ID, w.label, g.Rules.Len())
	} else {
		w.log.Debugf("Prepared generation %v for %v without rules: %v", g.ID, w.label, result.Err)
	}
	return g
}

// Takeover makes g the serving generation. A generation whose Prepare started
// before that of the one currently serving is ignored and Takeover returns
// false.
func (w *Worker) Takeover(g *Generation) bool {
	for {
		current := w.active.Load().(*Generation)
		if g.seq < current.seq {
			w.log.Debugf("Ignoring stale generation %v for %v", g.ID, w.label)
			return false
		}
		if w.active.CompareAndSwap(current, g) {
			w.opts.Metrics.setRules(w.label, g.Rules.Len())
			w.log.Debugf("Generation %v now serving %v", g.ID, w.label)
			return true
		}
	}
}

// Activate prepares a new generation and takes over with it.
func (w *Worker) Activate(ctx context.Context) *Generation {
	g := w.Prepare(ctx)
	w.Takeover(g)
	return g
}

// Active returns the serving generation.
func (w *Worker) Active() *Generation {
	return w.active.Load().(*Generation)
}
