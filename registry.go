package staticredirect

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/getlantern/golog"
	iradix "github.com/hashicorp/go-immutable-radix"
	"golang.org/x/sync/errgroup"
)

// Registry routes requests to the Worker with the longest scope path that
// contains them, so that several sites can be served by one process.
type Registry struct {
	log    golog.Logger
	mx     sync.Mutex   // serializes Register
	scopes atomic.Value // *iradix.Tree of scope path -> *Worker
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{log: golog.LoggerFor("staticredirect.registry")}
	r.scopes.Store(iradix.New())
	return r
}

// Register adds w. Two workers can't share a scope path.
func (r *Registry) Register(w *Worker) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	tree := r.scopes.Load().(*iradix.Tree)
	key := []byte(w.scopePath)
	if _, exists := tree.Get(key); exists {
		return fmt.Errorf("scope %v is already registered", w.scopePath)
	}
	tree, _, _ = tree.Insert(key, w)
	r.scopes.Store(tree)
	r.log.Debugf("Registered scope %v", w.label)
	return nil
}

// Lookup returns the worker responsible for the given escaped path.
func (r *Registry) Lookup(path string) (*Worker, bool) {
	_, val, ok := r.scopes.Load().(*iradix.Tree).Root().LongestPrefix([]byte(path))
	if !ok {
		return nil, false
	}
	return val.(*Worker), true
}

// Workers returns the registered workers ordered by scope path.
func (r *Registry) Workers() []*Worker {
	var workers []*Worker
	r.scopes.Load().(*iradix.Tree).Root().Walk(func(k []byte, v interface{}) bool {
		workers = append(workers, v.(*Worker))
		return false
	})
	return workers
}

// ActivateAll runs a new generation on every worker concurrently and returns
// once all of them have taken over. Manifest failures don't count as errors;
// only cancellation of ctx does.
func (r *Registry) ActivateAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range r.Workers() {
		w := w
		g.Go(func() error {
			w.Activate(ctx)
			return ctx.Err()
		})
	}
	return g.Wait()
}

// Middleware dispatches each request to the worker whose scope contains it.
// Requests outside every scope go straight to next.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		w, ok := r.Lookup(req.URL.EscapedPath())
		if !ok {
			next.ServeHTTP(resp, req)
			return
		}
		w.serve(resp, req, next)
	})
}
