package staticredirect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/getlantern/golog"
	"github.com/getlantern/mtime"
)

// ManifestName is the location of the manifest relative to the scope.
const ManifestName = "redirects.json"

// ErrNotArray is returned for manifests that are valid JSON but not an array.
var ErrNotArray = errors.New("manifest is not a JSON array")

// StatusError is returned when the manifest is served with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %v: unexpected status %d", e.URL, e.StatusCode)
}

// Source fetches the raw manifest document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// HTTPSource fetches the manifest over HTTP, bypassing caches.
type HTTPSource struct {
	URL    *url.URL
	Client *http.Client
}

// NewHTTPSource returns a source for the manifest that lives next to scope.
// A nil client means http.DefaultClient.
func NewHTTPSource(scope *url.URL, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		URL:    scope.ResolveReference(&url.URL{Path: ManifestName}),
		Client: client,
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, s.URL.String(), nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(ioutil.Discard, resp.Body)
		return nil, &StatusError{URL: s.URL.String(), StatusCode: resp.StatusCode}
	}
	return ioutil.ReadAll(resp.Body)
}

func (s *HTTPSource) String() string {
	return s.URL.String()
}

// FileSource reads the manifest from disk, for sites served from a local
// directory.
type FileSource struct {
	Path string
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ioutil.ReadFile(s.Path)
}

func (s *FileSource) String() string {
	return s.Path
}

// LoadResult is the outcome of one manifest load. Rules is nil whenever Err
// is set.
type LoadResult struct {
	Rules   *RuleSet
	Err     error
	Elapsed time.Duration
}

// OK reports whether the load produced a RuleSet.
func (r LoadResult) OK() bool {
	return r.Err == nil
}

type loader struct {
	log golog.Logger
}

func newLoader() *loader {
	return &loader{
		log: golog.LoggerFor("staticredirect.manifest"),
	}
}

// Load fetches and parses the manifest from src. Failures are reported in
// the result, never returned or panicked.
func Load(ctx context.Context, src Source) LoadResult {
	return newLoader().load(ctx, src)
}

func (l *loader) load(ctx context.Context, src Source) LoadResult {
	start := mtime.Now()
	data, err := src.Fetch(ctx)
	if err != nil {
		l.log.Debugf("Could not fetch manifest from %v: %v", src, err)
		return LoadResult{Err: err, Elapsed: mtime.Now().Sub(start)}
	}
	rules, err := ParseManifest(data)
	elapsed := mtime.Now().Sub(start)
	if err != nil {
		l.log.Debugf("Could not parse manifest from %v: %v", src, err)
		return LoadResult{Err: err, Elapsed: elapsed}
	}
	l.log.Debugf("Loaded %d redirect rules from %v in %v", rules.Len(), src, elapsed)
	return LoadResult{Rules: rules, Elapsed: elapsed}
}

// ParseManifest decodes a manifest document into a RuleSet. Individual
// malformed entries are kept as inert rules rather than failing the whole
// document.
func ParseManifest(data []byte) (*RuleSet, error) {
	entries, err := decodeEntries(data)
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(entries))
	for _, raw := range entries {
		rules = append(rules, decodeRule(raw))
	}
	return NewRuleSet(rules), nil
}

func decodeEntries(data []byte) ([]json.RawMessage, error) {
	var doc json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(doc), []byte("[")) {
		return nil, ErrNotArray
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(doc, &entries); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return entries, nil
}
