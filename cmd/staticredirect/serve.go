package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/getlantern/golog"
	"github.com/getlantern/staticredirect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	configPath string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve static sites with their redirect tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "staticredirect.yaml", "Path to the configuration file")
}

type server struct {
	log      golog.Logger
	registry *staticredirect.Registry
	watchers []*staticredirect.Watcher
	handler  http.Handler
}

// newServer builds the registry and file handlers for cfg. Nothing is loaded
// until activate is called.
func newServer(cfg *Config, reg prometheus.Registerer) (*server, error) {
	s := &server{
		log:      golog.LoggerFor("staticredirect.serve"),
		registry: staticredirect.NewRegistry(),
	}
	metrics := staticredirect.NewMetrics(reg)
	mux := http.NewServeMux()
	for i, site := range cfg.Sites {
		w, err := newSiteWorker(site, metrics)
		if err != nil {
			return nil, fmt.Errorf("site %d: %w", i, err)
		}
		if err := s.registry.Register(w); err != nil {
			return nil, fmt.Errorf("site %d: %w", i, err)
		}
		if site.Root != "" {
			prefix := strings.TrimSuffix(w.Scope().EscapedPath(), "/")
			mux.Handle(prefix+"/", http.StripPrefix(prefix, http.FileServer(http.Dir(site.Root))))
		}
		if site.Watch {
			wt, err := staticredirect.NewWatcher(w, 0)
			if err != nil {
				return nil, fmt.Errorf("site %d: %w", i, err)
			}
			s.watchers = append(s.watchers, wt)
		}
	}
	s.handler = s.registry.Middleware(mux)
	return s, nil
}

func newSiteWorker(site SiteConfig, metrics *staticredirect.Metrics) (*staticredirect.Worker, error) {
	opts := staticredirect.Options{
		FetchTimeout:     site.FetchTimeout,
		AssumeNavigation: site.AssumeNavigation,
		Metrics:          metrics,
	}
	switch {
	case site.ManifestURL != "":
		u, err := url.Parse(site.ManifestURL)
		if err != nil {
			return nil, err
		}
		opts.Source = &staticredirect.HTTPSource{URL: u, Client: &http.Client{}}
	case site.Root != "":
		opts.Source = &staticredirect.FileSource{Path: filepath.Join(site.Root, staticredirect.ManifestName)}
	}
	return staticredirect.NewWorker(site.Scope, opts)
}

// activate loads every site's manifest and starts the watchers.
func (s *server) activate(ctx context.Context) error {
	if err := s.registry.ActivateAll(ctx); err != nil {
		return err
	}
	for _, w := range s.registry.Workers() {
		g := w.Active()
		if g.LoadErr != nil {
			s.log.Debugf("No redirects for %v: %v", w.Scope(), g.LoadErr)
		}
	}
	for _, wt := range s.watchers {
		if err := wt.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *server) close() {
	for _, wt := range s.watchers {
		if err := wt.Stop(); err != nil {
			s.log.Errorf("Unable to stop watcher: %v", err)
		}
	}
}

func serve(ctx context.Context, cfg *Config) error {
	reg := prometheus.NewRegistry()
	s, err := newServer(cfg, reg)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.activate(ctx); err != nil {
		return err
	}

	servers := []*http.Server{{Addr: cfg.Listen, Handler: s.handler}}
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{Addr: cfg.MetricsListen, Handler: mux})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		s.log.Debugf("Listening on %v", srv.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		srv.Shutdown(shutdownCtx)
	}
	return err
}
