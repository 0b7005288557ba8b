package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/getlantern/staticredirect"
	"github.com/spf13/cobra"
)

var (
	resolveScope  string
	resolveMethod string
	resolveMode   string

	resolveCmd = &cobra.Command{
		Use:   "resolve <redirects.json> <url>",
		Short: "Show where a navigation would be redirected",
		Args:  cobra.ExactArgs(2),
		RunE:  runResolve,
	}
)

func init() {
	resolveCmd.Flags().StringVar(&resolveScope, "scope", "", "Scope URL the manifest belongs to (default: root of <url>)")
	resolveCmd.Flags().StringVar(&resolveMethod, "method", http.MethodGet, "Request method")
	resolveCmd.Flags().StringVar(&resolveMode, "mode", string(staticredirect.ModeNavigate), "Request mode (navigate or other)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	target, err := url.Parse(args[1])
	if err != nil {
		return err
	}
	if !target.IsAbs() {
		return errors.New("url must be absolute")
	}
	scope := resolveScope
	if scope == "" {
		scope = (&url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/"}).String()
	}

	w, err := staticredirect.NewWorker(scope, staticredirect.Options{
		Source: &staticredirect.FileSource{Path: args[0]},
	})
	if err != nil {
		return err
	}
	g := w.Activate(context.Background())
	if g.LoadErr != nil {
		return g.LoadErr
	}

	rd, ok := w.Intercept(staticredirect.Request{
		Method: resolveMethod,
		Mode:   staticredirect.Mode(resolveMode),
		URL:    target,
	})
	if !ok {
		cmd.Println("no redirect")
		return nil
	}
	cmd.Printf("%d %v (rule %d)\n", rd.Code, rd.Location, rd.Rule)
	return nil
}
