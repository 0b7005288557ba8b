package main

import (
	"fmt"
	"io/ioutil"

	"github.com/getlantern/staticredirect"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <redirects.json>",
	Short: "Report manifest rules that can't take effect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := ioutil.ReadFile(args[0])
		if err != nil {
			return err
		}
		findings, err := staticredirect.Lint(data)
		if err != nil {
			return fmt.Errorf("%v would disable every redirect: %w", args[0], err)
		}
		errs := 0
		for _, f := range findings {
			cmd.Println(f)
			if f.Severity == staticredirect.SeverityError {
				errs++
			}
		}
		if errs > 0 {
			return fmt.Errorf("%d rules can't redirect", errs)
		}
		cmd.Println("ok")
		return nil
	},
}
