package main

import (
	"errors"
	"fmt"
	"os"

	"localstack-relay/internal/report"
)

var errViolations = errors.New("report checks failed")

type reportCmd struct {
	File  string   `kong:"short='f',required,type='existingfile',help='ScoutSuite results file (scoutsuite_results_aws-<account>.js).'"`
	Check []string `kong:"help='Checks to run (default: all). One of: open-ports, inline-notaction.'"`
}

func (r *reportCmd) Run() error {
	checks := report.Checks
	if len(r.Check) > 0 {
		checks = nil
		for _, name := range r.Check {
			c, ok := report.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown check %q", name)
			}
			checks = append(checks, c)
		}
	}

	rep, err := report.Load(r.File)
	if err != nil {
		return err
	}

	failed := 0
	for _, c := range checks {
		violations := rep.Run(c)
		if err := report.Write(os.Stdout, c, violations); err != nil {
			return err
		}
		if len(violations) > 0 {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errViolations, failed, len(checks))
	}
	return nil
}
