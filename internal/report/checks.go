package report

import (
	"fmt"
	"io"
	"strings"
)

// Check is a named assertion over one service's findings.
type Check struct {
	Name        string
	Service     string
	Description string
	Match       func(finding string) bool
}

// OpenPortsToAll fails when any security group opens a port to 0.0.0.0/0.
var OpenPortsToAll = Check{
	Name:        "open-ports",
	Service:     "ec2",
	Description: "EC2 security groups with a port open to all",
	Match: func(finding string) bool {
		return strings.Contains(finding, "ec2-security-group-opens") &&
			strings.Contains(finding, "port-to-all")
	},
}

// InlineNotAction fails when an inline group, role or user policy uses NotAction.
var InlineNotAction = Check{
	Name:        "inline-notaction",
	Service:     "iam",
	Description: "IAM inline policies with a NotAction element",
	Match: func(finding string) bool {
		switch finding {
		case "iam-inline-group-policy-allows-NotActions",
			"iam-inline-role-policy-allows-NotActions",
			"iam-inline-user-policy-allows-NotActions":
			return true
		}
		return false
	},
}

// Checks lists the built-in checks in the order they run.
var Checks = []Check{OpenPortsToAll, InlineNotAction}

// Lookup returns the built-in check with the given name.
func Lookup(name string) (Check, bool) {
	for _, c := range Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// Run evaluates c against the report.
func (r *Report) Run(c Check) []Violation {
	return r.Flagged(c.Service, c.Match)
}

// Write prints violations of c to w, one finding per block.
func Write(w io.Writer, c Check, violations []Violation) error {
	if len(violations) == 0 {
		_, err := fmt.Fprintf(w, "ok   %s\n", c.Name)
		return err
	}
	if _, err := fmt.Fprintf(w, "FAIL %s: %s\n", c.Name, c.Description); err != nil {
		return err
	}
	for _, v := range violations {
		if _, err := fmt.Fprintf(w, "  %s.%s (%d flagged)\n", v.Service, v.Finding, v.FlaggedItems); err != nil {
			return err
		}
		for _, item := range v.Items {
			if _, err := fmt.Fprintf(w, "    * %s\n", item); err != nil {
				return err
			}
		}
	}
	return nil
}
