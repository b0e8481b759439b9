// Package report reads ScoutSuite results gathered through the relay and
// evaluates findings against them.
package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// ErrEmpty is returned when a results file has no JSON after its first line.
var ErrEmpty = errors.New("report: no results after header line")

// Report is the subset of a ScoutSuite results file the checks read.
type Report struct {
	Services map[string]Service `json:"services"`
}

// Service holds the findings ScoutSuite computed for one AWS service.
type Service struct {
	Findings map[string]Finding `json:"findings"`
}

// Finding is one ScoutSuite rule result.
type Finding struct {
	Description  string   `json:"description"`
	FlaggedItems int      `json:"flagged_items"`
	Items        []string `json:"items"`
}

// Violation is a finding that flagged at least one resource.
type Violation struct {
	Service      string
	Finding      string
	FlaggedItems int
	Items        []string
}

// Load reads a ScoutSuite results file (scoutsuite_results_aws-<account>.js).
func Load(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", path, err)
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w (file %s)", err, path)
	}
	return r, nil
}

// Parse decodes a ScoutSuite results stream. The first line is a JavaScript
// variable assignment and is discarded; the remainder is JSON.
func Parse(r io.Reader) (*Report, error) {
	br := bufio.NewReader(r)
	if _, err := br.ReadString('\n'); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("report: read header: %w", err)
	}

	var rep Report
	if err := json.NewDecoder(br).Decode(&rep); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("report: decode: %w", err)
	}
	return &rep, nil
}

// Flagged returns the findings of service whose name satisfies match and
// that flagged at least one item, sorted by finding name. A service missing
// from the report, or one without findings, yields nothing.
func (r *Report) Flagged(service string, match func(name string) bool) []Violation {
	svc, ok := r.Services[service]
	if !ok || svc.Findings == nil {
		return nil
	}

	var out []Violation
	for name, f := range svc.Findings {
		if !match(name) || f.FlaggedItems <= 0 {
			continue
		}
		out = append(out, Violation{
			Service:      service,
			Finding:      name,
			FlaggedItems: f.FlaggedItems,
			Items:        f.Items,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Finding < out[j].Finding })
	return out
}
