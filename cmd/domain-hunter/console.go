package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"domain-hunter/pkg/config"
	"domain-hunter/pkg/output"
	"domain-hunter/pkg/resolver"
	"domain-hunter/pkg/scanner"
	"domain-hunter/pkg/storage"

	"github.com/fatih/color"
)

// console writes user-facing lines. Hits arrive from resolving goroutines,
// so every write holds mu.
type console struct {
	out     io.Writer
	title   *color.Color
	name    *color.Color
	addr    *color.Color
	elapsed *color.Color
	warning *color.Color
	errored *color.Color
	plain   *color.Color
	mu      sync.Mutex
}

func newConsole(out io.Writer, noColor bool) *console {
	c := &console{
		out:     out,
		title:   color.New(color.FgCyan, color.Bold),
		name:    color.New(color.FgGreen),
		addr:    color.New(color.FgCyan),
		elapsed: color.New(color.FgYellow),
		warning: color.New(color.FgYellow, color.Bold),
		errored: color.New(color.FgRed),
		plain:   color.New(color.FgWhite),
	}
	if noColor {
		for _, col := range []*color.Color{c.title, c.name, c.addr, c.elapsed, c.warning, c.errored, c.plain} {
			col.DisableColor()
		}
	}
	return c
}

func (c *console) banner(cfg *config.Config, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = c.title.Fprintf(c.out, "domain-hunter %s\n", version)
	_, _ = c.plain.Fprintf(c.out, "Target: %s | Wordlist: %s | Concurrency: %d | Resolver: %s\n\n",
		scanner.NormalizeDomain(cfg.Scan.Domain),
		cfg.Scan.Wordlist,
		cfg.Scan.Concurrency,
		describeResolver(&cfg.Resolver),
	)
}

func (c *console) hit(o resolver.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = c.name.Fprint(c.out, o.Candidate)
	_, _ = fmt.Fprint(c.out, " -> ")
	_, _ = c.addr.Fprint(c.out, strings.Join(o.Addresses, ", "))
	_, _ = c.elapsed.Fprintf(c.out, " (%.2fs)\n", o.ElapsedSeconds())
}

// raw prints the same line the output file gets, for piping
func (c *console) raw(o resolver.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintln(c.out, output.FormatLine(o))
}

func (c *console) summary(r *scanner.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = c.title.Fprintf(c.out, "\nFound %d subdomains", len(r.Results))
	_, _ = c.plain.Fprintf(c.out, " (%d/%d checked in %s)\n", r.Completed, r.Total, r.Duration().Round(10*time.Millisecond))
}

// scans lists recorded scans, newest first as given
func (c *console) scans(records []*storage.ScanRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = c.title.Fprintf(c.out, "%-6s %-20s %-30s %-18s %s\n", "ID", "STARTED", "DOMAIN", "FOUND/CHECKED", "DURATION")
	for _, r := range records {
		_, _ = c.plain.Fprintf(c.out, "%-6d %-20s %-30s %-18s %s",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Domain,
			fmt.Sprintf("%d/%d/%d", r.Resolved, r.Completed, r.Total),
			r.FinishedAt.Sub(r.StartedAt).Round(10*time.Millisecond),
		)
		if r.Interrupted {
			_, _ = c.warning.Fprint(c.out, " interrupted")
		}
		_, _ = fmt.Fprintln(c.out)
	}
}

// results prints outcomes in the result file format
func (c *console) results(outcomes []resolver.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return output.Write(c.out, outcomes)
}

func (c *console) info(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.plain.Fprintln(c.out, msg)
}

func (c *console) warn(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.warning.Fprintln(c.out, msg)
}

func (c *console) fail(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.errored.Fprintln(c.out, msg)
}

func describeResolver(cfg *config.ResolverConfig) string {
	if len(cfg.Upstreams) == 0 {
		return cfg.Backend
	}
	return fmt.Sprintf("%s via %s", cfg.Backend, strings.Join(cfg.Upstreams, ", "))
}
