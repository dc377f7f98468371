// Package scraper runs the external scraping program that fetches lineage
// records for titles the store does not know yet.
//
// The program is invoked once per title with a single argument, the source page
// URL, and must print the record as a JSON object on stdout. Anything written
// to stderr fails the scrape, even when stdout holds a valid record.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/himanishpuri/SampleTree/pkg/models"
	"github.com/himanishpuri/SampleTree/pkg/utils"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultMaxOutput = 4 << 20

	maxDiagnostic = 64 << 10
	waitDelay     = time.Second
)

// Fetcher produces a lineage record for a title not present in the store.
type Fetcher interface {
	Fetch(ctx context.Context, title string) (*models.LineageRecord, error)
}

// Logger is the logging surface the gateway needs.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Gateway spawns one scraper process per Fetch.
type Gateway struct {
	binary    string
	args      []string
	template  string
	timeout   time.Duration
	maxOutput int
	log       Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithArgs sets arguments placed before the source URL, e.g. a script path
// when the binary is an interpreter.
func WithArgs(args ...string) Option {
	return func(g *Gateway) {
		g.args = append([]string(nil), args...)
	}
}

// WithSourceTemplate sets the source URL template; it must contain {title}.
func WithSourceTemplate(template string) Option {
	return func(g *Gateway) {
		g.template = template
	}
}

// WithTimeout bounds each scraper run. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMaxOutput caps how many stdout bytes are kept.
func WithMaxOutput(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxOutput = n
		}
	}
}

func WithLogger(log Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// New constructs a Gateway for the scraper at binary.
func New(binary string, opts ...Option) (*Gateway, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("scraper binary required")
	}

	g := &Gateway{
		binary:    binary,
		template:  utils.DefaultSourceTemplate,
		timeout:   DefaultTimeout,
		maxOutput: DefaultMaxOutput,
		log:       nopLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}

	if !strings.Contains(g.template, utils.TitlePlaceholder) {
		return nil, fmt.Errorf("source template %q has no %s placeholder", g.template, utils.TitlePlaceholder)
	}
	return g, nil
}

// Fetch runs the scraper for title and returns the parsed record.
// Both output streams are collected until the process exits or the timeout
// kills it; the outcome is decided once, after the process has been reaped.
func (g *Gateway) Fetch(ctx context.Context, title string) (*models.LineageRecord, error) {
	title = strings.TrimSpace(title)
	sourceURL, err := utils.SourceURL(g.template, title)
	if err != nil {
		return nil, &ScrapeError{Kind: KindProcessFailure, Title: title, Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	args := make([]string, 0, len(g.args)+1)
	args = append(args, g.args...)
	args = append(args, sourceURL)

	cmd := exec.CommandContext(runCtx, g.binary, args...)
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	stdout := &cappedBuffer{limit: g.maxOutput}
	stderr := &cappedBuffer{limit: maxDiagnostic}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	g.log.Debugf("Running scraper %s for %q: %s", g.binary, title, sourceURL)
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	if stdout.truncated {
		g.log.Warnf("Scraper output for %q exceeded %d bytes and was truncated", title, g.maxOutput)
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, &ScrapeError{
			Kind:   KindTimeout,
			Title:  title,
			Detail: fmt.Sprintf("no result after %s", elapsed.Round(time.Millisecond)),
			Err:    runCtx.Err(),
		}
	}
	if ctx.Err() != nil {
		return nil, &ScrapeError{Kind: KindProcessFailure, Title: title, Detail: "canceled", Err: ctx.Err()}
	}

	if stderr.Len() > 0 {
		return nil, &ScrapeError{
			Kind:   KindDiagnosticOutput,
			Title:  title,
			Detail: strings.TrimSpace(stderr.String()),
		}
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return nil, &ScrapeError{Kind: KindProcessFailure, Title: title, Detail: "could not start scraper", Err: runErr}
	}

	rec, parseErr := decodeRecord(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			return nil, &ScrapeError{Kind: KindProcessFailure, Title: title, Detail: parseErr.Error(), Err: runErr}
		}
		return nil, &ScrapeError{Kind: KindParseFailure, Title: title, Err: parseErr}
	}
	if runErr != nil {
		g.log.Warnf("Scraper exited with %v after printing a record for %q; keeping the record", runErr, title)
	}

	// The store is keyed by the queried title. Keep the scraper's spelling only
	// when it names the same song.
	if models.TitleKey(rec.Title) != models.TitleKey(title) {
		if rec.Title != "" {
			g.log.Debugf("Scraper titled %q as %q; keeping the queried title", title, rec.Title)
		}
		rec.Title = title
	}

	g.log.Debugf("Scraped %q in %s: %d samples, %d sampled by", rec.Title, elapsed.Round(time.Millisecond), len(rec.Samples), len(rec.SampledBy))
	return rec, nil
}

// cappedBuffer keeps the first limit bytes written and discards the rest
// without failing the writer, so a chatty child never blocks on a full pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	if room <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *cappedBuffer) Len() int       { return c.buf.Len() }
func (c *cappedBuffer) Bytes() []byte  { return c.buf.Bytes() }
func (c *cappedBuffer) String() string { return c.buf.String() }
