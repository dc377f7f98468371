package scraper

import "fmt"

// ErrorKind classifies why a scrape failed.
type ErrorKind string

const (
	// KindDiagnosticOutput means the scraper wrote to stderr.
	KindDiagnosticOutput ErrorKind = "diagnostic_output"
	// KindParseFailure means stdout was not a well-formed lineage record.
	KindParseFailure ErrorKind = "parse_failure"
	// KindTimeout means the scraper did not finish within the deadline.
	KindTimeout ErrorKind = "timeout"
	// KindProcessFailure means the scraper could not be run or exited
	// unsuccessfully without usable output.
	KindProcessFailure ErrorKind = "process_failure"
)

// ScrapeError is returned by Gateway.Fetch for every failed scrape.
type ScrapeError struct {
	Kind   ErrorKind
	Title  string
	Detail string
	Err    error
}

func (e *ScrapeError) Error() string {
	msg := fmt.Sprintf("scrape %q failed (%s)", e.Title, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}
