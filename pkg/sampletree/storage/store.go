// Package storage holds the persistent backends for lineage records and lookup history.
//
// Every backend keys records by models.TitleKey and enforces one record per key:
// storing a title that already exists is a no-op that returns the stored record.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no record matches the title.
var ErrNotFound = errors.New("record not found")

// ErrInvalidRecord is returned by Put for records that cannot be keyed.
var ErrInvalidRecord = errors.New("invalid lineage record")

// MatchMode selects how Get compares a queried title with stored titles.
type MatchMode int

const (
	// MatchExact compares normalized title keys for equality.
	MatchExact MatchMode = iota
	// MatchSubstring falls back to the shortest stored key containing the query
	// when no exact match exists.
	MatchSubstring
)

func (m MatchMode) String() string {
	switch m {
	case MatchSubstring:
		return "substring"
	default:
		return "exact"
	}
}

// ParseMatchMode parses "exact" or "substring". Empty means exact.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return MatchExact, nil
	case "substring":
		return MatchSubstring, nil
	default:
		return MatchExact, fmt.Errorf("unknown match mode %q", s)
	}
}

type options struct {
	matchMode MatchMode
	prefix    string
}

// Option configures a store backend.
type Option func(*options)

// WithMatchMode sets the title comparison used by Get.
func WithMatchMode(mode MatchMode) Option {
	return func(o *options) {
		o.matchMode = mode
	}
}

// WithPrefix sets the key prefix. Only the Redis backend uses it.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func buildOptions(opts []Option) options {
	o := options{matchMode: MatchExact, prefix: "sampletree:"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
