// Package catalog holds the in-memory table of file-type signature
// rules (the teacher's carver.FileSignature, generalized to scalpel's
// richer per-type search semantics) and the tokenizer that builds it
// from an external configuration file.
package catalog

import (
	"fmt"

	"github.com/gorichard/scalpel/internal/matcher"
)

// SearchMode selects how a rule's planner pairs a header with a
// footer. It is a tagged variant dispatched once per header by the
// planner, never derived from string comparisons at runtime.
type SearchMode int

const (
	// Forward pairs a header with the first footer after it; if the
	// resulting span exceeds MaxLength, the carve falls back to a
	// chopped max-length extraction (or is discarded, depending on
	// CarveWithMissingFooters).
	Forward SearchMode = iota
	// ForwardNext is like Forward but excludes the footer bytes from
	// the carved file (stop = footer_start - 1).
	ForwardNext
	// Reverse pairs a header with the farthest footer still within
	// MaxLength bytes of it.
	Reverse
)

func (m SearchMode) String() string {
	switch m {
	case Forward:
		return "FORWARD"
	case ForwardNext:
		return "FORWARD_NEXT"
	case Reverse:
		return "REVERSE"
	default:
		return "UNKNOWN"
	}
}

// NoExtensionSuffix is the configuration-file sentinel meaning "carve
// this type's files without a filename extension".
const NoExtensionSuffix = "NONE"

// MaxRules bounds how many signature rules a single catalog may hold,
// mirroring the source's MAX_FILE_TYPES guard against runaway
// configuration files.
const MaxRules = 100

// Rule is one file-type entry: header/footer patterns, the maximum
// carve length, the pairing semantics, and the running counters the
// planner updates as it schedules carves of this type.
type Rule struct {
	Index         int
	Suffix        string
	NoExtension   bool
	CaseSensitive bool
	MaxLength     int64
	Header        []byte
	Footer        []byte
	HeaderTable   matcher.Table
	FooterTable   matcher.Table
	SearchMode    SearchMode

	FilesToCarve   uint64
	OrganizeDirSeq int
}

// HasFooter reports whether this rule has a non-empty footer pattern,
// i.e. whether it has a STOP path at all.
func (r *Rule) HasFooter() bool {
	return len(r.Footer) > 0
}

// NewRule validates and precomputes the skip tables for a rule. It is
// the constructor both the config tokenizer and hand-built default
// catalogs go through, so every Rule in a Catalog always carries
// ready-to-use tables.
func NewRule(index int, suffix string, caseSensitive bool, maxLength int64, header, footer []byte, mode SearchMode, wildcard byte) (*Rule, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("catalog: rule %d (%s): header pattern must be non-empty", index, suffix)
	}
	noExt := suffix == NoExtensionSuffix
	r := &Rule{
		Index:         index,
		Suffix:        suffix,
		NoExtension:   noExt,
		CaseSensitive: caseSensitive,
		MaxLength:     maxLength,
		Header:        header,
		Footer:        footer,
		SearchMode:    mode,
	}
	r.HeaderTable = matcher.BuildTable(header, wildcard, caseSensitive)
	if len(footer) > 0 {
		r.FooterTable = matcher.BuildTable(footer, wildcard, caseSensitive)
	}
	return r, nil
}
