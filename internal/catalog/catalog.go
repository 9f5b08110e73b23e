package catalog

import (
	"strconv"

	"github.com/gorichard/scalpel/internal/matcher"
)

// Catalog is the loaded, ordered table of signature rules. Order
// matters: declaration order drives deterministic output-file
// numbering (rule-major, header-ascending), so Catalog never
// reorders Rules after Load.
type Catalog struct {
	Rules    []*Rule
	Wildcard byte
}

// New returns an empty catalog with the default wildcard byte.
func New() *Catalog {
	return &Catalog{Wildcard: matcher.DefaultWildcard}
}

// Add appends rule to the catalog, rejecting catalogs that would
// exceed MaxRules.
func (c *Catalog) Add(r *Rule) error {
	if len(c.Rules) >= MaxRules {
		return &TooManyTypesError{Limit: MaxRules}
	}
	r.Index = len(c.Rules)
	c.Rules = append(c.Rules, r)
	return nil
}

// LongestPattern returns the length of the longest header or footer
// pattern across every rule, used by the dig engine to size its
// chunk-boundary rewind.
func (c *Catalog) LongestPattern() int {
	longest := 0
	for _, r := range c.Rules {
		if len(r.Header) > longest {
			longest = len(r.Header)
		}
		if len(r.Footer) > longest {
			longest = len(r.Footer)
		}
	}
	return longest
}

// TooManyTypesError reports a catalog that would exceed Limit rules.
type TooManyTypesError struct {
	Limit int
}

func (e *TooManyTypesError) Error() string {
	return "catalog: too many file types configured (limit is " + strconv.Itoa(e.Limit) + ")"
}
