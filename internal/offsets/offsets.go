// Package offsets implements the per-signature offset database built
// during Pass 1: two monotonically non-decreasing sequences of
// absolute (or, under an active coverage map, logical) image offsets
// per rule. Go's append already gives amortised-doubling growth,
// which the spec calls out as an acceptable (and simpler) alternative
// to the source's fixed +100 growth increment.
package offsets

// DB holds the discovered header and footer offsets for a single
// signature rule. Offsets are appended in scan order, so both slices
// are always sorted ascending.
type DB struct {
	Headers []int64
	Footers []int64
}

// AppendHeader records a newly discovered header offset. Callers must
// only call this with offsets >= the last appended header offset,
// which the sequential dig scan guarantees.
func (d *DB) AppendHeader(offset int64) {
	d.Headers = append(d.Headers, offset)
}

// AppendFooter records a newly discovered footer offset, under the
// same non-decreasing guarantee as AppendHeader.
func (d *DB) AppendFooter(offset int64) {
	d.Footers = append(d.Footers, offset)
}

// LastHeader returns the most recently recorded header offset and
// whether any header has been recorded yet.
func (d *DB) LastHeader() (int64, bool) {
	if len(d.Headers) == 0 {
		return 0, false
	}
	return d.Headers[len(d.Headers)-1], true
}

// FirstFooterAfter scans Footers for the first offset strictly
// greater than h, starting the search at cursor (a monotone index
// the planner passes back in on the next call). Because headers are
// visited in ascending order and footers are sorted, a footer index
// once known to be <= some header will also be <= every later
// header, so the cursor never needs to move backward across calls.
// It returns the found footer's index (to reuse as the next cursor)
// and offset.
func (d *DB) FirstFooterAfter(cursor int, h int64) (idx int, offset int64, ok bool) {
	i := cursor
	for i < len(d.Footers) && d.Footers[i] <= h {
		i++
	}
	if i >= len(d.Footers) {
		return i, 0, false
	}
	return i, d.Footers[i], true
}

// LastFooterWithin scans Footers for the farthest offset f such that
// h < f && f-h <= maxDistance, starting from cursor. Used by REVERSE
// semantics. Like FirstFooterAfter, the returned index is a valid
// cursor for the next (larger) header.
func (d *DB) LastFooterWithin(cursor int, h, maxDistance int64) (idx int, offset int64, ok bool) {
	i := cursor
	for i < len(d.Footers) && d.Footers[i] <= h {
		i++
	}
	best := -1
	bestOffset := int64(0)
	for j := i; j < len(d.Footers) && d.Footers[j]-h <= maxDistance; j++ {
		best = j
		bestOffset = d.Footers[j]
	}
	if best < 0 {
		return i, 0, false
	}
	return i, bestOffset, true
}

// Set is the full per-catalog collection of offset databases, indexed
// by rule index; it is cleared between images while the catalog
// itself lives for the program's duration.
type Set struct {
	dbs []DB
}

// NewSet allocates a Set with one empty DB per rule.
func NewSet(numRules int) *Set {
	return &Set{dbs: make([]DB, numRules)}
}

// For returns the offset database for the rule at index ruleIndex.
func (s *Set) For(ruleIndex int) *DB {
	return &s.dbs[ruleIndex]
}

// Reset clears every database in the set, ready for the next image.
func (s *Set) Reset() {
	for i := range s.dbs {
		s.dbs[i] = DB{}
	}
}
