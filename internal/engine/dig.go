package engine

import (
	"errors"
	"io"

	"github.com/gorichard/scalpel/internal/catalog"
	"github.com/gorichard/scalpel/internal/coverage"
	"github.com/gorichard/scalpel/internal/matcher"
	"github.com/gorichard/scalpel/internal/offsets"
)

// ErrCanceled is returned by Dig and Carve when a cooperative
// cancellation signal interrupted the pass before it finished.
var ErrCanceled = errors.New("engine: canceled")

// Dig runs Pass 1: a streaming scan over facade's logical view that
// locates every header (and, where the footer-pruning predicate
// allows, footer) occurrence for every rule and records their
// logical offsets into offs.
func (e *Engine) Dig(facade *coverage.Facade, rules []*catalog.Rule, offs *offsets.Set) error {
	longest := int64(e.opts.Catalog.LongestPattern())
	overlap := e.opts.Overlap

	for {
		if canceled() {
			return ErrCanceled
		}

		chunkStart := facade.LogicalTell()
		n, err := facade.LogicalRead(e.buf)
		if err != nil && err != io.EOF {
			return err
		}
		if n == 0 {
			break
		}
		window := e.buf[:n]

		for _, r := range rules {
			if canceled() {
				return ErrCanceled
			}
			db := offs.For(r.Index)

			headerHits := matcher.FindAll(nil, r.Header, window, 0, r.HeaderTable, e.wildcard(), r.CaseSensitive, overlap)
			for _, m := range headerHits {
				db.AppendHeader(chunkStart + int64(m))
			}

			if !r.HasFooter() {
				continue
			}
			if !e.opts.GenerateHFD && !footerSearchDue(r, db, chunkStart) {
				continue
			}
			footerHits := matcher.FindAll(nil, r.Footer, window, 0, r.FooterTable, e.wildcard(), r.CaseSensitive, overlap)
			for _, m := range footerHits {
				db.AppendFooter(chunkStart + int64(m))
			}
		}

		if n < len(e.buf) || int64(n) < longest-1 {
			break
		}
		if err := facade.LogicalSeekCur(-(longest - 1)); err != nil {
			return err
		}
	}

	return nil
}

// footerSearchDue implements the footer-pruning predicate (spec §9
// open question): a rule's footer search only runs in a chunk if some
// header seen so far (including this chunk's own) could still be
// paired within max_length bytes of currentLogicalPos, the logical
// offset at which the chunk being scanned begins.
func footerSearchDue(r *catalog.Rule, db *offsets.DB, currentLogicalPos int64) bool {
	last, ok := db.LastHeader()
	if !ok {
		return false
	}
	return currentLogicalPos-last < r.MaxLength
}

func (e *Engine) wildcard() byte {
	return e.opts.Catalog.Wildcard
}
