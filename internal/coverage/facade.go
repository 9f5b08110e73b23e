package coverage

import (
	"io"
	"sort"

	"github.com/gorichard/scalpel/internal/imagesource"
)

// Facade presents the dig and carve passes with a single coordinate
// space. With the map Off it is a thin pass-through over physical
// offsets; with Use or UseAndUpdate it compacts out blocks already
// covered by a prior session, so the rest of the engine never has to
// know the map exists.
//
// Logical-to-physical translation and LogicalTell both resolve in
// O(1) or O(log numBlocks) against the prefix-sum table built once
// when the map is opened, rather than rescanning the bit view on
// every call.
type Facade struct {
	src     imagesource.Source
	m       *Map
	physPos int64
}

// NewFacade wraps src with the logical view described by m. m may be
// a pass-through Map (mode Off).
func NewFacade(src imagesource.Source, m *Map) *Facade {
	return &Facade{src: src, m: m}
}

func (f *Facade) blockOf(phys int64) uint64 {
	return uint64(phys) / uint64(f.m.blockSize)
}

func (f *Facade) covered(block uint64) bool {
	return f.m.covered != nil && block < uint64(len(f.m.covered)) && f.m.covered[block]
}

// LogicalTell returns the current logical offset.
func (f *Facade) LogicalTell() int64 {
	if !f.m.Active() {
		return f.physPos
	}
	if f.physPos >= f.m.imageSize {
		return f.m.cumUncovered[f.m.numBlocks]
	}
	block := f.blockOf(f.physPos)
	blockStart := int64(block) * int64(f.m.blockSize)
	if f.covered(block) {
		// Sitting at the boundary of a covered block: no logical
		// bytes of this block have been (or ever will be) consumed.
		return f.m.cumUncovered[block]
	}
	return f.m.cumUncovered[block] + (f.physPos - blockStart)
}

// Physical returns the current physical offset backing the logical
// position, for callers (HFD, audit) that need the raw image
// coordinate directly.
func (f *Facade) Physical() int64 { return f.physPos }

// LogicalToPhysical translates a logical offset, as previously
// produced by LogicalTell, back to its physical image offset.
func (f *Facade) LogicalToPhysical(logical int64) int64 {
	if !f.m.Active() {
		return logical
	}
	cum := f.m.cumUncovered
	// Largest i such that cum[i] <= logical.
	i := sort.Search(len(cum), func(i int) bool { return cum[i] > logical }) - 1
	if i < 0 {
		i = 0
	}
	if uint64(i) >= f.m.numBlocks {
		return f.m.imageSize
	}
	return int64(i)*int64(f.m.blockSize) + (logical - cum[i])
}

// LogicalSeekCur advances (delta > 0) or rewinds (delta < 0) the
// facade's position by delta logical bytes, skipping any covered
// blocks encountered along the way, then performs a single physical
// seek to the resulting offset.
func (f *Facade) LogicalSeekCur(delta int64) error {
	if !f.m.Active() {
		target := f.physPos + delta
		if target < 0 {
			target = 0
		}
		f.physPos = target
		_, err := f.src.Seek(target, io.SeekStart)
		return err
	}

	switch {
	case delta > 0:
		f.physPos = f.advance(f.physPos, delta)
	case delta < 0:
		f.physPos = f.rewind(f.physPos, -delta)
	}
	_, err := f.src.Seek(f.physPos, io.SeekStart)
	return err
}

func (f *Facade) advance(pos, remaining int64) int64 {
	for remaining > 0 {
		if pos >= f.m.imageSize {
			return f.m.imageSize
		}
		block := f.blockOf(pos)
		blockEnd := int64(block+1) * int64(f.m.blockSize)
		if blockEnd > f.m.imageSize {
			blockEnd = f.m.imageSize
		}
		if f.covered(block) {
			pos = blockEnd
			continue
		}
		avail := blockEnd - pos
		take := remaining
		if take > avail {
			take = avail
		}
		pos += take
		remaining -= take
	}
	return pos
}

func (f *Facade) rewind(pos, remaining int64) int64 {
	for remaining > 0 && pos > 0 {
		block := f.blockOf(pos - 1)
		blockStart := int64(block) * int64(f.m.blockSize)
		if f.covered(block) {
			pos = blockStart
			continue
		}
		avail := pos - blockStart
		take := remaining
		if take > avail {
			take = avail
		}
		pos -= take
		remaining -= take
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

// LogicalRead fills buf with up to len(buf) logical bytes starting at
// the current position, skipping covered blocks transparently, and
// advances the position past what it read. It follows io.Reader
// conventions: a short, non-zero read is reported with a nil error,
// and reaching the end of the image with nothing delivered reports
// io.EOF.
func (f *Facade) LogicalRead(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if !f.m.Active() {
		n, err := f.src.ReadAt(buf, f.physPos)
		f.physPos += int64(n)
		if err == io.EOF && n > 0 {
			return n, nil
		}
		return n, err
	}

	delivered := 0
	for delivered < len(buf) {
		if f.physPos >= f.m.imageSize {
			break
		}
		block := f.blockOf(f.physPos)
		blockEnd := int64(block+1) * int64(f.m.blockSize)
		if blockEnd > f.m.imageSize {
			blockEnd = f.m.imageSize
		}
		if f.covered(block) {
			f.physPos = blockEnd
			continue
		}
		want := int64(len(buf) - delivered)
		if avail := blockEnd - f.physPos; want > avail {
			want = avail
		}
		n, err := f.src.ReadAt(buf[delivered:int64(delivered)+want], f.physPos)
		delivered += n
		f.physPos += int64(n)
		if err != nil && err != io.EOF {
			return delivered, err
		}
		if int64(n) < want {
			break
		}
	}
	if delivered == 0 {
		return 0, io.EOF
	}
	return delivered, nil
}

// Reset repositions the facade at the start of the image, logical
// offset 0.
func (f *Facade) Reset() error {
	f.physPos = 0
	_, err := f.src.Seek(0, io.SeekStart)
	return err
}

// LogicalSize returns the total logical length of the image: the
// image size itself when the map is inactive, or the sum of
// uncovered bytes otherwise.
func (f *Facade) LogicalSize() int64 {
	if !f.m.Active() {
		return f.src.Size()
	}
	return f.m.cumUncovered[f.m.numBlocks]
}

// Fragments reports the physical byte ranges, in ascending order,
// that make up the logical interval [logicalStart, logicalStart+n).
// The audit writer uses this to expand a carved file's logical span
// back into the physically discontiguous runs a reader needs (spec
// §4.D "fragmented" reporting and §6 chopped-file handling).
func (f *Facade) Fragments(logicalStart, n int64) []Fragment {
	if n <= 0 {
		return nil
	}
	if !f.m.Active() {
		return []Fragment{{Start: logicalStart, Length: n}}
	}

	var frags []Fragment
	pos := f.LogicalToPhysical(logicalStart)
	remaining := n
	for remaining > 0 {
		block := f.blockOf(pos)
		if block >= f.m.numBlocks {
			break
		}
		blockEnd := int64(block+1) * int64(f.m.blockSize)
		if blockEnd > f.m.imageSize {
			blockEnd = f.m.imageSize
		}
		if f.covered(block) {
			pos = blockEnd
			continue
		}
		runLen := blockEnd - pos
		if runLen > remaining {
			runLen = remaining
		}
		if len(frags) > 0 {
			last := &frags[len(frags)-1]
			if last.Start+last.Length == pos {
				last.Length += runLen
				pos += runLen
				remaining -= runLen
				continue
			}
		}
		frags = append(frags, Fragment{Start: pos, Length: runLen})
		pos += runLen
		remaining -= runLen
	}
	return frags
}

// Fragment is one physically contiguous run within a logical span.
type Fragment struct {
	Start  int64
	Length int64
}
