// Package coverage implements the optional "already-carved" map: a
// persistent per-block counter file plus the read-only in-memory bit
// view and gap-compacted logical-view facade built from it (spec
// §4.D). The map is part of the core because it changes every offset
// the dig and carve passes see.
package coverage

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Mode selects how a session uses a coverage map file.
type Mode int

const (
	// Off disables the coverage map entirely; all facade operations
	// are pass-throughs over physical offsets.
	Off Mode = iota
	// UpdateOnly scans in physical offsets but increments on-disk
	// counters for blocks touched by newly carved files.
	UpdateOnly
	// Use loads the on-disk counters into a read-only bit view at
	// session start and presents a gap-compacted logical view to the
	// rest of the engine; counters are not updated.
	Use
	// UseAndUpdate combines Use with counter updates on terminal
	// close of each carved file.
	UseAndUpdate
)

func (m Mode) updates() bool { return m == UpdateOnly || m == UseAndUpdate }
func (m Mode) uses() bool    { return m == Use || m == UseAndUpdate }

// Map is an opened coverage-map session: the on-disk block_size
// header, the per-block counters (when updating), and, when Mode
// uses the map, the read-only bit view and the prefix sums that let
// the Facade translate between physical and logical offsets in O(1)
// or O(log blocks) without rescanning the bit view on every call.
type Map struct {
	mode      Mode
	file      *os.File
	blockSize uint32
	numBlocks uint64
	imageSize int64

	// covered[i] is true iff block i was already covered (counter > 0)
	// at session start. Never mutated after load: spec invariant (1).
	covered []bool

	// cumUncovered[i] is the total logical (uncovered) bytes
	// contributed by blocks [0, i). cumUncovered[numBlocks] is the
	// image's total logical length. Built once at session start.
	cumUncovered []int64
}

func blockCount(imageSize int64, blockSize uint32) uint64 {
	if blockSize == 0 {
		return 0
	}
	n := imageSize / int64(blockSize)
	if imageSize%int64(blockSize) != 0 {
		n++
	}
	return uint64(n)
}

func (m *Map) blockLen(i uint64) int64 {
	start := int64(i) * int64(m.blockSize)
	end := start + int64(m.blockSize)
	if end > m.imageSize {
		end = m.imageSize
	}
	if end < start {
		return 0
	}
	return end - start
}

// Open prepares a coverage map for a single image. path is the
// coverage-map file (conventionally named after the image, inside
// the -t directory). blockSize is the caller's requested block size
// for a fresh map, or the expected size to validate against an
// existing one; a requested size of 0 is only valid against an
// existing map and means "adopt whatever block size is on disk"
// (the CLI's -u without -m case: Use mode needs no requested size of
// its own, since the map file already carries one). When mode is Off,
// Open always succeeds and returns a pass-through Map.
func Open(path string, mode Mode, blockSize uint32, imageSize int64) (*Map, error) {
	if mode == Off {
		return &Map{mode: Off}, nil
	}

	_, err := os.Stat(path)
	exists := err == nil
	if !exists && mode.uses() {
		return nil, &GeneralAbortError{Reason: fmt.Sprintf("coverage map %s does not exist but -u was given", path)}
	}
	if !exists && blockSize == 0 {
		return nil, &GeneralAbortError{Reason: fmt.Sprintf("coverage map %s does not exist and no block size was given (-m <size>)", path)}
	}

	m := &Map{
		mode:      mode,
		blockSize: blockSize,
		imageSize: imageSize,
		numBlocks: blockCount(imageSize, blockSize),
	}

	if exists {
		onDiskBlockSize, counters, rerr := readMapFile(path)
		if rerr != nil {
			return nil, &FatalReadError{Path: path, Err: rerr}
		}
		if blockSize == 0 {
			blockSize = onDiskBlockSize
			m.blockSize = onDiskBlockSize
		} else if onDiskBlockSize != blockSize {
			return nil, &GeneralAbortError{Reason: fmt.Sprintf(
				"coverage map %s has block size %d, requested %d", path, onDiskBlockSize, blockSize)}
		}
		m.numBlocks = blockCount(imageSize, blockSize)
		if uint64(len(counters)) != m.numBlocks {
			return nil, &FatalReadError{Path: path, Err: fmt.Errorf(
				"expected %d blocks, map has %d", m.numBlocks, len(counters))}
		}
		if mode.uses() {
			m.covered = make([]bool, m.numBlocks)
			for i, c := range counters {
				m.covered[i] = c > 0
			}
		}
	} else {
		if err := writeEmptyMapFile(path, blockSize, m.numBlocks); err != nil {
			return nil, &FatalReadError{Path: path, Err: err}
		}
	}

	if mode.uses() {
		m.buildPrefixSums()
	}

	if mode.updates() {
		f, err := os.OpenFile(path, os.O_RDWR, 0644)
		if err != nil {
			return nil, fmt.Errorf("coverage: open %s for update: %w", path, err)
		}
		m.file = f
	}

	return m, nil
}

func (m *Map) buildPrefixSums() {
	m.cumUncovered = make([]int64, m.numBlocks+1)
	var total int64
	for i := uint64(0); i < m.numBlocks; i++ {
		m.cumUncovered[i] = total
		if m.covered == nil || !m.covered[i] {
			total += m.blockLen(i)
		}
	}
	m.cumUncovered[m.numBlocks] = total
}

// Close releases the coverage-map file handle, if one is open for
// updates.
func (m *Map) Close() error {
	if m.file == nil {
		return nil
	}
	return m.file.Close()
}

// Active reports whether this map changes offset semantics at all
// (Use or UseAndUpdate).
func (m *Map) Active() bool {
	return m != nil && m.mode.uses()
}

// Updating reports whether terminal carve closes should increment
// on-disk counters.
func (m *Map) Updating() bool {
	return m != nil && m.mode.updates()
}

// IncrementRange increments the on-disk counter for every block
// intersected by the physical byte range [start, stop] inclusive.
// Updates are applied one block at a time so the map file is never
// left partially rewritten if the process is interrupted mid-update.
func (m *Map) IncrementRange(start, stop int64) error {
	if m == nil || !m.Updating() {
		return nil
	}
	if m.blockSize == 0 {
		return nil
	}
	first := uint64(start) / uint64(m.blockSize)
	last := uint64(stop) / uint64(m.blockSize)
	for b := first; b <= last; b++ {
		if err := m.incrementBlock(b); err != nil {
			return err
		}
	}
	return nil
}

func (m *Map) incrementBlock(block uint64) error {
	offset := int64(4) + int64(block)*4 // header word, then one uint32 per block
	var word [4]byte
	if _, err := m.file.ReadAt(word[:], offset); err != nil {
		return fmt.Errorf("coverage: read counter for block %d: %w", block, err)
	}
	counter := binary.LittleEndian.Uint32(word[:])
	counter++
	binary.LittleEndian.PutUint32(word[:], counter)
	if _, err := m.file.WriteAt(word[:], offset); err != nil {
		return fmt.Errorf("coverage: write counter for block %d: %w", block, err)
	}
	return nil
}

func readMapFile(path string) (blockSize uint32, counters []uint32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return 0, nil, err
	}
	if stat.Size() < 4 || (stat.Size()-4)%4 != 0 {
		return 0, nil, fmt.Errorf("truncated or misaligned coverage map (size %d)", stat.Size())
	}

	raw := make([]byte, stat.Size())
	if _, err := f.ReadAt(raw, 0); err != nil {
		return 0, nil, err
	}

	blockSize = binary.LittleEndian.Uint32(raw[0:4])
	n := (len(raw) - 4) / 4
	counters = make([]uint32, n)
	for i := 0; i < n; i++ {
		counters[i] = binary.LittleEndian.Uint32(raw[4+i*4 : 8+i*4])
	}
	return blockSize, counters, nil
}

func writeEmptyMapFile(path string, blockSize uint32, numBlocks uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := make([]byte, 4+numBlocks*4)
	binary.LittleEndian.PutUint32(w[0:4], blockSize)
	_, err = f.Write(w)
	return err
}

// GeneralAbortError reports a user-facing precondition violation,
// e.g. -u given with no existing map file, or a block-size mismatch
// against an existing one (spec §7 GeneralAbort).
type GeneralAbortError struct {
	Reason string
}

func (e *GeneralAbortError) Error() string { return "coverage: " + e.Reason }

// FatalReadError reports a truncated or otherwise inconsistent
// coverage-map file (spec §7 FatalRead).
type FatalReadError struct {
	Path string
	Err  error
}

func (e *FatalReadError) Error() string {
	return fmt.Sprintf("coverage: fatal read of %s: %v", e.Path, e.Err)
}

func (e *FatalReadError) Unwrap() error { return e.Err }
