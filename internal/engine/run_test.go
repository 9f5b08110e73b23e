package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gorichard/scalpel/internal/catalog"
	"github.com/gorichard/scalpel/internal/coverage"
	"github.com/gorichard/scalpel/internal/matcher"
)

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func readCarved(t *testing.T, dir, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading carved file %s: %v", name, err)
	}
	return data
}

func auditLines(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "audit.txt"))
	if err != nil {
		t.Fatalf("reading audit.txt: %v", err)
	}
	var lines []string
	for _, l := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

func oneRuleCatalog(t *testing.T, line string) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(strings.NewReader(line))
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return cat
}

// S1: a JPEG header with no matching footer, no -b, yields no carve.
func TestScenarioS1NoFooterNoCarve(t *testing.T) {
	image := bytes.Join([][]byte{
		{0x00, 0x00},
		{0xff, 0xd8, 0xff, 0xe0},
		bytes.Repeat([]byte{0x41}, 1022),
		{0xff, 0x00},
	}, nil)
	imgPath := writeImage(t, image)
	outDir := t.TempDir()

	cat := oneRuleCatalog(t, `jpg y 1024 \xff\xd8\xff\xe0 \xff\xd9 FORWARD`)
	eng := New(&Options{Catalog: cat, OutputDir: outDir, OrganizeSubdirectories: false})

	result, err := eng.RunImage(imgPath)
	if err != nil {
		t.Fatalf("RunImage: %v", err)
	}
	if result.FilesCarved != 0 {
		t.Fatalf("FilesCarved = %d, want 0", result.FilesCarved)
	}
	if lines := auditLines(t, outDir); len(lines) != 0 {
		t.Fatalf("audit lines = %v, want none", lines)
	}
}

// S2: same image, -b permits a chopped carve of exactly 1024 bytes
// starting at the header.
func TestScenarioS2MissingFooterChopped(t *testing.T) {
	image := bytes.Join([][]byte{
		{0x00, 0x00},
		{0xff, 0xd8, 0xff, 0xe0},
		bytes.Repeat([]byte{0x41}, 1022),
		{0xff, 0x00},
	}, nil)
	imgPath := writeImage(t, image)
	outDir := t.TempDir()

	cat := oneRuleCatalog(t, `jpg y 1024 \xff\xd8\xff\xe0 \xff\xd9 FORWARD`)
	eng := New(&Options{
		Catalog:                 cat,
		OutputDir:               outDir,
		OrganizeSubdirectories:  false,
		CarveWithMissingFooters: true,
	})

	result, err := eng.RunImage(imgPath)
	if err != nil {
		t.Fatalf("RunImage: %v", err)
	}
	if result.FilesCarved != 1 {
		t.Fatalf("FilesCarved = %d, want 1", result.FilesCarved)
	}
	carved := readCarved(t, outDir, "00000000.jpg")
	if len(carved) != 1024 {
		t.Fatalf("carved length = %d, want 1024", len(carved))
	}
	if !bytes.Equal(carved, image[2:2+1024]) {
		t.Fatalf("carved content mismatch")
	}
	lines := auditLines(t, outDir)
	if len(lines) != 1 {
		t.Fatalf("audit lines = %d, want 1", len(lines))
	}
	fields := strings.Split(lines[0], "\t")
	if fields[0] != "00000000.jpg" || fields[1] != "2" || fields[2] != "YES" || fields[3] != "1024" {
		t.Fatalf("audit line = %v, want [00000000.jpg 2 YES 1024 ...]", fields)
	}
}

// A nonzero InitialSkip (-s) must not shift carved output relative to
// the header's true physical position: Pass 2's per-block buffer base
// has to track where its reads actually begin (InitialSkip plus whole
// Chunk windows), not assume block 0 starts at physical offset 0.
func TestScenarioInitialSkipDoesNotShiftCarve(t *testing.T) {
	prefix := bytes.Repeat([]byte{0x00}, 8)
	image := bytes.Join([][]byte{
		prefix,
		{0xff, 0xd8, 0xff, 0xe0},
		bytes.Repeat([]byte{0x41}, 1022),
		{0xff, 0x00},
	}, nil)
	imgPath := writeImage(t, image)
	outDir := t.TempDir()

	cat := oneRuleCatalog(t, `jpg y 1024 \xff\xd8\xff\xe0 \xff\xd9 FORWARD`)
	eng := New(&Options{
		Catalog:                 cat,
		OutputDir:               outDir,
		OrganizeSubdirectories:  false,
		CarveWithMissingFooters: true,
		InitialSkip:             4,
	})

	result, err := eng.RunImage(imgPath)
	if err != nil {
		t.Fatalf("RunImage: %v", err)
	}
	if result.FilesCarved != 1 {
		t.Fatalf("FilesCarved = %d, want 1", result.FilesCarved)
	}

	headerOffset := int64(len(prefix))
	carved := readCarved(t, outDir, "00000000.jpg")
	want := image[headerOffset : headerOffset+1024]
	if !bytes.Equal(carved, want) {
		t.Fatalf("carved content does not match image at physical offset %d: InitialSkip shifted the carve", headerOffset)
	}

	lines := auditLines(t, outDir)
	if len(lines) != 1 {
		t.Fatalf("audit lines = %d, want 1", len(lines))
	}
	fields := strings.Split(lines[0], "\t")
	gotOffset, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		t.Fatalf("audit physical_start %q not an integer: %v", fields[1], err)
	}
	if gotOffset != headerOffset {
		t.Fatalf("audit physical_start = %d, want %d", gotOffset, headerOffset)
	}
}

// S3: overlapping AB/BA headers and footers pair as the spec
// describes, with the trailing unmatched header discarded by default
// and chopped under -b.
func TestScenarioS3OverlappingHeaders(t *testing.T) {
	image := []byte("ABABABAB")
	imgPath := writeImage(t, image)

	cat := oneRuleCatalog(t, `x y 4 AB BA FORWARD`)
	outDir := t.TempDir()
	eng := New(&Options{Catalog: cat, OutputDir: outDir, OrganizeSubdirectories: false})

	result, err := eng.RunImage(imgPath)
	if err != nil {
		t.Fatalf("RunImage: %v", err)
	}
	// h=0->f=1 (stop=2), h=2->f=3 (stop=4), h=4->f=5 (stop=6); h=6 discarded.
	if result.FilesCarved != 3 {
		t.Fatalf("FilesCarved = %d, want 3", result.FilesCarved)
	}

	outDir2 := t.TempDir()
	cat2 := oneRuleCatalog(t, `x y 4 AB BA FORWARD`)
	eng2 := New(&Options{Catalog: cat2, OutputDir: outDir2, OrganizeSubdirectories: false, CarveWithMissingFooters: true})
	result2, err := eng2.RunImage(imgPath)
	if err != nil {
		t.Fatalf("RunImage (with -b): %v", err)
	}
	if result2.FilesCarved != 4 {
		t.Fatalf("FilesCarved = %d, want 4 with -b", result2.FilesCarved)
	}
	last := readCarved(t, outDir2, "00000003.x")
	if len(last) != 2 || !bytes.Equal(last, []byte("AB")) {
		t.Fatalf("last chopped carve = %q, want \"AB\" (2 bytes)", last)
	}
}

// S4: REVERSE semantics pick the farthest footer still within
// max_length of the header.
func TestScenarioS4Reverse(t *testing.T) {
	// H.... F... F... F....
	// 0123456789...
	image := []byte("H....F...F...F....")
	hIdx := bytes.IndexByte(image, 'H')
	footerIdxs := []int{}
	for i, b := range image {
		if b == 'F' {
			footerIdxs = append(footerIdxs, i)
		}
	}
	if hIdx != 0 || len(footerIdxs) != 3 {
		t.Fatalf("fixture setup wrong: hIdx=%d footers=%v", hIdx, footerIdxs)
	}
	farthest := footerIdxs[len(footerIdxs)-1]
	if farthest-hIdx > 15 {
		t.Fatalf("fixture's farthest footer %d exceeds max_length 15 from header %d", farthest, hIdx)
	}

	imgPath := writeImage(t, image)
	outDir := t.TempDir()
	cat := oneRuleCatalog(t, `r y 15 H F REVERSE`)
	eng := New(&Options{Catalog: cat, OutputDir: outDir, OrganizeSubdirectories: false})

	result, err := eng.RunImage(imgPath)
	if err != nil {
		t.Fatalf("RunImage: %v", err)
	}
	if result.FilesCarved != 1 {
		t.Fatalf("FilesCarved = %d, want 1", result.FilesCarved)
	}
	carved := readCarved(t, outDir, "00000000.r")
	wantLen := farthest + 1 - hIdx
	if len(carved) != wantLen {
		t.Fatalf("carved length = %d, want %d (farthest footer at %d)", len(carved), wantLen, farthest)
	}
}

// S5: -q block alignment discards a header that doesn't land on an
// aligned_block_size boundary.
func TestScenarioS5BlockAligned(t *testing.T) {
	image := make([]byte, 1024)
	copy(image[100:], []byte{0x41, 0x42})
	copy(image[512:], []byte{0x41, 0x42})

	imgPath := writeImage(t, image)
	outDir := t.TempDir()
	cat := oneRuleCatalog(t, `bin y 8 \x41\x42`)
	eng := New(&Options{
		Catalog:                 cat,
		OutputDir:               outDir,
		OrganizeSubdirectories:  false,
		BlockAlignedOnly:        true,
		AlignedBlockSize:        512,
		CarveWithMissingFooters: true,
	})

	result, err := eng.RunImage(imgPath)
	if err != nil {
		t.Fatalf("RunImage: %v", err)
	}
	if result.FilesCarved != 1 {
		t.Fatalf("FilesCarved = %d, want 1 (only the 512-aligned header)", result.FilesCarved)
	}
}

// S6: an active coverage map compacts out already-covered blocks, and
// the audit reports physical (not logical) offsets for newly carved
// files.
func TestScenarioS6CoverageMapActive(t *testing.T) {
	// Image: 2 covered blocks of size 4 (bytes 0..7 irrelevant filler),
	// then a carvable header+footer starting at physical byte 8.
	image := bytes.Join([][]byte{
		bytes.Repeat([]byte{0x00}, 8), // blocks 0-1, to be marked covered
		{0x41, 0x42},                  // header "AB" at physical offset 8
		{0x43, 0x43, 0x43},
		{0x42, 0x41}, // footer "BA" at physical offset 13
	}, nil)
	imgPath := writeImage(t, image)
	imageBase := filepath.Base(imgPath)
	outDir := t.TempDir()

	mapPath := filepath.Join(outDir, imageBase+".coverage")
	m, err := coverage.Open(mapPath, coverage.UpdateOnly, 4, int64(len(image)))
	if err != nil {
		t.Fatalf("coverage.Open (seed): %v", err)
	}
	if err := m.IncrementRange(0, 7); err != nil {
		t.Fatalf("IncrementRange: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cat := oneRuleCatalog(t, `x y 20 AB BA FORWARD`)
	eng := New(&Options{
		Catalog:                cat,
		OutputDir:              outDir,
		OrganizeSubdirectories: false,
		UseCoverage:            true,
		CoverageBlockSize:      4,
		Overlap:                matcher.Overlapping,
	})

	result, err := eng.RunImage(imgPath)
	if err != nil {
		t.Fatalf("RunImage: %v", err)
	}
	if result.FilesCarved != 1 {
		t.Fatalf("FilesCarved = %d, want 1", result.FilesCarved)
	}

	lines := auditLines(t, outDir)
	if len(lines) != 1 {
		t.Fatalf("audit lines = %d, want 1", len(lines))
	}
	fields := strings.Split(lines[0], "\t")
	if fields[1] != "8" {
		t.Fatalf("audit physical_start = %s, want 8 (physical offset, not logical)", fields[1])
	}

	carved := readCarved(t, outDir, "00000000.x")
	if !bytes.Equal(carved, image[8:15]) {
		t.Fatalf("carved content = % x, want % x", carved, image[8:15])
	}
}

// Offset monotonicity (spec §8 property 1): Dig never appends a
// decreasing offset for a rule across chunk boundaries.
func TestOffsetMonotonicityAcrossChunks(t *testing.T) {
	// Force tiny chunks by shrinking e.buf directly would require
	// exporting Chunk; instead exercise Dig at the real chunk size
	// with an image smaller than one chunk but containing several
	// scattered matches. The offsets themselves are not inspected:
	// the check is that every one of the 50 headers is found and
	// carved end to end.
	var image bytes.Buffer
	for i := 0; i < 50; i++ {
		image.WriteByte(0x00)
		image.Write([]byte{0xAA, 0xBB})
	}
	imgPath := writeImage(t, image.Bytes())
	outDir := t.TempDir()
	cat := oneRuleCatalog(t, `bin y 8 \xaa\xbb`)
	eng := New(&Options{Catalog: cat, OutputDir: outDir, OrganizeSubdirectories: false, CarveWithMissingFooters: true})

	result, err := eng.RunImage(imgPath)
	if err != nil {
		t.Fatalf("RunImage: %v", err)
	}
	if result.FilesCarved != 50 {
		t.Fatalf("FilesCarved = %d, want 50", result.FilesCarved)
	}
}

// Open-file budget (spec §8 property 5): with a tiny injected budget,
// 20 tasks in the same block all carve and the engine's tracked open
// count is within the budget at the end of the run. Each task here
// starts and stops in block 0, so its sink is closed terminally right
// after its single write.
func TestOpenFileBudgetRespected(t *testing.T) {
	var image bytes.Buffer
	for i := 0; i < 20; i++ {
		image.Write([]byte{0x41, 0x42})
		image.Write(bytes.Repeat([]byte{0x00}, 10))
	}
	imgPath := writeImage(t, image.Bytes())
	outDir := t.TempDir()
	cat := oneRuleCatalog(t, `x y 4 \x41\x42`)
	eng := New(&Options{Catalog: cat, OutputDir: outDir, OrganizeSubdirectories: false, CarveWithMissingFooters: true})
	eng.budget = 2 // budget well below the 20 tasks

	result, err := eng.RunImage(imgPath)
	if err != nil {
		t.Fatalf("RunImage: %v", err)
	}
	if result.FilesCarved != 20 {
		t.Fatalf("FilesCarved = %d, want 20", result.FilesCarved)
	}
	if eng.openFiles > eng.budget {
		t.Fatalf("openFiles = %d exceeds budget %d at end of run", eng.openFiles, eng.budget)
	}
}
