// Package engine implements the two-pass carving core: Dig (Pass 1)
// locates header and footer occurrences, Plan turns them into a
// work-queue array of scheduled extractions, and Carve (Pass 2)
// executes that queue against a second sequential read of the image.
package engine

import (
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/gorichard/scalpel/internal/catalog"
	"github.com/gorichard/scalpel/internal/coverage"
	"github.com/gorichard/scalpel/internal/matcher"
)

// Chunk is the fixed streaming window both passes read the image in.
const Chunk = 10 * 1024 * 1024

// openBudget returns the engine's open-output-handle ceiling: 512 on
// Unix-like platforms, 20 elsewhere, matching the source's
// getrlimit/FOPEN_MAX split.
func openBudget() int {
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "openbsd", "netbsd", "solaris":
		return 512
	default:
		return 20
	}
}

// Options configures one carving run, shared across every image given
// on the command line. It is the engine's equivalent of scalpelState:
// everything in here is either a direct flag translation or the
// catalog loaded once up front.
type Options struct {
	Catalog *catalog.Catalog

	OutputDir   string
	CoverageDir string

	NoSuffix               bool
	OrganizeSubdirectories bool
	OrganizeBucketSize     int

	Preview bool

	BlockAlignedOnly  bool
	AlignedBlockSize  int64

	Overlap matcher.Overlap

	InitialSkip int64

	CoverageBlockSize uint32
	UpdateCoverage    bool
	UseCoverage       bool

	CarveWithMissingFooters bool
	GenerateHFD             bool

	// IgnoreEmbedded is preserved as a flag surface only; the source
	// never wires it to any behaviour and neither does this engine.
	IgnoreEmbedded bool

	Logger *logrus.Logger
}

func (o *Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

func (o *Options) coverageMode() coverage.Mode {
	switch {
	case o.UseCoverage && o.UpdateCoverage:
		return coverage.UseAndUpdate
	case o.UseCoverage:
		return coverage.Use
	case o.UpdateCoverage:
		return coverage.UpdateOnly
	default:
		return coverage.Off
	}
}

func (o *Options) organizeBucketSize() int {
	if o.OrganizeBucketSize > 0 {
		return o.OrganizeBucketSize
	}
	return 1000
}

// Engine holds the per-run shared resources the source keeps at file
// scope: the one reusable read buffer and the live open-handle count.
// Modelling them as fields on a value rather than package globals
// lets a process carve more than one run concurrently in tests.
type Engine struct {
	opts      *Options
	buf       []byte
	openFiles int
	budget    int
	counter   uint64
}

// New builds an Engine ready to process images with opts.
func New(opts *Options) *Engine {
	return &Engine{
		opts:   opts,
		buf:    make([]byte, Chunk),
		budget: openBudget(),
	}
}
