// Command scalpel is the batch entry point for the carving engine: a
// one-shot `scalpel [flags] <image> [<image>...]` invocation that
// recovers every file its signature catalogue can pair headers and
// footers for, with no terminal interaction (contrast cmd/scalpel-tui).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gorichard/scalpel/internal/catalog"
	"github.com/gorichard/scalpel/internal/engine"
	"github.com/gorichard/scalpel/internal/matcher"
	"github.com/gorichard/scalpel/internal/scalpelerr"
)

// banner is printed once at startup, matching scalpel.c's
// SCALPEL_BANNER_STRING cosmetic (spec SPEC_FULL.md §5.2).
const banner = "scalpel 2.0 (Go port) -- a byte-signature file carver\n" +
	"Based on original work by Golden G. Richard III and the Scalpel project.\n"

type cliFlags struct {
	permitMissingFooter bool
	configPath          string
	generateHFD         bool
	imageListPath       string
	coverageUpdateBS    uint32
	noSuffix            bool
	outputDir           string
	noOrganize          bool
	preview             bool
	alignedBlockSize    uint32
	nonOverlapping      bool
	initialSkip         int64
	coverageDir         string
	useCoverage         bool
	verbose             bool
}

func main() {
	var f cliFlags

	root := &cobra.Command{
		Use:     "scalpel [flags] <image> [<image>...]",
		Short:   "Recover files from a raw disk image or block device by byte-signature carving",
		Version: "2.0.0",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCLI(&f, args)
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.BoolVarP(&f.permitMissingFooter, "missing-footer", "b", false,
		"permit FORWARD carves without a matching footer (chopped at max length)")
	flags.StringVarP(&f.configPath, "config", "c", "", "signature configuration file path")
	flags.BoolVarP(&f.generateHFD, "hfd", "d", false,
		"generate the header/footer database artifact (disables footer-pruning)")
	flags.StringVarP(&f.imageListPath, "image-list", "i", "", "read image paths, one per line, from this file")
	flags.Uint32VarP(&f.coverageUpdateBS, "coverage-update", "m", 0, "enable coverage-map update with this block size")
	flags.BoolVarP(&f.noSuffix, "no-suffix", "n", false, "omit filename extensions in carved output")
	flags.StringVarP(&f.outputDir, "output", "o", "scalpel-output", "output directory (must exist empty or be creatable)")
	flags.BoolVarP(&f.noOrganize, "no-organize", "O", false, "do not organise carved files into per-type subdirectories")
	flags.BoolVarP(&f.preview, "preview", "p", false, "preview only: plan and audit, write nothing")
	flags.Uint32VarP(&f.alignedBlockSize, "aligned", "q", 0, "only accept headers aligned to this block size")
	flags.BoolVarP(&f.nonOverlapping, "non-overlapping", "r", false, "disable overlapping pattern matches")
	flags.Int64VarP(&f.initialSkip, "skip", "s", 0, "skip this many bytes at the start of each image")
	flags.StringVarP(&f.coverageDir, "coverage-dir", "t", "", "directory for coverage-map files (defaults to -o)")
	flags.BoolVarP(&f.useCoverage, "use-coverage", "u", false, "use the coverage map to guide carving (logical view); without -m, reads an existing map's block size from disk")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "verbose diagnostic logging")

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func runCLI(f *cliFlags, args []string) error {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if f.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	fmt.Fprint(os.Stderr, banner)

	images, err := collectImages(f.imageListPath, args)
	if err != nil {
		return scalpelerr.Wrap(scalpelerr.GeneralAbort, "cli.image-list", err)
	}
	if len(images) == 0 {
		return scalpelerr.New(scalpelerr.GeneralAbort, "cli.images", "no image given (pass a path or -i <listfile>)")
	}

	cat, err := loadCatalog(f.configPath)
	if err != nil {
		return err
	}

	if err := prepareOutputDir(f.outputDir); err != nil {
		return scalpelerr.Wrap(scalpelerr.GeneralAbort, "cli.output-dir", err)
	}

	overlap := matcher.Overlapping
	if f.nonOverlapping {
		overlap = matcher.NonOverlapping
	}

	opts := &engine.Options{
		Catalog:                 cat,
		OutputDir:               f.outputDir,
		CoverageDir:             f.coverageDir,
		NoSuffix:                f.noSuffix,
		OrganizeSubdirectories:  !f.noOrganize,
		Preview:                 f.preview,
		BlockAlignedOnly:        f.alignedBlockSize > 0,
		AlignedBlockSize:        int64(f.alignedBlockSize),
		Overlap:                 overlap,
		InitialSkip:             f.initialSkip,
		CoverageBlockSize:       f.coverageUpdateBS,
		UpdateCoverage:          f.coverageUpdateBS > 0,
		UseCoverage:             f.useCoverage,
		CarveWithMissingFooters: f.permitMissingFooter,
		GenerateHFD:             f.generateHFD,
		Logger:                  log,
	}
	eng := engine.New(opts)
	stop := engine.WatchSignals()
	defer stop()

	var failures int
	for _, image := range images {
		result, err := eng.RunImage(image)
		if err != nil {
			if err == engine.ErrCanceled {
				log.Warn("canceled by signal, stopping")
				return scalpelerr.New(scalpelerr.Canceled, "cli.run", "canceled by signal")
			}
			log.WithError(err).WithField("image", image).Error("image failed, continuing with remaining images")
			failures++
			continue
		}
		log.WithFields(logrus.Fields{"image": image, "files": result.FilesCarved}).Info("carve complete")
	}

	if failures > 0 && failures == len(images) {
		return scalpelerr.New(scalpelerr.FatalRead, "cli.run", "every image failed")
	}
	return nil
}

// collectImages merges -i <listfile> (one path per line, blanks
// skipped) with positional image arguments, per SPEC_FULL.md's
// supplemented -i feature.
func collectImages(listPath string, positional []string) ([]string, error) {
	images := append([]string{}, positional...)
	if listPath == "" {
		return images, nil
	}
	f, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("opening image list %s: %w", listPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		images = append(images, line)
	}
	return images, scanner.Err()
}

// loadCatalog loads -c <path> if given, else falls back to a
// scalpel.conf in the working directory, else the built-in default
// catalogue.
func loadCatalog(configPath string) (*catalog.Catalog, error) {
	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, scalpelerr.Wrap(scalpelerr.FileOpen, "cli.config", err)
		}
		defer f.Close()
		cat, err := catalog.Load(f)
		if err != nil {
			return nil, classifyConfigErr(err)
		}
		return cat, nil
	}

	if f, err := os.Open("scalpel.conf"); err == nil {
		defer f.Close()
		cat, err := catalog.Load(f)
		if err != nil {
			return nil, classifyConfigErr(err)
		}
		return cat, nil
	}

	cat, err := catalog.DefaultCatalog()
	if err != nil {
		return nil, classifyConfigErr(err)
	}
	return cat, nil
}

func classifyConfigErr(err error) error {
	if err == catalog.ErrNoSearchSpec {
		return scalpelerr.Wrap(scalpelerr.NoSearchSpec, "cli.config", err)
	}
	if _, ok := err.(*catalog.TooManyTypesError); ok {
		return scalpelerr.Wrap(scalpelerr.TooManyTypes, "cli.config", err)
	}
	return scalpelerr.Wrap(scalpelerr.GeneralAbort, "cli.config", err)
}

// prepareOutputDir implements scalpel.c's NONEMPTYDIR_ERROR_MSG
// forensic-integrity check: -o must point at a directory that is
// either absent (created fresh) or already empty.
func prepareOutputDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %s already exists and is not empty", dir)
	}
	return nil
}

func exitCodeFor(err error) int {
	return scalpelerr.ExitCode(scalpelerr.CodeOf(err))
}
