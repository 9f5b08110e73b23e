package engine

import (
	"fmt"
	"path/filepath"

	"github.com/gorichard/scalpel/internal/coverage"
	"github.com/gorichard/scalpel/internal/imagesource"
	"github.com/gorichard/scalpel/internal/offsets"
	"github.com/gorichard/scalpel/internal/scalpelerr"
)

// ImageResult summarizes one image's carving session for callers that
// want a structured report rather than log lines: the TUI's results
// screen and the engine's own tests.
type ImageResult struct {
	Image       string
	FilesCarved int
	HFDPath     string
}

// RunImage carves a single image end to end: Pass 1 (Dig) locates
// every header/footer occurrence, Plan pairs them into a work queue,
// Pass 2 (Carve) drains that queue against a second sequential read,
// and the audit log (plus optional HFD and coverage-counter update)
// is produced along the way. It is the per-image body of cmd/scalpel's
// multi-image driver loop (spec §7: per-image errors abort only that
// image) and is reused directly by cmd/scalpel-tui.
func (e *Engine) RunImage(imagePath string) (ImageResult, error) {
	log := e.opts.logger().WithField("image", imagePath)
	result := ImageResult{Image: imagePath}

	src, err := imagesource.Open(imagePath)
	if err != nil {
		return result, scalpelerr.Wrap(scalpelerr.FileOpen, "run.open-image", err)
	}
	defer src.Close()

	imageBase := filepath.Base(imagePath)

	cov, err := coverage.Open(e.coveragePath(imageBase), e.opts.coverageMode(), uint32(e.opts.CoverageBlockSize), src.Size())
	if err != nil {
		return result, scalpelerr.Wrap(scalpelerr.GeneralAbort, "run.open-coverage", err)
	}
	defer cov.Close()

	rules := e.opts.Catalog.Rules
	offs := offsets.NewSet(len(rules))

	digFacade := coverage.NewFacade(src, cov)
	if err := digFacade.LogicalSeekCur(e.opts.InitialSkip); err != nil {
		return result, scalpelerr.Wrap(scalpelerr.FileRead, "run.dig-skip", err)
	}
	log.Debug("pass 1 (dig) starting")
	if err := e.Dig(digFacade, rules, offs); err != nil {
		if err == ErrCanceled {
			return result, err
		}
		return result, scalpelerr.Wrap(scalpelerr.FileRead, "run.dig", err)
	}
	imageSize := digFacade.LogicalSize()

	queue, tasks := e.Plan(rules, offs, imageSize)
	log.WithField("tasks", len(tasks)).Debug("pass 1 complete, plan built")

	audit, err := OpenAudit(e.opts.OutputDir, imageBase)
	if err != nil {
		return result, scalpelerr.Wrap(scalpelerr.FileOpen, "run.open-audit", err)
	}
	defer audit.Close()

	carveFacade := coverage.NewFacade(src, cov)
	if err := carveFacade.LogicalSeekCur(e.opts.InitialSkip); err != nil {
		return result, scalpelerr.Wrap(scalpelerr.FileRead, "run.carve-skip", err)
	}
	log.Debug("pass 2 (carve) starting")
	carved, err := e.Carve(carveFacade, queue, imageSize, cov, audit)
	result.FilesCarved = carved
	if err != nil {
		if err == ErrCanceled {
			audit.Note(fmt.Sprintf("canceled mid-image: %s", imageBase))
			return result, err
		}
		audit.Note(fmt.Sprintf("error carving %s: %v", imageBase, err))
		return result, err
	}

	if e.opts.GenerateHFD {
		hfdFacade := coverage.NewFacade(src, cov)
		if err := WriteHFD(e.opts.OutputDir, imageBase, rules, offs, hfdFacade); err != nil {
			return result, scalpelerr.Wrap(scalpelerr.FileWrite, "run.hfd", err)
		}
		result.HFDPath = filepath.Join(e.opts.OutputDir, imageBase+".hfd")
	}

	log.WithField("files_carved", result.FilesCarved).Info("image complete")
	return result, nil
}

// coveragePath resolves the on-disk coverage-map file for imageBase,
// preferring the -t directory and falling back to the output
// directory when none was given.
func (e *Engine) coveragePath(imageBase string) string {
	dir := e.opts.CoverageDir
	if dir == "" {
		dir = e.opts.OutputDir
	}
	return filepath.Join(dir, imageBase+".coverage")
}
