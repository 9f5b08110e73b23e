package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gorichard/scalpel/internal/coverage"
	"github.com/gorichard/scalpel/internal/scalpelerr"
)

// Carve runs Pass 2: it drains queue in ascending block order against
// a second sequential read of the image through facade, writing each
// task's bytes to its destination file, emitting audit lines and
// coverage-counter updates on terminal close. It returns the number
// of carved files actually (terminally) closed, which may be less
// than len(tasks) if a cancellation signal interrupts the pass.
func (e *Engine) Carve(facade *coverage.Facade, queue WorkQueue, imageSize int64, cov *coverage.Map, audit *AuditWriter) (int, error) {
	var block int64
	var carved int

	for {
		if canceled() {
			return carved, ErrCanceled
		}

		// blockStart is the logical position the facade actually sat
		// at when this block's window was (or will be) read: the
		// initial skip plus block whole Chunk-sized windows, since
		// every window before this one was either read in full or
		// jumped over in one big seek (spec's "skips any initial_skip
		// prefix, then iterates blocks").
		blockStart := e.opts.InitialSkip + block*Chunk
		if blockStart >= imageSize {
			break
		}

		entries, hasWork := queue[block]
		if !hasWork {
			skip, next, done := e.bigSeek(queue, block, imageSize)
			if skip > 0 {
				if err := facade.LogicalSeekCur(skip); err != nil {
					return carved, err
				}
			}
			block = next
			if done {
				break
			}
			continue
		}

		toRead := int64(len(e.buf))
		if blockStart+toRead > imageSize {
			toRead = imageSize - blockStart
		}

		var n int
		if e.opts.Preview {
			if err := facade.LogicalSeekCur(toRead); err != nil {
				return carved, err
			}
			n = int(toRead)
		} else {
			var err error
			n, err = facade.LogicalRead(e.buf[:toRead])
			if err != nil {
				return carved, scalpelerr.Wrap(scalpelerr.FileRead, "carve.read", err)
			}
		}

		for _, entry := range entries {
			if canceled() {
				return carved, ErrCanceled
			}
			terminal, err := e.dispatch(entry, blockStart, n, facade, cov, audit)
			if err != nil {
				return carved, err
			}
			if terminal {
				carved++
			}
		}

		delete(queue, block)
		block++
	}

	return carved, nil
}

// bigSeek accumulates consecutive empty blocks' worth of skip into a
// single logical_seek_cur call, per the Pass 2 optimisation.
func (e *Engine) bigSeek(queue WorkQueue, block, imageSize int64) (skip int64, next int64, done bool) {
	b := block
	for {
		blockStart := e.opts.InitialSkip + b*Chunk
		if blockStart >= imageSize {
			return skip, b, true
		}
		if _, ok := queue[b]; ok {
			return skip, b, false
		}
		skip += Chunk
		b++
	}
}

func (e *Engine) dispatch(entry QueueEntry, blockStart int64, n int, facade *coverage.Facade, cov *coverage.Map, audit *AuditWriter) (bool, error) {
	task := entry.Task
	terminal := entry.Op == OpStop || entry.Op == OpStartStop

	var offset, length int64
	switch entry.Op {
	case OpContinue:
		offset, length = 0, int64(n)
	case OpStartStop:
		offset = task.Start - blockStart
		length = task.Stop - task.Start + 1
	case OpStart:
		offset = task.Start - blockStart
		length = task.Stop - task.Start + 1
		if max := int64(n) - offset; length > max {
			length = max
		}
	case OpStop:
		offset = 0
		length = task.Stop - blockStart + 1
	}

	if !e.opts.Preview {
		if err := e.writeChunk(task, offset, length); err != nil {
			return false, err
		}
	}

	if terminal {
		if !e.opts.Preview && task.sink != nil {
			if err := task.sink.Close(); err != nil {
				return false, scalpelerr.Wrap(scalpelerr.FileClose, "carve.close", err)
			}
			task.sink = nil
			e.openFiles--
		}
		if err := audit.Emit(facade, task); err != nil {
			return false, err
		}
		if cov.Updating() {
			for _, frag := range facade.Fragments(task.Start, task.Stop-task.Start+1) {
				if err := cov.IncrementRange(frag.Start, frag.Start+frag.Length-1); err != nil {
					return false, scalpelerr.Wrap(scalpelerr.FileWrite, "carve.coverage-update", err)
				}
			}
		}
		task.Filename = ""
		return true, nil
	}

	if !e.opts.Preview && e.openFiles > e.budget && task.sink != nil {
		if err := task.sink.Close(); err != nil {
			return false, scalpelerr.Wrap(scalpelerr.FileClose, "carve.close", err)
		}
		task.sink = nil
		e.openFiles--
	}

	return false, nil
}

func (e *Engine) writeChunk(task *CarveTask, offset, length int64) error {
	if length <= 0 {
		return nil
	}
	if task.sink == nil {
		if err := os.MkdirAll(filepath.Dir(task.Filename), 0755); err != nil {
			return scalpelerr.Wrap(scalpelerr.FileOpen, "carve.mkdir", err)
		}
		f, err := os.OpenFile(task.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return scalpelerr.Wrap(scalpelerr.FileOpen, "carve.open", err)
		}
		task.sink = f
		e.openFiles++
	}

	data := e.buf[offset : offset+length]
	n, err := task.sink.Write(data)
	if err != nil {
		return scalpelerr.Wrap(scalpelerr.FileWrite, "carve.write", err)
	}
	if int64(n) != length {
		return scalpelerr.New(scalpelerr.FileWrite, "carve.write", fmt.Sprintf("partial write: wrote %d of %d bytes", n, length))
	}
	return nil
}
