package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gorichard/scalpel/internal/catalog"
	"github.com/gorichard/scalpel/internal/offsets"
)

// OpCode tags how a queue entry participates in writing out a
// CarveTask's bytes for the block it is filed under.
type OpCode int

const (
	OpStart OpCode = iota
	OpStop
	OpStartStop
	OpContinue
)

// CarveTask is one scheduled extraction: a contiguous logical byte
// range to be written to Filename. It is shared by every queue entry
// that references it (one START/START_STOP, zero or more CONTINUE,
// one STOP/START_STOP); the executor retires it the moment it
// observes the terminal operation.
type CarveTask struct {
	ID         uint64
	RuleIndex  int
	Filename   string
	Start      int64
	Stop       int64
	Chopped    bool
	HeaderBlock int64
	FooterBlock int64

	sink   *os.File
	closed bool
}

// QueueEntry is one (task, operation) pairing filed under a single
// block's FIFO.
type QueueEntry struct {
	Task *CarveTask
	Op   OpCode
}

// WorkQueue is the block-indexed array of FIFOs the planner builds
// and the executor drains in ascending order. A map is used instead
// of a dense slice because images sized in the hundreds of gigabytes
// would otherwise force allocating one empty slice header per block
// that carries no work.
type WorkQueue map[int64][]QueueEntry

// Plan pairs headers to footers for every rule using offs, and
// returns the resulting work queue together with the full list of
// scheduled tasks in deterministic (rule-major, header-ascending)
// order. counter is the engine's global filename counter; Plan
// advances it by the number of tasks it schedules.
func (e *Engine) Plan(rules []*catalog.Rule, offs *offsets.Set, imageSize int64) (WorkQueue, []*CarveTask) {
	queue := WorkQueue{}
	var tasks []*CarveTask

	for _, r := range rules {
		db := offs.For(r.Index)
		cursor := 0
		footerLen := int64(len(r.Footer))

		for _, h := range db.Headers {
			if canceled() {
				return queue, tasks
			}
			if e.opts.BlockAlignedOnly && h%e.opts.AlignedBlockSize != 0 {
				continue
			}

			var stop int64
			var chopped, discard bool

			switch {
			case !r.HasFooter():
				stop, chopped = h+r.MaxLength-1, true

			case r.SearchMode == catalog.Forward:
				idx, f, ok := db.FirstFooterAfter(cursor, h)
				if ok {
					cursor = idx
				}
				if ok && (f+footerLen-1)-h+1 <= r.MaxLength {
					stop = f + footerLen - 1
				} else if e.opts.CarveWithMissingFooters {
					stop, chopped = h+r.MaxLength-1, true
				} else {
					discard = true
				}

			case r.SearchMode == catalog.ForwardNext:
				idx, f, ok := db.FirstFooterAfter(cursor, h)
				if ok {
					cursor = idx
				}
				if ok && (f-1)-h+1 <= r.MaxLength {
					stop = f - 1
				} else {
					stop, chopped = h+r.MaxLength-1, true
				}

			case r.SearchMode == catalog.Reverse:
				idx, f, ok := db.LastFooterWithin(cursor, h, r.MaxLength)
				if !ok {
					discard = true
				} else {
					cursor = idx
					stop = f + footerLen - 1
				}
			}

			if discard {
				continue
			}
			if stop > imageSize-1 {
				stop = imageSize - 1
			}
			if stop < h {
				continue
			}

			task := &CarveTask{
				ID:        e.counter,
				RuleIndex: r.Index,
				Filename:  e.outputPath(r, e.counter),
				Start:     h,
				Stop:      stop,
				Chopped:   chopped,
			}
			e.counter++
			task.HeaderBlock = (h - e.opts.InitialSkip) / Chunk
			task.FooterBlock = (stop - e.opts.InitialSkip) / Chunk
			tasks = append(tasks, task)
			enqueue(queue, task)
		}
	}

	return queue, tasks
}

func enqueue(q WorkQueue, t *CarveTask) {
	if t.HeaderBlock == t.FooterBlock {
		q[t.HeaderBlock] = append(q[t.HeaderBlock], QueueEntry{Task: t, Op: OpStartStop})
		return
	}
	q[t.HeaderBlock] = append(q[t.HeaderBlock], QueueEntry{Task: t, Op: OpStart})
	for b := t.HeaderBlock + 1; b < t.FooterBlock; b++ {
		q[b] = append(q[b], QueueEntry{Task: t, Op: OpContinue})
	}
	q[t.FooterBlock] = append(q[t.FooterBlock], QueueEntry{Task: t, Op: OpStop})
}

func (e *Engine) outputPath(r *catalog.Rule, counter uint64) string {
	name := fmt.Sprintf("%08d", counter)
	if !e.opts.NoSuffix && !r.NoExtension {
		name += "." + r.Suffix
	}
	if e.opts.Preview {
		return name
	}
	if !e.opts.OrganizeSubdirectories {
		return filepath.Join(e.opts.OutputDir, name)
	}

	dir := fmt.Sprintf("%s-%d-%d", r.Suffix, r.Index, r.OrganizeDirSeq)
	r.FilesToCarve++
	if int(r.FilesToCarve)%e.opts.organizeBucketSize() == 0 {
		r.OrganizeDirSeq++
	}
	return filepath.Join(e.opts.OutputDir, dir, name)
}
