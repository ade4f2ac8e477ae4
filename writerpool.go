package blockfs

import (
	"context"
	"sync"

	"github.com/chunglabmit/blockfs/codec"
	"github.com/chunglabmit/blockfs/errors"
	"github.com/chunglabmit/blockfs/log"
)

// commit is the message a worker sends, via the pool's single commit
// channel, to report a successfully appended block.
type commit struct {
	coord Coord
	entry Entry
}

// submission is one block queued for a worker.
type submission struct {
	coord Coord
	raw   []byte
}

// WriterPool fans a volume's incoming blocks out across W workers,
// each exclusively owning one BlockFile. A submission is routed to
// its worker by a stable hash of its coordinate, so that repeated
// submissions for the same coordinate always reach the same worker
// (enabling a cheap, contention-free duplicate check) and so that a
// BlockFile's appends are never concurrent with one another.
type WriterPool struct {
	volume  Volume
	W       int
	workers []*poolWorker
	commits chan commit
	errLog  *ErrorLog

	wg        sync.WaitGroup // worker goroutines
	commitsWg sync.WaitGroup // index-update agent
}

type poolWorker struct {
	id     uint16
	file   *BlockFile
	queue  chan submission
	seen   map[Coord]struct{}
	seenMu sync.Mutex
}

// NewWriterPool starts a WriterPool of len(files) workers over the
// already-opened BlockFiles, immediately spinning up one goroutine per
// worker plus the index-update agent that drains the commit channel
// into idx. Each worker's submission queue has capacity queueCapacity
// (the default is 4*W).
func NewWriterPool(ctx context.Context, volume Volume, files []*BlockFile, idx *Index, queueCapacity int) *WriterPool {
	p := &WriterPool{
		volume:  volume,
		W:       len(files),
		commits: make(chan commit, queueCapacity),
		errLog:  NewErrorLog(),
	}
	for _, f := range files {
		w := &poolWorker{
			id:    f.ID(),
			file:  f,
			queue: make(chan submission, queueCapacity),
			seen:  make(map[Coord]struct{}),
		}
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go p.runWorker(ctx, w)
	}
	p.commitsWg.Add(1)
	go p.runIndexAgent(idx)
	return p
}

// Submit routes raw's encoding for coord to its worker, blocking if
// that worker's queue is full. Submit must not be called after Close.
func (p *WriterPool) Submit(ctx context.Context, coord Coord, raw []byte) error {
	nx, ny, nz := p.volume.GridExtent()
	if !coord.inBounds(nx, ny, nz) {
		return errors.E(errors.Invalid, "coordinate out of range")
	}
	w := p.workers[coord.worker(p.W)]
	select {
	case w.queue <- submission{coord: coord, raw: raw}:
		return nil
	case <-ctx.Done():
		return errors.E(errors.Canceled, ctx.Err())
	}
}

// Close stops accepting submissions, waits for every worker goroutine
// to drain its queue and exit, then stops the index-update agent.
// Close does not persist the index; the caller (Directory) does that
// once Close returns.
func (p *WriterPool) Close() {
	for _, w := range p.workers {
		close(w.queue)
	}
	p.wg.Wait()
	close(p.commits)
	p.commitsWg.Wait()
}

// ErrorLog returns the pool's accumulated duplicate-write and
// write-failure records.
func (p *WriterPool) ErrorLog() *ErrorLog { return p.errLog }

func (p *WriterPool) runWorker(ctx context.Context, w *poolWorker) {
	defer p.wg.Done()
	for sub := range w.queue {
		w.seenMu.Lock()
		_, dup := w.seen[sub.coord]
		if !dup {
			w.seen[sub.coord] = struct{}{}
		}
		w.seenMu.Unlock()
		if dup {
			p.errLog.addDuplicate(sub.coord)
			log.Error.Printf("duplicate write for coord %+v", sub.coord)
			continue
		}
		entry, err := p.encodeAndAppend(ctx, w, sub)
		if err != nil {
			p.errLog.addFailure(sub.coord, err)
			log.Error.Printf("write failure for coord %+v: %v", sub.coord, err)
			continue
		}
		p.commits <- commit{coord: sub.coord, entry: entry}
	}
}

func (p *WriterPool) encodeAndAppend(ctx context.Context, w *poolWorker, sub submission) (Entry, error) {
	bx, by, bz := p.volume.BlockShape()
	shape := codec.Shape{BX: bx, BY: by, BZ: bz, ElemSize: p.volume.Dtype.Size()}
	c, err := codec.Resolve(p.volume.Codec, p.volume.CodecParams, shape)
	if err != nil {
		return Entry{}, err
	}
	encoded, err := c.Encode(sub.raw)
	if err != nil {
		return Entry{}, errors.E(errors.Unavailable, "encode", err)
	}
	return w.file.Append(ctx, encoded)
}

func (p *WriterPool) runIndexAgent(idx *Index) {
	defer p.commitsWg.Done()
	for c := range p.commits {
		if err := idx.Put(c.coord, c.entry); err != nil {
			log.Error.Printf("index commit for coord %+v: %v", c.coord, err)
		}
	}
}
