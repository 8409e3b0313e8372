package snapshot

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by SaveBlocking after Close.
var ErrClosed = errors.New("snapshot writer closed")

// SaveInfo describes one completed write.
type SaveInfo struct {
	Path     string
	Archive  string
	Users    int
	Bytes    int
	At       time.Time
	Duration time.Duration
	Doc      LedgerV1
}

type WriterOptions struct {
	// ArchiveDir receives a compressed copy of every save. Empty disables archiving.
	ArchiveDir  string
	ArchiveKeep int

	Logger *log.Logger
	// OnSaved runs after every successful write, on the writing goroutine.
	OnSaved func(SaveInfo)
	Now     func() time.Time
}

// Writer persists ledger documents off the caller's goroutine. Disk writes
// are serialized; when async saves back up only the newest is kept.
//
// Every document gets a generation when handed in. A document older than one
// already on disk is skipped, so the file never moves backwards.
type Writer struct {
	path string
	opts WriterOptions
	log  *log.Logger

	gen atomic.Uint64

	mu        sync.Mutex // one write at a time
	attempted uint64
	written   uint64
	wake      chan struct{}

	pending chan pendingDoc
	stop    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	closed    chan struct{}

	statsMu  sync.Mutex
	last     SaveInfo
	lastErr  error
	saves    uint64
	failures uint64
	dropped  uint64
}

func NewWriter(path string, opts WriterOptions) *Writer {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &Writer{
		path:    path,
		opts:    opts,
		log:     opts.Logger,
		wake:    make(chan struct{}),
		pending: make(chan pendingDoc, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) Path() string { return w.path }

type pendingDoc struct {
	gen uint64
	doc LedgerV1
}

// Save queues doc for an async write and returns its generation, or 0 after
// Close. A queued but not yet written document is replaced.
func (w *Writer) Save(doc LedgerV1) uint64 {
	select {
	case <-w.closed:
		return 0
	default:
	}
	p := pendingDoc{gen: w.gen.Add(1), doc: doc}
	for {
		select {
		case w.pending <- p:
			return p.gen
		default:
		}
		select {
		case <-w.pending:
			w.statsMu.Lock()
			w.dropped++
			w.statsMu.Unlock()
		default:
		}
	}
}

// SaveBlocking writes doc on the calling goroutine and returns once it is on disk.
func (w *Writer) SaveBlocking(doc LedgerV1) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	return w.write(w.gen.Add(1), doc)
}

// Wait blocks until generation gen, or a newer one, has been written.
func (w *Writer) Wait(ctx context.Context, gen uint64) error {
	if gen == 0 {
		return ErrClosed
	}
	for {
		w.mu.Lock()
		if w.attempted >= gen {
			var err error
			if w.written < gen {
				w.statsMu.Lock()
				err = w.lastErr
				w.statsMu.Unlock()
				if err == nil {
					err = errors.New("snapshot write failed")
				}
			}
			w.mu.Unlock()
			return err
		}
		wake := w.wake
		w.mu.Unlock()

		select {
		case <-wake:
		case <-w.done:
			w.mu.Lock()
			ok := w.written >= gen
			w.mu.Unlock()
			if ok {
				return nil
			}
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close flushes any queued document and stops the writer.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		close(w.closed)
		close(w.stop)
	})
	<-w.done
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.lastErr
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case p := <-w.pending:
			_ = w.write(p.gen, p.doc)
		case <-w.stop:
			select {
			case p := <-w.pending:
				_ = w.write(p.gen, p.doc)
			default:
			}
			return
		}
	}
}

func (w *Writer) write(gen uint64, doc LedgerV1) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen <= w.written {
		w.statsMu.Lock()
		w.dropped++
		w.statsMu.Unlock()
		return nil
	}
	defer w.signal(gen)

	start := w.opts.Now()
	n, err := WriteLedger(w.path, doc)
	if err != nil {
		w.log.Printf("save %s: %v", w.path, err)
		w.record(SaveInfo{}, err)
		return err
	}
	w.written = gen
	info := SaveInfo{
		Path:  w.path,
		Users: doc.Users(),
		Bytes: n,
		At:    start,
		Doc:   doc,
	}
	if w.opts.ArchiveDir != "" {
		p, err := WriteArchive(w.opts.ArchiveDir, doc, start)
		if err != nil {
			w.log.Printf("archive %s: %v", w.opts.ArchiveDir, err)
		} else {
			info.Archive = p
			if _, err := PruneArchives(w.opts.ArchiveDir, w.opts.ArchiveKeep); err != nil {
				w.log.Printf("prune archives: %v", err)
			}
		}
	}
	info.Duration = w.opts.Now().Sub(start)
	w.record(info, nil)
	if w.opts.OnSaved != nil {
		w.opts.OnSaved(info)
	}
	return nil
}

// signal wakes Wait callers. Called with mu held.
func (w *Writer) signal(gen uint64) {
	if gen > w.attempted {
		w.attempted = gen
	}
	close(w.wake)
	w.wake = make(chan struct{})
}

func (w *Writer) record(info SaveInfo, err error) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.lastErr = err
	if err != nil {
		w.failures++
		return
	}
	w.saves++
	w.last = info
}

// Stats reports counters for /metrics.
type Stats struct {
	Saves    uint64
	Failures uint64
	Dropped  uint64
	LastAt   time.Time
	LastSize int
}

func (w *Writer) Stats() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return Stats{
		Saves:    w.saves,
		Failures: w.failures,
		Dropped:  w.dropped,
		LastAt:   w.last.At,
		LastSize: w.last.Bytes,
	}
}
