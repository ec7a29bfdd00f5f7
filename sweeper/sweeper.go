// Package sweeper runs the capture, persistence and cleanup loops that
// turn observed expiry attributes into eventual file deletions.
package sweeper

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/javierhonduco/sweeper/database"
	"github.com/javierhonduco/sweeper/event"
	"github.com/javierhonduco/sweeper/platform"
)

// maxConsecutiveFailures bounds how long the capture and persistence
// loops keep retrying before the pipeline gives up. Isolated failures
// are logged and skipped; a failing streak means the store or the
// buffer is gone and continuing would silently lose schedules.
const maxConsecutiveFailures = 5

// Options tunes the pipeline's loop intervals and queue bound.
type Options struct {
	// PollTimeout bounds each capture buffer read so the cancellation
	// flag is rechecked at least this often.
	PollTimeout time.Duration
	// FlushInterval is the persistence loop's wait when the queue is empty.
	FlushInterval time.Duration
	// ScanInterval is the pause between cleanup scans.
	ScanInterval time.Duration
	// QueueSize bounds the capture->persistence queue. The capture
	// callback never blocks: overflow drops the request and counts it.
	QueueSize int
}

func (o Options) withDefaults() Options {
	if o.PollTimeout <= 0 {
		o.PollTimeout = 200 * time.Millisecond
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 100 * time.Millisecond
	}
	if o.ScanInterval <= 0 {
		o.ScanInterval = 100 * time.Millisecond
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	return o
}

// Sweeper ties the three loops together around a shared cancellation
// flag and a join barrier.
type Sweeper struct {
	db      *database.DB
	reader  platform.PerfReader
	decoder *event.Decoder
	log     *slog.Logger
	opts    Options

	runnable atomic.Bool
	requests chan event.ScheduleRequest
	wg       sync.WaitGroup

	mu       sync.Mutex
	fatalErr error

	// Injection points for tests.
	now        func() time.Time
	removeFile func(string) error
}

// New wires a Sweeper. It does not start any loop; call Run.
func New(db *database.DB, reader platform.PerfReader, decoder *event.Decoder, log *slog.Logger, opts Options) *Sweeper {
	opts = opts.withDefaults()
	s := &Sweeper{
		db:         db,
		reader:     reader,
		decoder:    decoder,
		log:        log,
		opts:       opts,
		requests:   make(chan event.ScheduleRequest, opts.QueueSize),
		now:        time.Now,
		removeFile: os.Remove,
	}
	s.runnable.Store(true)
	return s
}

// Stop requests shutdown. Each loop notices within its polling bound.
// Safe to call repeatedly and from any goroutine.
func (s *Sweeper) Stop() {
	s.runnable.Store(false)
}

// Run starts the persistence and cleanup loops, drives the capture
// loop on the calling goroutine, and returns once all three have
// exited. A non-nil return means the pipeline died rather than being
// stopped, and the process should exit non-zero.
func (s *Sweeper) Run() error {
	s.wg.Add(2)
	go s.persistLoop()
	go s.cleanupLoop()

	s.captureLoop()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// fail records the first fatal error and trips the cancellation flag.
func (s *Sweeper) fail(err error) {
	s.mu.Lock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
	s.mu.Unlock()
	s.runnable.Store(false)
}

// captureLoop drains the kernel's perf buffer, decoding each record
// inline and enqueueing valid requests. One malformed record never
// aborts the loop; a streak of read errors does.
func (s *Sweeper) captureLoop() {
	failures := 0
	for s.runnable.Load() {
		s.reader.SetDeadline(time.Now().Add(s.opts.PollTimeout))
		record, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, platform.ErrClosed) {
				s.fail(fmt.Errorf("capture buffer closed unexpectedly: %w", err))
				return
			}
			failures++
			s.log.Error("reading capture buffer", "error", err, "consecutive", failures)
			if failures >= maxConsecutiveFailures {
				s.fail(fmt.Errorf("capture buffer failed %d reads in a row: %w", failures, err))
				return
			}
			continue
		}
		failures = 0

		if record.LostSamples > 0 {
			lostSamplesTotal.Add(float64(record.LostSamples))
			s.log.Warn("kernel dropped capture records, consumer too slow", "lost", record.LostSamples)
			continue
		}

		s.handleRecord(record.RawSample)
	}
}

// handleRecord decodes one raw record and hands it to the persistence
// loop. The send must never block: this runs on the thread draining
// the kernel buffer.
func (s *Sweeper) handleRecord(raw []byte) {
	eventsObservedTotal.Inc()

	req, err := s.decoder.Decode(raw)
	if err != nil {
		eventsRejectedTotal.Inc()
		s.log.Info("ignoring xattr event", "reason", err)
		return
	}

	select {
	case s.requests <- req:
		eventsScheduledTotal.Inc()
		s.log.Info("scheduling deletion", "path", req.Path, "expire_at", req.ExpireAt)
	default:
		queueDropsTotal.Inc()
		s.log.Warn("request queue full, dropping event", "path", req.Path)
	}
}

// persistLoop drains the request queue into the schedule store.
func (s *Sweeper) persistLoop() {
	defer s.wg.Done()

	failures := 0
	for s.runnable.Load() {
		select {
		case req := <-s.requests:
			if _, err := s.db.Insert(req.Path, req.Name, req.ExpireAt); err != nil {
				failures++
				s.log.Error("persisting schedule", "path", req.Path, "error", err, "consecutive", failures)
				if failures >= maxConsecutiveFailures {
					s.fail(fmt.Errorf("schedule store rejected %d consecutive writes: %w", failures, err))
					return
				}
				continue
			}
			failures = 0
		case <-time.After(s.opts.FlushInterval):
			// Idle; recheck the cancellation flag.
		}
	}
}

// cleanupLoop periodically expires due schedules.
func (s *Sweeper) cleanupLoop() {
	defer s.wg.Done()

	for s.runnable.Load() {
		s.sweep()
		time.Sleep(s.opts.ScanInterval)
	}
}

// sweep deletes every due file and removes its record only after the
// deletion succeeded or the file was already gone. A record whose file
// cannot be deleted stays put and is retried on the next scan; a crash
// between the two steps leaves the record, so the deletion is retried
// rather than orphaned.
func (s *Sweeper) sweep() {
	due, err := s.db.ListDue(s.now().Unix())
	if err != nil {
		s.log.Error("listing due schedules", "error", err)
		return
	}

	for _, rec := range due {
		err := s.removeFile(rec.Path)
		switch {
		case err == nil:
			deletionsTotal.WithLabelValues("deleted").Inc()
			s.log.Info("deleted expired file", "path", rec.Path, "expire_at", rec.ExpireAt)
		case errors.Is(err, fs.ErrNotExist):
			deletionsTotal.WithLabelValues("already_gone").Inc()
			s.log.Info("expired file already gone", "path", rec.Path)
		default:
			deletionsTotal.WithLabelValues("failed").Inc()
			s.log.Warn("deleting expired file, will retry next scan", "path", rec.Path, "error", err)
			continue
		}

		if err := s.db.Remove(rec.ID); err != nil {
			// The file is gone but the record survived; the next scan
			// treats the missing file as satisfied and retries the remove.
			s.log.Error("removing schedule record", "id", rec.ID, "error", err)
		}
	}
}
