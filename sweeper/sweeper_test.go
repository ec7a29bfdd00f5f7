package sweeper

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javierhonduco/sweeper/database"
	"github.com/javierhonduco/sweeper/event"
	"github.com/javierhonduco/sweeper/logging"
	"github.com/javierhonduco/sweeper/platform"
)

// fakeReader feeds canned records to the capture loop and honors the
// deadline contract the real perf reader provides.
type fakeReader struct {
	mu       sync.Mutex
	records  []platform.Record
	deadline time.Time
	closed   bool
}

func (f *fakeReader) push(rec platform.Record) {
	f.mu.Lock()
	f.records = append(f.records, rec)
	f.mu.Unlock()
}

func (f *fakeReader) SetDeadline(t time.Time) {
	f.mu.Lock()
	f.deadline = t
	f.mu.Unlock()
}

func (f *fakeReader) Read() (platform.Record, error) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return platform.Record{}, platform.ErrClosed
		}
		if len(f.records) > 0 {
			rec := f.records[0]
			f.records = f.records[1:]
			f.mu.Unlock()
			return rec, nil
		}
		deadline := f.deadline
		f.mu.Unlock()

		if !deadline.IsZero() && time.Now().After(deadline) {
			return platform.Record{}, os.ErrDeadlineExceeded
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// errReader fails every read with the same error.
type errReader struct{ err error }

func (e *errReader) Read() (platform.Record, error) { return platform.Record{}, e.err }
func (e *errReader) SetDeadline(time.Time)          {}
func (e *errReader) Close() error                   { return nil }

// encodeWire builds a raw kernel record the way the capture program
// fills each slot: truncated to the slot width minus the terminator.
func encodeWire(path, name, value string) []byte {
	raw := make([]byte, event.WireEventSize)
	fields := []struct {
		offset int
		value  string
	}{
		{0, path},
		{event.FieldWidth, name},
		{2 * event.FieldWidth, value},
	}
	for _, f := range fields {
		n := len(f.value)
		if n > event.FieldWidth-1 {
			n = event.FieldWidth - 1
		}
		copy(raw[f.offset:f.offset+n], f.value[:n])
	}
	return raw
}

func newTestSweeper(t *testing.T, reader platform.PerfReader) (*Sweeper, *database.DB) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "schedules.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logging.NewWithWriter(io.Discard, slog.LevelError, "text")
	s := New(db, reader, event.NewDecoder(""), log, Options{
		PollTimeout:   20 * time.Millisecond,
		FlushInterval: 10 * time.Millisecond,
		ScanInterval:  10 * time.Millisecond,
		QueueSize:     8,
	})
	return s, db
}

func TestEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doomed")
	require.NoError(t, os.WriteFile(path, []byte("bye"), 0o644))

	reader := &fakeReader{}
	// 1000000000 is long past, so the record is due immediately.
	reader.push(platform.Record{RawSample: encodeWire(path, event.DefaultAttributeName, "1000000000")})

	s, db := newTestSweeper(t, reader)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	require.Eventually(t, func() bool {
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			return false
		}
		due, err := db.ListDue(time.Now().Unix())
		return err == nil && len(due) == 0
	}, 5*time.Second, 10*time.Millisecond, "file should be deleted and record removed")

	s.Stop()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRejectedEventNeverReachesStore(t *testing.T) {
	reader := &fakeReader{}
	reader.push(platform.Record{RawSample: encodeWire("relative/path", event.DefaultAttributeName, "1")})
	reader.push(platform.Record{RawSample: encodeWire("/tmp/keep", "user.comment", "1")})
	reader.push(platform.Record{RawSample: encodeWire("/tmp/bad-value", event.DefaultAttributeName, "soon")})

	s, db := newTestSweeper(t, reader)
	// Leave deletion alone so nothing touches the filesystem.
	s.removeFile = func(string) error { return fs.ErrNotExist }

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	// Give the pipeline a few poll cycles to (not) persist anything.
	time.Sleep(200 * time.Millisecond)
	s.Stop()
	require.NoError(t, <-errCh)

	pending, err := db.ListPending(10)
	require.NoError(t, err)
	assert.Empty(t, pending, "invalid events must be dropped before the store")
}

func TestLostSamplesDoNotAbortLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doomed")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	reader := &fakeReader{}
	reader.push(platform.Record{LostSamples: 7})
	reader.push(platform.Record{RawSample: encodeWire(path, event.DefaultAttributeName, "1000000000")})

	s, _ := newTestSweeper(t, reader)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return errors.Is(err, fs.ErrNotExist)
	}, 5*time.Second, 10*time.Millisecond)

	s.Stop()
	require.NoError(t, <-errCh)
}

func TestSweepDeleteThenRemove(t *testing.T) {
	t.Run("missing file counts as satisfied", func(t *testing.T) {
		s, db := newTestSweeper(t, &fakeReader{})

		_, err := db.Insert("/nonexistent/by/now", event.DefaultAttributeName, 100)
		require.NoError(t, err)

		s.now = func() time.Time { return time.Unix(101, 0) }
		s.sweep()

		due, err := db.ListDue(101)
		require.NoError(t, err)
		assert.Empty(t, due, "record for an already-missing file must be removed")
	})

	t.Run("failed deletion keeps the record", func(t *testing.T) {
		s, db := newTestSweeper(t, &fakeReader{})

		id, err := db.Insert("/protected/file", event.DefaultAttributeName, 100)
		require.NoError(t, err)

		s.now = func() time.Time { return time.Unix(101, 0) }
		s.removeFile = func(string) error { return fs.ErrPermission }
		s.sweep()

		due, err := db.ListDue(101)
		require.NoError(t, err)
		require.Len(t, due, 1, "record must survive a failed deletion")
		assert.Equal(t, id, due[0].ID)

		// Next scan retries; once deletion works the record goes too.
		s.removeFile = func(string) error { return nil }
		s.sweep()

		due, err = db.ListDue(101)
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}

func TestSweepLeavesFutureRecords(t *testing.T) {
	s, db := newTestSweeper(t, &fakeReader{})

	_, err := db.Insert("/tmp/later", event.DefaultAttributeName, 1000)
	require.NoError(t, err)

	deleted := false
	s.removeFile = func(string) error { deleted = true; return nil }
	s.now = func() time.Time { return time.Unix(999, 0) }
	s.sweep()

	assert.False(t, deleted, "not-yet-due file must not be deleted")
	due, err := db.ListDue(1000)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestHandleRecordQueueOverflowDropsWithoutBlocking(t *testing.T) {
	s, _ := newTestSweeper(t, &fakeReader{})
	s.opts.QueueSize = 1
	s.requests = make(chan event.ScheduleRequest, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleRecord(encodeWire("/tmp/a", event.DefaultAttributeName, "1"))
		s.handleRecord(encodeWire("/tmp/b", event.DefaultAttributeName, "2"))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleRecord blocked on a full queue")
	}
	assert.Len(t, s.requests, 1, "overflow must be dropped, not queued")
}

func TestRepeatedReadFailuresAreFatal(t *testing.T) {
	readErr := errors.New("buffer torn down")
	s, _ := newTestSweeper(t, &errReader{err: readErr})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, readErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not escalate repeated read failures")
	}
}

func TestClosedReaderIsFatal(t *testing.T) {
	reader := &fakeReader{}
	require.NoError(t, reader.Close())

	s, _ := newTestSweeper(t, reader)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, platform.ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return on a closed reader")
	}
}

func TestStopIsPromptAndIdempotent(t *testing.T) {
	s, _ := newTestSweeper(t, &fakeReader{})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	// Let the loops settle into their polling cadence first.
	time.Sleep(50 * time.Millisecond)

	s.Stop()
	s.Stop()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loops did not exit within their polling bound")
	}
}
