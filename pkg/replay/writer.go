package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/event"
	"github.com/opd-ai/go-lander/pkg/landing"
)

var dirCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// EventRecord is one line of the event log.
type EventRecord struct {
	Type       event.Type      `json:"type"`
	CapturedAt string          `json:"captured_at"`
	Payload    json.RawMessage `json:"payload"`
}

// recordedEvents are the session events kept in a bundle.
var recordedEvents = []event.Type{
	event.SessionStarted, event.ThrustTick, event.RotationStart,
	event.HazardSpawned, event.LandingSuccess, event.Crash,
}

// Writer records one round of a session. It implements engine.Recorder.
type Writer struct {
	mu      sync.Mutex
	dir     string
	now     func() time.Time
	session *engine.Session
	cancel  func()
	header  Header
	err     error
	closed  bool

	eventFile   *os.File
	eventStream *snappy.Writer
	inputFile   *os.File
	inputBuf    *bufio.Writer
	inputStream *zstd.Encoder
	enc         *msgpack.Encoder
}

// NewWriter creates a bundle under root for the current round of s and
// attaches to it. Call Close after the round ends or is abandoned.
func NewWriter(root string, s *engine.Session, clock func() time.Time) (*Writer, error) {
	if root == "" {
		return nil, fmt.Errorf("replay root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	name := dirCleaner.ReplaceAllString(s.ID(), "")
	if name == "" {
		name = "session"
	}
	created := clock().UTC()
	dir := filepath.Join(root, fmt.Sprintf("%s-%d-%s", name, s.Seed(), created.Format("20060102T150405.000Z")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create replay dir: %w", err)
	}

	manifest := Manifest{
		Version:    FormatVersion,
		CreatedAt:  created.Format(time.RFC3339Nano),
		HeaderPath: headerFile,
		InputsPath: inputsFile,
		EventsPath: eventsFile,
	}
	if err := writeJSON(filepath.Join(dir, manifestFile), manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	w := &Writer{
		dir:     dir,
		now:     clock,
		session: s,
		header: Header{
			Version:   FormatVersion,
			SessionID: s.ID(),
			Seed:      s.Seed(),
			Profile:   s.Profile(),
			Config:    s.Config(),
		},
	}
	if err := w.open(); err != nil {
		w.closeFiles()
		return nil, err
	}

	s.SetRecorder(w)
	w.cancel = s.Bus().SubscribeAll(w.handleEvent, recordedEvents...)
	return w, nil
}

func (w *Writer) open() error {
	var err error
	if w.inputFile, err = os.Create(filepath.Join(w.dir, inputsFile)); err != nil {
		return fmt.Errorf("failed to create inputs: %w", err)
	}
	w.inputBuf = bufio.NewWriter(w.inputFile)
	if w.inputStream, err = zstd.NewWriter(w.inputBuf, zstd.WithEncoderLevel(zstd.SpeedFastest)); err != nil {
		return fmt.Errorf("failed to create zstd stream: %w", err)
	}
	w.enc = msgpack.NewEncoder(w.inputStream)

	if w.eventFile, err = os.Create(filepath.Join(w.dir, eventsFile)); err != nil {
		return fmt.Errorf("failed to create event log: %w", err)
	}
	w.eventStream = snappy.NewBufferedWriter(w.eventFile)
	return nil
}

// Dir returns the bundle directory.
func (w *Writer) Dir() string {
	return w.dir
}

// RecordTick appends a tick record. It runs under the session lock and
// must not call back into the session.
func (w *Writer) RecordTick(tick uint64, dt float64, in entity.ControlInput) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.err != nil {
		return
	}
	if err := w.enc.Encode(TickRecord{Tick: tick, Delta: dt, Input: in}); err != nil {
		w.err = fmt.Errorf("failed to record tick %d: %w", tick, err)
		return
	}
	w.header.Ticks++
}

func (w *Writer) handleEvent(e event.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		w.fail(fmt.Errorf("failed to encode %s event: %w", e.GetType(), err))
		return
	}

	var outcome *landing.Outcome
	if t := e.GetType(); t == event.LandingSuccess || t == event.Crash {
		// Handlers run outside the session lock.
		if o, ok := w.session.Outcome(); ok {
			outcome = &o
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.err != nil {
		return
	}
	if outcome != nil {
		w.header.Outcome = outcome
	}
	line, err := json.Marshal(EventRecord{
		Type:       e.GetType(),
		CapturedAt: w.now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	})
	if err == nil {
		_, err = w.eventStream.Write(append(line, '\n'))
	}
	if err != nil {
		w.err = fmt.Errorf("failed to append event: %w", err)
	}
}

func (w *Writer) fail(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

// Close detaches from the session, writes the header and closes every
// stream. It returns the first error seen while recording.
func (w *Writer) Close() error {
	// Detach before taking w.mu: RecordTick runs under the session lock.
	w.session.SetRecorder(nil)
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.err
	}
	w.closed = true

	firstErr := w.err
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(writeJSON(filepath.Join(w.dir, headerFile), w.header))
	keep(w.closeFiles())
	w.err = firstErr
	return firstErr
}

func (w *Writer) closeFiles() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.inputStream != nil {
		keep(w.inputStream.Close())
	}
	if w.inputBuf != nil {
		keep(w.inputBuf.Flush())
	}
	if w.inputFile != nil {
		keep(w.inputFile.Close())
	}
	if w.eventStream != nil {
		keep(w.eventStream.Close())
	}
	if w.eventFile != nil {
		keep(w.eventFile.Close())
	}
	return firstErr
}
