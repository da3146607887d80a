package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Reader gives access to a recorded bundle.
type Reader struct {
	dir      string
	manifest Manifest
	header   Header
}

// Open reads the manifest and header of the bundle in dir.
func Open(dir string) (*Reader, error) {
	r := &Reader{dir: dir}
	if err := readJSON(filepath.Join(dir, manifestFile), &r.manifest); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := checkVersion(r.manifest.Version); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, r.manifest.HeaderPath), &r.header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := checkVersion(r.header.Version); err != nil {
		return nil, err
	}
	if r.header.Config == nil {
		return nil, fmt.Errorf("replay header has no configuration")
	}
	return r, nil
}

// Header returns the bundle header.
func (r *Reader) Header() Header { return r.header }

// Manifest returns the bundle manifest.
func (r *Reader) Manifest() Manifest { return r.manifest }

// Ticks decodes every tick record in order.
func (r *Reader) Ticks() ([]TickRecord, error) {
	f, err := os.Open(filepath.Join(r.dir, r.manifest.InputsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open inputs: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)
	var ticks []TickRecord
	for {
		var rec TickRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return ticks, nil
			}
			return ticks, fmt.Errorf("failed to decode tick %d: %w", len(ticks), err)
		}
		ticks = append(ticks, rec)
	}
}

// Events decodes the event log.
func (r *Reader) Events() ([]EventRecord, error) {
	f, err := os.Open(filepath.Join(r.dir, r.manifest.EventsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []EventRecord
	scanner := bufio.NewScanner(snappy.NewReader(f))
	for scanner.Scan() {
		var rec EventRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return events, fmt.Errorf("failed to decode event %d: %w", len(events), err)
		}
		events = append(events, rec)
	}
	return events, scanner.Err()
}
