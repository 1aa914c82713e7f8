package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const maxLineBytes = 10 * 1024 * 1024

// dayMark is the byte offset of the first event recorded on a UTC day.
type dayMark struct {
	day time.Time
	off int64
}

// FileRecorder keeps events as JSON lines in a single append-only file.
// Events are assumed to arrive in chronological order; the recorder indexes
// where each day starts so reads for recent days skip older history.
type FileRecorder struct {
	mu   sync.Mutex
	path string
	f    *os.File
	size int64
	days []dayMark
}

func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open interactions log: %w", err)
	}
	r := &FileRecorder{path: path, f: f}
	if err := r.index(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func (r *FileRecorder) Path() string { return r.path }

// index scans the existing log once to build the day marks.
func (r *FileRecorder) index() error {
	rf, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open read: %w", err)
	}
	defer rf.Close()

	var off int64
	br := bufio.NewReaderSize(rf, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			var ev Event
			if json.Unmarshal(line, &ev) == nil {
				r.mark(ev.Timestamp, off)
			}
			off += int64(len(line))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("index interactions: %w", err)
		}
	}
	r.size = off
	return nil
}

func (r *FileRecorder) mark(ts time.Time, off int64) {
	if ts.IsZero() {
		return
	}
	day := ts.UTC().Truncate(24 * time.Hour)
	if n := len(r.days); n > 0 && !day.After(r.days[n-1].day) {
		return
	}
	r.days = append(r.days, dayMark{day: day, off: off})
}

func (r *FileRecorder) AppendInteraction(event Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode interaction: %w", err)
	}
	b = append(b, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return errors.New("interactions log is closed")
	}
	n, err := r.f.Write(b)
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	r.mark(event.Timestamp, r.size)
	r.size += int64(n)
	return nil
}

// LoadInteractions returns the whole log. Blank and corrupt lines are skipped.
func (r *FileRecorder) LoadInteractions() ([]Event, error) {
	return r.LoadSince(time.Time{})
}

// LoadSince returns the events recorded at or after since. Reading starts
// at the first indexed day that can contain such events.
func (r *FileRecorder) LoadSince(since time.Time) ([]Event, error) {
	r.mu.Lock()
	start, end := r.offsetFor(since), r.size
	r.mu.Unlock()

	rf, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer rf.Close()
	if _, err := rf.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}

	s := bufio.NewScanner(io.LimitReader(rf, end-start))
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var events []Event
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if ev.Timestamp.Before(since) {
			continue
		}
		events = append(events, ev)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return events, nil
}

// offsetFor returns the offset of the last day mark not after since's day.
func (r *FileRecorder) offsetFor(since time.Time) int64 {
	if since.IsZero() || len(r.days) == 0 {
		return 0
	}
	day := since.UTC().Truncate(24 * time.Hour)
	i := sort.Search(len(r.days), func(i int) bool { return r.days[i].day.After(day) })
	if i == 0 {
		return 0
	}
	return r.days[i-1].off
}

// Close releases the append handle. Later appends fail.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
