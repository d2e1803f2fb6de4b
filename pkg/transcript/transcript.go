// Package transcript records program runs as JSON lines. Writers in
// different processes are serialized by a lock file next to the transcript.
package transcript

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/oarkflow/json"
)

type Record struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	Variables  map[string]int64 `json:"variables,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMs float64          `json:"duration_ms"`
	Time       time.Time        `json:"time"`
}

type Option func(*Appender)

// WithSync controls whether every append is fsynced. Enabled by default.
func WithSync(sync bool) Option {
	return func(a *Appender) {
		a.syncOnAppend = sync
	}
}

type Appender struct {
	path         string
	file         *os.File
	fileLock     *flock.Flock
	mu           sync.Mutex
	syncOnAppend bool
}

func Open(path string, opts ...Option) (*Appender, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	a := &Appender{
		path:         path,
		file:         f,
		fileLock:     flock.New(path + ".lock"),
		syncOnAppend: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Appender) Path() string {
	return a.path
}

func (a *Appender) Append(rec Record) error {
	return a.AppendBatch([]Record{rec})
}

func (a *Appender) AppendBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, rec := range records {
		if rec.Time.IsZero() {
			rec.Time = time.Now().UTC()
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return errors.New("transcript: appender is closed")
	}
	if err := a.fileLock.Lock(); err != nil {
		return err
	}
	defer func() {
		_ = a.fileLock.Unlock()
	}()
	if _, err := a.file.Write(buf.Bytes()); err != nil {
		return err
	}
	if a.syncOnAppend {
		return a.file.Sync()
	}
	return nil
}

func (a *Appender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// ReadAll loads every record of a transcript file in append order.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
