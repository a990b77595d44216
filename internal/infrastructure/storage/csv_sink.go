package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"Bluebird/internal/domain"
	"Bluebird/internal/ports"
)

const defaultFilePrefix = "bluebird"

// CSVSink appends records as comma-separated rows to a single file.
type CSVSink struct {
	path string
	file *os.File

	closeOnce sync.Once
	closeErr  error
}

var _ ports.Sink = (*CSVSink)(nil)

// OpenCSV creates or reopens the target file and writes the header when the file is empty.
func OpenCSV(target domain.FileTarget, clock clockwork.Clock) (*CSVSink, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	path := ResolveFilePath(target, clock.Now())
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create directory %s: %w", domain.ErrSinkUnavailable, dir, err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrSinkUnavailable, path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", domain.ErrSinkUnavailable, path, err)
	}

	sink := &CSVSink{path: path, file: file}
	if info.Size() == 0 {
		if err := sink.writeRow(domain.RecordFields); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("%w: write header: %w", domain.ErrSinkUnavailable, err)
		}
	}

	return sink, nil
}

// ResolveFilePath joins the optional directory with the file name,
// deriving bluebird_<unix>.csv from now when the name is empty.
func ResolveFilePath(target domain.FileTarget, now time.Time) string {
	name := target.Name
	if name == "" {
		name = fmt.Sprintf("%s_%d.csv", defaultFilePrefix, now.Unix())
	}
	if target.Directory != "" {
		return filepath.Join(target.Directory, name)
	}
	return name
}

// Path reports the file being written.
func (s *CSVSink) Path() string {
	return s.path
}

// Append writes one complete row.
func (s *CSVSink) Append(_ context.Context, record domain.Record) error {
	if s.file == nil {
		return fmt.Errorf("%w: sink is closed", domain.ErrWriteFailure)
	}
	if err := s.writeRow(formatRow(record)); err != nil {
		return fmt.Errorf("%w: append %s: %w", domain.ErrWriteFailure, record.ID, err)
	}
	return nil
}

// Close syncs and releases the file. Only the first call has an effect.
func (s *CSVSink) Close() error {
	s.closeOnce.Do(func() {
		if s.file == nil {
			return
		}
		syncErr := s.file.Sync()
		closeErr := s.file.Close()
		s.file = nil

		if syncErr != nil {
			s.closeErr = fmt.Errorf("%w: sync %s: %w", domain.ErrWriteFailure, s.path, syncErr)
		} else if closeErr != nil {
			s.closeErr = fmt.Errorf("%w: close %s: %w", domain.ErrWriteFailure, s.path, closeErr)
		}
	})
	return s.closeErr
}

// writeRow encodes the row in memory and hands it to the file in one write.
func (s *CSVSink) writeRow(fields []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	_, err := s.file.Write(buf.Bytes())
	return err
}

func formatRow(r domain.Record) []string {
	return []string{
		r.ID,
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Author,
		r.URL,
		r.Content,
		formatFloat(r.Weight),
		formatFloat(r.Positive),
		formatFloat(r.Neutral),
		formatFloat(r.Negative),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
