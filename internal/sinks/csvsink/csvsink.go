// Package csvsink implements the durable-fallback CSV writer: a lazily
// opened, append-only file with a deterministic column order and a
// flush-per-row discipline so an unexpected termination loses at most the
// in-flight row.
package csvsink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/plantdata/finsbridge/internal/sample"
)

const rootDir = "PLC_Data"

// Sink writes one CSV row per cycle under PLC_Data/<plc_name>/. The file
// is not created until the first call to WriteRow, so a loop that never
// falls back to CSV leaves no artifact on disk.
type Sink struct {
	plcName string
	columns []string // declared tag order, HEARTBEAT last

	path   string
	file   *os.File
	w      *csv.Writer
	opened bool
}

// New prepares a Sink for plcName with the given declared column order.
// columns must already end in HEARTBEAT; New does not open anything.
func New(plcName string, columns []string) *Sink {
	return &Sink{plcName: plcName, columns: columns}
}

// WriteRow appends one row, opening the file and writing the header first
// if this is the first row of the loop's lifetime.
func (s *Sink) WriteRow(at time.Time, row *sample.Buffer) error {
	if !s.opened {
		if err := s.open(); err != nil {
			return err
		}
	}

	fields := make([]string, 0, len(s.columns)+1)
	fields = append(fields, at.Format("2006-01-02T15:04:05.000"))
	for _, col := range s.columns {
		v, ok := row.Get(col)
		if !ok {
			fields = append(fields, "")
			continue
		}
		fields = append(fields, v.CSVField())
	}

	if err := s.w.Write(fields); err != nil {
		return fmt.Errorf("csvsink: write row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("csvsink: flush row: %w", err)
	}
	return s.file.Sync()
}

func (s *Sink) open() error {
	dir := filepath.Join(rootDir, s.plcName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csvsink: create directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s_%s.csv", s.plcName, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("csvsink: open %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	header := append([]string{"timestamp"}, s.columns...)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("csvsink: write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("csvsink: flush header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("csvsink: sync header: %w", err)
	}

	s.path = path
	s.file = f
	s.w = w
	s.opened = true
	return nil
}

// Close closes the file if it was ever opened. Safe to call on a Sink that
// never received a row.
func (s *Sink) Close() error {
	if !s.opened {
		return nil
	}
	return s.file.Close()
}

// Opened reports whether the file has been created yet.
func (s *Sink) Opened() bool { return s.opened }

// Path returns the file path, valid only once Opened reports true.
func (s *Sink) Path() string { return s.path }

// Remove closes (if needed) and deletes the file, used when a loop is
// unwound by a FINS-unreachable failure and must leave no artifact behind.
func (s *Sink) Remove() error {
	if !s.opened {
		return nil
	}
	_ = s.file.Close()
	s.opened = false
	return os.Remove(s.path)
}
