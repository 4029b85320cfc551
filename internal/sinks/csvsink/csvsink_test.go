package csvsink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plantdata/finsbridge/internal/sample"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestSink_LazyOpenLeavesNoArtifactUntilFirstRow(t *testing.T) {
	chdirTemp(t)
	s := New("plc-a", []string{"t1", "HEARTBEAT"})
	if s.Opened() {
		t.Fatal("sink should not open on construction")
	}
	if _, err := os.Stat(filepath.Join(rootDir, "plc-a")); err == nil {
		t.Fatal("directory should not exist before first row")
	}
}

func TestSink_WriteRowCreatesHeaderAndRow(t *testing.T) {
	chdirTemp(t)
	s := New("plc-a", []string{"t1", "t2", "HEARTBEAT"})

	buf := sample.New(3)
	buf.Set("t1", sample.Int64(10))
	buf.Set("t2", sample.Null)
	buf.Set("HEARTBEAT", sample.Bool(true))

	if err := s.WriteRow(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), buf); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if !s.Opened() {
		t.Fatal("sink should be opened after first row")
	}

	content, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines: %q", len(lines), lines)
	}
	if lines[0] != "timestamp,t1,t2,HEARTBEAT" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",10,,True") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestSink_RemoveDeletesFileCreatedThisAttempt(t *testing.T) {
	chdirTemp(t)
	s := New("plc-a", []string{"HEARTBEAT"})
	buf := sample.New(1)
	buf.Set("HEARTBEAT", sample.Bool(false))
	if err := s.WriteRow(time.Now(), buf); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	path := s.Path()
	if err := s.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file should no longer exist after Remove")
	}
}

func TestSink_CloseBeforeAnyRowIsNoop(t *testing.T) {
	chdirTemp(t)
	s := New("plc-a", []string{"HEARTBEAT"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close on never-opened sink: %v", err)
	}
}

func TestCSVEscape_QuotesCommasAndQuotes(t *testing.T) {
	chdirTemp(t)
	s := New("plc-a", []string{"t1", "t2", "t3", "HEARTBEAT"})

	buf := sample.New(4)
	buf.Set("t1", sample.String(`a,b`))
	buf.Set("t2", sample.String(`a"b`))
	buf.Set("t3", sample.String("plain"))
	buf.Set("HEARTBEAT", sample.Bool(true))

	if err := s.WriteRow(time.Now(), buf); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	content, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines: %q", len(lines), lines)
	}
	if !strings.Contains(lines[1], `,"a,b",`) {
		t.Errorf("field a,b not quoted: row = %q", lines[1])
	}
	if !strings.Contains(lines[1], `,"a""b",`) {
		t.Errorf("field a\"b not quoted with doubled quote: row = %q", lines[1])
	}
	if !strings.Contains(lines[1], `,plain,`) {
		t.Errorf("field plain should be written unquoted: row = %q", lines[1])
	}
}
