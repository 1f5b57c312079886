package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"callout_framework/internal/faults"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestReadFileSemicolon(t *testing.T) {
	path := writeCSV(t, "data.csv", "A;B;C\n1;2;3\nx; y ;z\n")
	tab, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if tab.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tab.Len())
	}
	if got := tab.Get(1, "B"); got != "y" {
		t.Fatalf("Get(1, B) = %q, want trimmed y", got)
	}
}

func TestReadFileCommaAndBOM(t *testing.T) {
	path := writeCSV(t, "data.csv", "\ufeffA,B\n1,2\n")
	tab, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if _, ok := tab.Column("A"); !ok {
		t.Fatalf("BOM not stripped from first header, headers=%v", tab.Headers)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.csv"))
	var ds *faults.DataSourceError
	if !errors.As(err, &ds) {
		t.Fatalf("expected DataSourceError, got %v", err)
	}
}

func TestRequire(t *testing.T) {
	path := writeCSV(t, "data.csv", "A;B\n1;2\n")
	tab, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := tab.Require("A", "B"); err != nil {
		t.Fatalf("Require: %v", err)
	}
	err = tab.Require("A", "C")
	var ds *faults.DataSourceError
	if !errors.As(err, &ds) {
		t.Fatalf("expected DataSourceError, got %v", err)
	}
	if len(ds.Missing) != 1 || ds.Missing[0] != "C" {
		t.Fatalf("missing = %v", ds.Missing)
	}
}

func TestShortRow(t *testing.T) {
	path := writeCSV(t, "data.csv", "A;B;C\n1\n")
	tab, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := tab.Get(0, "C"); got != "" {
		t.Fatalf("short row cell = %q, want empty", got)
	}
}
