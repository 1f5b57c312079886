package postcodes

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"callout_framework/internal/faults"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "postnumre.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFixture(t, "Postnr;By\n4000;Roskilde\n4040;Jyllinge\n")
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("Len = %d, want 2", d.Len())
	}
	if got := d.CityForPostcode("4000"); got != "Roskilde" {
		t.Fatalf("city = %q", got)
	}
	if got := d.CityForPostcode("9999"); got != "" {
		t.Fatalf("unknown postcode should give empty city, got %q", got)
	}
}

func TestLoadLastWins(t *testing.T) {
	path := writeFixture(t, "Postnr;By\n4000;Old Name\n4000;Roskilde\n")
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := d.CityForPostcode("4000"); got != "Roskilde" {
		t.Fatalf("city = %q, want last row to win", got)
	}
}

func TestLoadMissingColumns(t *testing.T) {
	path := writeFixture(t, "Zip;Town\n4000;Roskilde\n")
	_, err := Load(path)
	var ds *faults.DataSourceError
	if !errors.As(err, &ds) {
		t.Fatalf("expected DataSourceError, got %v", err)
	}
}
