package aba

import (
	"os"
	"path/filepath"
	"testing"
)

const fixtureHeader = "DOA-nr;Adresse;Postnr/bynavn;Navn;Primær udrykning;Sekundær udrykning;Status\n"

func loadFixture(t *testing.T, rows string) *Directory {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aba.csv")
	if err := os.WriteFile(path, []byte(fixtureHeader+rows), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return d
}

func TestLoadFiltersOutOfService(t *testing.T) {
	d := loadFixture(t,
		"D1;Hovedgaden 12;4000 Roskilde;Site A;ROIL1,ROM1;ROV1;I drift\n"+
			"D2;Skolevej 3;4000 Roskilde;Site B;ROIL1;-;Nedlagt\n")
	if d.Len() != 1 {
		t.Fatalf("Len = %d, want only the in-service row", d.Len())
	}
	if d.MatchComponents("Skolevej", "3", "", "4000") != nil {
		t.Fatalf("out-of-service site should not match")
	}
}

func TestMatchComponents(t *testing.T) {
	d := loadFixture(t, "D1;Hovedgaden 12;4000 Roskilde;Site A;ROIL1,ROM1;ROV1;I drift\n")
	site := d.MatchComponents("Hovedgaden", "12", "", "4000")
	if site == nil {
		t.Fatalf("no match")
	}
	if site.Name != "Site A" || site.PrimaryResponse != "ROIL1,ROM1" {
		t.Fatalf("site = %+v", site)
	}
	if d.MatchComponents("Hovedgaden", "14", "", "4000") != nil {
		t.Fatalf("wrong house number matched")
	}
}

func TestMatchComponentsContainment(t *testing.T) {
	// The register embeds floor/side annotations in its address text.
	d := loadFixture(t, "D1;Hovedgaden 12 st. tv;4000 Roskilde;Site A;ROIL1;-;I drift\n")
	site := d.MatchComponents("Hovedgaden", "12", "", "4000")
	if site == nil || site.Name != "Site A" {
		t.Fatalf("containment fallback failed: %+v", site)
	}
}

func TestMatchAddress(t *testing.T) {
	d := loadFixture(t, "D1;Hovedgaden 12;4000 Roskilde;Site A;ROIL1;-;I drift\n")
	if d.MatchAddress("hovedgaden 12, 4000 roskilde") == nil {
		t.Fatalf("display match failed")
	}
	if d.MatchAddress("Skolevej 3, 4000 Roskilde") != nil {
		t.Fatalf("unknown address matched")
	}
}

func TestConflictPrefersUsableRow(t *testing.T) {
	badFirst := "D1;Hovedgaden 12;4000 Roskilde;Site A;*FEJL*;-;I drift\n" +
		"D2;Hovedgaden 12;4000 Roskilde;Site A;ROIL1,ROM1;ROV1;I drift\n"
	goodFirst := "D2;Hovedgaden 12;4000 Roskilde;Site A;ROIL1,ROM1;ROV1;I drift\n" +
		"D1;Hovedgaden 12;4000 Roskilde;Site A;*FEJL*;-;I drift\n"
	for _, fixture := range []string{badFirst, goodFirst} {
		d := loadFixture(t, fixture)
		site := d.MatchComponents("Hovedgaden", "12", "", "4000")
		if site == nil {
			t.Fatalf("usable row lost the conflict")
		}
		if site.PrimaryResponse != "ROIL1,ROM1" {
			t.Fatalf("wrong winner: %+v", site)
		}
	}
}

func TestSentinelGuard(t *testing.T) {
	d := loadFixture(t, "D1;Hovedgaden 12;4000 Roskilde;Site A;*FEJL*;ROV1;I drift\n")
	if d.Len() != 1 {
		t.Fatalf("sentinel row should still load")
	}
	if d.MatchComponents("Hovedgaden", "12", "", "4000") != nil {
		t.Fatalf("sentinel primary response must behave as no match")
	}
	if d.MatchAddress("Hovedgaden 12, 4000 Roskilde") != nil {
		t.Fatalf("sentinel primary response must behave as no match")
	}
}
