package postcodes

import (
	"strings"

	"callout_framework/internal/tabular"
)

// Directory maps postcode to city name, loaded from the Postnr/By table.
// Immutable after Load; repeated postcodes follow last-wins read order.
type Directory struct {
	byPostcode map[string]string
}

// Load reads the two-column postcode table.
func Load(path string) (*Directory, error) {
	t, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require("Postnr", "By"); err != nil {
		return nil, err
	}
	m := make(map[string]string, t.Len())
	for i := 0; i < t.Len(); i++ {
		pc := t.Get(i, "Postnr")
		if pc == "" {
			continue
		}
		m[pc] = t.Get(i, "By")
	}
	return &Directory{byPostcode: m}, nil
}

// CityForPostcode returns "" for unknown postcodes; callers treat empty as
// "unknown", never as an error.
func (d *Directory) CityForPostcode(pc string) string {
	return d.byPostcode[strings.TrimSpace(pc)]
}

// AsMap returns a copy for loaders that enrich rows with city names.
func (d *Directory) AsMap() map[string]string {
	out := make(map[string]string, len(d.byPostcode))
	for k, v := range d.byPostcode {
		out[k] = v
	}
	return out
}

// Len returns the number of known postcodes.
func (d *Directory) Len() int { return len(d.byPostcode) }
