package incidents

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"callout_framework/internal/faults"
	"callout_framework/internal/tabular"
)

// Profile is one incident type for one district: label plus the fixed set
// of responding units.
type Profile struct {
	DistrictNo   string
	IncidentCode string
	Label        string
	Units        []string
}

// Column layout of the pickliste sheets: incident code in column 0, label in
// column 1, metadata in 2..4, unit marker columns from 5 onward.
const (
	codeColumn       = 0
	labelColumn      = 1
	unitColumnOffset = 5
	minColumns       = unitColumnOffset + 1
)

// Matrix holds the incident→units tables for all districts. One table per
// district; the district number is the file name stem. Read-only after load.
type Matrix struct {
	byDistrict map[string]map[string]Profile
	order      map[string][]string
}

// LoadDir reads every CSV in dir as one district sheet.
func LoadDir(dir string) (*Matrix, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &faults.DataSourceError{Source: dir, Err: err}
	}
	m := &Matrix{
		byDistrict: make(map[string]map[string]Profile),
		order:      make(map[string][]string),
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		district := strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))
		if err := m.loadSheet(filepath.Join(dir, name), district); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Matrix) loadSheet(path, district string) error {
	t, err := tabular.ReadFile(path)
	if err != nil {
		return err
	}
	if len(t.Headers) < minColumns {
		return &faults.DataSourceError{
			Source: fmt.Sprintf("%s (district %s)", path, district),
			Err:    fmt.Errorf("expected at least %d columns, found %d", minColumns, len(t.Headers)),
		}
	}
	unitNames := t.Headers[unitColumnOffset:]

	profiles := make(map[string]Profile)
	var order []string
	for i := 0; i < t.Len(); i++ {
		code := t.GetIdx(i, codeColumn)
		if code == "" || code == "-" || strings.EqualFold(code, "nan") {
			continue
		}
		var units []string
		for u, name := range unitNames {
			if strings.EqualFold(t.GetIdx(i, unitColumnOffset+u), "X") {
				units = append(units, name)
			}
		}
		if _, seen := profiles[code]; !seen {
			order = append(order, code)
		}
		profiles[code] = Profile{
			DistrictNo:   district,
			IncidentCode: code,
			Label:        t.GetIdx(i, labelColumn),
			Units:        units,
		}
	}
	m.byDistrict[district] = profiles
	m.order[district] = order
	return nil
}

// GetProfile returns nil when the district or code is unknown.
func (m *Matrix) GetProfile(districtNo, incidentCode string) *Profile {
	p, ok := m.byDistrict[strings.TrimSpace(districtNo)][strings.TrimSpace(incidentCode)]
	if !ok {
		return nil
	}
	return &p
}

// ListIncidents returns a district's profiles in sheet order.
func (m *Matrix) ListIncidents(districtNo string) []Profile {
	district := strings.TrimSpace(districtNo)
	codes := m.order[district]
	out := make([]Profile, 0, len(codes))
	for _, c := range codes {
		out = append(out, m.byDistrict[district][c])
	}
	return out
}

// Districts returns the loaded district numbers, sorted.
func (m *Matrix) Districts() []string {
	out := make([]string, 0, len(m.byDistrict))
	for d := range m.byDistrict {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
