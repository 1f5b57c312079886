package aba

import (
	"regexp"
	"strings"

	"callout_framework/internal/normalize"
	"callout_framework/internal/tabular"
)

// ErrorSentinel marks a response cell the source system could not fill. A
// site whose chosen primary response equals it behaves as absent at match
// time, even though the row exists.
const ErrorSentinel = "*FEJL*"

const placeholder = "-"

// Site is one property under automatic-alarm contract with its fixed
// primary/secondary response unit lists (comma-joined).
type Site struct {
	DOANo             string
	Name              string
	AddressDisplay    string
	AddressNorm       string
	PrimaryResponse   string
	SecondaryResponse string
	Status            string
}

type record struct {
	Site
	keyBasic string
	score    int
}

var requiredColumns = []string{"DOA-nr", "Adresse", "Postnr/bynavn", "Navn", "Primær udrykning", "Sekundær udrykning", "Status"}

var (
	inServicePattern = regexp.MustCompile(`(?i)\bdrift\b`)
	postcodePattern  = regexp.MustCompile(`\d{4}`)
)

// Directory holds the in-service alarm sites. Read-only after Load.
type Directory struct {
	records []record
	byKey   map[string]int
	byNorm  map[string]int
}

// Load reads the alarm-site table. Only rows whose status contains the whole
// word "drift" are retained; conflicting rows sharing a key keep the
// highest-scored one so a known-bad placeholder row never wins on file order.
func Load(path string) (*Directory, error) {
	t, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(requiredColumns...); err != nil {
		return nil, err
	}

	// First pass: filter to in-service rows and resolve conflicting
	// duplicates per key, keeping the better row (first wins ties).
	bestByKey := make(map[string]int)
	var rows []record
	for i := 0; i < t.Len(); i++ {
		status := t.Get(i, "Status")
		if !inServicePattern.MatchString(status) {
			continue
		}
		address := t.Get(i, "Adresse")
		postArea := t.Get(i, "Postnr/bynavn")
		display := address + ", " + postArea

		r := record{
			Site: Site{
				DOANo:             t.Get(i, "DOA-nr"),
				Name:              t.Get(i, "Navn"),
				AddressDisplay:    display,
				AddressNorm:       normalize.Text(display),
				PrimaryResponse:   t.Get(i, "Primær udrykning"),
				SecondaryResponse: t.Get(i, "Sekundær udrykning"),
				Status:            status,
			},
			keyBasic: normalize.Text(address + " " + postcodePattern.FindString(postArea)),
		}
		r.score = scoreRecord(r)

		if prev, ok := bestByKey[r.keyBasic]; ok {
			if r.score > rows[prev].score {
				rows[prev] = r
			}
			continue
		}
		bestByKey[r.keyBasic] = len(rows)
		rows = append(rows, r)
	}

	d := &Directory{
		records: rows,
		byKey:   make(map[string]int, len(rows)),
		byNorm:  make(map[string]int, len(rows)),
	}
	for i, r := range rows {
		d.byKey[r.keyBasic] = i
		if _, ok := d.byNorm[r.AddressNorm]; !ok {
			d.byNorm[r.AddressNorm] = i
		}
	}
	return d, nil
}

func scoreRecord(r record) int {
	s := 0
	primary := strings.TrimSpace(r.PrimaryResponse)
	switch {
	case primary == ErrorSentinel:
		s -= 100
	case primary != "" && primary != placeholder:
		s += 100
	}
	if sec := strings.TrimSpace(r.SecondaryResponse); sec != "" && sec != placeholder && sec != ErrorSentinel {
		s += 10
	}
	status := strings.ToLower(r.Status)
	if strings.Contains(status, "drift") || strings.Contains(status, "aktiv") || strings.Contains(status, "in service") {
		s += 5
	}
	if strings.TrimSpace(r.Name) != "" {
		s++
	}
	return s
}

// Len returns the number of retained sites.
func (d *Directory) Len() int { return len(d.records) }

// MatchAddress matches a full display string against the normalized site
// addresses. A hit whose primary response is the error sentinel counts as
// no match.
func (d *Directory) MatchAddress(addressDisplay string) *Site {
	key := normalize.Text(addressDisplay)
	if key == "" {
		return nil
	}
	idx, ok := d.byNorm[key]
	if !ok {
		return nil
	}
	return d.guard(idx)
}

// MatchComponents matches street/house/letter/postcode against the site
// keys: exact with letter, then exact without, then substring containment of
// the no-letter key (the source embeds floor/side annotations in its address
// text). When several rows survive the containment fallback the
// highest-scored one wins.
func (d *Directory) MatchComponents(street, houseNo, houseLetter, postcode string) *Site {
	street = strings.TrimSpace(street)
	houseNo = strings.TrimSpace(houseNo)
	houseLetter = strings.TrimSpace(houseLetter)
	postcode = strings.TrimSpace(postcode)

	keyWithLetter := normalize.Text(street + " " + houseNo + " " + houseLetter + " " + postcode)
	keyNoLetter := normalize.Text(street + " " + houseNo + " " + postcode)
	if keyNoLetter == "" {
		return nil
	}

	if idx, ok := d.byKey[keyWithLetter]; ok {
		return d.guard(idx)
	}
	if idx, ok := d.byKey[keyNoLetter]; ok {
		return d.guard(idx)
	}

	best := -1
	for i := range d.records {
		if !strings.Contains(d.records[i].keyBasic, keyNoLetter) {
			continue
		}
		if best == -1 || d.records[i].score > d.records[best].score {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	return d.guard(best)
}

func (d *Directory) guard(idx int) *Site {
	if strings.TrimSpace(d.records[idx].PrimaryResponse) == ErrorSentinel {
		return nil
	}
	s := d.records[idx].Site
	return &s
}
