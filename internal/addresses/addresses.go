package addresses

import (
	"fmt"
	"sort"
	"strings"

	"callout_framework/internal/normalize"
	"callout_framework/internal/tabular"
)

// Address carries the components the resolver needs. A manually entered
// address is an Address with a caller-supplied (possibly blank) district;
// a blank district can never resolve units through the incident matrix.
type Address struct {
	Display     string
	Street      string
	HouseNo     string
	HouseLetter string
	Postcode    string
	City        string
	DistrictNo  string
}

// KnownAddress is one authoritative address point from the reference table.
type KnownAddress struct {
	Address
	NormKey string
}

// DefaultMinScore is the fuzzy search cut-off when the caller passes <= 0.
const DefaultMinScore = 0.72

var requiredColumns = []string{"Vejnavn", "Hus nummer", "Hus bogstav", "Postnummer", "Distrikt nummer"}

// Directory holds the loaded address points. Read-only after Load.
type Directory struct {
	entries        []KnownAddress
	streetNorm     []string
	displayNorm    []string
	byNormKey      map[string]int
	knownPostcodes map[string]bool
}

// Load reads the address-point table. Duplicate normalized keys collapse to
// the first-encountered row. postcodeToCity may be nil; when given, it fills
// the city part of display strings and the known-postcode set used by the
// fuzzy search ordering.
func Load(path string, postcodeToCity map[string]string) (*Directory, error) {
	t, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(requiredColumns...); err != nil {
		return nil, err
	}

	d := &Directory{
		byNormKey:      make(map[string]int, t.Len()),
		knownPostcodes: make(map[string]bool, len(postcodeToCity)),
	}
	for pc := range postcodeToCity {
		d.knownPostcodes[pc] = true
	}

	for i := 0; i < t.Len(); i++ {
		street := t.Get(i, "Vejnavn")
		houseNo := t.Get(i, "Hus nummer")
		letter := t.Get(i, "Hus bogstav")
		postcode := t.Get(i, "Postnummer")
		district := t.Get(i, "Distrikt nummer")
		city := postcodeToCity[postcode]

		key := normalize.AddressKey(street, houseNo, letter, postcode)
		if _, dup := d.byNormKey[key]; dup {
			continue
		}
		ka := KnownAddress{
			Address: Address{
				Display:     makeDisplay(street, houseNo, letter, postcode, city),
				Street:      street,
				HouseNo:     houseNo,
				HouseLetter: letter,
				Postcode:    postcode,
				City:        city,
				DistrictNo:  district,
			},
			NormKey: key,
		}
		d.byNormKey[key] = len(d.entries)
		d.entries = append(d.entries, ka)
		d.streetNorm = append(d.streetNorm, normalize.Text(street))
		d.displayNorm = append(d.displayNorm, normalize.Text(ka.Display))
	}
	return d, nil
}

func makeDisplay(street, houseNo, letter, postcode, city string) string {
	hl := ""
	if letter != "" {
		hl = " " + letter
	}
	cityPart := ""
	if city != "" {
		cityPart = " " + city
	}
	return fmt.Sprintf("%s %s%s, %s%s", street, houseNo, hl, postcode, cityPart)
}

// Len returns the number of loaded address points.
func (d *Directory) Len() int { return len(d.entries) }

// ByNormKey returns the address point for a normalized key.
func (d *Directory) ByNormKey(key string) (KnownAddress, bool) {
	i, ok := d.byNormKey[key]
	if !ok {
		return KnownAddress{}, false
	}
	return d.entries[i], true
}

// DistrictForNormKey returns the district for a normalized key, if known.
func (d *Directory) DistrictForNormKey(key string) (string, bool) {
	i, ok := d.byNormKey[key]
	if !ok {
		return "", false
	}
	return d.entries[i].DistrictNo, true
}

// FindByDisplayContains is the operator typeahead: case- and
// punctuation-insensitive substring search over display strings.
func (d *Directory) FindByDisplayContains(query string, limit int) []KnownAddress {
	q := normalize.Text(query)
	if q == "" {
		return nil
	}
	var out []KnownAddress
	for i := range d.entries {
		if strings.Contains(d.displayNorm[i], q) {
			out = append(out, d.entries[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// FindByComponents matches the normalized street exactly and the house
// number as a trimmed exact string. A non-empty extra further requires a
// case-insensitive exact match on the house letter. Directory order.
func (d *Directory) FindByComponents(street, houseNo, extra string, limit int) []KnownAddress {
	streetQ := normalize.Text(street)
	noQ := strings.TrimSpace(houseNo)
	extraQ := strings.TrimSpace(extra)

	var out []KnownAddress
	for i := range d.entries {
		if d.streetNorm[i] != streetQ || d.entries[i].HouseNo != noQ {
			continue
		}
		if extraQ != "" && !strings.EqualFold(d.entries[i].HouseLetter, extraQ) {
			continue
		}
		out = append(out, d.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// FindFuzzyStreetHouse searches misspelled street names. Candidates are
// restricted to an exact house-number match; the house number itself is
// never fuzzy-matched. Each candidate street scores a bigram Dice ratio
// against the query street, +0.20 when the normalized streets are equal,
// else +0.10 when the candidate street starts with the query street, and
// +0.05 when a non-empty query letter matches the candidate letter.
// Candidates below minScore (DefaultMinScore when <= 0) are dropped; the
// rest sort by known-postcode first, then score, stable for ties.
func (d *Directory) FindFuzzyStreetHouse(street, houseNo, houseLetter string, limit int, minScore float64) []KnownAddress {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	streetQ := normalize.Text(street)
	noQ := strings.TrimSpace(houseNo)
	letterQ := strings.TrimSpace(houseLetter)
	if streetQ == "" || noQ == "" {
		return nil
	}

	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i := range d.entries {
		if d.entries[i].HouseNo != noQ {
			continue
		}
		score := diceSimilarity(streetQ, d.streetNorm[i])
		switch {
		case d.streetNorm[i] == streetQ:
			score += 0.20
		case strings.HasPrefix(d.streetNorm[i], streetQ):
			score += 0.10
		}
		if letterQ != "" && strings.EqualFold(d.entries[i].HouseLetter, letterQ) {
			score += 0.05
		}
		if score < minScore {
			continue
		}
		hits = append(hits, scored{idx: i, score: score})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		ka := d.knownPostcodes[d.entries[hits[a].idx].Postcode]
		kb := d.knownPostcodes[d.entries[hits[b].idx].Postcode]
		if ka != kb {
			return ka
		}
		return hits[a].score > hits[b].score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]KnownAddress, len(hits))
	for i, h := range hits {
		out[i] = d.entries[h.idx]
	}
	return out
}

// diceSimilarity is the bigram Sørensen-Dice ratio in [0, 1] over runes.
func diceSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	ar := []rune(a)
	br := []rune(b)
	if len(ar) < 2 || len(br) < 2 {
		return 0
	}
	counts := make(map[string]int, len(ar)-1)
	for i := 0; i < len(ar)-1; i++ {
		counts[string(ar[i:i+2])]++
	}
	overlap := 0
	for i := 0; i < len(br)-1; i++ {
		bg := string(br[i : i+2])
		if counts[bg] > 0 {
			counts[bg]--
			overlap++
		}
	}
	return 2 * float64(overlap) / float64(len(ar)+len(br)-2)
}

// MakeManualAddress builds an operator-entered address. The district is
// user-supplied when the address is not in the directory; unit lookups with
// a blank district fail, forcing the manual assistance path.
func MakeManualAddress(street, houseNo, houseExtra, postcode, city, districtNo string) Address {
	street = strings.TrimSpace(street)
	houseNo = strings.TrimSpace(houseNo)
	houseExtra = strings.TrimSpace(houseExtra)
	postcode = strings.TrimSpace(postcode)
	city = strings.TrimSpace(city)

	extra := ""
	if houseExtra != "" {
		extra = " " + houseExtra
	}
	display := strings.TrimSpace(fmt.Sprintf("%s %s%s, %s %s", street, houseNo, extra, postcode, city))
	return Address{
		Display:     display,
		Street:      street,
		HouseNo:     houseNo,
		HouseLetter: houseExtra,
		Postcode:    postcode,
		City:        city,
		DistrictNo:  strings.TrimSpace(districtNo),
	}
}
